package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"trainingdesk/internal/checklist"
	"trainingdesk/internal/checklist/importer"
	"trainingdesk/internal/completeness"
	"trainingdesk/internal/documents"
	"trainingdesk/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

type DocumentRegistry interface {
	CreateDocument(ctx context.Context, req documents.UploadRequest) (*types.DocumentInstance, error)
	ReviewDocument(ctx context.Context, id string, decision types.DocumentStatus, feedback, reviewer string) (*types.DocumentInstance, error)
	DeleteDocument(ctx context.Context, id string) error
	Document(ctx context.Context, id string) (*types.DocumentInstance, error)
	Documents(ctx context.Context, ownerID string) ([]*types.DocumentInstance, error)
	AccessURL(ctx context.Context, id string, purpose types.AccessPurpose) (string, error)
	RenameOwner(ctx context.Context, ownerID string, kind types.OwnerKind, oldName, newName string) (*documents.RenameReport, error)
}

type CompletenessEvaluator interface {
	EvaluateCategories(ctx context.Context, ownerID string, categories ...types.DocumentCategory) (completeness.Report, error)
}

type ChecklistEngine interface {
	SaveTemplate(ctx context.Context, courseID string, phases []types.Phase) (*types.ChecklistTemplate, error)
	Template(ctx context.Context, courseID string) (*types.ChecklistTemplate, error)
	InstantiateForEvent(ctx context.Context, eventID, courseID string) ([]*types.EventChecklistItem, error)
	ToggleItem(ctx context.Context, itemID string, completed bool, actor string) (*types.EventChecklistItem, error)
	AddItem(ctx context.Context, eventID, label, phase string) (*types.EventChecklistItem, error)
	DeleteItem(ctx context.Context, itemID string) error
	SetNote(ctx context.Context, itemID, text string) (*types.EventChecklistItem, error)
	Items(ctx context.Context, eventID string) ([]*types.EventChecklistItem, error)
}

var (
	_ DocumentRegistry      = (*documents.Registry)(nil)
	_ CompletenessEvaluator = (*completeness.Evaluator)(nil)
	_ ChecklistEngine       = (*checklist.Engine)(nil)
)

// Service is the admin JSON API in front of the document registry and the
// checklist engine. Authentication happens upstream.
type Service struct {
	logger *logrus.Logger
	config *types.Config

	documents  DocumentRegistry
	evaluator  CompletenessEvaluator
	checklists ChecklistEngine

	minImportConfidence float64

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	documents DocumentRegistry,
	evaluator CompletenessEvaluator,
	checklists ChecklistEngine,
) *Service {
	mux := flow.New()

	s := &Service{
		logger: logger,
		config: config,

		documents:  documents,
		evaluator:  evaluator,
		checklists: checklists,

		minImportConfidence: config.MinImportConfidence,

		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)
	// outside the mux so rewritten paths are routed again
	s.server.Handler = s.StripTrailingSlash(mux)

	return s
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)

	// :kind is the owner folder name, "students" or "instructors"
	r.HandleFunc("/owners/:kind/:ownerID/documents", s.handleListDocuments, http.MethodGet)
	r.HandleFunc("/owners/:kind/:ownerID/documents", s.handleUploadDocument, http.MethodPost)
	r.HandleFunc("/owners/:kind/:ownerID/completeness", s.handleCompleteness, http.MethodGet)
	r.HandleFunc("/owners/:kind/:ownerID/rename", s.handleRenameOwner, http.MethodPost)

	r.HandleFunc("/documents/:id", s.handleGetDocument, http.MethodGet)
	r.HandleFunc("/documents/:id", s.handleDeleteDocument, http.MethodDelete)
	r.HandleFunc("/documents/:id/review", s.handleReviewDocument, http.MethodPost)
	r.HandleFunc("/documents/:id/url", s.handleDocumentURL, http.MethodGet)

	r.HandleFunc("/courses/:courseID/checklist-template", s.handleGetTemplate, http.MethodGet)
	r.HandleFunc("/courses/:courseID/checklist-template", s.handlePutTemplate, http.MethodPut)
	r.HandleFunc("/courses/:courseID/checklist-template/import", s.handleImportTemplate, http.MethodPost)

	r.HandleFunc("/events/:eventID/checklist", s.handleGetChecklist, http.MethodGet)
	r.HandleFunc("/events/:eventID/checklist", s.handleInstantiateChecklist, http.MethodPost)
	r.HandleFunc("/events/:eventID/checklist/items", s.handleAddChecklistItem, http.MethodPost)

	r.HandleFunc("/checklist-items/:itemID/toggle", s.handleToggleChecklistItem, http.MethodPost)
	r.HandleFunc("/checklist-items/:itemID/note", s.handleSetChecklistNote, http.MethodPut)
	r.HandleFunc("/checklist-items/:itemID", s.handleDeleteChecklistItem, http.MethodDelete)
}

func (s *Service) importThreshold() float64 {
	if s.minImportConfidence > 0 {
		return s.minImportConfidence
	}
	return importer.DefaultMinConfidence
}
