package completeness

import (
	"context"
	"fmt"
	"time"

	"trainingdesk/internal/notify"
	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus"
)

type Policy string

const (
	// PolicyCountAnyStatus treats a type as supplied once any instance
	// exists, rejected ones included.
	PolicyCountAnyStatus Policy = "count-any-status"
	// PolicyCountApprovedOnly only counts APPROVED instances.
	PolicyCountApprovedOnly Policy = "count-approved-only"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyCountAnyStatus:
		return PolicyCountAnyStatus, nil
	case PolicyCountApprovedOnly:
		return PolicyCountApprovedOnly, nil
	}
	return "", types.NewValidationError("completeness_policy", fmt.Sprintf("unknown policy %q", s))
}

func (p Policy) counts(doc *types.DocumentInstance) bool {
	if p == PolicyCountApprovedOnly {
		return doc.Status == types.DocumentStatusApproved
	}
	return true
}

type Report struct {
	IsComplete bool     `json:"isComplete"`
	Missing    []string `json:"missing"`
	Required   int      `json:"required"`
	Supplied   int      `json:"supplied"`
}

// Evaluate reports which required types have no counted instance. Missing
// keeps the order of required; duplicate required types count once.
func Evaluate(docs []*types.DocumentInstance, required []*types.DocumentType, policy Policy) Report {
	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if policy.counts(doc) {
			present[doc.DocumentTypeID] = true
		}
	}

	report := Report{Missing: make([]string, 0)}
	seen := make(map[string]bool, len(required))
	for _, docType := range required {
		if seen[docType.ID] {
			continue
		}
		seen[docType.ID] = true
		report.Required++

		if present[docType.ID] {
			report.Supplied++
			continue
		}
		report.Missing = append(report.Missing, docType.Title)
	}

	report.IsComplete = len(report.Missing) == 0
	return report
}

type DocumentLister interface {
	DocumentsByOwner(ctx context.Context, ownerID string) ([]*types.DocumentInstance, error)
}

type RequiredTypeLister interface {
	RequiredDocumentTypes(ctx context.Context, categories ...types.DocumentCategory) ([]*types.DocumentType, error)
}

type Evaluator struct {
	logger   logrus.FieldLogger
	docs     DocumentLister
	required RequiredTypeLister
	notifier notify.Notifier
	policy   Policy
	timeout  time.Duration
}

func New(logger logrus.FieldLogger, docs DocumentLister, required RequiredTypeLister, notifier notify.Notifier, policy Policy, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Evaluator{
		logger:   logger,
		docs:     docs,
		required: required,
		notifier: notifier,
		policy:   policy,
		timeout:  timeout,
	}
}

func (e *Evaluator) Policy() Policy {
	return e.policy
}

func (e *Evaluator) Evaluate(ctx context.Context, ownerID string, required []*types.DocumentType) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.docs.DocumentsByOwner(ctx, ownerID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list documents for %s: %w", ownerID, err)
	}

	return Evaluate(docs, required, e.policy), nil
}

// EvaluateCategories evaluates against every required type in the given
// categories, or all required types when none are given.
func (e *Evaluator) EvaluateCategories(ctx context.Context, ownerID string, categories ...types.DocumentCategory) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	required, err := e.required.RequiredDocumentTypes(ctx, categories...)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list required document types: %w", err)
	}

	docs, err := e.docs.DocumentsByOwner(ctx, ownerID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list documents for %s: %w", ownerID, err)
	}

	return Evaluate(docs, required, e.policy), nil
}

// CategoriesFor is the set of categories an owner kind is asked to supply.
func CategoriesFor(kind types.OwnerKind) []types.DocumentCategory {
	if kind == types.OwnerKindInstructor {
		return []types.DocumentCategory{types.CategoryInstructor, types.CategoryCertificate}
	}
	return []types.DocumentCategory{types.CategoryStudent, types.CategoryMedical, types.CategoryOffice}
}

// AfterUpload fires DOCS_COMPLETE when doc is the upload that made the owner
// complete. Errors are logged; the upload itself already succeeded.
func (e *Evaluator) AfterUpload(ctx context.Context, doc *types.DocumentInstance) {
	e.notifyOnFlip(ctx, doc, nil)
}

// AfterReview is AfterUpload for a review decision. Only an approval can
// complete an owner, and only under PolicyCountApprovedOnly.
func (e *Evaluator) AfterReview(ctx context.Context, doc *types.DocumentInstance) {
	if doc.Status != types.DocumentStatusApproved || e.policy != PolicyCountApprovedOnly {
		return
	}
	prior := *doc
	prior.Status = types.DocumentStatusPending
	e.notifyOnFlip(ctx, doc, &prior)
}

func (e *Evaluator) notifyOnFlip(ctx context.Context, doc, prior *types.DocumentInstance) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	entry := e.logger.WithFields(logrus.Fields{"owner_id": doc.OwnerID, "document_id": doc.ID})

	required, err := e.required.RequiredDocumentTypes(ctx, CategoriesFor(doc.OwnerKind)...)
	if err != nil {
		entry.WithError(err).Warn("failed to list required document types")
		return
	}

	docs, err := e.docs.DocumentsByOwner(ctx, doc.OwnerID)
	if err != nil {
		entry.WithError(err).Warn("failed to list owner documents")
		return
	}

	before := make([]*types.DocumentInstance, 0, len(docs)+1)
	for _, d := range docs {
		if d.ID != doc.ID {
			before = append(before, d)
		}
	}
	after := append(append(make([]*types.DocumentInstance, 0, len(before)+1), before...), doc)
	if prior != nil {
		before = append(before, prior)
	}

	if Evaluate(before, required, e.policy).IsComplete || !Evaluate(after, required, e.policy).IsComplete {
		return
	}

	entry.Info("owner documents complete")
	e.notifier.Notify(ctx, types.Notification{
		OwnerID:   doc.OwnerID,
		OwnerKind: doc.OwnerKind,
		Kind:      types.NotificationDocsComplete,
		Payload:   map[string]string{"documentId": doc.ID},
		CreatedAt: time.Now(),
	})
}
