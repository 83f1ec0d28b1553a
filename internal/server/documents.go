package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"trainingdesk/internal/completeness"
	"trainingdesk/internal/documents"
	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus"
)

// multipart overhead allowed on top of the file size limit
const uploadSlackBytes = 1 << 20

type uploadForm struct {
	DocumentTypeID string `form:"document_type_id"`
}

type reviewForm struct {
	Status   types.DocumentStatus `form:"status"`
	Feedback string               `form:"feedback"`
	Reviewer string               `form:"reviewer"`
}

type renameForm struct {
	OldSlug string `form:"old_slug"`
	NewSlug string `form:"new_slug"`
}

type documentsResponse struct {
	Documents []*types.DocumentInstance `json:"documents"`
	// Current is the newest instance per document type id.
	Current map[string]*types.DocumentInstance `json:"current"`
}

type accessURLResponse struct {
	URL     string              `json:"url"`
	Purpose types.AccessPurpose `json:"purpose"`
}

type completenessResponse struct {
	OwnerID string `json:"ownerId"`
	completeness.Report
}

func (s *Service) maxUploadBytes() int64 {
	if s.config.MaxUploadBytes > 0 {
		return s.config.MaxUploadBytes
	}
	return documents.DefaultMaxUploadBytes
}

func (s *Service) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	kind, ok := ownerKind(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ownerID := r.PathValue("ownerID")

	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+uploadSlackBytes)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, types.NewValidationError("file", fmt.Sprintf("file is larger than %d MB", limit>>20)))
			return
		}
		s.badRequest(w, "expected a multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var data uploadForm
	if err := decoder.Decode(&data, r.Form); err != nil {
		s.logger.WithError(err).Error("failed to decode upload form")
		s.badRequest(w, "invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, types.NewValidationError("file", "file is required"))
		return
	}
	defer file.Close()

	// one byte past the limit is enough for the registry to reject it
	body, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.logger.WithError(err).Error("failed to read uploaded file")
		s.badRequest(w, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}

	doc, err := s.documents.CreateDocument(r.Context(), documents.UploadRequest{
		OwnerID:        ownerID,
		OwnerKind:      kind,
		DocumentTypeID: data.DocumentTypeID,
		Body:           body,
		ContentType:    contentType,
		FileName:       header.Filename,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Service) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if _, ok := ownerKind(r); !ok {
		http.NotFound(w, r)
		return
	}

	docs, err := s.documents.Documents(r.Context(), r.PathValue("ownerID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, documentsResponse{
		Documents: docs,
		Current:   types.LatestByType(docs),
	})
}

func (s *Service) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Document(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Service) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.DeleteDocument(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleReviewDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	var data reviewForm
	if err := decoder.Decode(&data, r.Form); err != nil {
		s.logger.WithError(err).Error("failed to decode review form")
		s.badRequest(w, "invalid form")
		return
	}

	doc, err := s.documents.ReviewDocument(r.Context(), r.PathValue("id"), data.Status, data.Feedback, data.Reviewer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Service) handleDocumentURL(w http.ResponseWriter, r *http.Request) {
	purpose := types.AccessPurpose(r.URL.Query().Get("purpose"))
	if purpose == "" {
		purpose = types.AccessPurposePreview
	}

	url, err := s.documents.AccessURL(r.Context(), r.PathValue("id"), purpose)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, accessURLResponse{URL: url, Purpose: purpose})
}

func (s *Service) handleCompleteness(w http.ResponseWriter, r *http.Request) {
	kind, ok := ownerKind(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ownerID := r.PathValue("ownerID")

	categories := completeness.CategoriesFor(kind)
	if requested := r.URL.Query()["category"]; len(requested) > 0 {
		categories = make([]types.DocumentCategory, 0, len(requested))
		for _, c := range requested {
			category := types.DocumentCategory(c)
			if !category.Valid() {
				s.writeError(w, r, types.NewValidationError("category", fmt.Sprintf("unknown category %q", c)))
				return
			}
			categories = append(categories, category)
		}
	}

	report, err := s.evaluator.EvaluateCategories(r.Context(), ownerID, categories...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, completenessResponse{OwnerID: ownerID, Report: report})
}

// handleRenameOwner answers 207 when some objects stayed behind; the body
// lists them and the same request can be retried.
func (s *Service) handleRenameOwner(w http.ResponseWriter, r *http.Request) {
	kind, ok := ownerKind(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ownerID := r.PathValue("ownerID")

	if err := r.ParseForm(); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	var data renameForm
	if err := decoder.Decode(&data, r.Form); err != nil {
		s.logger.WithError(err).Error("failed to decode rename form")
		s.badRequest(w, "invalid form")
		return
	}

	report, err := s.documents.RenameOwner(r.Context(), ownerID, kind, data.OldSlug, data.NewSlug)

	var partial *types.PartialRenameError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, report)
	case errors.As(err, &partial) && report != nil:
		s.logger.WithFields(logrus.Fields{
			"owner_id": ownerID,
			"moved":    partial.Moved,
			"failed":   len(partial.FailedKeys),
		}).Warn("owner folder rename incomplete")
		s.writeJSON(w, http.StatusMultiStatus, report)
	default:
		s.writeError(w, r, err)
	}
}
