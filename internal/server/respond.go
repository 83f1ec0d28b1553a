package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error    string   `json:"error"`
	Field    string   `json:"field,omitempty"`
	Blocking []string `json:"blocking,omitempty"`
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

// writeError maps the error taxonomy onto status codes. Only validation,
// sequence and not found messages reach the client verbatim.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		sequence   *types.SequenceViolation
		validation *types.ValidationError
		storageErr *types.StorageError
	)

	switch {
	case errors.As(err, &sequence):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: sequence.Error(), Blocking: sequence.Blocking})
	case errors.As(err, &validation):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: validation.Message, Field: validation.Field})
	case errors.Is(err, types.ErrRenameInProgress):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, types.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &storageErr):
		s.logger.WithError(err).WithFields(logrus.Fields{
			"path":        r.URL.Path,
			"storage_key": storageErr.Key,
			"storage_op":  storageErr.Op,
		}).Error("storage request failed")
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "document storage is unavailable, try again later"})
	default:
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		s.internalServerError(w)
	}
}

func (s *Service) internalServerError(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func (s *Service) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ownerKind reads the :kind path segment.
func ownerKind(r *http.Request) (types.OwnerKind, bool) {
	return types.OwnerKindFromFolder(r.PathValue("kind"))
}
