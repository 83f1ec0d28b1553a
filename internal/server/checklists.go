package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"trainingdesk/internal/checklist"
	"trainingdesk/internal/checklist/importer"
	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus"
)

const maxTemplateBytes = 4 << 20

type templateBody struct {
	Phases []types.Phase `json:"phases"`
}

type instantiateForm struct {
	CourseID string `form:"course_id"`
}

type addItemForm struct {
	Label string `form:"label"`
	Phase string `form:"phase"`
}

type toggleForm struct {
	Completed bool   `form:"completed"`
	Actor     string `form:"actor"`
}

type noteForm struct {
	Note string `form:"note"`
}

type importForm struct {
	Force bool `form:"force"`
}

type checklistResponse struct {
	EventID string                 `json:"eventId"`
	Phases  []checklist.PhaseGroup `json:"phases"`
}

type importResponse struct {
	Saved      bool            `json:"saved"`
	Layout     importer.Layout `json:"layout"`
	Confidence float64         `json:"confidence"`
	Warnings   []string        `json:"warnings"`
	Phases     []types.Phase   `json:"phases"`
}

func isYAML(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return true
	}
	return false
}

func (s *Service) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := s.checklists.Template(r.Context(), r.PathValue("courseID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		data, err := types.MarshalPhasesYAML(template.Phases)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(data)
		return
	}

	s.writeJSON(w, http.StatusOK, template)
}

// handlePutTemplate replaces a course template from a JSON or YAML body.
func (s *Service) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTemplateBytes))
	if err != nil {
		s.badRequest(w, "failed to read body")
		return
	}

	var phases []types.Phase
	if isYAML(r) {
		phases, err = types.ParsePhasesYAML(data)
	} else {
		var body templateBody
		if err = json.Unmarshal(data, &body); err == nil {
			phases, err = types.NormalizePhases(body.Phases)
		}
	}
	if err != nil {
		var validation *types.ValidationError
		if errors.As(err, &validation) {
			s.writeError(w, r, err)
			return
		}
		s.badRequest(w, "template body is not valid JSON or YAML")
		return
	}

	template, err := s.checklists.SaveTemplate(r.Context(), r.PathValue("courseID"), phases)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, template)
}

// handleImportTemplate reads an .xlsx upload. Imports scoring under the
// configured confidence come back unsaved unless force is set.
func (s *Service) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseID")

	r.Body = http.MaxBytesReader(w, r.Body, maxTemplateBytes+uploadSlackBytes)
	if err := r.ParseMultipartForm(maxTemplateBytes); err != nil {
		s.badRequest(w, "expected a multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var data importForm
	if err := decoder.Decode(&data, r.Form); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, types.NewValidationError("file", "file is required"))
		return
	}
	defer file.Close()

	result, err := importer.ImportWorkbook(file)
	if err != nil {
		if errors.Is(err, importer.ErrUnrecognized) {
			s.writeError(w, r, types.NewValidationError("file", err.Error()))
			return
		}
		s.logger.WithError(err).WithField("course_id", courseID).Warn("failed to read template workbook")
		s.writeError(w, r, types.NewValidationError("file", "file is not a readable .xlsx workbook"))
		return
	}

	resp := importResponse{
		Layout:     result.Layout,
		Confidence: result.Confidence,
		Warnings:   result.Warnings,
		Phases:     result.Phases,
	}
	if resp.Warnings == nil {
		resp.Warnings = make([]string, 0)
	}

	entry := s.logger.WithFields(logrus.Fields{
		"course_id":  courseID,
		"layout":     result.Layout,
		"confidence": result.Confidence,
		"items":      result.ItemCount(),
	})

	if result.Confidence < s.importThreshold() && !data.Force {
		entry.Info("template import held for review")
		s.writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	if _, err := s.checklists.SaveTemplate(r.Context(), courseID, result.Phases); err != nil {
		s.writeError(w, r, err)
		return
	}
	entry.Info("template imported")

	resp.Saved = true
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleGetChecklist(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")

	items, err := s.checklists.Items(r.Context(), eventID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, checklistResponse{EventID: eventID, Phases: checklist.GroupByPhase(items)})
}

func (s *Service) handleInstantiateChecklist(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")

	if err := r.ParseForm(); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	var data instantiateForm
	if err := decoder.Decode(&data, r.Form); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	items, err := s.checklists.InstantiateForEvent(r.Context(), eventID, data.CourseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, checklistResponse{EventID: eventID, Phases: checklist.GroupByPhase(items)})
}

func (s *Service) handleAddChecklistItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	var data addItemForm
	if err := decoder.Decode(&data, r.Form); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	item, err := s.checklists.AddItem(r.Context(), r.PathValue("eventID"), data.Label, data.Phase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Service) handleToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	var data toggleForm
	if err := decoder.Decode(&data, r.Form); err != nil {
		s.badRequest(w, "completed must be true or false")
		return
	}

	item, err := s.checklists.ToggleItem(r.Context(), r.PathValue("itemID"), data.Completed, data.Actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, item)
}

func (s *Service) handleSetChecklistNote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	var data noteForm
	if err := decoder.Decode(&data, r.Form); err != nil {
		s.badRequest(w, "invalid form")
		return
	}

	item, err := s.checklists.SetNote(r.Context(), r.PathValue("itemID"), data.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, item)
}

func (s *Service) handleDeleteChecklistItem(w http.ResponseWriter, r *http.Request) {
	if err := s.checklists.DeleteItem(r.Context(), r.PathValue("itemID")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
