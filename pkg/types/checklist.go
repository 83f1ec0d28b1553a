package types

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPhaseTitle = "General"

// ChecklistItem is one label inside a template phase.
type ChecklistItem struct {
	Label string `json:"label" yaml:"label"`
}

// Phase groups template items under a heading. Phases are display grouping
// only; gating follows the flattened item order.
type Phase struct {
	Title string          `json:"title" yaml:"title"`
	Items []ChecklistItem `json:"items" yaml:"items"`
}

// ChecklistTemplate is the per-course checklist that gets cloned onto each
// scheduled event.
type ChecklistTemplate struct {
	CourseID  string    `db:"course_id" json:"courseId"`
	Phases    []Phase   `db:"phases" json:"phases"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// EventChecklistItem is a cloned or manually added step on one event.
type EventChecklistItem struct {
	ID          string     `db:"id" json:"id"`
	EventID     string     `db:"event_id" json:"eventId"`
	Phase       string     `db:"phase" json:"phase"`
	Label       string     `db:"label" json:"label"`
	Order       int        `db:"sort_order" json:"order"`
	IsCompleted bool       `db:"is_completed" json:"isCompleted"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CompletedBy *string    `db:"completed_by" json:"completedBy,omitempty"`
	Note        *string    `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// ChecklistMutation is what an edit made under the event lock wants
// persisted in the same transaction.
type ChecklistMutation struct {
	Insert []*EventChecklistItem
	Update []*EventChecklistItem
}

// ValidatePhases rejects templates that cannot be cloned: no phases, untitled
// or repeated phase titles (compared case-insensitively), empty phases or
// blank labels.
func ValidatePhases(phases []Phase) error {
	if len(phases) == 0 {
		return NewValidationError("phases", "template needs at least one phase")
	}
	seen := make(map[string]bool, len(phases))
	for i, phase := range phases {
		title := strings.ToLower(strings.TrimSpace(phase.Title))
		if title == "" {
			return NewValidationError("phases", fmt.Sprintf("phase %d has no title", i+1))
		}
		if seen[title] {
			return NewValidationError("phases", fmt.Sprintf("phase %q appears more than once", phase.Title))
		}
		seen[title] = true
		if len(phase.Items) == 0 {
			return NewValidationError("phases", fmt.Sprintf("phase %q has no items", phase.Title))
		}
		for j, item := range phase.Items {
			if strings.TrimSpace(item.Label) == "" {
				return NewValidationError("phases", fmt.Sprintf("phase %q item %d has no label", phase.Title, j+1))
			}
		}
	}
	return nil
}

// NormalizePhases trims whitespace and validates the result.
func NormalizePhases(phases []Phase) ([]Phase, error) {
	out := make([]Phase, len(phases))
	for i, phase := range phases {
		out[i].Title = strings.TrimSpace(phase.Title)
		out[i].Items = make([]ChecklistItem, len(phase.Items))
		for j, item := range phase.Items {
			out[i].Items[j].Label = strings.TrimSpace(item.Label)
		}
	}
	if err := ValidatePhases(out); err != nil {
		return nil, err
	}
	return out, nil
}

type phasesDocument struct {
	Phases []Phase `yaml:"phases"`
}

// ParsePhasesYAML decodes a template file of the form
//
//	phases:
//	  - title: Preparation
//	    items:
//	      - label: Book room
func ParsePhasesYAML(data []byte) ([]Phase, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, NewValidationError("phases", "template file is empty")
	}

	var doc phasesDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode checklist template: %w", err)
	}

	return NormalizePhases(doc.Phases)
}

// MarshalPhasesYAML is the inverse of ParsePhasesYAML.
func MarshalPhasesYAML(phases []Phase) ([]byte, error) {
	if err := ValidatePhases(phases); err != nil {
		return nil, err
	}
	return yaml.Marshal(phasesDocument{Phases: phases})
}
