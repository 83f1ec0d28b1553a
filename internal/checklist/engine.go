package checklist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trainingdesk/internal/utils"
	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus"
)

type Repository interface {
	Item(ctx context.Context, id string) (*types.EventChecklistItem, error)
	ItemsByEvent(ctx context.Context, eventID string) ([]*types.EventChecklistItem, error)
	WithEventLock(ctx context.Context, eventID string, fn func(items []*types.EventChecklistItem) (*types.ChecklistMutation, error)) error
	UpdateNote(ctx context.Context, id string, note *string) (*types.EventChecklistItem, error)
	DeleteItem(ctx context.Context, id string) error
}

type TemplateRepository interface {
	TemplateByCourse(ctx context.Context, courseID string) (*types.ChecklistTemplate, error)
	UpsertTemplate(ctx context.Context, template *types.ChecklistTemplate) error
}

// Engine enforces sequential completion of an event's checklist: an item can
// only be completed once every item with a lower order is.
type Engine struct {
	logger    logrus.FieldLogger
	items     Repository
	templates TemplateRepository
	timeout   time.Duration
	now       func() time.Time
}

func New(logger logrus.FieldLogger, items Repository, templates TemplateRepository, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Engine{
		logger:    logger.WithField("component", "checklist"),
		items:     items,
		templates: templates,
		timeout:   timeout,
		now:       time.Now,
	}
}

// CloneTemplate flattens phases into fresh uncompleted items. Order is the
// flattened position; phase is kept for grouping only.
func CloneTemplate(eventID string, phases []types.Phase) []*types.EventChecklistItem {
	now := time.Now()
	out := make([]*types.EventChecklistItem, 0)
	for _, phase := range phases {
		for _, item := range phase.Items {
			out = append(out, &types.EventChecklistItem{
				ID:        utils.NanoID(),
				EventID:   eventID,
				Phase:     phase.Title,
				Label:     item.Label,
				Order:     len(out),
				CreatedAt: now,
			})
		}
	}
	return out
}

func (e *Engine) SaveTemplate(ctx context.Context, courseID string, phases []types.Phase) (*types.ChecklistTemplate, error) {
	if strings.TrimSpace(courseID) == "" {
		return nil, types.NewValidationError("course_id", "course is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	template := &types.ChecklistTemplate{CourseID: courseID, Phases: phases}
	if err := e.templates.UpsertTemplate(ctx, template); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"course_id": courseID,
		"phases":    len(template.Phases),
	}).Info("checklist template saved")

	return template, nil
}

func (e *Engine) Template(ctx context.Context, courseID string) (*types.ChecklistTemplate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.templates.TemplateByCourse(ctx, courseID)
}

// InstantiateForEvent clones the course template onto an event that has no
// checklist yet.
func (e *Engine) InstantiateForEvent(ctx context.Context, eventID, courseID string) ([]*types.EventChecklistItem, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, types.NewValidationError("event_id", "event is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	template, err := e.templates.TemplateByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	clone := CloneTemplate(eventID, template.Phases)

	err = e.items.WithEventLock(ctx, eventID, func(existing []*types.EventChecklistItem) (*types.ChecklistMutation, error) {
		if len(existing) > 0 {
			return nil, types.NewValidationError("event_id", "event already has a checklist")
		}
		return &types.ChecklistMutation{Insert: clone}, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"event_id":  eventID,
		"course_id": courseID,
		"items":     len(clone),
	}).Info("checklist cloned onto event")

	return clone, nil
}

// ToggleItem completes or reopens an item. Completing fails with a
// *types.SequenceViolation while any earlier item is open. Reopening never
// fails on ordering; it also reopens every later completed item, since
// those would otherwise sit completed behind an open one.
func (e *Engine) ToggleItem(ctx context.Context, itemID string, completed bool, actor string) (*types.EventChecklistItem, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	current, err := e.items.Item(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var result *types.EventChecklistItem
	var reopened int

	err = e.items.WithEventLock(ctx, current.EventID, func(items []*types.EventChecklistItem) (*types.ChecklistMutation, error) {
		target := findItem(items, itemID)
		if target == nil {
			return nil, types.ErrChecklistItemNotFound
		}

		if completed {
			if blocking := Blocking(items, target); len(blocking) > 0 {
				return nil, &types.SequenceViolation{ItemID: target.ID, Label: target.Label, Blocking: blocking}
			}
			if target.IsCompleted {
				result = target
				return nil, nil
			}

			now := e.now()
			target.IsCompleted = true
			target.CompletedAt = &now
			target.CompletedBy = utils.NonEmptyStringPtr(actor)
			result = target
			return &types.ChecklistMutation{Update: []*types.EventChecklistItem{target}}, nil
		}

		mutation := &types.ChecklistMutation{}
		for _, item := range items {
			if item.Order < target.Order || !item.IsCompleted {
				continue
			}
			reopen(item)
			mutation.Update = append(mutation.Update, item)
			if item.ID != target.ID {
				reopened++
			}
		}
		result = target
		return mutation, nil
	})
	if err != nil {
		return nil, err
	}

	entry := e.logger.WithFields(logrus.Fields{
		"event_id":  result.EventID,
		"item_id":   result.ID,
		"completed": result.IsCompleted,
	})
	if reopened > 0 {
		entry = entry.WithField("reopened_after", reopened)
	}
	entry.Info("checklist item toggled")

	return result, nil
}

// Blocking lists the labels of open items ordered before target.
func Blocking(items []*types.EventChecklistItem, target *types.EventChecklistItem) []string {
	blocking := make([]string, 0)
	for _, item := range items {
		if item.ID != target.ID && item.Order < target.Order && !item.IsCompleted {
			blocking = append(blocking, item.Label)
		}
	}
	return blocking
}

func reopen(item *types.EventChecklistItem) {
	item.IsCompleted = false
	item.CompletedAt = nil
	item.CompletedBy = nil
}

func findItem(items []*types.EventChecklistItem, id string) *types.EventChecklistItem {
	for _, item := range items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// AddItem appends an open item after every existing one. An empty phase
// inherits the last item's phase.
func (e *Engine) AddItem(ctx context.Context, eventID, label, phase string) (*types.EventChecklistItem, error) {
	label, phase = strings.TrimSpace(label), strings.TrimSpace(phase)
	if strings.TrimSpace(eventID) == "" {
		return nil, types.NewValidationError("event_id", "event is required")
	}
	if label == "" {
		return nil, types.NewValidationError("label", "label is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var added *types.EventChecklistItem
	err := e.items.WithEventLock(ctx, eventID, func(items []*types.EventChecklistItem) (*types.ChecklistMutation, error) {
		order := 0
		last := lastItem(items)
		if last != nil {
			order = last.Order + 1
		}

		if phase == "" {
			phase = types.DefaultPhaseTitle
			if last != nil && last.Phase != "" {
				phase = last.Phase
			}
		}

		added = &types.EventChecklistItem{
			ID:        utils.NanoID(),
			EventID:   eventID,
			Phase:     phase,
			Label:     label,
			Order:     order,
			CreatedAt: e.now(),
		}
		return &types.ChecklistMutation{Insert: []*types.EventChecklistItem{added}}, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"event_id": eventID,
		"item_id":  added.ID,
		"order":    added.Order,
	}).Info("checklist item added")

	return added, nil
}

func lastItem(items []*types.EventChecklistItem) *types.EventChecklistItem {
	var last *types.EventChecklistItem
	for _, item := range items {
		if last == nil || item.Order > last.Order {
			last = item
		}
	}
	return last
}

// DeleteItem removes an item without renumbering the rest.
func (e *Engine) DeleteItem(ctx context.Context, itemID string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.items.DeleteItem(ctx, itemID); err != nil {
		return err
	}

	e.logger.WithField("item_id", itemID).Info("checklist item deleted")
	return nil
}

// SetNote annotates an item. Blank text clears the note.
func (e *Engine) SetNote(ctx context.Context, itemID, text string) (*types.EventChecklistItem, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.items.UpdateNote(ctx, itemID, utils.NonEmptyStringPtr(text))
}

func (e *Engine) Items(ctx context.Context, eventID string) ([]*types.EventChecklistItem, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	items, err := e.items.ItemsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklist for event %s: %w", eventID, err)
	}
	return items, nil
}

type PhaseGroup struct {
	Title string                      `json:"title"`
	Items []*types.EventChecklistItem `json:"items"`
}

// GroupByPhase groups ordered items for display. Groups appear in the order
// their first item does.
func GroupByPhase(items []*types.EventChecklistItem) []PhaseGroup {
	groups := make([]PhaseGroup, 0)
	index := make(map[string]int)
	for _, item := range items {
		title := item.Phase
		if title == "" {
			title = types.DefaultPhaseTitle
		}
		i, ok := index[title]
		if !ok {
			i = len(groups)
			index[title] = i
			groups = append(groups, PhaseGroup{Title: title})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
