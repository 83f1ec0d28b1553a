package seed

import (
	"context"
	"fmt"

	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus"
)

type OwnerUpserter interface {
	UpsertOwner(ctx context.Context, owner *types.Owner) error
}

type TemplateUpserter interface {
	UpsertTemplate(ctx context.Context, template *types.ChecklistTemplate) error
}

// DemoCourseID owns the sample checklist template.
const DemoCourseID = "demo-first-aid-at-work"

var demoOwners = []types.Owner{
	{ID: "11111111-1111-1111-1111-111111111111", Kind: types.OwnerKindStudent, FullName: "Ava Williams"},
	{ID: "22222222-2222-2222-2222-222222222222", Kind: types.OwnerKindStudent, FullName: "Liam Johnson"},
	{ID: "33333333-3333-3333-3333-333333333333", Kind: types.OwnerKindStudent, FullName: "Zoë Brontë"},
	{ID: "44444444-4444-4444-4444-444444444444", Kind: types.OwnerKindStudent, FullName: "Mia Davis"},
	{ID: "55555555-5555-5555-5555-555555555555", Kind: types.OwnerKindInstructor, FullName: "Elijah Garcia"},
	{ID: "66666666-6666-6666-6666-666666666666", Kind: types.OwnerKindInstructor, FullName: "Olivia Miller"},
}

func DemoTemplate() []types.Phase {
	return []types.Phase{
		{
			Title: "Before the course",
			Items: []types.ChecklistItem{
				{Label: "Confirm venue booking"},
				{Label: "Send joining instructions"},
				{Label: "Check every student has supplied documents"},
			},
		},
		{
			Title: "On the day",
			Items: []types.ChecklistItem{
				{Label: "Set up manikins and AED trainer"},
				{Label: "Collect signed attendance sheet"},
				{Label: "Run practical assessment"},
			},
		},
		{
			Title: "After the course",
			Items: []types.ChecklistItem{
				{Label: "Upload attendance sheet"},
				{Label: "Issue completion certificates"},
				{Label: "Send feedback survey"},
			},
		},
	}
}

// SeedDemo upserts sample owners and the sample course template for local
// development.
func SeedDemo(ctx context.Context, owners OwnerUpserter, templates TemplateUpserter, logger logrus.FieldLogger) error {
	for _, owner := range demoOwners {
		if err := owners.UpsertOwner(ctx, &owner); err != nil {
			return fmt.Errorf("failed to upsert demo owner %s: %w", owner.ID, err)
		}
	}

	template := &types.ChecklistTemplate{CourseID: DemoCourseID, Phases: DemoTemplate()}
	if err := templates.UpsertTemplate(ctx, template); err != nil {
		return fmt.Errorf("failed to upsert demo template: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"owners":    len(demoOwners),
		"course_id": DemoCourseID,
	}).Info("demo data seeded")

	return nil
}
