package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trainingdesk/internal/utils"
	"trainingdesk/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const checklistTemplateTableName = schema + ".checklist_templates"

var checklistTemplateColumns = utils.StructTagValues(types.ChecklistTemplate{})

type ChecklistTemplateRepository struct {
	pool *pgxpool.Pool
}

func NewChecklistTemplateRepository(pool *pgxpool.Pool) *ChecklistTemplateRepository {
	return &ChecklistTemplateRepository{pool: pool}
}

func (r *ChecklistTemplateRepository) TemplateByCourse(ctx context.Context, courseID string) (*types.ChecklistTemplate, error) {
	query, args, err := psql().
		Select(checklistTemplateColumns...).
		From(checklistTemplateTableName).
		Where(sq.Eq{"course_id": courseID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate checklist template query: %w", err)
	}

	var template types.ChecklistTemplate
	err = pgxscan.Get(ctx, r.pool, &template, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to fetch checklist template: %w", err)
	}

	if err := types.ValidatePhases(template.Phases); err != nil {
		return nil, fmt.Errorf("stored template for course %s is invalid: %w", courseID, err)
	}

	return &template, nil
}

func upsertTemplateQuery(template *types.ChecklistTemplate) (string, []any, error) {
	phases, err := json.Marshal(template.Phases)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode phases: %w", err)
	}

	fields := map[string]any{
		"course_id":  template.CourseID,
		"phases":     string(phases),
		"created_at": template.CreatedAt,
		"updated_at": template.UpdatedAt,
	}

	return psql().
		Insert(checklistTemplateTableName).
		SetMap(fields).
		Suffix("ON CONFLICT (course_id) DO UPDATE SET " + buildUpdateClause(fields, "course_id", "created_at")).
		ToSql()
}

// UpsertTemplate validates and saves a course template, replacing any
// previous version. Events already cloned from it keep their items.
func (r *ChecklistTemplateRepository) UpsertTemplate(ctx context.Context, template *types.ChecklistTemplate) error {
	phases, err := types.NormalizePhases(template.Phases)
	if err != nil {
		return err
	}
	template.Phases = phases

	now := time.Now()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	query, args, err := upsertTemplateQuery(template)
	if err != nil {
		return fmt.Errorf("failed to generate upsert checklist template query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert checklist template: %w", err)
	}

	return nil
}
