package store

import (
	"testing"
	"time"

	"trainingdesk/internal/utils"
	"trainingdesk/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateClause(t *testing.T) {
	t.Parallel()

	clause := buildUpdateClause(map[string]any{"title": 1, "id": 2, "category": 3, "created_at": 4}, "id", "created_at")
	assert.Equal(t, "category = EXCLUDED.category, title = EXCLUDED.title", clause)
}

func TestReviewDocumentQuery_GuardsOnPending(t *testing.T) {
	t.Parallel()

	query, args, err := reviewDocumentQuery("doc1", types.DocumentStatusRejected, utils.StringPtr("blurry"), utils.StringPtr("admin"), time.Now())
	require.NoError(t, err)

	assert.Contains(t, query, "UPDATE trainingdesk.document_instances SET")
	assert.Contains(t, query, "WHERE id = $")
	assert.Contains(t, query, "status = $")
	assert.Contains(t, query, "RETURNING id, owner_id")
	assert.Contains(t, args, types.DocumentStatusPending)
	assert.Contains(t, args, types.DocumentStatusRejected)
}

func TestRequiredDocumentTypesQuery(t *testing.T) {
	t.Parallel()

	query, args, err := requiredDocumentTypesQuery(nil)
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE is_required = $1")
	assert.NotContains(t, query, "category IN")
	assert.Len(t, args, 1)

	query, args, err = requiredDocumentTypesQuery([]types.DocumentCategory{types.CategoryMedical, types.CategoryStudent})
	require.NoError(t, err)
	assert.Contains(t, query, "category IN ($2,$3)")
	assert.Equal(t, []any{true, "MEDICAL", "STUDENT"}, args)
}

func TestUpsertDocumentTypeQuery_KeepsCreatedAt(t *testing.T) {
	t.Parallel()

	query, _, err := upsertDocumentTypeQuery(&types.DocumentType{ID: "t1", Title: "Medical certificate", Category: types.CategoryMedical})
	require.NoError(t, err)

	assert.Contains(t, query, "ON CONFLICT (id) DO UPDATE SET")
	assert.Contains(t, query, "title = EXCLUDED.title")
	assert.NotContains(t, query, "created_at = EXCLUDED.created_at")
	assert.NotContains(t, query, "id = EXCLUDED.id,")
}

func TestEventItemsQuery_LocksRows(t *testing.T) {
	t.Parallel()

	query, args, err := eventItemsQuery("ev1", true)
	require.NoError(t, err)
	assert.Contains(t, query, "ORDER BY sort_order ASC FOR UPDATE")
	assert.Equal(t, []any{"ev1"}, args)

	query, _, err = eventItemsQuery("ev1", false)
	require.NoError(t, err)
	assert.NotContains(t, query, "FOR UPDATE")
}

func TestUpdateChecklistItemQuery_OnlyMutableColumns(t *testing.T) {
	t.Parallel()

	query, _, err := updateChecklistItemQuery(&types.EventChecklistItem{ID: "i1", EventID: "ev1", Order: 3, Label: "Book room"})
	require.NoError(t, err)

	assert.Contains(t, query, "is_completed = $")
	assert.Contains(t, query, "note = $")
	assert.NotContains(t, query, "sort_order")
	assert.NotContains(t, query, "created_at")
	assert.Contains(t, query, "event_id = $")
}

func TestUpsertTemplateQuery_EncodesPhasesAsJSON(t *testing.T) {
	t.Parallel()

	query, args, err := upsertTemplateQuery(&types.ChecklistTemplate{
		CourseID: "c1",
		Phases:   []types.Phase{{Title: "Before", Items: []types.ChecklistItem{{Label: "Book room"}}}},
	})
	require.NoError(t, err)

	assert.Contains(t, query, "ON CONFLICT (course_id) DO UPDATE SET phases = EXCLUDED.phases, updated_at = EXCLUDED.updated_at")
	assert.Contains(t, args, `[{"title":"Before","items":[{"label":"Book room"}]}]`)
}

func TestOwnerTable(t *testing.T) {
	t.Parallel()

	table, err := ownerTable(types.OwnerKindInstructor)
	require.NoError(t, err)
	assert.Equal(t, "trainingdesk.instructors", table)

	_, err = ownerTable("GUEST")
	assert.ErrorIs(t, err, types.ErrValidation)
}
