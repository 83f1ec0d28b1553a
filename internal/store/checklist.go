package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trainingdesk/internal/utils"
	"trainingdesk/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const checklistItemTableName = schema + ".event_checklist_items"

var checklistItemColumns = utils.StructTagValues(types.EventChecklistItem{})

// columns an edit under the event lock is allowed to change
var checklistItemMutableColumns = []string{"phase", "label", "is_completed", "completed_at", "completed_by", "note"}

type ChecklistRepository struct {
	pool *pgxpool.Pool
}

func NewChecklistRepository(pool *pgxpool.Pool) *ChecklistRepository {
	return &ChecklistRepository{pool: pool}
}

func (r *ChecklistRepository) Item(ctx context.Context, id string) (*types.EventChecklistItem, error) {
	query, args, err := psql().
		Select(checklistItemColumns...).
		From(checklistItemTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate checklist item query: %w", err)
	}

	var item types.EventChecklistItem
	err = pgxscan.Get(ctx, r.pool, &item, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrChecklistItemNotFound
		}
		return nil, fmt.Errorf("failed to fetch checklist item: %w", err)
	}

	return &item, nil
}

func eventItemsQuery(eventID string, forUpdate bool) (string, []any, error) {
	builder := psql().
		Select(checklistItemColumns...).
		From(checklistItemTableName).
		Where(sq.Eq{"event_id": eventID}).
		OrderBy("sort_order ASC")
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	return builder.ToSql()
}

// ItemsByEvent returns an event's items in gating order
func (r *ChecklistRepository) ItemsByEvent(ctx context.Context, eventID string) ([]*types.EventChecklistItem, error) {
	query, args, err := eventItemsQuery(eventID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to generate event checklist query: %w", err)
	}

	var items = make([]*types.EventChecklistItem, 0)
	err = pgxscan.Select(ctx, r.pool, &items, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event checklist: %w", err)
	}

	return items, nil
}

// WithEventLock serializes edits to one event's checklist. The advisory lock
// covers events with no rows yet; FOR UPDATE pins the rows fn decides on.
// Whatever fn returns is written in the same transaction.
func (r *ChecklistRepository) WithEventLock(ctx context.Context, eventID string, fn func(items []*types.EventChecklistItem) (*types.ChecklistMutation, error)) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin checklist transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("failed to rollback checklist transaction: %w", rbErr))
			}
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", eventID); err != nil {
		return fmt.Errorf("failed to lock event checklist: %w", err)
	}

	query, args, err := eventItemsQuery(eventID, true)
	if err != nil {
		return fmt.Errorf("failed to generate event checklist query: %w", err)
	}

	var items = make([]*types.EventChecklistItem, 0)
	if err = pgxscan.Select(ctx, tx, &items, query, args...); err != nil {
		return fmt.Errorf("failed to fetch event checklist: %w", err)
	}

	mutation, err := fn(items)
	if err != nil {
		return err
	}

	if mutation != nil {
		for _, item := range mutation.Insert {
			if err = insertChecklistItem(ctx, tx, item); err != nil {
				return err
			}
		}
		for _, item := range mutation.Update {
			if err = updateChecklistItem(ctx, tx, item); err != nil {
				return err
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit checklist transaction: %w", err)
	}

	return nil
}

func insertChecklistItemQuery(item *types.EventChecklistItem) (string, []any, error) {
	return psql().
		Insert(checklistItemTableName).
		SetMap(utils.StructToMap(item)).
		ToSql()
}

func insertChecklistItem(ctx context.Context, tx pgx.Tx, item *types.EventChecklistItem) error {
	if item.ID == "" {
		item.ID = utils.NanoID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	query, args, err := insertChecklistItemQuery(item)
	if err != nil {
		return fmt.Errorf("failed to generate insert checklist item query: %w", err)
	}

	_, err = tx.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to insert checklist item")
}

func updateChecklistItemQuery(item *types.EventChecklistItem) (string, []any, error) {
	fields := utils.StructToMap(item)
	set := make(map[string]any, len(checklistItemMutableColumns))
	for _, column := range checklistItemMutableColumns {
		set[column] = fields[column]
	}

	return psql().
		Update(checklistItemTableName).
		SetMap(set).
		Where(sq.Eq{"id": item.ID, "event_id": item.EventID}).
		ToSql()
}

func updateChecklistItem(ctx context.Context, tx pgx.Tx, item *types.EventChecklistItem) error {
	query, args, err := updateChecklistItemQuery(item)
	if err != nil {
		return fmt.Errorf("failed to generate update checklist item query: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update checklist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrChecklistItemNotFound
	}

	return nil
}

func (r *ChecklistRepository) UpdateNote(ctx context.Context, id string, note *string) (*types.EventChecklistItem, error) {
	query, args, err := psql().
		Update(checklistItemTableName).
		Set("note", note).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(checklistItemColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate update note query: %w", err)
	}

	var item types.EventChecklistItem
	err = pgxscan.Get(ctx, r.pool, &item, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrChecklistItemNotFound
		}
		return nil, fmt.Errorf("failed to update checklist note: %w", err)
	}

	return &item, nil
}

// DeleteItem removes one item. Remaining orders are left as they are; gaps
// do not affect gating.
func (r *ChecklistRepository) DeleteItem(ctx context.Context, id string) error {
	query, args, err := psql().
		Delete(checklistItemTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete checklist item query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete checklist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrChecklistItemNotFound
	}

	return nil
}
