package store

import (
	"context"
	"fmt"
	"time"

	"trainingdesk/internal/utils"
	"trainingdesk/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentTableName = schema + ".document_instances"

var documentTableColumns = utils.StructTagValues(types.DocumentInstance{})

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// DocumentByID retrieves a single document by ID
func (r *DocumentRepository) DocumentByID(ctx context.Context, id string) (*types.DocumentInstance, error) {
	query, args, err := psql().
		Select(documentTableColumns...).
		From(documentTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate document query: %w", err)
	}

	var doc = new(types.DocumentInstance)
	err = pgxscan.Get(ctx, r.pool, doc, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	return doc, nil
}

// DocumentsByOwner retrieves every instance an owner has uploaded, newest first
func (r *DocumentRepository) DocumentsByOwner(ctx context.Context, ownerID string) ([]*types.DocumentInstance, error) {
	query, args, err := psql().
		Select(documentTableColumns...).
		From(documentTableName).
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate owner documents query: %w", err)
	}

	var docs = make([]*types.DocumentInstance, 0)
	err = pgxscan.Select(ctx, r.pool, &docs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch owner documents: %w", err)
	}
	return docs, nil
}

// CreateDocument inserts a new document record
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *types.DocumentInstance) error {
	if doc.ID == "" {
		doc.ID = utils.NanoID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	query, args, err := psql().
		Insert(documentTableName).
		SetMap(utils.StructToMap(doc)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert document query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to insert document")
}

func reviewDocumentQuery(id string, status types.DocumentStatus, feedback, reviewer *string, at time.Time) (string, []any, error) {
	return psql().
		Update(documentTableName).
		SetMap(map[string]any{
			"status":      status,
			"feedback":    feedback,
			"reviewed_by": reviewer,
			"reviewed_at": at,
		}).
		Where(sq.Eq{"id": id, "status": types.DocumentStatusPending}).
		Suffix("RETURNING " + joinColumns(documentTableColumns)).
		ToSql()
}

// ReviewDocument moves a PENDING document to a terminal status. The status
// guard in the WHERE clause makes concurrent reviews race safely: only one
// wins, the other gets ErrDocumentAlreadyReviewed.
func (r *DocumentRepository) ReviewDocument(ctx context.Context, id string, status types.DocumentStatus, feedback, reviewer *string) (*types.DocumentInstance, error) {
	query, args, err := reviewDocumentQuery(id, status, feedback, reviewer, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate review document query: %w", err)
	}

	var doc = new(types.DocumentInstance)
	err = pgxscan.Get(ctx, r.pool, doc, query, args...)
	if err == nil {
		return doc, nil
	}
	if !pgxscan.NotFound(err) {
		return nil, fmt.Errorf("failed to review document: %w", err)
	}

	// nothing updated: either the row is gone or it is no longer pending
	if _, err := r.DocumentByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, types.ErrDocumentAlreadyReviewed
}

// UpdateStorageKey rewrites the key only while the row still holds oldKey.
// Returns false when the row is gone or was changed underneath us.
func (r *DocumentRepository) UpdateStorageKey(ctx context.Context, id, oldKey, newKey string) (bool, error) {
	query, args, err := psql().
		Update(documentTableName).
		Set("storage_key", newKey).
		Where(sq.Eq{"id": id, "storage_key": oldKey}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate storage key update query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update storage key: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// DeleteDocument removes a document record
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	query, args, err := psql().
		Delete(documentTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete document query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrDocumentNotFound
	}

	return nil
}
