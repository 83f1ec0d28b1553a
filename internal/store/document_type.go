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

const documentTypeTableName = schema + ".document_types"

var documentTypeColumns = utils.StructTagValues(types.DocumentType{})

type DocumentTypeRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentTypeRepository(pool *pgxpool.Pool) *DocumentTypeRepository {
	return &DocumentTypeRepository{pool: pool}
}

func (r *DocumentTypeRepository) DocumentTypeByID(ctx context.Context, id string) (*types.DocumentType, error) {
	query, args, err := psql().
		Select(documentTypeColumns...).
		From(documentTypeTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate document type query: %w", err)
	}

	var docType types.DocumentType
	err = pgxscan.Get(ctx, r.pool, &docType, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrDocumentTypeNotFound
		}
		return nil, fmt.Errorf("failed to fetch document type: %w", err)
	}

	return &docType, nil
}

func requiredDocumentTypesQuery(categories []types.DocumentCategory) (string, []any, error) {
	builder := psql().
		Select(documentTypeColumns...).
		From(documentTypeTableName).
		Where(sq.Eq{"is_required": true}).
		OrderBy("category ASC", "title ASC")

	if len(categories) > 0 {
		values := make([]string, len(categories))
		for i, c := range categories {
			values[i] = string(c)
		}
		builder = builder.Where(sq.Eq{"category": values})
	}

	return builder.ToSql()
}

// RequiredDocumentTypes returns the required types, optionally limited to
// the given categories.
func (r *DocumentTypeRepository) RequiredDocumentTypes(ctx context.Context, categories ...types.DocumentCategory) ([]*types.DocumentType, error) {
	query, args, err := requiredDocumentTypesQuery(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to generate required document types query: %w", err)
	}

	var docTypes []*types.DocumentType
	err = pgxscan.Select(ctx, r.pool, &docTypes, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch required document types: %w", err)
	}

	return docTypes, nil
}

func (r *DocumentTypeRepository) AllDocumentTypes(ctx context.Context) ([]*types.DocumentType, error) {
	query, args, err := psql().
		Select(documentTypeColumns...).
		From(documentTypeTableName).
		OrderBy("category ASC", "title ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate document types query: %w", err)
	}

	var docTypes []*types.DocumentType
	err = pgxscan.Select(ctx, r.pool, &docTypes, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document types: %w", err)
	}

	return docTypes, nil
}

func upsertDocumentTypeQuery(docType *types.DocumentType) (string, []any, error) {
	fields := utils.StructToMap(docType)
	return psql().
		Insert(documentTypeTableName).
		SetMap(fields).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + buildUpdateClause(fields, "id", "created_at")).
		ToSql()
}

func (r *DocumentTypeRepository) UpsertDocumentType(ctx context.Context, docType *types.DocumentType) error {
	if docType.CreatedAt.IsZero() {
		docType.CreatedAt = time.Now()
	}

	query, args, err := upsertDocumentTypeQuery(docType)
	if err != nil {
		return fmt.Errorf("failed to generate upsert document type query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert document type: %w", err)
	}

	return nil
}

func (r *DocumentTypeRepository) DeleteDocumentType(ctx context.Context, id string) error {
	query, args, err := psql().
		Delete(documentTypeTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete document type query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete document type: %w", err)
	}

	return nil
}
