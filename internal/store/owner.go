package store

import (
	"context"
	"fmt"

	"trainingdesk/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	studentTableName    = schema + ".students"
	instructorTableName = schema + ".instructors"
)

type OwnerRepository struct {
	pool *pgxpool.Pool
}

func NewOwnerRepository(pool *pgxpool.Pool) *OwnerRepository {
	return &OwnerRepository{pool: pool}
}

func ownerTable(kind types.OwnerKind) (string, error) {
	switch kind {
	case types.OwnerKindStudent:
		return studentTableName, nil
	case types.OwnerKindInstructor:
		return instructorTableName, nil
	}
	return "", types.NewValidationError("owner_kind", fmt.Sprintf("unknown owner kind %q", kind))
}

// Owner loads the student or instructor a document belongs to
func (r *OwnerRepository) Owner(ctx context.Context, kind types.OwnerKind, id string) (*types.Owner, error) {
	table, err := ownerTable(kind)
	if err != nil {
		return nil, err
	}

	query, args, err := psql().
		Select("id", "full_name").
		From(table).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate owner query: %w", err)
	}

	var owner types.Owner
	err = pgxscan.Get(ctx, r.pool, &owner, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to fetch owner: %w", err)
	}

	owner.Kind = kind
	return &owner, nil
}

// UpsertOwner inserts or renames a student or instructor. Used by seeding;
// owner records are otherwise managed outside this service.
func (r *OwnerRepository) UpsertOwner(ctx context.Context, owner *types.Owner) error {
	table, err := ownerTable(owner.Kind)
	if err != nil {
		return err
	}

	query, args, err := psql().
		Insert(table).
		Columns("id", "full_name").
		Values(owner.ID, owner.FullName).
		Suffix("ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert owner query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert owner: %w", err)
	}

	return nil
}
