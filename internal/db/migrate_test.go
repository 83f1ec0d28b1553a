package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pgx5://u:p@localhost:5432/td?sslmode=disable", MigrationURL("postgres://u:p@localhost:5432/td?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/td", MigrationURL("postgresql://localhost/td"))
	assert.Equal(t, "pgx5://localhost/td", MigrationURL("pgx5://localhost/td"))
}

func TestMigrationsArePaired(t *testing.T) {
	t.Parallel()

	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
