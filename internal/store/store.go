package store

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const schema = "trainingdesk"

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// buildUpdateClause creates the SET clause for ON CONFLICT DO UPDATE
// e.g., "slug = EXCLUDED.slug, title = EXCLUDED.title"
func buildUpdateClause(fields map[string]any, skip ...string) string {
	columns := make([]string, 0, len(fields))
	for field := range fields {
		if contains(skip, field) {
			continue
		}
		columns = append(columns, field)
	}
	sort.Strings(columns)

	parts := make([]string, len(columns))
	for i, field := range columns {
		parts[i] = fmt.Sprintf("%s = EXCLUDED.%s", field, field)
	}
	return strings.Join(parts, ", ")
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
