package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Index is one index of a table as recorded in the postgres catalog.
type Index struct {
	Name    string
	Method  string
	Columns []string
	Unique  bool
}

const indexesQuery = `
SELECT
	i.relname,
	am.amname,
	ix.indisunique,
	COALESCE(array_to_string(ARRAY(
		SELECT a.attname
		FROM unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		ORDER BY k.ord
	), ','), '')
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_am am ON am.oid = i.relam
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE t.relname = $1
	AND n.nspname = current_schema()
ORDER BY i.relname`

// Indexes lists the indexes of table in the current schema.
func Indexes(ctx context.Context, db *sql.DB, table string) ([]Index, error) {
	rows, err := db.QueryContext(ctx, indexesQuery, table)
	if err != nil {
		return nil, fmt.Errorf("query indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var out []Index
	for rows.Next() {
		var (
			idx     Index
			columns string
		)
		if err := rows.Scan(&idx.Name, &idx.Method, &idx.Unique, &columns); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		if columns != "" {
			idx.Columns = strings.Split(columns, ",")
		}
		out = append(out, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read indexes: %w", err)
	}
	return out, nil
}

// IndexesOn keeps the indexes whose key is exactly the given columns.
func IndexesOn(indexes []Index, columns ...string) []Index {
	var out []Index
	for _, idx := range indexes {
		if strings.Join(idx.Columns, ",") == strings.Join(columns, ",") {
			out = append(out, idx)
		}
	}
	return out
}
