package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const versionTable = "schema_migrations"

// ReadState reads the applied version straight from the version table without
// building a migrator, so it never pins a connection of the shared pool.
func ReadState(ctx context.Context, db *sql.DB) (State, error) {
	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT to_regclass(current_schema() || '.' || $1) IS NOT NULL`, versionTable,
	).Scan(&exists); err != nil {
		return State{}, fmt.Errorf("check version table: %w", err)
	}
	if !exists {
		return State{Revision: Base}, nil
	}

	var (
		version int64
		dirty   bool
	)
	err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT version, dirty FROM %s LIMIT 1`, versionTable)).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && version < 0) {
		return State{Revision: Base}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read version table: %w", err)
	}

	revision, err := RevisionFor(uint(version))
	if err != nil {
		return State{}, err
	}
	return State{Version: uint(version), Revision: revision, Dirty: dirty}, nil
}
