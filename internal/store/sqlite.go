package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) the database file at path. DDL and upserts
// are serialized through a single connection.
func OpenSQLite(ctx context.Context, path string, opts Options) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite %s: %w", path, err)
	}
	s, err := New(ctx, db, SQLite, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Open picks the backend by driver name ("postgres" or "sqlite").
func Open(ctx context.Context, driver, url string, opts Options) (*SQLStore, error) {
	switch driver {
	case "postgres", "pgx":
		return OpenPostgres(ctx, url, opts)
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, url, opts)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
}
