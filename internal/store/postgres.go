package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres connects a pgx pool, verifies it, and wraps it as a SQLStore.
func OpenPostgres(ctx context.Context, url string, opts Options) (*SQLStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	s, err := New(ctx, db, Postgres, opts)
	if err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}
	s.onClose = pool.Close
	return s, nil
}
