package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// Connect opens a connection pool for dbURL and checks it with a ping.
func Connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database url not set")
	}
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return p, nil
}

// InitDB initializes the shared pool once per process.
func InitDB(ctx context.Context, dbURL string) error {
	var err error
	once.Do(func() {
		pool, err = Connect(ctx, dbURL)
	})
	return err
}

// GetPool returns the shared pool, nil until InitDB succeeds.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the shared pool.
func Close() {
	if pool != nil {
		pool.Close()
	}
}

// Schema creates the run table when it does not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS valuation_runs (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	scenario    TEXT NOT NULL DEFAULT '',
	input_json  JSONB NOT NULL,
	output_json JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS valuation_runs_kind_idx ON valuation_runs (kind, created_at DESC);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, p *pgxpool.Pool) error {
	if _, err := p.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
