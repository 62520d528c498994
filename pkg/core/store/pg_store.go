package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PGStore keeps runs in the valuation_runs table.
type PGStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPGStore creates a store on pool. Run Migrate once before first use.
func NewPGStore(pool *pgxpool.Pool, log zerolog.Logger) *PGStore {
	return &PGStore{
		pool: pool,
		log:  log.With().Str("store", "postgres").Logger(),
	}
}

// Save upserts rec on its id.
func (s *PGStore) Save(ctx context.Context, rec *RunRecord) error {
	if s.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	if err := validID(rec.ID); err != nil {
		return err
	}

	query := `
		INSERT INTO valuation_runs (id, kind, scenario, input_json, output_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			kind = EXCLUDED.kind,
			scenario = EXCLUDED.scenario,
			input_json = EXCLUDED.input_json,
			output_json = EXCLUDED.output_json,
			updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, rec.ID, string(rec.Kind), rec.Scenario, []byte(rec.Input), []byte(rec.Output), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	s.log.Debug().Str("id", rec.ID).Str("kind", string(rec.Kind)).Msg("Saved run")
	return nil
}

// Get loads one run.
func (s *PGStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}
	if err := validID(id); err != nil {
		return nil, err
	}

	query := `
		SELECT id::text, kind, scenario, input_json, output_json, created_at
		FROM valuation_runs
		WHERE id = $1
	`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return rec, nil
}

// List returns runs of kind, newest first.
func (s *PGStore) List(ctx context.Context, kind Kind) ([]*RunRecord, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	query := `
		SELECT id::text, kind, scenario, input_json, output_json, created_at
		FROM valuation_runs
		WHERE $1 = '' OR kind = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*RunRecord, error) {
	var (
		rec     RunRecord
		kind    string
		in, out []byte
	)
	if err := row.Scan(&rec.ID, &kind, &rec.Scenario, &in, &out, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Kind = Kind(kind)
	rec.Input = in
	rec.Output = out
	return &rec, nil
}
