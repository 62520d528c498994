package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Vault stores runs in Postgres (primary) and mirrors them to files. Reads go
// to the database; the files are the fallback when it cannot be reached.
type Vault struct {
	db    *PGStore
	files *FileStore
	log   zerolog.Logger
}

// New picks a store: database only when dir is empty, files only when pool is
// nil, otherwise a Vault over both.
func New(pool *pgxpool.Pool, dir string, log zerolog.Logger) (RunStore, error) {
	if pool != nil && dir == "" {
		return NewPGStore(pool, log), nil
	}
	files, err := NewFileStore(dir, log)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return files, nil
	}
	return &Vault{db: NewPGStore(pool, log), files: files, log: log.With().Str("store", "vault").Logger()}, nil
}

// Save writes to both stores. A database failure is returned after the file copy is written.
func (v *Vault) Save(ctx context.Context, rec *RunRecord) error {
	dbErr := v.db.Save(ctx, rec)
	if dbErr != nil {
		v.log.Warn().Err(dbErr).Str("id", rec.ID).Msg("Database save failed, keeping file copy")
	}
	if err := v.files.Save(ctx, rec); err != nil {
		return errors.Join(dbErr, err)
	}
	if dbErr != nil {
		return fmt.Errorf("run %s saved to file only: %w", rec.ID, dbErr)
	}
	return nil
}

func (v *Vault) Get(ctx context.Context, id string) (*RunRecord, error) {
	rec, err := v.db.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		v.log.Warn().Err(err).Str("id", id).Msg("Database read failed, trying file copy")
	}
	return v.files.Get(ctx, id)
}

func (v *Vault) List(ctx context.Context, kind Kind) ([]*RunRecord, error) {
	recs, err := v.db.List(ctx, kind)
	if err == nil {
		return recs, nil
	}
	v.log.Warn().Err(err).Msg("Database list failed, listing file copies")
	return v.files.List(ctx, kind)
}
