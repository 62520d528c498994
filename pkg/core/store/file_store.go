package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// DefaultDir is used when neither a pool nor a directory is configured.
var DefaultDir = filepath.Join(".cache", "valuation_runs")

// FileStore keeps one JSON file per run in a directory.
type FileStore struct {
	dir string
	log zerolog.Logger
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, log zerolog.Logger) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory %s: %w", dir, err)
	}
	return &FileStore{
		dir: dir,
		log: log.With().Str("store", "file").Str("dir", dir).Logger(),
	}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes rec atomically, replacing any run with the same id.
func (s *FileStore) Save(ctx context.Context, rec *RunRecord) error {
	if err := validID(rec.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, rec.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmp.Name(), s.path(rec.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	s.log.Debug().Str("id", rec.ID).Str("kind", string(rec.Kind)).Msg("Saved run")
	return nil
}

// Get loads one run.
func (s *FileStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	rec, err := s.load(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List scans the directory. Files that fail to parse are skipped with a warning.
func (s *FileStore) List(ctx context.Context, kind Kind) ([]*RunRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var out []*RunRecord
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := s.load(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.log.Warn().Err(err).Str("file", e.Name()).Msg("Skipping unreadable run")
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *FileStore) load(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}
