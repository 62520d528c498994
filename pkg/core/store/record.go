// Package store persists engine runs: the input that produced a result and
// the result itself. The engines never depend on it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("run not found")

// Kind names the engine that produced a run.
type Kind string

const (
	KindProjection   Kind = "project"
	KindSimulation   Kind = "simulate"
	KindSweep        Kind = "sweep"
	KindLBO          Kind = "lbo"
	KindAbilityToPay Kind = "ability_to_pay"
)

// RunRecord is one stored engine run.
type RunRecord struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Scenario  string          `json:"scenario"`
	CreatedAt time.Time       `json:"created_at"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
}

// NewRecord marshals input and output into a record with a fresh id.
func NewRecord(kind Kind, scenario string, input, output any) (*RunRecord, error) {
	in, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	out, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	return &RunRecord{
		ID:        uuid.New().String(),
		Kind:      kind,
		Scenario:  scenario,
		CreatedAt: time.Now().UTC(),
		Input:     in,
		Output:    out,
	}, nil
}

// RunStore saves and reads run records. Save with an existing id replaces it.
type RunStore interface {
	Save(ctx context.Context, rec *RunRecord) error
	Get(ctx context.Context, id string) (*RunRecord, error)
	// List returns records of kind, newest first; an empty kind lists all.
	List(ctx context.Context, kind Kind) ([]*RunRecord, error)
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid run id %q: %w", id, err)
	}
	return nil
}
