package montecarlo

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"valuation_engine/pkg/core/assumption"
	"valuation_engine/pkg/core/projection"
)

// ErrRunStarted is returned when Execute is called on a run that has already left Idle.
var ErrRunStarted = errors.New("simulation run already started")

// State is the lifecycle of a Run: Idle -> Running -> {Completed, Cancelled, Failed}.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Progress is reported after every batch.
type Progress struct {
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"` // projected from the average batch rate
}

// Fraction returns completed / total.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Observer receives progress reports. Calls come from the goroutine running Execute, one at a time.
type Observer interface {
	OnProgress(Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Progress)

func (f ObserverFunc) OnProgress(p Progress) { f(p) }

// Run is one simulation request. Its state, progress counter and cancel flag
// are safe to read and set from other goroutines while Execute runs.
type Run struct {
	as      *assumption.AssumptionSet
	cfg     Config
	project projectFunc

	state     atomic.Int32
	completed atomic.Int64
	cancelled atomic.Bool
	startedAt atomic.Int64 // unix nanos
}

// NewRun validates cfg and prepares an Idle run.
func NewRun(as *assumption.AssumptionSet, cfg Config) (*Run, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Run{as: as, cfg: cfg, project: projection.Project}, nil
}

// Simulate is NewRun followed by Execute.
func Simulate(ctx context.Context, as *assumption.AssumptionSet, cfg Config, obs Observer) (*Result, error) {
	run, err := NewRun(as, cfg)
	if err != nil {
		return nil, err
	}
	return run.Execute(ctx, obs)
}

// Seed returns the seed the run draws from, generated when the config had none.
func (r *Run) Seed() uint64 { return *r.cfg.Seed }

// State returns the current lifecycle state.
func (r *Run) State() State { return State(r.state.Load()) }

// Cancel asks the run to stop after the batch in progress.
func (r *Run) Cancel() { r.cancelled.Store(true) }

// Progress returns a snapshot of the run's progress.
func (r *Run) Progress() Progress {
	return r.progress(time.Now())
}

func (r *Run) progress(now time.Time) Progress {
	p := Progress{Completed: int(r.completed.Load()), Total: r.cfg.Trials}
	if started := r.startedAt.Load(); started != 0 {
		p.Elapsed = now.Sub(time.Unix(0, started))
	}
	if p.Completed > 0 && p.Completed < p.Total {
		perTrial := p.Elapsed / time.Duration(p.Completed)
		p.Remaining = perTrial * time.Duration(p.Total-p.Completed)
	}
	return p
}

func (r *Run) cancelRequested(ctx context.Context) bool {
	return r.cancelled.Load() || ctx.Err() != nil
}

// Execute runs the trials batch by batch. Cancellation (Cancel or ctx) is
// checked between batches and yields a partial result with Complete=false and
// a nil error. A trial error moves the run to Failed.
func (r *Run) Execute(ctx context.Context, obs Observer) (*Result, error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrRunStarted
	}
	start := time.Now()
	r.startedAt.Store(start.UnixNano())

	corr, err := newCorrelator(r.cfg.Correlation)
	if err != nil {
		r.state.Store(int32(StateFailed))
		return nil, err
	}
	s := &sampler{base: r.as, cfg: r.cfg, seed: *r.cfg.Seed, corr: corr, project: r.project}

	total := r.cfg.Trials
	values := make([]float64, total)
	done := 0
	final := StateCompleted

	for done < total {
		if r.cancelRequested(ctx) {
			final = StateCancelled
			break
		}
		end := min(done+r.cfg.BatchSize, total)
		if err := r.runBatch(s, values, done, end); err != nil {
			r.state.Store(int32(StateFailed))
			return nil, err
		}
		done = end
		r.completed.Store(int64(done))
		if obs != nil {
			obs.OnProgress(r.progress(time.Now()))
		}
	}

	res := summarize(values[:done], r.cfg)
	res.State = final
	res.Complete = final == StateCompleted
	res.Seed = *r.cfg.Seed
	res.TrialsRequested = total
	res.Elapsed = time.Since(start)

	r.state.Store(int32(final))
	return res, nil
}

// runBatch fans trials [from, to) out to the configured workers. Each trial
// writes only its own slot of values.
func (r *Run) runBatch(s *sampler, values []float64, from, to int) error {
	workers := min(r.cfg.Workers, to-from)
	chunk := (to - from + workers - 1) / workers

	var g errgroup.Group
	for lo := from; lo < to; lo += chunk {
		hi := min(lo+chunk, to)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				v, err := s.trial(i)
				if err != nil {
					return err
				}
				values[i] = v
			}
			return nil
		})
	}
	return g.Wait()
}
