// Package sensitivity re-runs the projection engine across a one- or
// two-dimensional grid of assumption overrides.
package sensitivity

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"valuation_engine/pkg/core/assumption"
	"valuation_engine/pkg/core/projection"
)

// Axis sweeps one field over Steps evenly spaced values in [Min, Max].
type Axis struct {
	Field assumption.Field `json:"field" yaml:"field"`
	Min   float64          `json:"min" yaml:"min"`
	Max   float64          `json:"max" yaml:"max"`
	Steps int              `json:"steps" yaml:"steps"`
}

// Spec describes a sweep. Metric defaults to value per share.
type Spec struct {
	Axes        []Axis            `json:"axes" yaml:"axes"`
	Metric      projection.Metric `json:"metric,omitempty" yaml:"metric,omitempty"`
	KeepResults bool              `json:"keep_results,omitempty" yaml:"keep_results,omitempty"`
	Workers     int               `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// AxisResult is the realised grid of one axis, baseline included.
type AxisResult struct {
	Field         assumption.Field `json:"field"`
	Values        []float64        `json:"values"`
	Baseline      float64          `json:"baseline"`
	BaselineIndex int              `json:"baseline_index"`
}

// Cell is one grid point. Invalid overrides (e.g. terminal growth at or above
// WACC) are recorded with their reason instead of failing the sweep.
type Cell struct {
	Coordinates []float64          `json:"coordinates"`
	Value       float64            `json:"value"`
	Valid       bool               `json:"valid"`
	Error       string             `json:"error,omitempty"`
	Result      *projection.Result `json:"result,omitempty"`
}

// Result holds the grid. Cells[i][j] pairs Axes[0].Values[i] with
// Axes[1].Values[j]; a one-axis sweep has a single column.
type Result struct {
	Metric   projection.Metric  `json:"metric"`
	Axes     []AxisResult       `json:"axes"`
	Cells    [][]Cell           `json:"cells"`
	Baseline *projection.Result `json:"baseline"`
}

// BaselineCell returns the grid point evaluated at the unmodified assumptions.
func (r *Result) BaselineCell() Cell {
	row := r.Axes[0].BaselineIndex
	col := 0
	if len(r.Axes) > 1 {
		col = r.Axes[1].BaselineIndex
	}
	return r.Cells[row][col]
}

// Series returns the cells of a one-axis sweep in axis order.
func (r *Result) Series() []Cell {
	out := make([]Cell, len(r.Cells))
	for i, row := range r.Cells {
		out[i] = row[0]
	}
	return out
}

// Sweep evaluates every grid point independently; the layout of the result
// does not depend on the order in which points are computed.
func Sweep(ctx context.Context, as *assumption.AssumptionSet, spec Spec) (*Result, error) {
	if spec.Metric == "" {
		spec.Metric = projection.MetricValuePerShare
	}
	axes, err := buildAxes(as, spec)
	if err != nil {
		return nil, err
	}

	base, err := projection.Project(as)
	if err != nil {
		return nil, err
	}

	rows := len(axes[0].Values)
	cols := 1
	if len(axes) > 1 {
		cols = len(axes[1].Values)
	}
	cells := make([][]Cell, rows)
	for i := range cells {
		cells[i] = make([]Cell, cols)
	}

	workers := spec.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				coords := []float64{axes[0].Values[i]}
				if len(axes) > 1 {
					coords = append(coords, axes[1].Values[j])
				}
				cells[i][j] = evaluate(as, axes, coords, spec)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{Metric: spec.Metric, Axes: axes, Cells: cells, Baseline: base}, nil
}

func evaluate(as *assumption.AssumptionSet, axes []AxisResult, coords []float64, spec Spec) Cell {
	cell := Cell{Coordinates: coords}
	overrides := make([]assumption.Override, len(axes))
	for k, ax := range axes {
		overrides[k] = assumption.Override{Field: ax.Field, Value: coords[k]}
	}
	point, err := as.WithValues(overrides...)
	if err != nil {
		cell.Error = err.Error()
		return cell
	}
	res, err := projection.Project(point)
	if err != nil {
		cell.Error = err.Error()
		return cell
	}
	cell.Valid = true
	cell.Value = res.Scalar(spec.Metric)
	if spec.KeepResults {
		cell.Result = res
	}
	return cell
}

func buildAxes(as *assumption.AssumptionSet, spec Spec) ([]AxisResult, error) {
	var vs []assumption.Violation
	add := func(field, format string, args ...any) {
		vs = append(vs, assumption.Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if n := len(spec.Axes); n < 1 || n > 2 {
		add("axes", "one or two axes are required, got %d", n)
		return nil, &assumption.InvalidError{Violations: vs}
	}
	if len(spec.Axes) == 2 && spec.Axes[0].Field == spec.Axes[1].Field {
		add("axes", "both axes sweep %s", spec.Axes[0].Field)
	}
	switch spec.Metric {
	case projection.MetricValuePerShare, projection.MetricEquityValue, projection.MetricEnterpriseValue:
	default:
		add("metric", "unknown metric %q", spec.Metric)
	}

	axes := make([]AxisResult, 0, len(spec.Axes))
	for k, ax := range spec.Axes {
		name := fmt.Sprintf("axes[%d]", k)
		base, err := as.Value(ax.Field)
		if err != nil {
			add(name+".field", "%v", err)
			continue
		}
		if math.IsNaN(ax.Min) || math.IsInf(ax.Min, 0) || math.IsNaN(ax.Max) || math.IsInf(ax.Max, 0) || ax.Min > ax.Max {
			add(name, "range [%v, %v] must be finite and ordered", ax.Min, ax.Max)
			continue
		}
		if ax.Steps < 1 {
			add(name+".steps", "must be at least 1, got %d", ax.Steps)
			continue
		}
		values, idx := gridWithBaseline(ax, base)
		axes = append(axes, AxisResult{Field: ax.Field, Values: values, Baseline: base, BaselineIndex: idx})
	}

	if len(vs) > 0 {
		return nil, &assumption.InvalidError{Violations: vs}
	}
	return axes, nil
}

// snapTolerance is the relative distance under which a grid point is replaced by the baseline.
const snapTolerance = 1e-9

// gridWithBaseline returns the ascending grid of ax with base present exactly.
func gridWithBaseline(ax Axis, base float64) ([]float64, int) {
	var grid []float64
	if ax.Steps == 1 || ax.Min == ax.Max {
		grid = []float64{ax.Min}
	} else {
		grid = floats.Span(make([]float64, ax.Steps), ax.Min, ax.Max)
	}

	tol := snapTolerance * math.Max(1, math.Abs(base))
	for i, v := range grid {
		if math.Abs(v-base) <= tol {
			grid[i] = base
			return grid, i
		}
	}

	idx := sort.SearchFloat64s(grid, base)
	grid = append(grid, 0)
	copy(grid[idx+1:], grid[idx:])
	grid[idx] = base
	return grid, idx
}
