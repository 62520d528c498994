package montecarlo

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Percentile is one requested point of the empirical distribution.
type Percentile struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

// Bin is one fixed-width histogram bucket, [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Result is the per-share value distribution of a simulation. When the run
// was cancelled it covers the trials completed so far and Complete is false.
type Result struct {
	State           State         `json:"state"`
	Complete        bool          `json:"complete"`
	Seed            uint64        `json:"seed"`
	TrialsRequested int           `json:"trials_requested"`
	TrialsCompleted int           `json:"trials_completed"`
	Elapsed         time.Duration `json:"elapsed"`

	Values      []float64    `json:"values"` // sorted ascending
	Mean        float64      `json:"mean"`
	Median      float64      `json:"median"`
	StdDev      float64      `json:"std_dev"`
	Min         float64      `json:"min"`
	Max         float64      `json:"max"`
	Percentiles []Percentile `json:"percentiles"`
	Histogram   []Bin        `json:"histogram"`
}

// Percentile returns the value for a requested percentile p.
func (r *Result) Percentile(p float64) (float64, bool) {
	for _, pc := range r.Percentiles {
		if pc.P == p {
			return pc.Value, true
		}
	}
	return 0, false
}

// Quantile evaluates any quantile of the stored sample.
func (r *Result) Quantile(p float64) float64 {
	if len(r.Values) == 0 {
		return 0
	}
	return stat.Quantile(p, stat.Empirical, r.Values, nil)
}

// summarize builds the statistics from trial-ordered values. The mean is taken
// before sorting so it is summed in trial order and stays reproducible.
func summarize(values []float64, cfg Config) *Result {
	res := &Result{TrialsCompleted: len(values)}
	if len(values) == 0 {
		return res
	}

	res.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		res.StdDev = stat.StdDev(values, nil)
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	res.Values = sorted
	res.Min = sorted[0]
	res.Max = sorted[len(sorted)-1]
	res.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)

	ps := append([]float64(nil), cfg.Percentiles...)
	sort.Float64s(ps)
	for _, p := range ps {
		res.Percentiles = append(res.Percentiles, Percentile{P: p, Value: stat.Quantile(p, stat.Empirical, sorted, nil)})
	}

	res.Histogram = histogram(sorted, cfg.HistogramBins)
	return res
}

// histogram buckets sorted values into n equal-width bins spanning [min, max].
// When every value is equal the n bins have zero width and the first holds
// the whole sample.
func histogram(sorted []float64, n int) []Bin {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		bins := make([]Bin, n)
		for i := range bins {
			bins[i] = Bin{Lower: lo, Upper: hi}
		}
		bins[0].Count = len(sorted)
		return bins
	}

	dividers := make([]float64, n+1)
	floats.Span(dividers, lo, hi)
	// The top divider is exclusive; nudge it so the maximum lands in the last bin.
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, sorted, nil)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	return bins
}
