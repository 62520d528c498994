// Package montecarlo runs seeded stochastic perturbations of an assumption set
// through the projection engine and aggregates the per-share value distribution.
package montecarlo

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"valuation_engine/pkg/core/assumption"
)

// Correlation must stay strictly inside this bound to keep the 2x2 correlation matrix positive-definite.
const MaxCorrelation = 0.99

// Defaults applied to zero-valued execution knobs.
const (
	DefaultBatchSize     = 250
	DefaultHistogramBins = 20
)

// DefaultPercentiles are reported when Config.Percentiles is empty.
var DefaultPercentiles = []float64{0.05, 0.10, 0.25, 0.50, 0.75, 0.90, 0.95}

// Config describes one simulation. Volatilities are absolute for growth and
// margin (0.02 = ±2 points) and relative for sales-to-capital (0.10 = ±10%).
type Config struct {
	Trials                   int     `json:"trials" yaml:"trials"`
	GrowthVolatility         float64 `json:"growth_volatility" yaml:"growth_volatility"`
	MarginVolatility         float64 `json:"margin_volatility" yaml:"margin_volatility"`
	SalesToCapitalVolatility float64 `json:"sales_to_capital_volatility" yaml:"sales_to_capital_volatility"`
	Correlation              float64 `json:"correlation" yaml:"correlation"` // growth <-> margin
	Seed                     *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	Percentiles   []float64 `json:"percentiles,omitempty" yaml:"percentiles,omitempty"` // fractions in (0, 1)
	HistogramBins int       `json:"histogram_bins,omitempty" yaml:"histogram_bins,omitempty"`
	BatchSize     int       `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Workers       int       `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// WithSeed returns a copy of c using seed.
func (c Config) WithSeed(seed uint64) Config {
	c.Seed = &seed
	return c
}

func (c Config) withDefaults() Config {
	if len(c.Percentiles) == 0 {
		c.Percentiles = DefaultPercentiles
	}
	c.Percentiles = append([]float64(nil), c.Percentiles...)
	if c.HistogramBins == 0 {
		c.HistogramBins = DefaultHistogramBins
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Seed == nil {
		seed := uint64(time.Now().UnixNano())
		c.Seed = &seed
	}
	return c
}

func (c Config) validate() error {
	var vs []assumption.Violation
	add := func(field, format string, args ...any) {
		vs = append(vs, assumption.Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	nonNegative := func(field string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			add(field, "must be a finite, non-negative number, got %v", v)
		}
	}

	if c.Trials < 1 {
		add("trials", "must be at least 1, got %d", c.Trials)
	}
	nonNegative("growth_volatility", c.GrowthVolatility)
	nonNegative("margin_volatility", c.MarginVolatility)
	nonNegative("sales_to_capital_volatility", c.SalesToCapitalVolatility)
	if math.IsNaN(c.Correlation) || math.Abs(c.Correlation) >= MaxCorrelation {
		add("correlation", "must be within (-%v, %v), got %v", MaxCorrelation, MaxCorrelation, c.Correlation)
	}
	for i, p := range c.Percentiles {
		if !(p > 0 && p < 1) {
			add(fmt.Sprintf("percentiles[%d]", i), "must be within (0, 1), got %v", p)
		}
	}
	if c.HistogramBins < 1 {
		add("histogram_bins", "must be at least 1, got %d", c.HistogramBins)
	}
	if c.BatchSize < 1 {
		add("batch_size", "must be at least 1, got %d", c.BatchSize)
	}
	if c.Workers < 1 {
		add("workers", "must be at least 1, got %d", c.Workers)
	}

	if len(vs) > 0 {
		return &assumption.InvalidError{Violations: vs}
	}
	return nil
}
