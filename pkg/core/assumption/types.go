// Package assumption implements the validated input records of a valuation scenario.
// An AssumptionSet can only be obtained through New, which rejects every invalid
// combination of inputs at once, so downstream engines never re-check their inputs.
package assumption

import (
	"encoding/json"
)

// =============================================================================
// STAGE SEQUENCE
// =============================================================================

// Stage is one phase of a multi-stage ramp: a value held constant for Duration periods.
type Stage struct {
	Value    float64 `json:"value"`
	Duration int     `json:"duration"`
}

// Stages is an ordered sequence of phases (e.g. high growth, fade, mature).
type Stages []Stage

// Constant returns a single-stage sequence lasting the whole horizon.
func Constant(value float64, horizon int) Stages {
	return Stages{{Value: value, Duration: horizon}}
}

// Horizon returns the total number of periods covered by the sequence.
func (s Stages) Horizon() int {
	total := 0
	for _, st := range s {
		total += st.Duration
	}
	return total
}

// At returns the value active in the given 1-based period.
// Step function: no interpolation inside a stage. Periods past the end keep the last value.
func (s Stages) At(period int) float64 {
	if len(s) == 0 {
		return 0
	}
	cum := 0
	for _, st := range s {
		cum += st.Duration
		if period <= cum {
			return st.Value
		}
	}
	return s[len(s)-1].Value
}

// StageIndex returns the index of the stage active in period, or -1 for an empty sequence.
func (s Stages) StageIndex(period int) int {
	if len(s) == 0 {
		return -1
	}
	cum := 0
	for i, st := range s {
		cum += st.Duration
		if period <= cum {
			return i
		}
	}
	return len(s) - 1
}

// Shift returns a copy with delta added to every stage value.
func (s Stages) Shift(delta float64) Stages {
	out := s.Clone()
	for i := range out {
		out[i].Value += delta
	}
	return out
}

// Scale returns a copy with every stage value multiplied by factor.
func (s Stages) Scale(factor float64) Stages {
	out := s.Clone()
	for i := range out {
		out[i].Value *= factor
	}
	return out
}

// Clone returns an independent copy.
func (s Stages) Clone() Stages {
	if s == nil {
		return nil
	}
	out := make(Stages, len(s))
	copy(out, s)
	return out
}

// =============================================================================
// TERMINAL VALUE
// =============================================================================

// TerminalMethod selects how value beyond the explicit horizon is estimated.
type TerminalMethod string

const (
	TerminalPerpetuity   TerminalMethod = "perpetuity"
	TerminalExitMultiple TerminalMethod = "exit_multiple"
)

// Terminal holds the terminal value assumption. Only the field matching Method is used.
type Terminal struct {
	Method   TerminalMethod `json:"method"`
	Growth   float64        `json:"growth,omitempty"`   // perpetuity growth rate, e.g. 0.025
	Multiple float64        `json:"multiple,omitempty"` // EV / terminal-year EBITDA
}

// =============================================================================
// ASSUMPTION SET
// =============================================================================

// Input is the plain record a caller fills in. It carries no guarantees until passed to New.
type Input struct {
	BaseRevenue float64 `json:"base_revenue"`
	Horizon     int     `json:"horizon,omitempty"` // 0 = sum of growth stage durations

	Growth         Stages `json:"growth"`
	Margin         Stages `json:"margin"`                     // EBIT margin
	SalesToCapital Stages `json:"sales_to_capital,omitempty"` // empty = no reinvestment modeled

	WACC             float64 `json:"wacc"`
	TaxRate          float64 `json:"tax_rate"`
	DepreciationRate float64 `json:"depreciation_rate,omitempty"` // D&A as % of revenue

	Terminal Terminal `json:"terminal"`

	SharesOutstanding float64 `json:"shares_outstanding"`
	NetDebt           float64 `json:"net_debt"`
}

// AssumptionSet is a validated, immutable valuation scenario.
type AssumptionSet struct {
	in Input
}

// New validates in and returns an AssumptionSet, or an *InvalidError listing every violation.
func New(in Input) (*AssumptionSet, error) {
	in = normalize(in)
	if err := validate(in); err != nil {
		return nil, err
	}
	return &AssumptionSet{in: in}, nil
}

// MustNew is New for fixtures known to be valid. It panics on invalid input.
func MustNew(in Input) *AssumptionSet {
	as, err := New(in)
	if err != nil {
		panic(err)
	}
	return as
}

func normalize(in Input) Input {
	in.Growth = in.Growth.Clone()
	in.Margin = in.Margin.Clone()
	in.SalesToCapital = in.SalesToCapital.Clone()
	if in.Horizon == 0 {
		in.Horizon = in.Growth.Horizon()
	}
	if in.Terminal.Method == "" {
		in.Terminal.Method = TerminalPerpetuity
	}
	return in
}

func (as *AssumptionSet) BaseRevenue() float64       { return as.in.BaseRevenue }
func (as *AssumptionSet) Horizon() int               { return as.in.Horizon }
func (as *AssumptionSet) Growth() Stages             { return as.in.Growth.Clone() }
func (as *AssumptionSet) Margin() Stages             { return as.in.Margin.Clone() }
func (as *AssumptionSet) SalesToCapital() Stages     { return as.in.SalesToCapital.Clone() }
func (as *AssumptionSet) WACC() float64              { return as.in.WACC }
func (as *AssumptionSet) TaxRate() float64           { return as.in.TaxRate }
func (as *AssumptionSet) DepreciationRate() float64  { return as.in.DepreciationRate }
func (as *AssumptionSet) Terminal() Terminal         { return as.in.Terminal }
func (as *AssumptionSet) SharesOutstanding() float64 { return as.in.SharesOutstanding }
func (as *AssumptionSet) NetDebt() float64           { return as.in.NetDebt }

// GrowthAt, MarginAt and SalesToCapitalAt read the active stage without copying the sequence.
func (as *AssumptionSet) GrowthAt(period int) float64 { return as.in.Growth.At(period) }
func (as *AssumptionSet) MarginAt(period int) float64 { return as.in.Margin.At(period) }

// SalesToCapitalAt returns the active sales-to-capital ratio and false when reinvestment is not modeled.
func (as *AssumptionSet) SalesToCapitalAt(period int) (float64, bool) {
	if len(as.in.SalesToCapital) == 0 {
		return 0, false
	}
	return as.in.SalesToCapital.At(period), true
}

// Input returns a copy of the normalized input the set was built from.
func (as *AssumptionSet) Input() Input {
	return normalize(as.in)
}

// MarshalJSON serializes the normalized input so stored runs can be replayed through New.
func (as *AssumptionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(as.in)
}
