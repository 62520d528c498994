package projection

import "valuation_engine/pkg/core/assumption"

// Period holds the projected operating line items and discounting for one year.
type Period struct {
	Period         int     `json:"period"`
	GrowthStage    int     `json:"growth_stage"`
	Growth         float64 `json:"growth"`
	Margin         float64 `json:"margin"`
	Revenue        float64 `json:"revenue"`
	EBIT           float64 `json:"ebit"`
	EBITDA         float64 `json:"ebitda"`
	NOPAT          float64 `json:"nopat"` // EBIT * (1 - tax)
	Reinvestment   float64 `json:"reinvestment"`
	FCFF           float64 `json:"fcff"`
	DiscountFactor float64 `json:"discount_factor"`
	PresentValue   float64 `json:"present_value"`
}

// TerminalBreakdown explains the value assigned beyond the explicit horizon.
type TerminalBreakdown struct {
	Method       assumption.TerminalMethod `json:"method"`
	Value        float64                   `json:"value"` // undiscounted, at period N
	PresentValue float64                   `json:"present_value"`
	BaseFCFF     float64                   `json:"base_fcff"`   // FCFF in period N
	BaseEBITDA   float64                   `json:"base_ebitda"` // EBITDA in period N
	ShareOfEV    float64                   `json:"share_of_ev"`

	// Cross-checks between the two methods.
	ImpliedMultiple float64 `json:"implied_multiple"` // TV / EBITDA_N
	ImpliedGrowth   float64 `json:"implied_growth"`   // perpetual growth consistent with TV
}

// Result is the deterministic valuation of one assumption set.
type Result struct {
	Periods         []Period          `json:"periods"`
	PVExplicit      float64           `json:"pv_explicit"` // sum of discounted FCFF
	Terminal        TerminalBreakdown `json:"terminal"`
	EnterpriseValue float64           `json:"enterprise_value"`
	NetDebt         float64           `json:"net_debt"`
	EquityValue     float64           `json:"equity_value"`
	ValuePerShare   float64           `json:"value_per_share"`
}

// Metric selects one scalar out of a Result.
type Metric string

const (
	MetricValuePerShare   Metric = "value_per_share"
	MetricEquityValue     Metric = "equity_value"
	MetricEnterpriseValue Metric = "enterprise_value"
)

// Scalar returns the requested metric; unknown metrics fall back to value per share.
func (r *Result) Scalar(m Metric) float64 {
	switch m {
	case MetricEquityValue:
		return r.EquityValue
	case MetricEnterpriseValue:
		return r.EnterpriseValue
	}
	return r.ValuePerShare
}
