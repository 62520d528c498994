// Package projection turns a validated assumption set into a period-by-period
// free cash flow to firm forecast and a discounted cash flow valuation.
package projection

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"valuation_engine/pkg/core/assumption"
)

// Project runs the multi-stage DCF. It is a pure function of as: identical
// inputs give bit-identical results and nothing is shared between calls.
func Project(as *assumption.AssumptionSet) (*Result, error) {
	n := as.Horizon()
	wacc := as.WACC()
	tax := as.TaxRate()
	daRate := as.DepreciationRate()
	growthStages := as.Growth()

	periods := make([]Period, n)
	pvs := make([]float64, n)
	prevRev := as.BaseRevenue()

	for t := 1; t <= n; t++ {
		growth := as.GrowthAt(t)
		margin := as.MarginAt(t)

		revenue := prevRev * (1 + growth)
		ebit := revenue * margin
		nopat := ebit * (1 - tax)

		reinvestment := 0.0
		if s2c, ok := as.SalesToCapitalAt(t); ok {
			reinvestment = (revenue - prevRev) / s2c
		}
		fcff := nopat - reinvestment

		df := math.Pow(1+wacc, -float64(t))
		pv := fcff * df

		periods[t-1] = Period{
			Period:         t,
			GrowthStage:    growthStages.StageIndex(t),
			Growth:         growth,
			Margin:         margin,
			Revenue:        revenue,
			EBIT:           ebit,
			EBITDA:         ebit + revenue*daRate,
			NOPAT:          nopat,
			Reinvestment:   reinvestment,
			FCFF:           fcff,
			DiscountFactor: df,
			PresentValue:   pv,
		}
		pvs[t-1] = pv
		prevRev = revenue
	}

	last := periods[n-1]
	terminal := terminalValue(as, last)

	pvExplicit := floats.Sum(pvs)
	ev := pvExplicit + terminal.PresentValue
	equity := ev - as.NetDebt()
	perShare := equity / as.SharesOutstanding()

	if !isFinite(ev) || !isFinite(perShare) {
		return nil, assumption.Invalid("terminal", "valuation is not finite (enterprise value %v)", ev)
	}
	if ev != 0 {
		terminal.ShareOfEV = terminal.PresentValue / ev
	}

	return &Result{
		Periods:         periods,
		PVExplicit:      pvExplicit,
		Terminal:        terminal,
		EnterpriseValue: ev,
		NetDebt:         as.NetDebt(),
		EquityValue:     equity,
		ValuePerShare:   perShare,
	}, nil
}

func terminalValue(as *assumption.AssumptionSet, last Period) TerminalBreakdown {
	wacc := as.WACC()
	term := as.Terminal()

	tb := TerminalBreakdown{
		Method:     term.Method,
		BaseFCFF:   last.FCFF,
		BaseEBITDA: last.EBITDA,
	}

	switch term.Method {
	case assumption.TerminalExitMultiple:
		tb.Value = last.EBITDA * term.Multiple
		// TV = F(1+g)/(W-g)  =>  g = (TV*W - F) / (TV + F)
		if denom := tb.Value + last.FCFF; denom != 0 {
			tb.ImpliedGrowth = (tb.Value*wacc - last.FCFF) / denom
		}
	default:
		// Gordon growth on the final-year FCFF
		tb.Value = last.FCFF * (1 + term.Growth) / (wacc - term.Growth)
		tb.ImpliedGrowth = term.Growth
	}

	if last.EBITDA != 0 {
		tb.ImpliedMultiple = tb.Value / last.EBITDA
	}
	tb.PresentValue = tb.Value * last.DiscountFactor
	return tb
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
