package assumption

import (
	"fmt"
	"math"
	"sort"
)

// CashFlowBasis states whether the cash-flow stream still has to pay debt interest.
type CashFlowBasis string

const (
	// BasisPreInterest streams pay interest before any principal is repaid.
	BasisPreInterest CashFlowBasis = "pre_interest"
	// BasisPostInterest streams are already levered: interest is reported but not deducted again.
	BasisPostInterest CashFlowBasis = "post_interest"
)

// DebtTranche is one slice of the acquisition debt. Lower Priority is more senior.
type DebtTranche struct {
	Name      string  `json:"name"`
	Principal float64 `json:"principal"`
	Rate      float64 `json:"rate"` // annual interest on the opening balance
	Priority  int     `json:"priority"`
}

// ExitScenario values the exit either at an EBITDA multiple or at the multiple implied by a target IRR.
type ExitScenario struct {
	Name         string   `json:"name"`
	ExitMultiple float64  `json:"exit_multiple,omitempty"`
	TargetIRR    *float64 `json:"target_irr,omitempty"`
}

// LBOInput is the plain leveraged-buyout record a caller fills in.
type LBOInput struct {
	PurchasePrice      float64       `json:"purchase_price"`
	EquityContribution float64       `json:"equity_contribution"`
	Tranches           []DebtTranche `json:"tranches"`
	RevolverRate       float64       `json:"revolver_rate,omitempty"` // interest on deficit draws

	HoldingPeriod int `json:"holding_period,omitempty"` // 0 = length of the supplied streams

	// EBITDA trajectory: explicit stream, or base EBITDA grown by stages.
	EBITDA       []float64 `json:"ebitda,omitempty"`
	BaseEBITDA   float64   `json:"base_ebitda,omitempty"`
	EBITDAGrowth Stages    `json:"ebitda_growth,omitempty"`

	// Cash conversion, as shares of EBITDA.
	CapexRate float64 `json:"capex_rate,omitempty"`
	NWCRate   float64 `json:"nwc_rate,omitempty"`
	DARate    float64 `json:"da_rate,omitempty"`
	TaxRate   float64 `json:"tax_rate,omitempty"`

	// CashFlows overrides the derived cash available for debt service.
	CashFlows        []float64     `json:"cash_flows,omitempty"`
	Basis            CashFlowBasis `json:"basis,omitempty"`
	DistributeExcess bool          `json:"distribute_excess,omitempty"`

	ExitEBITDA float64        `json:"exit_ebitda,omitempty"` // overrides the final-period EBITDA
	Scenarios  []ExitScenario `json:"scenarios"`
}

// LBOAssumptions is a validated buyout scenario.
type LBOAssumptions struct {
	in       LBOInput
	ebitda   []float64
	tranches []DebtTranche // seniority order
}

// NewLBO validates in and returns the buyout assumptions, or an *InvalidError listing every violation.
func NewLBO(in LBOInput) (*LBOAssumptions, error) {
	in = normalizeLBO(in)
	c := &checker{}

	priceOK := c.finite("purchase_price", in.PurchasePrice)
	if priceOK && in.PurchasePrice <= 0 {
		c.add("purchase_price", "must be positive, got %v", in.PurchasePrice)
	}
	equityOK := c.finite("equity_contribution", in.EquityContribution)
	if equityOK && in.EquityContribution <= 0 {
		c.add("equity_contribution", "must be positive, got %v", in.EquityContribution)
	}

	debt := 0.0
	debtOK := true
	for i, t := range in.Tranches {
		name := fmt.Sprintf("tranches[%d]", i)
		if !c.finite(name+".principal", t.Principal) {
			debtOK = false
		} else if t.Principal < 0 {
			c.add(name+".principal", "must not be negative, got %v", t.Principal)
		}
		if c.finite(name+".rate", t.Rate) && (t.Rate < 0 || t.Rate >= 1) {
			c.add(name+".rate", "must be within [0, 1), got %v", t.Rate)
		}
		debt += t.Principal
	}
	if c.finite("revolver_rate", in.RevolverRate) && (in.RevolverRate < 0 || in.RevolverRate >= 1) {
		c.add("revolver_rate", "must be within [0, 1), got %v", in.RevolverRate)
	}
	if priceOK && equityOK && debtOK {
		if gap := in.EquityContribution + debt - in.PurchasePrice; math.Abs(gap) > 1e-9*in.PurchasePrice {
			c.add("purchase_price", "sources (equity %v + debt %v) do not match the purchase price %v", in.EquityContribution, debt, in.PurchasePrice)
		}
	}

	n := in.HoldingPeriod
	if n < 1 {
		c.add("holding_period", "must be at least one period, got %d", n)
	}

	if len(in.CashFlows) > 0 {
		if len(in.CashFlows) != n {
			c.add("cash_flows", "has %d periods, holding period is %d", len(in.CashFlows), n)
		}
		for i, v := range in.CashFlows {
			c.finite(fmt.Sprintf("cash_flows[%d]", i), v)
		}
	}
	switch in.Basis {
	case BasisPreInterest, BasisPostInterest:
	default:
		c.add("basis", "unknown cash-flow basis %q", in.Basis)
	}

	hasEBITDA := len(in.EBITDA) > 0 || len(in.EBITDAGrowth) > 0 || in.BaseEBITDA != 0
	switch {
	case len(in.EBITDA) > 0:
		if len(in.EBITDA) != n {
			c.add("ebitda", "has %d periods, holding period is %d", len(in.EBITDA), n)
		}
		for i, v := range in.EBITDA {
			c.finite(fmt.Sprintf("ebitda[%d]", i), v)
		}
	case hasEBITDA:
		if c.finite("base_ebitda", in.BaseEBITDA) && in.BaseEBITDA <= 0 {
			c.add("base_ebitda", "must be positive, got %v", in.BaseEBITDA)
		}
		c.stages("ebitda_growth", in.EBITDAGrowth, n, true, func(v float64) string {
			if v <= -1 {
				return fmt.Sprintf("growth must be greater than -1, got %v", v)
			}
			return ""
		})
	case len(in.CashFlows) == 0:
		c.add("ebitda", "an EBITDA trajectory or explicit cash flows are required")
	}

	for _, r := range []struct {
		field string
		v     float64
	}{{"capex_rate", in.CapexRate}, {"nwc_rate", in.NWCRate}, {"da_rate", in.DARate}} {
		if c.finite(r.field, r.v) && (r.v < 0 || r.v > 1) {
			c.add(r.field, "must be within [0, 1], got %v", r.v)
		}
	}
	if c.finite("tax_rate", in.TaxRate) && (in.TaxRate < 0 || in.TaxRate >= 1) {
		c.add("tax_rate", "must be within [0, 1), got %v", in.TaxRate)
	}
	if c.finite("exit_ebitda", in.ExitEBITDA) && in.ExitEBITDA < 0 {
		c.add("exit_ebitda", "must not be negative, got %v", in.ExitEBITDA)
	}

	if len(in.Scenarios) == 0 {
		c.add("scenarios", "at least one exit scenario is required")
	}
	for i, s := range in.Scenarios {
		name := fmt.Sprintf("scenarios[%d]", i)
		hasMultiple := s.ExitMultiple != 0
		if hasMultiple == (s.TargetIRR != nil) {
			c.add(name, "exactly one of exit_multiple or target_irr must be set")
			continue
		}
		if hasMultiple {
			if c.finite(name+".exit_multiple", s.ExitMultiple) && s.ExitMultiple <= 0 {
				c.add(name+".exit_multiple", "must be positive, got %v", s.ExitMultiple)
			}
			if !hasEBITDA && in.ExitEBITDA == 0 {
				c.add(name+".exit_multiple", "requires an EBITDA trajectory or exit_ebitda")
			}
			continue
		}
		if c.finite(name+".target_irr", *s.TargetIRR) && *s.TargetIRR <= -1 {
			c.add(name+".target_irr", "must be greater than -1, got %v", *s.TargetIRR)
		}
	}

	if err := c.err(); err != nil {
		return nil, err
	}

	la := &LBOAssumptions{in: in}
	la.ebitda = buildEBITDA(in)
	la.tranches = make([]DebtTranche, len(in.Tranches))
	copy(la.tranches, in.Tranches)
	sort.SliceStable(la.tranches, func(i, j int) bool {
		return la.tranches[i].Priority < la.tranches[j].Priority
	})
	return la, nil
}

func normalizeLBO(in LBOInput) LBOInput {
	in.Tranches = append([]DebtTranche(nil), in.Tranches...)
	for i := range in.Tranches {
		if in.Tranches[i].Name == "" {
			in.Tranches[i].Name = fmt.Sprintf("tranche-%d", i+1)
		}
	}
	in.EBITDA = append([]float64(nil), in.EBITDA...)
	in.CashFlows = append([]float64(nil), in.CashFlows...)
	in.EBITDAGrowth = in.EBITDAGrowth.Clone()
	in.Scenarios = cloneScenarios(in.Scenarios)
	for i := range in.Scenarios {
		if in.Scenarios[i].Name == "" {
			in.Scenarios[i].Name = fmt.Sprintf("scenario-%d", i+1)
		}
	}
	if in.Basis == "" {
		in.Basis = BasisPreInterest
	}
	if in.HoldingPeriod == 0 {
		switch {
		case len(in.CashFlows) > 0:
			in.HoldingPeriod = len(in.CashFlows)
		case len(in.EBITDA) > 0:
			in.HoldingPeriod = len(in.EBITDA)
		default:
			in.HoldingPeriod = in.EBITDAGrowth.Horizon()
		}
	}
	return in
}

// cloneScenarios copies the target IRRs too, so no caller shares a pointer
// with a validated set.
func cloneScenarios(in []ExitScenario) []ExitScenario {
	if in == nil {
		return nil
	}
	out := make([]ExitScenario, len(in))
	for i, sc := range in {
		if sc.TargetIRR != nil {
			r := *sc.TargetIRR
			sc.TargetIRR = &r
		}
		out[i] = sc
	}
	return out
}

func buildEBITDA(in LBOInput) []float64 {
	if len(in.EBITDA) > 0 {
		return append([]float64(nil), in.EBITDA...)
	}
	if in.BaseEBITDA == 0 {
		return nil
	}
	out := make([]float64, in.HoldingPeriod)
	prev := in.BaseEBITDA
	for t := 1; t <= in.HoldingPeriod; t++ {
		prev *= 1 + in.EBITDAGrowth.At(t)
		out[t-1] = prev
	}
	return out
}

func (la *LBOAssumptions) PurchasePrice() float64      { return la.in.PurchasePrice }
func (la *LBOAssumptions) EquityContribution() float64 { return la.in.EquityContribution }
func (la *LBOAssumptions) HoldingPeriod() int          { return la.in.HoldingPeriod }
func (la *LBOAssumptions) Basis() CashFlowBasis        { return la.in.Basis }
func (la *LBOAssumptions) DistributeExcess() bool      { return la.in.DistributeExcess }
func (la *LBOAssumptions) CapexRate() float64          { return la.in.CapexRate }
func (la *LBOAssumptions) NWCRate() float64            { return la.in.NWCRate }
func (la *LBOAssumptions) DARate() float64             { return la.in.DARate }
func (la *LBOAssumptions) TaxRate() float64            { return la.in.TaxRate }
func (la *LBOAssumptions) RevolverRate() float64       { return la.in.RevolverRate }

// Tranches returns the debt tranches in seniority order.
func (la *LBOAssumptions) Tranches() []DebtTranche {
	return append([]DebtTranche(nil), la.tranches...)
}

// InitialDebt is the total principal raised at entry.
func (la *LBOAssumptions) InitialDebt() float64 {
	total := 0.0
	for _, t := range la.tranches {
		total += t.Principal
	}
	return total
}

// EBITDA returns the per-period EBITDA, or nil when only explicit cash flows were supplied.
func (la *LBOAssumptions) EBITDA() []float64 {
	return append([]float64(nil), la.ebitda...)
}

// CashFlows returns the explicit cash-flow stream, or nil when cash is derived from EBITDA.
func (la *LBOAssumptions) CashFlows() []float64 {
	if len(la.in.CashFlows) == 0 {
		return nil
	}
	return append([]float64(nil), la.in.CashFlows...)
}

// ExitEBITDA is the EBITDA the exit multiple applies to.
func (la *LBOAssumptions) ExitEBITDA() float64 {
	if la.in.ExitEBITDA > 0 {
		return la.in.ExitEBITDA
	}
	if len(la.ebitda) == 0 {
		return 0
	}
	return la.ebitda[len(la.ebitda)-1]
}

// Scenarios returns the exit scenarios in input order.
func (la *LBOAssumptions) Scenarios() []ExitScenario {
	return cloneScenarios(la.in.Scenarios)
}

// Input returns a copy of the normalized input.
func (la *LBOAssumptions) Input() LBOInput {
	return normalizeLBO(la.in)
}
