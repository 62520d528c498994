package lbo

import (
	"fmt"
	"math"

	"valuation_engine/pkg/core/assumption"
)

// AbilityToPayInput parameters for ability-to-pay analysis: the highest
// entry price a sponsor can pay and still earn TargetIRR.
type AbilityToPayInput struct {
	TargetEBITDA       float64   `json:"target_ebitda"`  // entry EBITDA
	LeverageRatio      float64   `json:"leverage_ratio"` // Debt / EBITDA (e.g. 5.0x)
	InterestRate       float64   `json:"interest_rate"`
	TaxRate            float64   `json:"tax_rate"`
	ExitMultiple       float64   `json:"exit_multiple"`
	TargetIRR          float64   `json:"target_irr"` // e.g. 0.20
	ProjectedEBITDA    []float64 `json:"projected_ebitda"`
	ProjectedCapex     []float64 `json:"projected_capex"`
	ProjectedChangeNWC []float64 `json:"projected_change_nwc"`
	ProjectedDA        []float64 `json:"projected_da,omitempty"` // tax shield; zero when omitted
}

// AbilityToPayResult is the highest entry price and the debt schedule behind it.
type AbilityToPayResult struct {
	MaxEntryEV           float64  `json:"max_entry_ev"`
	ImpliedEntryMultiple float64  `json:"implied_entry_multiple"`
	EquityCheck          float64  `json:"equity_check"`
	DebtRaised           float64  `json:"debt_raised"`
	ExitEquityValue      float64  `json:"exit_equity_value"`
	ExitDebt             float64  `json:"exit_debt"`
	Periods              []Period `json:"periods"`
}

// AbilityToPay sizes the debt at LeverageRatio x TargetEBITDA, sweeps all free
// cash flow to it, and discounts the exit equity at TargetIRR to find the
// equity cheque. The entry price is that cheque plus the debt raised.
func AbilityToPay(in AbilityToPayInput) (AbilityToPayResult, error) {
	if err := validateAbility(in); err != nil {
		return AbilityToPayResult{}, err
	}
	n := len(in.ProjectedEBITDA)
	da := in.ProjectedDA
	if len(da) == 0 {
		da = make([]float64, n)
	}

	debt := in.TargetEBITDA * in.LeverageRatio
	s := &schedule{
		n:        n,
		ebitda:   append([]float64(nil), in.ProjectedEBITDA...),
		capex:    append([]float64(nil), in.ProjectedCapex...),
		nwc:      append([]float64(nil), in.ProjectedChangeNWC...),
		da:       da,
		taxRate:  in.TaxRate,
		basis:    assumption.BasisPreInterest,
		tranches: []assumption.DebtTranche{{Name: "acquisition debt", Principal: debt, Rate: in.InterestRate}},
		// Deficits roll into the debt at the same rate.
		revolverRate: in.InterestRate,
	}
	w := s.run()

	exitEV := in.ProjectedEBITDA[n-1] * in.ExitMultiple
	exitEquity := math.Max(0, exitEV-w.exitDebt+w.exitCash)

	// Entry = Exit / (1+IRR)^T
	required := exitEquity / math.Pow(1+in.TargetIRR, float64(n))
	maxEntryEV := required + debt

	return AbilityToPayResult{
		MaxEntryEV:           maxEntryEV,
		ImpliedEntryMultiple: maxEntryEV / in.TargetEBITDA,
		EquityCheck:          required,
		DebtRaised:           debt,
		ExitEquityValue:      exitEquity,
		ExitDebt:             w.exitDebt,
		Periods:              w.periods,
	}, nil
}

func validateAbility(in AbilityToPayInput) error {
	var vs []assumption.Violation
	add := func(field, format string, args ...any) {
		vs = append(vs, assumption.Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	if !finite(in.TargetEBITDA) || in.TargetEBITDA <= 0 {
		add("target_ebitda", "must be positive, got %v", in.TargetEBITDA)
	}
	if !finite(in.LeverageRatio) || in.LeverageRatio < 0 {
		add("leverage_ratio", "must not be negative, got %v", in.LeverageRatio)
	}
	if !finite(in.InterestRate) || in.InterestRate < 0 || in.InterestRate >= 1 {
		add("interest_rate", "must be within [0, 1), got %v", in.InterestRate)
	}
	if !finite(in.TaxRate) || in.TaxRate < 0 || in.TaxRate >= 1 {
		add("tax_rate", "must be within [0, 1), got %v", in.TaxRate)
	}
	if !finite(in.ExitMultiple) || in.ExitMultiple <= 0 {
		add("exit_multiple", "must be positive, got %v", in.ExitMultiple)
	}
	if !finite(in.TargetIRR) || in.TargetIRR <= -1 {
		add("target_irr", "must be greater than -1, got %v", in.TargetIRR)
	}

	n := len(in.ProjectedEBITDA)
	if n == 0 {
		add("projected_ebitda", "at least one period is required")
	}
	for _, s := range []struct {
		field string
		xs    []float64
		opt   bool
	}{
		{"projected_ebitda", in.ProjectedEBITDA, false},
		{"projected_capex", in.ProjectedCapex, false},
		{"projected_change_nwc", in.ProjectedChangeNWC, false},
		{"projected_da", in.ProjectedDA, true},
	} {
		if len(s.xs) != n && !(s.opt && len(s.xs) == 0) {
			add(s.field, "has %d periods, expected %d", len(s.xs), n)
		}
		for i, v := range s.xs {
			if !finite(v) {
				add(fmt.Sprintf("%s[%d]", s.field, i), "must be a finite number, got %v", v)
			}
		}
	}

	if len(vs) > 0 {
		return &assumption.InvalidError{Violations: vs}
	}
	return nil
}
