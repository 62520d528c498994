package assumption

import (
	"errors"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func baseLBOInput() LBOInput {
	return LBOInput{
		PurchasePrice:      1000,
		EquityContribution: 400,
		Tranches: []DebtTranche{
			{Name: "mezz", Principal: 200, Rate: 0.11, Priority: 2},
			{Name: "senior", Principal: 400, Rate: 0.06, Priority: 1},
		},
		BaseEBITDA:   100,
		EBITDAGrowth: Constant(0.05, 5),
		CapexRate:    0.2,
		TaxRate:      0.25,
		Scenarios:    []ExitScenario{{Name: "base", ExitMultiple: 10}},
	}
}

func TestNewLBO_Valid(t *testing.T) {
	la, err := NewLBO(baseLBOInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if la.HoldingPeriod() != 5 {
		t.Errorf("expected holding period 5, got %d", la.HoldingPeriod())
	}
	tr := la.Tranches()
	if tr[0].Name != "senior" || tr[1].Name != "mezz" {
		t.Errorf("expected tranches in seniority order, got %v", tr)
	}
	if la.InitialDebt() != 600 {
		t.Errorf("expected initial debt 600, got %v", la.InitialDebt())
	}
	e := la.EBITDA()
	if len(e) != 5 || e[0] != 105 {
		t.Errorf("expected EBITDA stream starting at 105, got %v", e)
	}
	if la.Basis() != BasisPreInterest {
		t.Errorf("expected default basis pre_interest, got %s", la.Basis())
	}
}

func TestNewLBO_SourcesAndUses(t *testing.T) {
	in := baseLBOInput()
	in.EquityContribution = 300

	_, err := NewLBO(in)
	var inv *InvalidError
	if !errors.As(err, &inv) || !inv.HasField("purchase_price") {
		t.Fatalf("expected purchase_price violation, got %v", err)
	}
}

func TestNewLBO_ScenarioRules(t *testing.T) {
	in := baseLBOInput()
	in.Scenarios = []ExitScenario{
		{Name: "both", ExitMultiple: 8, TargetIRR: floatPtr(0.2)},
		{Name: "neither"},
		{Name: "bad-irr", TargetIRR: floatPtr(-1.5)},
	}

	_, err := NewLBO(in)
	var inv *InvalidError
	if !errors.As(err, &inv) {
		t.Fatalf("expected *InvalidError, got %v", err)
	}
	if len(inv.Violations) != 3 {
		t.Errorf("expected 3 violations, got %d: %v", len(inv.Violations), inv.Violations)
	}
}

func TestNewLBO_CashFlowsWithoutEBITDA(t *testing.T) {
	in := LBOInput{
		PurchasePrice:      1000,
		EquityContribution: 500,
		Tranches:           []DebtTranche{{Name: "senior", Principal: 500, Rate: 0.06}},
		CashFlows:          []float64{100, 100, 100, 100, 100},
		Basis:              BasisPostInterest,
		Scenarios:          []ExitScenario{{ExitMultiple: 8}},
	}

	_, err := NewLBO(in)
	var inv *InvalidError
	if !errors.As(err, &inv) || !inv.HasField("scenarios") {
		t.Fatalf("expected exit multiple without EBITDA to be rejected, got %v", err)
	}

	in.ExitEBITDA = 150
	la, err := NewLBO(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if la.HoldingPeriod() != 5 || la.ExitEBITDA() != 150 {
		t.Errorf("unexpected holding period %d / exit EBITDA %v", la.HoldingPeriod(), la.ExitEBITDA())
	}
	if la.Scenarios()[0].Name != "scenario-1" {
		t.Errorf("expected default scenario name, got %q", la.Scenarios()[0].Name)
	}
}

func TestLBOAssumptions_IsImmutable(t *testing.T) {
	r := 0.2
	in := baseLBOInput()
	in.Scenarios = []ExitScenario{{Name: "target", TargetIRR: &r}}
	la, err := NewLBO(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r = -5
	if got := *la.Scenarios()[0].TargetIRR; got != 0.2 {
		t.Errorf("expected target IRR to stay 0.2 after the caller changed it, got %v", got)
	}

	sc := la.Scenarios()
	*sc[0].TargetIRR = -5
	if got := *la.Scenarios()[0].TargetIRR; got != 0.2 {
		t.Errorf("expected target IRR to stay 0.2 after a returned copy changed, got %v", got)
	}
	if got := *la.Input().Scenarios[0].TargetIRR; got != 0.2 {
		t.Errorf("expected Input to report 0.2, got %v", got)
	}
}
