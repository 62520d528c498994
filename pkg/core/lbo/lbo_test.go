package lbo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuation_engine/pkg/core/assumption"
)

func floatPtr(v float64) *float64 { return &v }

func mustLBO(t *testing.T, in assumption.LBOInput) *assumption.LBOAssumptions {
	t.Helper()
	la, err := assumption.NewLBO(in)
	require.NoError(t, err)
	return la
}

func TestReturns_SeniorAmortizesInFivePeriods(t *testing.T) {
	la := mustLBO(t, assumption.LBOInput{
		PurchasePrice:      1000,
		EquityContribution: 500,
		Tranches:           []assumption.DebtTranche{{Name: "senior", Principal: 500, Rate: 0.06, Priority: 1}},
		CashFlows:          []float64{100, 100, 100, 100, 100},
		Basis:              assumption.BasisPostInterest,
		ExitEBITDA:         100,
		Scenarios:          []assumption.ExitScenario{{Name: "base", ExitMultiple: 8}},
	})

	res, err := Returns(la)
	require.NoError(t, err)
	require.Len(t, res.Periods, 5)

	want := []float64{400, 300, 200, 100, 0}
	for i, p := range res.Periods {
		assert.Equal(t, want[i], p.Tranches[0].Closing, "period %d", p.Period)
		assert.Equal(t, 100.0, p.Tranches[0].Principal)
	}
	assert.InDelta(t, 30, res.Periods[0].Tranches[0].Interest, 1e-12)
	assert.InDelta(t, 6, res.Periods[4].Tranches[0].Interest, 1e-12)
	assert.Equal(t, 5, res.Tranches[0].RepaidInPeriod)

	sc := res.Scenarios[0]
	assert.Equal(t, 800.0, sc.ExitEV)
	assert.Equal(t, 0.0, sc.ExitDebt)
	assert.Equal(t, 800.0, sc.ExitEquity)
	assert.InDelta(t, 1.6, sc.MOIC, 1e-12)
	assert.InDelta(t, math.Pow(1.6, 0.2)-1, sc.IRR, 1e-8)
	assert.Equal(t, sc.IRR, res.IRR)
	assert.Equal(t, sc.MOIC, res.MOIC)
}

func TestReturns_PreInterestPaysInterestFirst(t *testing.T) {
	la := mustLBO(t, assumption.LBOInput{
		PurchasePrice:      1000,
		EquityContribution: 500,
		Tranches:           []assumption.DebtTranche{{Name: "senior", Principal: 500, Rate: 0.06}},
		CashFlows:          []float64{100, 100, 100, 100, 100},
		ExitEBITDA:         100,
		Scenarios:          []assumption.ExitScenario{{ExitMultiple: 8}},
	})

	res, err := Returns(la)
	require.NoError(t, err)

	p1 := res.Periods[0].Tranches[0]
	assert.InDelta(t, 30, p1.InterestPaid, 1e-12)
	assert.InDelta(t, 70, p1.Principal, 1e-12)
	assert.Equal(t, 0, res.Tranches[0].RepaidInPeriod)
	assert.Greater(t, res.Scenarios[0].ExitDebt, 0.0)
	assert.Equal(t, "scenario-1", res.Scenarios[0].Name)
}

func seniorJuniorInput() assumption.LBOInput {
	return assumption.LBOInput{
		PurchasePrice:      1000,
		EquityContribution: 400,
		Tranches: []assumption.DebtTranche{
			{Name: "mezz", Principal: 200, Rate: 0.11, Priority: 2},
			{Name: "senior", Principal: 400, Rate: 0.06, Priority: 1},
		},
		BaseEBITDA:   100,
		EBITDAGrowth: assumption.Constant(0.05, 7),
		CapexRate:    0.2,
		TaxRate:      0.25,
		Scenarios: []assumption.ExitScenario{
			{Name: "base", ExitMultiple: 9},
			{Name: "hurdle", TargetIRR: floatPtr(0.20)},
		},
	}
}

func TestReturns_SeniorBeforeSubordinate(t *testing.T) {
	res, err := Returns(mustLBO(t, seniorJuniorInput()))
	require.NoError(t, err)

	p1 := res.Periods[0]
	require.Equal(t, "senior", p1.Tranches[0].Name)
	assert.InDelta(t, 105, p1.EBITDA, 1e-9)
	assert.InDelta(t, 14.75, p1.Taxes, 1e-9)
	assert.InDelta(t, 69.25, p1.CashAvailable, 1e-9)
	assert.InDelta(t, 45.25, p1.Tranches[0].Principal, 1e-9)
	// Mezz interest is unpaid while senior is outstanding and capitalises.
	assert.Equal(t, 0.0, p1.Tranches[1].InterestPaid)
	assert.InDelta(t, 222, p1.Tranches[1].Closing, 1e-9)

	for _, p := range res.Periods {
		senior, mezz := p.Tranches[0], p.Tranches[1]
		if mezz.InterestPaid > 0 || mezz.Principal > 0 {
			assert.Equal(t, 0.0, senior.Closing, "period %d pays mezz before senior is retired", p.Period)
		}
	}
}

func TestReturns_DebtServiceWithinCash(t *testing.T) {
	for _, basis := range []assumption.CashFlowBasis{assumption.BasisPreInterest, assumption.BasisPostInterest} {
		in := seniorJuniorInput()
		in.Basis = basis
		res, err := Returns(mustLBO(t, in))
		require.NoError(t, err)

		for _, p := range res.Periods {
			assert.LessOrEqual(t, p.DebtService, math.Max(0, p.CashAvailable+p.OpeningCash)+1e-9,
				"%s period %d", basis, p.Period)
		}
	}
}

func TestReturns_TargetIRRRoundTrip(t *testing.T) {
	res, err := Returns(mustLBO(t, seniorJuniorInput()))
	require.NoError(t, err)

	sc := res.Scenarios[1]
	assert.Equal(t, MethodTarget, sc.Method)
	assert.Equal(t, 0.20, sc.IRR)

	// The implied exit equity must earn the target when fed back through IRR.
	sol, err := IRR([]float64{-400, 0, 0, 0, 0, 0, 0, sc.ExitEquity})
	require.NoError(t, err)
	assert.InDelta(t, 0.20, sol.Rate, 1e-8)
	assert.InDelta(t, sc.ExitEV/sc.ExitEBITDA, sc.ExitMultiple, 1e-12)
	assert.InDelta(t, sc.ExitEquity+sc.ExitDebt-sc.ExitCash, sc.ExitEV, 1e-9)
}

func TestReturns_RevolverAndDistributions(t *testing.T) {
	res, err := Returns(mustLBO(t, assumption.LBOInput{
		PurchasePrice:      300,
		EquityContribution: 200,
		Tranches:           []assumption.DebtTranche{{Name: "term", Principal: 100, Rate: 0.10}},
		RevolverRate:       0.05,
		CashFlows:          []float64{-50, 100, 100},
		DistributeExcess:   true,
		Scenarios:          []assumption.ExitScenario{{Name: "hurdle", TargetIRR: floatPtr(0.15)}},
	}))
	require.NoError(t, err)

	p1, p2, p3 := res.Periods[0], res.Periods[1], res.Periods[2]
	assert.Equal(t, 50.0, p1.RevolverDraw)
	assert.Equal(t, 50.0, p1.RevolverBalance)
	assert.InDelta(t, 110, p1.Tranches[0].Closing, 1e-12)

	assert.InDelta(t, 2.5, p2.RevolverInterest, 1e-12)
	assert.InDelta(t, 50, p2.RevolverRepaid, 1e-12)
	assert.Equal(t, 0.0, p2.RevolverBalance)
	assert.InDelta(t, 11, p2.Tranches[0].InterestPaid, 1e-12)
	assert.InDelta(t, 73.5, p2.Tranches[0].Closing, 1e-9)

	assert.Equal(t, 0.0, p3.Tranches[0].Closing)
	assert.InDelta(t, 19.15, p3.Distribution, 1e-9)
	assert.InDelta(t, 19.15, res.TotalDistributions, 1e-9)
	assert.Equal(t, 0.0, p3.CashBalance)
}

func TestReturns_RetainedCashAddsToExitEquity(t *testing.T) {
	res, err := Returns(mustLBO(t, assumption.LBOInput{
		PurchasePrice:      300,
		EquityContribution: 250,
		Tranches:           []assumption.DebtTranche{{Principal: 50}},
		CashFlows:          []float64{80, 80},
		ExitEBITDA:         40,
		Scenarios:          []assumption.ExitScenario{{ExitMultiple: 7}},
	}))
	require.NoError(t, err)

	sc := res.Scenarios[0]
	assert.Equal(t, 110.0, sc.ExitCash)
	assert.Equal(t, 280.0+110.0, sc.ExitEquity)
	assert.Equal(t, 0.0, res.TotalDistributions)
}

func TestReturns_TotalLoss(t *testing.T) {
	res, err := Returns(mustLBO(t, assumption.LBOInput{
		PurchasePrice:      1000,
		EquityContribution: 100,
		Tranches:           []assumption.DebtTranche{{Principal: 900, Rate: 0.1}},
		CashFlows:          []float64{0, 0, 0},
		ExitEBITDA:         50,
		Scenarios:          []assumption.ExitScenario{{ExitMultiple: 5}},
	}))
	require.NoError(t, err)

	sc := res.Scenarios[0]
	assert.Equal(t, 0.0, sc.ExitEquity)
	assert.Equal(t, -1.0, sc.IRR)
	assert.Equal(t, 0.0, sc.MOIC)
	assert.Equal(t, MethodTotalLoss, sc.Method)
}

func TestIRR_RoundTrip(t *testing.T) {
	for _, n := range []int{1, 3, 5, 10} {
		flows := make([]float64, n+1)
		flows[0] = -100
		flows[n] = 250

		sol, err := IRR(flows)
		require.NoError(t, err)
		assert.InDelta(t, math.Pow(2.5, 1/float64(n))-1, sol.Rate, 1e-8, "n=%d", n)
		assert.Less(t, math.Abs(NPV(sol.Rate, flows)), 1e-6)
	}
}

func TestIRR_NonConvergent(t *testing.T) {
	_, err := IRR([]float64{100, 100, 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIRRNonConvergent))

	var nc *IRRNonConvergentError
	require.True(t, errors.As(err, &nc))
	assert.Greater(t, nc.Iterations, 0)
}

func TestNPV(t *testing.T) {
	assert.InDelta(t, -100+110/1.1, NPV(0.1, []float64{-100, 110}), 1e-12)
	assert.Equal(t, 0.0, NPV(0.1, nil))
}

func TestAbilityToPay_PriceEarnsTarget(t *testing.T) {
	in := AbilityToPayInput{
		TargetEBITDA:       100,
		LeverageRatio:      4,
		InterestRate:       0.08,
		TaxRate:            0.25,
		ExitMultiple:       8,
		TargetIRR:          0.20,
		ProjectedEBITDA:    []float64{100, 100, 100},
		ProjectedCapex:     []float64{10, 10, 10},
		ProjectedChangeNWC: []float64{0, 0, 0},
	}
	atp, err := AbilityToPay(in)
	require.NoError(t, err)

	assert.Equal(t, 400.0, atp.DebtRaised)
	assert.InDelta(t, 73, atp.Periods[0].CashAvailable, 1e-9)
	assert.InDelta(t, 359, atp.Periods[0].TotalDebt, 1e-9)
	assert.InDelta(t, atp.MaxEntryEV/100, atp.ImpliedEntryMultiple, 1e-12)

	// Buying at the maximum price must earn exactly the target.
	res, err := Returns(mustLBO(t, assumption.LBOInput{
		PurchasePrice:      atp.MaxEntryEV,
		EquityContribution: atp.EquityCheck,
		Tranches:           []assumption.DebtTranche{{Principal: 400, Rate: 0.08}},
		RevolverRate:       0.08,
		EBITDA:             []float64{100, 100, 100},
		CapexRate:          0.1,
		TaxRate:            0.25,
		Scenarios:          []assumption.ExitScenario{{ExitMultiple: 8}},
	}))
	require.NoError(t, err)
	assert.InDelta(t, 0.20, res.IRR, 1e-8)
	assert.InDelta(t, atp.ExitEquityValue, res.Scenarios[0].ExitEquity, 1e-9)
}

func TestAbilityToPay_Invalid(t *testing.T) {
	_, err := AbilityToPay(AbilityToPayInput{
		TargetEBITDA:    0,
		ExitMultiple:    8,
		ProjectedEBITDA: []float64{100, 100},
		ProjectedCapex:  []float64{10},
	})
	var inv *assumption.InvalidError
	require.True(t, errors.As(err, &inv))
	assert.True(t, inv.HasField("target_ebitda"))
	assert.True(t, inv.HasField("projected_capex"))
	assert.True(t, inv.HasField("projected_change_nwc"))
	assert.False(t, inv.HasField("projected_da"))
}
