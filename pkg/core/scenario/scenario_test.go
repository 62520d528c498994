package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuation_engine/pkg/core/assumption"
	"valuation_engine/pkg/core/montecarlo"
)

const strictDoc = `{
  "name": "acme",
  "assumptions": {
    "base_revenue": 1000,
    "growth": [{"value": 0.10, "duration": 5}],
    "margin": [{"value": 0.20, "duration": 5}],
    "wacc": 0.09,
    "tax_rate": 0.25,
    "terminal": {"method": "perpetuity", "growth": 0.02},
    "shares_outstanding": 100,
    "net_debt": 50
  },
  "monte_carlo": {"trials": 500, "growth_volatility": 0.02, "seed": 42},
  "sweep": {"axes": [{"field": "wacc", "min": 0.07, "max": 0.11, "steps": 5}]}
}`

const hjsonDoc = `
# acme base case, written by hand
name: acme
assumptions: {
  base_revenue: 1000
  growth: [
    {
      value: 0.10
      duration: 5
    }
  ]
  margin: [
    {
      value: 0.20
      duration: 5
    }
  ]
  wacc: 0.09
  tax_rate: 0.25
  terminal: {
    method: perpetuity
    growth: 0.02
  }
  shares_outstanding: 100
  net_debt: 50
}
`

func TestParse_StrictJSON(t *testing.T) {
	doc, err := Parse([]byte(strictDoc))
	require.NoError(t, err)

	assert.Equal(t, SyntaxJSON, doc.Syntax)
	assert.Equal(t, "acme", doc.Name)
	require.NotNil(t, doc.Assumptions)
	assert.Equal(t, 1000.0, doc.Assumptions.BaseRevenue)
	assert.Equal(t, assumption.TerminalPerpetuity, doc.Assumptions.Terminal.Method)

	require.NotNil(t, doc.MonteCarlo)
	require.NotNil(t, doc.MonteCarlo.Seed)
	assert.Equal(t, uint64(42), *doc.MonteCarlo.Seed)

	spec, err := doc.SweepSpec()
	require.NoError(t, err)
	require.Len(t, spec.Axes, 1)
	assert.Equal(t, assumption.FieldWACC, spec.Axes[0].Field)
}

func TestParse_HJSON(t *testing.T) {
	doc, err := Parse([]byte(hjsonDoc))
	require.NoError(t, err)

	assert.NotEqual(t, SyntaxJSON, doc.Syntax)
	assert.Equal(t, "acme", doc.Name)

	as, err := doc.AssumptionSet()
	require.NoError(t, err)
	assert.Equal(t, 5, as.Horizon())
	assert.Equal(t, 0.02, as.Terminal().Growth)
}

func TestParse_DamagedJSON(t *testing.T) {
	// Missing closing braces.
	damaged := `{"name": "acme", "assumptions": {"base_revenue": 1000, "growth": [{"value": 0.1, "duration": 5}], "margin": [{"value": 0.2, "duration": 5}], "wacc": 0.09, "tax_rate": 0.25, "terminal": {"method": "perpetuity", "growth": 0.02}, "shares_outstanding": 100, "net_debt": 50`

	doc, err := Parse([]byte(damaged))
	require.NoError(t, err)
	assert.NotEqual(t, SyntaxJSON, doc.Syntax)
	require.NotNil(t, doc.Assumptions)
	assert.Equal(t, 50.0, doc.Assumptions.NetDebt)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte(`[1, 2, 3]`))
	assert.Error(t, err)
}

func TestDocument_CAPMBuildsWACC(t *testing.T) {
	doc, err := Parse([]byte(strictDoc))
	require.NoError(t, err)

	doc.Assumptions.WACC = 0
	doc.CAPM = &assumption.CAPMInput{
		UnleveredBeta:     1.0,
		RiskFreeRate:      0.04,
		MarketRiskPremium: 0.05,
		PreTaxCostOfDebt:  0.06,
		TaxRate:           0.25,
	}
	as, err := doc.AssumptionSet()
	require.NoError(t, err)
	assert.InDelta(t, 0.09, as.WACC(), 1e-12)
}

func TestDocument_MissingSections(t *testing.T) {
	doc := &Document{Name: "empty"}

	_, err := doc.AssumptionSet()
	assert.True(t, errors.Is(err, ErrMissingSection))
	_, err = doc.LBOAssumptions()
	assert.True(t, errors.Is(err, ErrMissingSection))
	_, err = doc.SweepSpec()
	assert.True(t, errors.Is(err, ErrMissingSection))

	fallback := montecarlo.Config{Trials: 10}
	assert.Equal(t, fallback, doc.SimulationConfig(fallback))
}

func TestDocument_InvalidAssumptions(t *testing.T) {
	doc, err := Parse([]byte(strictDoc))
	require.NoError(t, err)
	doc.Assumptions.Terminal.Growth = 0.09

	_, err = doc.AssumptionSet()
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acme.hjson")
	require.NoError(t, os.WriteFile(path, []byte(hjsonDoc), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", doc.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_HJSONKeepsLargeSeed(t *testing.T) {
	// 2^53 + 1 is not representable as a float64.
	doc, err := Parse([]byte("name: acme\nmonte_carlo: {\n  trials: 10\n  seed: 9007199254740993\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, SyntaxHJSON, doc.Syntax)
	require.NotNil(t, doc.MonteCarlo)
	require.NotNil(t, doc.MonteCarlo.Seed)
	assert.Equal(t, uint64(9007199254740993), *doc.MonteCarlo.Seed)
}
