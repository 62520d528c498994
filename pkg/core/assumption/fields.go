package assumption

import (
	"fmt"
	"math"
)

// Field names an assumption that can be read or overridden as a single number.
// For stage sequences the number is the first stage's value, and an override
// shifts every stage by the same amount so the ramp shape is kept.
type Field string

const (
	FieldWACC           Field = "wacc"
	FieldTerminalGrowth Field = "terminal_growth"
	FieldExitMultiple   Field = "exit_multiple"
	FieldTaxRate        Field = "tax_rate"
	FieldGrowth         Field = "growth"
	FieldMargin         Field = "margin"
	FieldSalesToCapital Field = "sales_to_capital"
	FieldBaseRevenue    Field = "base_revenue"
	FieldNetDebt        Field = "net_debt"
)

// Fields lists every overridable field.
var Fields = []Field{
	FieldWACC, FieldTerminalGrowth, FieldExitMultiple, FieldTaxRate,
	FieldGrowth, FieldMargin, FieldSalesToCapital, FieldBaseRevenue, FieldNetDebt,
}

// Value returns the current value of field.
func (as *AssumptionSet) Value(f Field) (float64, error) {
	in := as.in
	switch f {
	case FieldWACC:
		return in.WACC, nil
	case FieldTerminalGrowth:
		if in.Terminal.Method != TerminalPerpetuity {
			return 0, fmt.Errorf("field %s requires the perpetuity terminal method", f)
		}
		return in.Terminal.Growth, nil
	case FieldExitMultiple:
		if in.Terminal.Method != TerminalExitMultiple {
			return 0, fmt.Errorf("field %s requires the exit multiple terminal method", f)
		}
		return in.Terminal.Multiple, nil
	case FieldTaxRate:
		return in.TaxRate, nil
	case FieldGrowth:
		return in.Growth[0].Value, nil
	case FieldMargin:
		return in.Margin[0].Value, nil
	case FieldSalesToCapital:
		if len(in.SalesToCapital) == 0 {
			return 0, fmt.Errorf("field %s is not modeled in this scenario", f)
		}
		return in.SalesToCapital[0].Value, nil
	case FieldBaseRevenue:
		return in.BaseRevenue, nil
	case FieldNetDebt:
		return in.NetDebt, nil
	}
	return 0, fmt.Errorf("unknown field %q", f)
}

// Override sets one field to Value.
type Override struct {
	Field Field
	Value float64
}

// With returns a new, re-validated set with field set to v.
func (as *AssumptionSet) With(f Field, v float64) (*AssumptionSet, error) {
	return as.WithValues(Override{Field: f, Value: v})
}

// WithValues applies every override to one copy of the input and validates
// the result once, so intermediate combinations are never checked.
func (as *AssumptionSet) WithValues(overrides ...Override) (*AssumptionSet, error) {
	in := as.Input()
	for _, o := range overrides {
		current, err := as.Value(o.Field)
		if err != nil {
			return nil, err
		}
		set(&in, o.Field, o.Value, current)
	}
	return New(in)
}

func set(in *Input, f Field, v, current float64) {
	switch f {
	case FieldWACC:
		in.WACC = v
	case FieldTerminalGrowth:
		in.Terminal.Growth = v
	case FieldExitMultiple:
		in.Terminal.Multiple = v
	case FieldTaxRate:
		in.TaxRate = v
	case FieldGrowth:
		in.Growth = in.Growth.Shift(v - current)
		in.Growth[0].Value = v
	case FieldMargin:
		in.Margin = in.Margin.Shift(v - current)
		in.Margin[0].Value = v
	case FieldSalesToCapital:
		in.SalesToCapital = in.SalesToCapital.Shift(v - current)
		in.SalesToCapital[0].Value = v
	case FieldBaseRevenue:
		in.BaseRevenue = v
	case FieldNetDebt:
		in.NetDebt = v
	}
}

// Bounds applied to Monte Carlo perturbations so a shocked copy always stays valid.
const (
	minPerturbedGrowth    = -0.99
	minSalesToCapitalMult = 0.05
)

// Perturbed returns a copy with dGrowth and dMargin added to every growth and
// margin stage and every sales-to-capital stage multiplied by s2cFactor.
// Shocked values are clamped into their valid ranges instead of failing the trial.
func (as *AssumptionSet) Perturbed(dGrowth, dMargin, s2cFactor float64) *AssumptionSet {
	in := as.Input()
	for i := range in.Growth {
		in.Growth[i].Value = math.Max(in.Growth[i].Value+dGrowth, minPerturbedGrowth)
	}
	for i := range in.Margin {
		in.Margin[i].Value = math.Min(math.Max(in.Margin[i].Value+dMargin, -1), 1)
	}
	factor := math.Max(s2cFactor, minSalesToCapitalMult)
	for i := range in.SalesToCapital {
		in.SalesToCapital[i].Value *= factor
	}
	return &AssumptionSet{in: in}
}
