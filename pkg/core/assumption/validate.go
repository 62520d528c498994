package assumption

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidAssumption is matched by every *InvalidError through errors.Is.
var ErrInvalidAssumption = errors.New("invalid assumption")

// Violation describes one broken input invariant.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// InvalidError carries the full list of violations found while validating an input.
type InvalidError struct {
	Violations []Violation `json:"violations"`
}

func (e *InvalidError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%v: %s", ErrInvalidAssumption, strings.Join(parts, "; "))
}

func (e *InvalidError) Is(target error) bool {
	return target == ErrInvalidAssumption
}

// HasField reports whether any violation refers to field.
func (e *InvalidError) HasField(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field || strings.HasPrefix(v.Field, field+"[") {
			return true
		}
	}
	return false
}

// Invalid builds an *InvalidError with a single violation.
func Invalid(field, format string, args ...any) *InvalidError {
	return &InvalidError{Violations: []Violation{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// checker collects violations instead of stopping at the first one.
type checker struct {
	violations []Violation
}

func (c *checker) add(field, format string, args ...any) {
	c.violations = append(c.violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// finite records a violation and returns false when v is NaN or infinite.
func (c *checker) finite(field string, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c.add(field, "must be a finite number, got %v", v)
		return false
	}
	return true
}

func (c *checker) err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &InvalidError{Violations: c.violations}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// stageRule checks one stage value; it returns an empty string when the value is acceptable.
type stageRule func(v float64) string

func (c *checker) stages(field string, s Stages, horizon int, required bool, rule stageRule) {
	if len(s) == 0 {
		if required {
			c.add(field, "at least one stage is required")
		}
		return
	}
	for i, st := range s {
		name := fmt.Sprintf("%s[%d]", field, i)
		if st.Duration < 0 {
			c.add(name, "duration must not be negative, got %d", st.Duration)
		}
		if !c.finite(name, st.Value) {
			continue
		}
		if msg := rule(st.Value); msg != "" {
			c.add(name, "%s", msg)
		}
	}
	if covered := s.Horizon(); covered != horizon {
		c.add(field, "stage durations sum to %d, horizon is %d", covered, horizon)
	}
}

func validate(in Input) error {
	c := &checker{}

	if c.finite("base_revenue", in.BaseRevenue) && in.BaseRevenue <= 0 {
		c.add("base_revenue", "must be positive, got %v", in.BaseRevenue)
	}
	if in.Horizon < 1 {
		c.add("horizon", "must cover at least one period, got %d", in.Horizon)
	}

	c.stages("growth", in.Growth, in.Horizon, true, func(v float64) string {
		if v <= -1 {
			return fmt.Sprintf("growth must be greater than -1, got %v", v)
		}
		return ""
	})
	c.stages("margin", in.Margin, in.Horizon, true, func(v float64) string {
		if v < -1 || v > 1 {
			return fmt.Sprintf("margin must be within [-1, 1], got %v", v)
		}
		return ""
	})
	c.stages("sales_to_capital", in.SalesToCapital, in.Horizon, false, func(v float64) string {
		if v <= 0 {
			return fmt.Sprintf("sales-to-capital must be positive, got %v", v)
		}
		return ""
	})

	waccOK := c.finite("wacc", in.WACC)
	if waccOK && (in.WACC <= 0 || in.WACC >= 1) {
		c.add("wacc", "must be within (0, 1), got %v", in.WACC)
	}
	if c.finite("tax_rate", in.TaxRate) && (in.TaxRate < 0 || in.TaxRate >= 1) {
		c.add("tax_rate", "must be within [0, 1), got %v", in.TaxRate)
	}
	if c.finite("depreciation_rate", in.DepreciationRate) && (in.DepreciationRate < 0 || in.DepreciationRate >= 1) {
		c.add("depreciation_rate", "must be within [0, 1), got %v", in.DepreciationRate)
	}

	switch in.Terminal.Method {
	case TerminalPerpetuity:
		if c.finite("terminal_growth", in.Terminal.Growth) {
			if in.Terminal.Growth <= -1 {
				c.add("terminal_growth", "must be greater than -1, got %v", in.Terminal.Growth)
			}
			if waccOK && in.WACC <= in.Terminal.Growth {
				c.add("terminal_growth", "must be below WACC (%v) for the perpetuity method, got %v", in.WACC, in.Terminal.Growth)
			}
		}
	case TerminalExitMultiple:
		if c.finite("exit_multiple", in.Terminal.Multiple) && in.Terminal.Multiple <= 0 {
			c.add("exit_multiple", "must be positive, got %v", in.Terminal.Multiple)
		}
	default:
		c.add("terminal_method", "unknown method %q", in.Terminal.Method)
	}

	if c.finite("shares_outstanding", in.SharesOutstanding) && in.SharesOutstanding <= 0 {
		c.add("shares_outstanding", "must be positive, got %v", in.SharesOutstanding)
	}
	c.finite("net_debt", in.NetDebt)

	return c.err()
}
