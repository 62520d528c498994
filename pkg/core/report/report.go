// Package report renders engine results as Markdown tables, with an HTML
// conversion for browsers.
package report

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"valuation_engine/pkg/core/lbo"
	"valuation_engine/pkg/core/montecarlo"
	"valuation_engine/pkg/core/projection"
	"valuation_engine/pkg/core/sensitivity"
)

// ============================================================================
// Formatting
// ============================================================================

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// money rounds half away from zero to cents.
func money(v float64) string {
	if !finite(v) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func pct(v float64) string {
	if !finite(v) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}

func multiple(v float64) string {
	if !finite(v) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2) + "x"
}

func row(sb *strings.Builder, cells ...string) {
	sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func header(sb *strings.Builder, cells ...string) {
	row(sb, cells...)
	sep := make([]string, len(cells))
	for i := range sep {
		sep[i] = "---"
	}
	row(sb, sep...)
}

// ============================================================================
// Renderers
// ============================================================================

// Projection renders the period table and the valuation bridge.
func Projection(title string, res *projection.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))

	sb.WriteString("## Projection\n\n")
	header(&sb, "Period", "Growth", "Margin", "Revenue", "EBIT", "NOPAT", "Reinvestment", "FCFF", "Discount Factor", "PV")
	for _, p := range res.Periods {
		row(&sb, fmt.Sprintf("%d", p.Period), pct(p.Growth), pct(p.Margin), money(p.Revenue), money(p.EBIT),
			money(p.NOPAT), money(p.Reinvestment), money(p.FCFF), fmt.Sprintf("%.4f", p.DiscountFactor), money(p.PresentValue))
	}

	tv := res.Terminal
	sb.WriteString("\n## Terminal Value\n\n")
	header(&sb, "Item", "Value")
	row(&sb, "Method", string(tv.Method))
	row(&sb, "Terminal value", money(tv.Value))
	row(&sb, "PV of terminal value", money(tv.PresentValue))
	row(&sb, "Share of EV", pct(tv.ShareOfEV))
	row(&sb, "Implied exit multiple", multiple(tv.ImpliedMultiple))
	row(&sb, "Implied perpetual growth", pct(tv.ImpliedGrowth))

	sb.WriteString("\n## Valuation\n\n")
	header(&sb, "Item", "Value")
	row(&sb, "PV of explicit FCFF", money(res.PVExplicit))
	row(&sb, "Enterprise value", money(res.EnterpriseValue))
	row(&sb, "Net debt", money(res.NetDebt))
	row(&sb, "Equity value", money(res.EquityValue))
	row(&sb, "Value per share", money(res.ValuePerShare))
	return sb.String()
}

// Simulation renders the distribution summary, percentiles and histogram.
func Simulation(title string, res *montecarlo.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))

	status := "complete"
	if !res.Complete {
		status = fmt.Sprintf("partial (%s)", res.State)
	}
	sb.WriteString(fmt.Sprintf("Trials: %d of %d, %s. Seed: %d.\n\n", res.TrialsCompleted, res.TrialsRequested, status, res.Seed))

	if res.TrialsCompleted == 0 {
		sb.WriteString("No trials completed.\n")
		return sb.String()
	}

	header(&sb, "Statistic", "Value per share")
	row(&sb, "Mean", money(res.Mean))
	row(&sb, "Median", money(res.Median))
	row(&sb, "Std dev", money(res.StdDev))
	row(&sb, "Min", money(res.Min))
	row(&sb, "Max", money(res.Max))
	for _, p := range res.Percentiles {
		row(&sb, "P"+decimal.NewFromFloat(p.P).Shift(2).String(), money(p.Value))
	}

	sb.WriteString("\n## Histogram\n\n")
	header(&sb, "From", "To", "Trials", "Share")
	for _, b := range res.Histogram {
		row(&sb, money(b.Lower), money(b.Upper), fmt.Sprintf("%d", b.Count), pct(float64(b.Count)/float64(res.TrialsCompleted)))
	}
	return sb.String()
}

// Sweep renders a one-axis sweep as a column and a two-axis sweep as a grid.
// The baseline row and column are marked with an asterisk.
func Sweep(title string, res *sensitivity.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Metric: %s\n\n", res.Metric))

	label := func(ax sensitivity.AxisResult, i int) string {
		s := decimal.NewFromFloat(ax.Values[i]).Round(6).String()
		if i == ax.BaselineIndex {
			s += "*"
		}
		return s
	}
	cell := func(c sensitivity.Cell) string {
		if !c.Valid {
			return "invalid"
		}
		return money(c.Value)
	}

	rows := res.Axes[0]
	if len(res.Axes) == 1 {
		header(&sb, string(rows.Field), string(res.Metric))
		for i, c := range res.Series() {
			row(&sb, label(rows, i), cell(c))
		}
	} else {
		cols := res.Axes[1]
		head := []string{string(rows.Field) + " \\ " + string(cols.Field)}
		for j := range cols.Values {
			head = append(head, label(cols, j))
		}
		header(&sb, head...)
		for i, r := range res.Cells {
			line := []string{label(rows, i)}
			for _, c := range r {
				line = append(line, cell(c))
			}
			row(&sb, line...)
		}
	}

	var invalid []string
	for _, r := range res.Cells {
		for _, c := range r {
			if !c.Valid {
				invalid = append(invalid, fmt.Sprintf("- %v: %s", c.Coordinates, c.Error))
			}
		}
	}
	if len(invalid) > 0 {
		sb.WriteString("\n## Invalid points\n\n")
		sb.WriteString(strings.Join(invalid, "\n") + "\n")
	}
	return sb.String()
}

// LBO renders the debt schedule, tranche totals and the exit scenarios.
func LBO(title string, res *lbo.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Equity invested: %s. Debt raised: %s.\n\n", money(res.EquityInvested), money(res.InitialDebt)))

	sb.WriteString("## Debt Schedule\n\n")
	head := []string{"Period", "EBITDA", "Cash Available", "Debt Service"}
	if len(res.Periods) > 0 {
		for _, tr := range res.Periods[0].Tranches {
			head = append(head, tr.Name)
		}
	}
	head = append(head, "Revolver", "Cash", "Distribution", "Total Debt")
	header(&sb, head...)
	for _, p := range res.Periods {
		line := []string{fmt.Sprintf("%d", p.Period), money(p.EBITDA), money(p.CashAvailable), money(p.DebtService)}
		for _, tr := range p.Tranches {
			line = append(line, money(tr.Closing))
		}
		line = append(line, money(p.RevolverBalance), money(p.CashBalance), money(p.Distribution), money(p.TotalDebt))
		row(&sb, line...)
	}

	sb.WriteString("\n## Tranches\n\n")
	header(&sb, "Tranche", "Priority", "Principal", "Rate", "Interest Paid", "Principal Repaid", "Closing", "Repaid In")
	for _, t := range res.Tranches {
		repaid := "-"
		if t.RepaidInPeriod > 0 {
			repaid = fmt.Sprintf("period %d", t.RepaidInPeriod)
		}
		row(&sb, t.Name, fmt.Sprintf("%d", t.Priority), money(t.Principal), pct(t.Rate), money(t.InterestPaid),
			money(t.PrincipalRepaid), money(t.Closing), repaid)
	}

	sb.WriteString("\n## Exit Scenarios\n\n")
	header(&sb, "Scenario", "Exit Multiple", "Exit EV", "Exit Debt", "Exit Equity", "IRR", "MOIC", "Method")
	for _, s := range res.Scenarios {
		row(&sb, s.Name, multiple(s.ExitMultiple), money(s.ExitEV), money(s.ExitDebt), money(s.ExitEquity),
			pct(s.IRR), multiple(s.MOIC), string(s.Method))
	}
	return sb.String()
}

// AbilityToPay renders the maximum entry price analysis.
func AbilityToPay(title string, res lbo.AbilityToPayResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	header(&sb, "Item", "Value")
	row(&sb, "Max entry EV", money(res.MaxEntryEV))
	row(&sb, "Implied entry multiple", multiple(res.ImpliedEntryMultiple))
	row(&sb, "Equity check", money(res.EquityCheck))
	row(&sb, "Debt raised", money(res.DebtRaised))
	row(&sb, "Exit equity", money(res.ExitEquityValue))
	row(&sb, "Debt at exit", money(res.ExitDebt))
	return sb.String()
}

// HTML converts a rendered report to HTML. Tables use the GFM extension.
func HTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}
