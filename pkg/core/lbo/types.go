// Package lbo computes sponsor returns for a leveraged buyout: the debt
// waterfall over the holding period, exit equity per scenario, IRR and MOIC.
package lbo

// TrancheFlow is one tranche's movement in a period.
type TrancheFlow struct {
	Name         string  `json:"name"`
	Opening      float64 `json:"opening"`
	Interest     float64 `json:"interest"`
	InterestPaid float64 `json:"interest_paid"`
	Principal    float64 `json:"principal"`
	Closing      float64 `json:"closing"` // includes capitalised interest
}

// Period is one year of the waterfall.
type Period struct {
	Period    int     `json:"period"`
	EBITDA    float64 `json:"ebitda"`
	Taxes     float64 `json:"taxes"`
	Capex     float64 `json:"capex"`
	ChangeNWC float64 `json:"change_nwc"`

	CashAvailable float64 `json:"cash_available"` // generated this period
	OpeningCash   float64 `json:"opening_cash"`   // retained from earlier periods
	DebtService   float64 `json:"debt_service"`   // cash applied to interest and principal

	Tranches         []TrancheFlow `json:"tranches"`
	RevolverInterest float64       `json:"revolver_interest"`
	RevolverDraw     float64       `json:"revolver_draw"`
	RevolverRepaid   float64       `json:"revolver_repaid"`
	RevolverBalance  float64       `json:"revolver_balance"`

	Distribution float64 `json:"distribution"`
	CashBalance  float64 `json:"cash_balance"`
	TotalDebt    float64 `json:"total_debt"`
}

// TrancheSummary totals one tranche over the holding period.
type TrancheSummary struct {
	Name            string  `json:"name"`
	Principal       float64 `json:"principal"`
	Rate            float64 `json:"rate"`
	Priority        int     `json:"priority"`
	InterestPaid    float64 `json:"interest_paid"`
	PrincipalRepaid float64 `json:"principal_repaid"`
	Closing         float64 `json:"closing"`
	RepaidInPeriod  int     `json:"repaid_in_period"` // 0 when still outstanding at exit
}

// ScenarioResult is the exit valuation and returns of one scenario.
type ScenarioResult struct {
	Name         string   `json:"name"`
	ExitMultiple float64  `json:"exit_multiple"` // implied when TargetIRR is set
	TargetIRR    *float64 `json:"target_irr,omitempty"`

	ExitEBITDA float64 `json:"exit_ebitda"`
	ExitEV     float64 `json:"exit_ev"`
	ExitDebt   float64 `json:"exit_debt"`
	ExitCash   float64 `json:"exit_cash"`
	ExitEquity float64 `json:"exit_equity"`

	IRR        float64     `json:"irr"`
	MOIC       float64     `json:"moic"`
	Method     SolveMethod `json:"method"`
	Iterations int         `json:"iterations"`
}

// Result is the full buyout analysis. IRR and MOIC repeat the first scenario.
type Result struct {
	EquityInvested     float64          `json:"equity_invested"`
	InitialDebt        float64          `json:"initial_debt"`
	Periods            []Period         `json:"periods"`
	Tranches           []TrancheSummary `json:"tranches"`
	TotalDistributions float64          `json:"total_distributions"` // interim, before exit
	Scenarios          []ScenarioResult `json:"scenarios"`

	IRR  float64 `json:"irr"`
	MOIC float64 `json:"moic"`
}
