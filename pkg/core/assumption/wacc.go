package assumption

// CAPMInput parameters for building a discount rate from capital-market inputs.
type CAPMInput struct {
	UnleveredBeta     float64 `json:"unlevered_beta"`
	RiskFreeRate      float64 `json:"risk_free_rate"`
	MarketRiskPremium float64 `json:"market_risk_premium"`
	PreTaxCostOfDebt  float64 `json:"pre_tax_cost_of_debt"`
	TaxRate           float64 `json:"tax_rate"`
	DebtToEquityRatio float64 `json:"debt_to_equity"` // target leverage (D/E)
}

// WACCBreakdown holds the intermediate rates behind a WACC.
type WACCBreakdown struct {
	LeveredBeta  float64 `json:"levered_beta"`
	CostOfEquity float64 `json:"cost_of_equity"`
	CostOfDebt   float64 `json:"cost_of_debt"` // after-tax
	WACC         float64 `json:"wacc"`
	WeightDebt   float64 `json:"weight_debt"`
	WeightEquity float64 `json:"weight_equity"`
}

// WACCFromCAPM computes the weighted average cost of capital using CAPM and the Hamada equation.
// The result feeds Input.WACC; it is not validated here.
func WACCFromCAPM(in CAPMInput) WACCBreakdown {
	// BetaL = BetaU * (1 + (1-t)*(D/E))
	leveredBeta := in.UnleveredBeta * (1 + (1-in.TaxRate)*in.DebtToEquityRatio)

	// Ke = Rf + BetaL * ERP
	ke := in.RiskFreeRate + leveredBeta*in.MarketRiskPremium

	kd := in.PreTaxCostOfDebt * (1 - in.TaxRate)

	// D = xE, V = E(1+x)
	wd := in.DebtToEquityRatio / (1 + in.DebtToEquityRatio)
	we := 1.0 / (1 + in.DebtToEquityRatio)

	return WACCBreakdown{
		LeveredBeta:  leveredBeta,
		CostOfEquity: ke,
		CostOfDebt:   kd,
		WACC:         ke*we + kd*wd,
		WeightDebt:   wd,
		WeightEquity: we,
	}
}
