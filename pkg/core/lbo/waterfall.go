package lbo

import (
	"fmt"
	"math"

	"valuation_engine/pkg/core/assumption"
)

// settled is the relative balance below which a tranche counts as repaid.
const settled = 1e-9

// schedule is the price-independent part of a buyout: what the business
// generates each period and the debt it has to service.
type schedule struct {
	n         int
	ebitda    []float64 // nil when only explicit cash flows are known
	cashFlows []float64
	capex     []float64
	nwc       []float64
	da        []float64
	taxRate   float64

	basis        assumption.CashFlowBasis
	distribute   bool
	tranches     []assumption.DebtTranche // seniority order
	revolverRate float64
}

func fromAssumptions(la *assumption.LBOAssumptions) *schedule {
	s := &schedule{
		n:            la.HoldingPeriod(),
		ebitda:       la.EBITDA(),
		cashFlows:    la.CashFlows(),
		taxRate:      la.TaxRate(),
		basis:        la.Basis(),
		distribute:   la.DistributeExcess(),
		tranches:     la.Tranches(),
		revolverRate: la.RevolverRate(),
	}
	if len(s.ebitda) == 0 {
		return s
	}
	s.capex = scaled(s.ebitda, la.CapexRate())
	s.nwc = scaled(s.ebitda, la.NWCRate())
	s.da = scaled(s.ebitda, la.DARate())
	return s
}

func scaled(xs []float64, rate float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * rate
	}
	return out
}

// waterfall is the outcome of running a schedule to the exit date.
type waterfall struct {
	periods       []Period
	tranches      []TrancheSummary
	distributions []float64
	exitDebt      float64
	exitCash      float64
}

func (w *waterfall) totalDistributions() float64 {
	total := 0.0
	for _, d := range w.distributions {
		total += d
	}
	return total
}

// cashAt fills the operating lines of p and returns the cash generated in
// period t. accrued is the interest accrued on opening balances.
func (s *schedule) cashAt(t int, accrued float64, p *Period) float64 {
	if len(s.ebitda) > 0 {
		p.EBITDA = s.ebitda[t-1]
	}
	if len(s.cashFlows) > 0 {
		return s.cashFlows[t-1]
	}

	p.Capex = s.capex[t-1]
	p.ChangeNWC = s.nwc[t-1]
	if taxable := p.EBITDA - s.da[t-1] - accrued; taxable > 0 {
		p.Taxes = taxable * s.taxRate
	}
	cash := p.EBITDA - p.Taxes - p.Capex - p.ChangeNWC
	if s.basis == assumption.BasisPostInterest {
		cash -= accrued
	}
	return cash
}

// run applies each period's cash in strict seniority: revolver, then tranches
// by priority, interest before principal within each. Interest not paid is
// added to the balance. A deficit is funded by a revolver draw.
func (s *schedule) run() *waterfall {
	w := &waterfall{
		periods:       make([]Period, 0, s.n),
		tranches:      make([]TrancheSummary, len(s.tranches)),
		distributions: make([]float64, s.n),
	}
	bal := make([]float64, len(s.tranches))
	for i, tr := range s.tranches {
		bal[i] = tr.Principal
		w.tranches[i] = TrancheSummary{Name: tr.Name, Principal: tr.Principal, Rate: tr.Rate, Priority: tr.Priority, Closing: tr.Principal}
	}
	postInterest := s.basis == assumption.BasisPostInterest

	revolver, cash := 0.0, 0.0
	for t := 1; t <= s.n; t++ {
		p := Period{Period: t, OpeningCash: cash, Tranches: make([]TrancheFlow, len(s.tranches))}

		p.RevolverInterest = revolver * s.revolverRate
		accrued := p.RevolverInterest
		for i, tr := range s.tranches {
			p.Tranches[i] = TrancheFlow{Name: tr.Name, Opening: bal[i], Interest: bal[i] * tr.Rate}
			accrued += p.Tranches[i].Interest
		}
		p.CashAvailable = s.cashAt(t, accrued, &p)

		avail := p.CashAvailable + cash
		cash = 0
		if avail < 0 {
			p.RevolverDraw = -avail
			avail = 0
		}
		pay := func(owed float64) float64 {
			x := math.Max(0, math.Min(owed, avail))
			avail -= x
			p.DebtService += x
			return x
		}

		revolverInterestPaid := p.RevolverInterest
		if !postInterest {
			revolverInterestPaid = pay(p.RevolverInterest)
		}
		revolver += p.RevolverInterest - revolverInterestPaid
		p.RevolverRepaid = pay(revolver)
		revolver -= p.RevolverRepaid
		revolver += p.RevolverDraw
		p.RevolverBalance = revolver

		for i := range p.Tranches {
			f := &p.Tranches[i]
			if postInterest {
				f.InterestPaid = f.Interest
			} else {
				f.InterestPaid = pay(f.Interest)
			}
			owed := f.Opening + (f.Interest - f.InterestPaid)
			f.Principal = pay(owed)
			f.Closing = owed - f.Principal
			if f.Closing <= settled*math.Max(1, s.tranches[i].Principal) {
				f.Closing = 0
			}
			bal[i] = f.Closing

			sum := &w.tranches[i]
			sum.InterestPaid += f.InterestPaid
			sum.PrincipalRepaid += f.Principal
			sum.Closing = f.Closing
			if f.Closing == 0 && sum.RepaidInPeriod == 0 && s.tranches[i].Principal > 0 {
				sum.RepaidInPeriod = t
			}
			p.TotalDebt += f.Closing
		}
		p.TotalDebt += revolver

		if s.distribute {
			p.Distribution = avail
			w.distributions[t-1] = avail
		} else {
			cash = avail
		}
		p.CashBalance = cash
		w.periods = append(w.periods, p)
	}

	w.exitDebt = revolver
	for _, b := range bal {
		w.exitDebt += b
	}
	w.exitCash = cash
	return w
}

// Returns runs the waterfall and values every exit scenario.
func Returns(la *assumption.LBOAssumptions) (*Result, error) {
	w := fromAssumptions(la).run()

	res := &Result{
		EquityInvested:     la.EquityContribution(),
		InitialDebt:        la.InitialDebt(),
		Periods:            w.periods,
		Tranches:           w.tranches,
		TotalDistributions: w.totalDistributions(),
	}
	for _, sc := range la.Scenarios() {
		out, err := evaluate(la.EquityContribution(), la.ExitEBITDA(), sc, w)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		res.Scenarios = append(res.Scenarios, out)
	}
	res.IRR = res.Scenarios[0].IRR
	res.MOIC = res.Scenarios[0].MOIC
	return res, nil
}

func evaluate(equity, exitEBITDA float64, sc assumption.ExitScenario, w *waterfall) (ScenarioResult, error) {
	out := ScenarioResult{
		Name:       sc.Name,
		TargetIRR:  sc.TargetIRR,
		ExitEBITDA: exitEBITDA,
		ExitDebt:   w.exitDebt,
		ExitCash:   w.exitCash,
	}
	interim := w.totalDistributions()

	if sc.TargetIRR != nil {
		r := *sc.TargetIRR
		out.ExitEquity = requiredExitEquity(equity, w.distributions, r)
		out.ExitEV = out.ExitEquity + w.exitDebt - w.exitCash
		if exitEBITDA > 0 {
			out.ExitMultiple = out.ExitEV / exitEBITDA
		}
		out.IRR = r
		out.MOIC = (interim + out.ExitEquity) / equity
		out.Method = MethodTarget
		return out, nil
	}

	out.ExitMultiple = sc.ExitMultiple
	out.ExitEV = exitEBITDA * sc.ExitMultiple
	out.ExitEquity = math.Max(0, out.ExitEV-w.exitDebt+w.exitCash)
	out.MOIC = (interim + out.ExitEquity) / equity
	if interim+out.ExitEquity <= 0 {
		out.IRR = -1
		out.Method = MethodTotalLoss
		return out, nil
	}

	sol, err := IRR(equityFlows(equity, w.distributions, out.ExitEquity))
	if err != nil {
		return out, err
	}
	out.IRR = sol.Rate
	out.Method = sol.Method
	out.Iterations = sol.Iterations
	return out, nil
}

// equityFlows is the sponsor's stream: the cheque at t=0, interim
// distributions, exit proceeds in the final period.
func equityFlows(equity float64, distributions []float64, exitEquity float64) []float64 {
	flows := make([]float64, len(distributions)+1)
	flows[0] = -equity
	copy(flows[1:], distributions)
	flows[len(flows)-1] += exitEquity
	return flows
}

// requiredExitEquity is the exit proceeds that make the stream earn exactly r.
func requiredExitEquity(equity float64, distributions []float64, r float64) float64 {
	n := len(distributions)
	x := equity * math.Pow(1+r, float64(n))
	for t, d := range distributions {
		x -= d * math.Pow(1+r, float64(n-t-1))
	}
	return x
}
