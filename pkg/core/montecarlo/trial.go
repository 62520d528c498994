package montecarlo

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"valuation_engine/pkg/core/assumption"
	"valuation_engine/pkg/core/projection"
)

// correlator maps two independent standard normals onto a correlated pair
// using the lower Cholesky factor of [[1, rho], [rho, 1]].
type correlator struct {
	l10, l11 float64
}

func newCorrelator(rho float64) (correlator, error) {
	sym := mat.NewSymDense(2, []float64{1, rho, rho, 1})
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return correlator{}, fmt.Errorf("correlation matrix with rho=%v is not positive definite", rho)
	}
	var l mat.TriDense
	chol.LTo(&l)
	return correlator{l10: l.At(1, 0), l11: l.At(1, 1)}, nil
}

func (c correlator) apply(z1, z2 float64) (float64, float64) {
	return z1, c.l10*z1 + c.l11*z2
}

// sampler holds everything a trial needs. It is read-only once built, so
// workers share it without locking.
type sampler struct {
	base    *assumption.AssumptionSet
	cfg     Config
	seed    uint64
	corr    correlator
	project projectFunc
}

// projectFunc values one perturbed set; projection.Project outside tests.
type projectFunc func(*assumption.AssumptionSet) (*projection.Result, error)

// shocks draws the variates of trial i. The stream is keyed on (seed, i) only,
// so the draw does not depend on batching, worker count, or execution order.
func (s *sampler) shocks(i int) (dGrowth, dMargin, s2cFactor float64) {
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(s.seed, uint64(i))}
	z1 := normal.Rand()
	z2 := normal.Rand()
	z3 := normal.Rand()

	eg, em := s.corr.apply(z1, z2)
	return s.cfg.GrowthVolatility * eg, s.cfg.MarginVolatility * em, 1 + s.cfg.SalesToCapitalVolatility*z3
}

// trial runs trial i and returns its value per share.
func (s *sampler) trial(i int) (float64, error) {
	dg, dm, f := s.shocks(i)
	res, err := s.project(s.base.Perturbed(dg, dm, f))
	if err != nil {
		return 0, fmt.Errorf("trial %d: %w", i, err)
	}
	return res.ValuePerShare, nil
}
