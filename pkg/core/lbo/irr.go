package lbo

import (
	"errors"
	"fmt"
	"math"
)

// Solver settings for IRR.
const (
	irrGuess         = 0.20
	irrTolerance     = 1e-6 // |NPV| at the accepted rate
	irrMaxIterations = 100
	bisectLow        = -0.9999
	bisectHigh       = 100.0
	bisectMaxIter    = 200
)

// ErrIRRNonConvergent is matched by *IRRNonConvergentError.
var ErrIRRNonConvergent = errors.New("irr did not converge")

// IRRNonConvergentError reports the closest estimate when no rate zeroes the NPV.
type IRRNonConvergentError struct {
	LastEstimate float64
	Iterations   int
}

func (e *IRRNonConvergentError) Error() string {
	return fmt.Sprintf("%v after %d iterations (last estimate %v)", ErrIRRNonConvergent, e.Iterations, e.LastEstimate)
}

func (e *IRRNonConvergentError) Is(target error) bool {
	return target == ErrIRRNonConvergent
}

// SolveMethod names how a scenario's IRR was obtained.
type SolveMethod string

const (
	MethodNewton    SolveMethod = "newton"
	MethodBisection SolveMethod = "bisection"
	MethodTarget    SolveMethod = "target"     // IRR was given, exit equity backed out
	MethodTotalLoss SolveMethod = "total_loss" // nothing returned to equity
)

// Solution is a solved internal rate of return.
type Solution struct {
	Rate       float64     `json:"rate"`
	Method     SolveMethod `json:"method"`
	Iterations int         `json:"iterations"`
}

// NPV discounts flows[t] at rate, flows[0] being undiscounted.
func NPV(rate float64, flows []float64) float64 {
	v, _ := npv(rate, flows)
	return v
}

// npv returns the NPV and its derivative with respect to rate.
func npv(rate float64, flows []float64) (float64, float64) {
	var v, d float64
	base := 1 + rate
	df := 1.0
	for t, cf := range flows {
		v += cf * df
		if t > 0 {
			d -= float64(t) * cf * df / base
		}
		df /= base
	}
	return v, d
}

// IRR solves NPV(r) = 0 by Newton-Raphson from 20%, falling back to
// bisection over [-99.99%, 10000%].
func IRR(flows []float64) (Solution, error) {
	r := irrGuess
	iter := 0
	for iter < irrMaxIterations {
		iter++
		v, d := npv(r, flows)
		if math.Abs(v) < irrTolerance {
			return Solution{Rate: r, Method: MethodNewton, Iterations: iter}, nil
		}
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			break
		}
		next := r - v/d
		if next <= -1 || math.IsNaN(next) || math.IsInf(next, 0) {
			break
		}
		r = next
	}

	lo, hi := bisectLow, bisectHigh
	flo, _ := npv(lo, flows)
	fhi, _ := npv(hi, flows)
	if math.IsNaN(flo) || math.IsNaN(fhi) || math.Signbit(flo) == math.Signbit(fhi) {
		return Solution{}, &IRRNonConvergentError{LastEstimate: r, Iterations: iter}
	}
	for i := 0; i < bisectMaxIter; i++ {
		iter++
		mid := lo + (hi-lo)/2
		fm, _ := npv(mid, flows)
		if math.Abs(fm) < irrTolerance || hi-lo < 1e-15 {
			return Solution{Rate: mid, Method: MethodBisection, Iterations: iter}, nil
		}
		if math.Signbit(fm) == math.Signbit(flo) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
		r = mid
	}
	return Solution{}, &IRRNonConvergentError{LastEstimate: r, Iterations: iter}
}
