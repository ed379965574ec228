// Package maxfactor fits a heteroskedastic variance model to per-bin
// observations x with expected means m, by maximum likelihood under a
// pluggable density family, and turns the fit into right-tail p-values.
//
// The optimizer is a damped Newton-Raphson in log-parameter space: every
// candidate is F·exp(a·dF), so parameters stay strictly positive whatever
// the step size. A Fitter holds configuration only; Fit, Solve and Eval may
// be called concurrently on independent inputs.
package maxfactor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/CK6170/MaxFactor-go/matrix"
)

const (
	DefaultMaxIter   = 100
	DefaultTolerance = 1e-7
)

// Status is the terminal state of a fit.
type Status int

const (
	// StatusConverged means the last line search improved the objective by
	// no more than the tolerance.
	StatusConverged Status = iota
	// StatusIterationsExhausted means the iteration budget ran out first.
	StatusIterationsExhausted
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusIterationsExhausted:
		return "iterations-exhausted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Iteration is one step of the optimizer as reported to a trace hook.
type Iteration struct {
	Iter     int
	F        []float64 // parameters the step started from
	NewF     []float64 // last candidate evaluated by the line search
	Gradient []float64 // d objective / dF at F
	Step     []float64 // log-space Newton direction
	StepSize float64   // accepted line-search multiplier; 0 if none was found
	Obj      float64
	NewObj   float64
}

// Result is the outcome of Fit.
type Result struct {
	F          []float64
	LogLike    float64
	Iterations int
	Status     Status
}

// Fitter fits one variance model under one density family.
type Fitter struct {
	density Density
	model   VarianceModel
	maxIter int
	tol     float64
	trace   func(Iteration)
}

// Option configures a Fitter.
type Option func(*Fitter)

// WithMaxIter caps the number of Newton iterations.
func WithMaxIter(n int) Option {
	return func(f *Fitter) { f.maxIter = n }
}

// WithTolerance sets the minimum objective improvement that keeps the
// optimizer iterating.
func WithTolerance(tol float64) Option {
	return func(f *Fitter) { f.tol = tol }
}

// WithTrace registers fn to be called once per iteration. fn runs on the
// caller's goroutine and must not retain the slices it is given.
func WithTrace(fn func(Iteration)) Option {
	return func(f *Fitter) { f.trace = fn }
}

// New returns a Fitter for the given density and variance model.
func New(density Density, model VarianceModel, opts ...Option) *Fitter {
	f := &Fitter{
		density: density,
		model:   model,
		maxIter: DefaultMaxIter,
		tol:     DefaultTolerance,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Density returns the density family the fitter was built with.
func (f *Fitter) Density() Density { return f.density }

// VarianceModel returns the variance model the fitter was built with.
func (f *Fitter) VarianceModel() VarianceModel { return f.model }

// Solve fits the model to x given means m and returns the parameter vector.
func (f *Fitter) Solve(x, m []float64) []float64 {
	return f.Fit(x, m).F
}

// Fit runs the optimizer from the model's default starting point.
//
// x and m must have equal length and every m must be positive; violations
// panic. Running out of iterations is not an error: the best F reached is
// returned with StatusIterationsExhausted.
func (f *Fitter) Fit(x, m []float64) *Result {
	checkObservations(x, m)

	k := f.model.NumParams()
	F := f.model.Init()
	newF := make([]float64, k)
	g := make([]float64, k)
	H := matrix.NewMatrix(k, k)

	res := &Result{Status: StatusIterationsExhausted}
	for iter := 0; iter < f.maxIter; iter++ {
		res.Iterations = iter + 1
		obj := f.objectiveGrad(g, H, x, m, F)
		dF := logNewtonStep(H, g, F)

		// A NaN objective cannot be improved upon (nothing compares >= NaN),
		// so skip the line search.
		a := 0.0
		newObj := math.NaN()
		if !math.IsNaN(obj) {
			for a = 1; a > 0; a *= 0.5 {
				mulLogDelta(newF, F, a, dF)
				if newObj = f.LogLike(x, m, newF); newObj >= obj {
					break
				}
			}
		}

		if f.trace != nil {
			f.trace(Iteration{
				Iter:     iter,
				F:        F,
				NewF:     newF,
				Gradient: g,
				Step:     dF,
				StepSize: a,
				Obj:      obj,
				NewObj:   newObj,
			})
		}

		gain := newObj - obj
		if a > 0 && gain > 0 {
			F, newF = newF, F
		}
		if !(gain > f.tol) {
			res.Status = StatusConverged
			break
		}
	}

	res.F = F
	res.LogLike = f.LogLike(x, m, F)
	return res
}

// LogLike returns the log-likelihood of x given m under parameters F.
func (f *Fitter) LogLike(x, m, F []float64) float64 {
	f.checkParams(F)
	ll := 0.0
	for i := range x {
		ll += f.density.LogF(x[i], m[i], f.model.Variance(m[i], F))
	}
	return ll
}

// Eval returns the right-tail probability of x under the fitted model.
func (f *Fitter) Eval(x, m float64, F []float64) float64 {
	f.checkParams(F)
	v := f.model.Variance(m, F)
	if !(v > 0) {
		panic(fmt.Sprintf("maxfactor: non-positive variance %g at mean %g", v, m))
	}
	return f.density.RightTail(x, m, v)
}

// EvalAll returns Eval for every pair (x[i], m[i]).
func (f *Fitter) EvalAll(x, m, F []float64) []float64 {
	checkObservations(x, m)
	p := make([]float64, len(x))
	for i := range x {
		p[i] = f.Eval(x[i], m[i], F)
	}
	return p
}

func (f *Fitter) checkParams(F []float64) {
	if len(F) != f.model.NumParams() {
		panic(fmt.Sprintf("maxfactor: %s expects %d parameters, got %d", f.model.Name(), f.model.NumParams(), len(F)))
	}
}

func checkObservations(x, m []float64) {
	if len(x) != len(m) {
		panic(fmt.Sprintf("maxfactor: %d observations but %d means", len(x), len(m)))
	}
	for i, mi := range m {
		if !(mi > 0) {
			panic(fmt.Sprintf("maxfactor: mean %d is %g, must be positive", i, mi))
		}
	}
}

// objectiveGrad accumulates the log-likelihood, its gradient g and the
// Hessian H with respect to F. The variance models are at most quadratic in
// m and linear in F, so H only carries the density's curvature:
//
//	g += v_F · f'(v),  H += v_F·v_Fᵗ · f''(v).
func (f *Fitter) objectiveGrad(g []float64, H *matrix.Matrix, x, m, F []float64) float64 {
	k := len(F)
	vF := make([]float64, k)
	for k1 := 0; k1 < k; k1++ {
		g[k1] = 0
		for k2 := 0; k2 < k; k2++ {
			H.Values[k1][k2] = 0
		}
	}

	ll := 0.0
	for i := range x {
		v := f.model.VarianceGrad(vF, m[i], F)
		fv, df, d2f := f.density.LogFV(x[i], m[i], v)
		ll += fv
		for k1 := 0; k1 < k; k1++ {
			g[k1] += vF[k1] * df
			for k2 := 0; k2 <= k1; k2++ {
				H.Values[k1][k2] += vF[k1] * vF[k2] * d2f
			}
		}
	}
	for k1 := 0; k1 < k; k1++ {
		for k2 := 0; k2 < k1; k2++ {
			H.Values[k2][k1] = H.Values[k1][k2]
		}
	}
	return ll
}

// logNewtonStep returns the Newton direction for the objective as a function
// of u = log F. With D = diag(F):
//
//	∇u = D·g,  ∇²u = D·H·D + diag(D·g).
//
// The system is solved with the pseudo-inverse, so singular directions of
// the Hessian contribute nothing. The result is flipped if needed so that it
// points uphill.
func logNewtonStep(H *matrix.Matrix, g, F []float64) []float64 {
	k := len(F)
	g1 := make([]float64, k)
	H1 := matrix.NewMatrix(k, k)
	for k1 := 0; k1 < k; k1++ {
		g1[k1] = F[k1] * g[k1]
		for k2 := 0; k2 < k; k2++ {
			H1.Values[k1][k2] = F[k1] * F[k2] * H.Values[k1][k2]
		}
	}
	for k1 := 0; k1 < k; k1++ {
		H1.Values[k1][k1] += g1[k1]
	}

	p := matrix.SolveVector(H1, matrix.NewVectorFrom(g1)).Values
	if floats.Dot(g1, p) < 0 {
		floats.Scale(-1, p)
	}
	return p
}

// mulLogDelta writes x·exp(a·dx) into dst.
func mulLogDelta(dst, x []float64, a float64, dx []float64) {
	for i := range x {
		dst[i] = x[i] * math.Exp(a*dx[i])
	}
}
