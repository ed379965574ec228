package maxfactor

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CK6170/MaxFactor-go/matrix"
)

// gammaSample draws n observations whose means are uniform in [5, 50] and
// whose variance follows P12 with parameters F.
func gammaSample(seed uint64, n int, F []float64) (x, m []float64) {
	return gammaSampleWith(P12, seed, n, F)
}

func gammaSampleWith(vm VarianceModel, seed uint64, n int, F []float64) (x, m []float64) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	src := rand.NewPCG(seed+2, seed+3)
	x = make([]float64, n)
	m = make([]float64, n)
	for i := range x {
		m[i] = 5 + 45*rng.Float64()
		a, b := shapeRate(m[i], vm.Variance(m[i], F))
		x[i] = distuv.Gamma{Alpha: a, Beta: b, Src: src}.Rand()
	}
	return x, m
}

// ==============================================================================
// Fit
// ==============================================================================

func TestFit_GammaRecoversParameters(t *testing.T) {
	truth := []float64{0.8, 0.3}
	x, m := gammaSample(31, 20000, truth)

	f := New(Gamma, P12)
	res := f.Fit(x, m)

	require.Equal(t, StatusConverged, res.Status)
	require.Len(t, res.F, 2)
	for k := range truth {
		require.InEpsilon(t, truth[k], res.F[k], 0.15, "F[%d] = %g", k, res.F[k])
	}
	require.GreaterOrEqual(t, res.LogLike, f.LogLike(x, m, truth)-1e-6)
	require.Equal(t, res.F, f.Solve(x, m))
}

func TestFit_GammaP012ReachesTruthLogLike(t *testing.T) {
	truth := []float64{2, 0.8, 0.3}
	x, m := gammaSampleWith(P012, 33, 20000, truth)

	f := New(Gamma, P012)
	res := f.Fit(x, m)

	require.Len(t, res.F, 3)
	for k, v := range res.F {
		require.Greater(t, v, 0.0, "F[%d]", k)
	}
	require.InEpsilon(t, truth[2], res.F[2], 0.15, "F = %v", res.F)
	require.GreaterOrEqual(t, res.LogLike, f.LogLike(x, m, truth)-1e-3, "F = %v", res.F)
}

func TestFit_ObjectiveNeverDecreases(t *testing.T) {
	x, m := gammaSample(41, 3000, []float64{2, 0.1})

	for _, d := range Densities() {
		for _, vm := range VarianceModels() {
			var objs []float64
			f := New(d, vm, WithTrace(func(it Iteration) {
				objs = append(objs, it.Obj)
				require.Len(t, it.Step, vm.NumParams())
			}))
			res := f.Fit(x, m)

			require.NotEmpty(t, objs, "%s/%s", d.Name(), vm.Name())
			require.Len(t, objs, res.Iterations)
			for i := 1; i < len(objs); i++ {
				require.GreaterOrEqual(t, objs[i], objs[i-1], "%s/%s iteration %d", d.Name(), vm.Name(), i)
			}
			require.GreaterOrEqual(t, res.LogLike, f.LogLike(x, m, vm.Init()))
			for k, v := range res.F {
				require.Greater(t, v, 0.0, "%s/%s F[%d]", d.Name(), vm.Name(), k)
			}
		}
	}
}

func TestFit_MaxIterZeroReturnsInit(t *testing.T) {
	x, m := gammaSample(51, 100, []float64{1, 0.2})
	res := New(Gamma, P012, WithMaxIter(0)).Fit(x, m)

	require.Equal(t, StatusIterationsExhausted, res.Status)
	require.Equal(t, 0, res.Iterations)
	require.Equal(t, P012.Init(), res.F)
}

func TestFit_SingleIterationIsExhausted(t *testing.T) {
	x, m := gammaSample(52, 2000, []float64{0.8, 0.3})
	res := New(Gamma, P12, WithMaxIter(1)).Fit(x, m)

	require.Equal(t, StatusIterationsExhausted, res.Status)
	require.Equal(t, 1, res.Iterations)
	require.Greater(t, res.LogLike, New(Gamma, P12).LogLike(x, m, P12.Init()))
}

func TestFit_EmptyInput(t *testing.T) {
	res := New(LogT, P12).Fit(nil, nil)
	require.Equal(t, StatusConverged, res.Status)
	require.Equal(t, P12.Init(), res.F)
	require.Equal(t, 0.0, res.LogLike)
}

func TestFit_InvalidInputPanics(t *testing.T) {
	f := New(Gamma, P12)
	require.Panics(t, func() { f.Fit([]float64{1, 2}, []float64{1}) })
	require.Panics(t, func() { f.Fit([]float64{1}, []float64{0}) })
	require.Panics(t, func() { f.Fit([]float64{1}, []float64{-3}) })
}

// ==============================================================================
// Eval
// ==============================================================================

func TestEval_UniformUnderTruth(t *testing.T) {
	truth := []float64{0.8, 0.3}
	x, m := gammaSample(61, 20000, truth)

	p := New(Gamma, P12).EvalAll(x, m, truth)
	require.Len(t, p, len(x))
	for _, pi := range p {
		require.GreaterOrEqual(t, pi, 0.0)
		require.LessOrEqual(t, pi, 1.0)
	}
	mean := floats.Sum(p) / float64(len(p))
	require.InDelta(t, 0.5, mean, 0.02)
}

func TestEval_Panics(t *testing.T) {
	f := New(Gamma, P12)
	require.Panics(t, func() { f.Eval(1, 1, []float64{1, 2, 3}) })
	require.Panics(t, func() { f.Eval(1, 1, []float64{-1, 0}) })
	require.Panics(t, func() { f.EvalAll([]float64{1}, []float64{1, 2}, []float64{1, 1}) })
}

// ==============================================================================
// Newton step
// ==============================================================================

func TestLogNewtonStep_PointsUphill(t *testing.T) {
	F := []float64{0.5, 2}
	g := []float64{-3, 1}
	H := matrix.NewMatrixFromRows([][]float64{{1, 0.5}, {0.5, 2}}) // not concave
	p := logNewtonStep(H, g, F)

	g1 := []float64{F[0] * g[0], F[1] * g[1]}
	require.Greater(t, floats.Dot(g1, p), 0.0)
}

func TestLogNewtonStep_QuadraticInLogSpace(t *testing.T) {
	// obj(u) = -½·Σ(u_k - c_k)² with u = log F has its log-space Newton step
	// equal to c - u exactly.
	c := []float64{math.Log(3), math.Log(0.2)}
	F := []float64{1, 1}

	g := make([]float64, 2)
	H := matrix.NewMatrix(2, 2)
	for k := range F {
		u := math.Log(F[k])
		// d/dF of -½(u-c)² is -(u-c)/F; the second derivative is (u-c-1)/F².
		g[k] = -(u - c[k]) / F[k]
		H.Values[k][k] = (u - c[k] - 1) / (F[k] * F[k])
	}
	p := logNewtonStep(H, g, F)
	require.InDeltaSlice(t, c, p, 1e-12)

	next := make([]float64, 2)
	mulLogDelta(next, F, 1, p)
	require.InDeltaSlice(t, []float64{3, 0.2}, next, 1e-12)
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "converged", StatusConverged.String())
	require.Equal(t, "iterations-exhausted", StatusIterationsExhausted.String())
	require.Equal(t, "Status(7)", Status(7).String())
}
