package maxfactor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

type densityPoint struct {
	x, m, v float64
}

var densityPoints = []densityPoint{
	{x: 3, m: 10, v: 20},
	{x: 10, m: 10, v: 20},
	{x: 25, m: 10, v: 20},
	{x: 0.4, m: 1.5, v: 0.9},
	{x: 120, m: 80, v: 3000},
}

// requireRelClose compares with a relative tolerance and an absolute floor.
func requireRelClose(t *testing.T, want, got, rel float64, msgAndArgs ...interface{}) {
	t.Helper()
	tol := rel * math.Max(1e-6, math.Abs(want))
	require.InDelta(t, want, got, tol, msgAndArgs...)
}

func TestDensity_DerivativesMatchFiniteDifferences(t *testing.T) {
	for _, d := range Densities() {
		for _, p := range densityPoints {
			h := p.v * 1e-5

			f, df, d2f := d.LogFV(p.x, p.m, p.v)
			require.InDelta(t, d.LogF(p.x, p.m, p.v), f, 1e-12, "%s LogF vs LogFV at %+v", d.Name(), p)

			numDf := (d.LogF(p.x, p.m, p.v+h) - d.LogF(p.x, p.m, p.v-h)) / (2 * h)
			requireRelClose(t, numDf, df, 1e-4, "%s df at %+v", d.Name(), p)

			_, dfHi, _ := d.LogFV(p.x, p.m, p.v+h)
			_, dfLo, _ := d.LogFV(p.x, p.m, p.v-h)
			numD2f := (dfHi - dfLo) / (2 * h)
			requireRelClose(t, numD2f, d2f, 1e-4, "%s d2f at %+v", d.Name(), p)
		}
	}
}

func TestGamma_RightTailMatchesDistribution(t *testing.T) {
	for _, p := range densityPoints {
		a, b := shapeRate(p.m, p.v)
		want := distuv.Gamma{Alpha: a, Beta: b}.Survival(p.x)
		require.InDelta(t, want, Gamma.RightTail(p.x, p.m, p.v), 1e-10, "%+v", p)
	}
}

func TestGamma_LogFIsNormalizedUpToConstant(t *testing.T) {
	for _, p := range densityPoints {
		a, b := shapeRate(p.m, p.v)
		want := distuv.Gamma{Alpha: a, Beta: b}.LogProb(p.x)
		require.InDelta(t, want, Gamma.LogF(p.x, p.m, p.v), 1e-9, "%+v", p)
	}
}

func TestLogT_RightTailMatchesCauchy(t *testing.T) {
	for _, p := range densityPoints {
		lm, ls := locationScale(p.m, p.v)
		want := distuv.StudentsT{Mu: lm, Sigma: ls, Nu: 1}.Survival(math.Log(p.x))
		require.InDelta(t, want, LogT.RightTail(p.x, p.m, p.v), 1e-10, "%+v", p)
	}
}

func TestLogT_MedianIsLocation(t *testing.T) {
	m, v := 10.0, 20.0
	lm, _ := locationScale(m, v)
	require.InDelta(t, 0.5, LogT.RightTail(math.Exp(lm), m, v), 1e-12)
}

func TestDensity_RightTailLimits(t *testing.T) {
	for _, d := range Densities() {
		require.InDelta(t, 1.0, d.RightTail(1e-12, 10, 20), 1e-2, d.Name())
		require.InDelta(t, 0.0, d.RightTail(1e12, 10, 20), 1e-2, d.Name())
		require.Equal(t, 0.0, Gamma.RightTail(math.Inf(1), 10, 20))
		require.Equal(t, 1.0, d.RightTail(0, 10, 20))
		require.Equal(t, 1.0, d.RightTail(-3, 10, 20))

		prev := 1.0
		for _, x := range []float64{0.1, 1, 5, 10, 20, 50, 500} {
			p := d.RightTail(x, 10, 20)
			require.GreaterOrEqual(t, p, 0.0)
			require.LessOrEqual(t, p, 1.0)
			require.LessOrEqual(t, p, prev, "%s tail must be non-increasing", d.Name())
			prev = p
		}
	}
}

func TestParseDensity(t *testing.T) {
	d, err := ParseDensity("gamma")
	require.NoError(t, err)
	require.Equal(t, Gamma, d)

	d, err = ParseDensity(" LogT ")
	require.NoError(t, err)
	require.Equal(t, LogT, d)

	_, err = ParseDensity("normal")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownDensity))
}
