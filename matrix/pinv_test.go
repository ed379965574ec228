package matrix

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomMatrix(rng *rand.Rand, rows, cols int) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.Values {
		for j := range m.Values[i] {
			m.Values[i][j] = rng.NormFloat64()
		}
	}
	return m
}

func randomIntMatrix(rng *rand.Rand, rows, cols int) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.Values {
		for j := range m.Values[i] {
			m.Values[i][j] = float64(rng.IntN(9) - 4)
		}
	}
	return m
}

// randomLowRank returns a rows-by-cols matrix of rank at most r. Integer
// factors keep the product exact, so the rank bound holds in floating point.
func randomLowRank(rng *rand.Rand, rows, cols, r int) *Matrix {
	return randomIntMatrix(rng, rows, r).Mul(randomIntMatrix(rng, r, cols))
}

func maxAbs(m *Matrix) float64 {
	v := 0.0
	for i := range m.Values {
		for _, x := range m.Values[i] {
			v = math.Max(v, math.Abs(x))
		}
	}
	return v
}

func requireMatrixClose(t *testing.T, want, got *Matrix, tol float64, msgAndArgs ...any) {
	t.Helper()
	require.Equal(t, want.Rows, got.Rows, msgAndArgs...)
	require.Equal(t, want.Cols, got.Cols, msgAndArgs...)
	for i := range want.Values {
		for j := range want.Values[i] {
			require.InDelta(t, want.Values[i][j], got.Values[i][j], tol, msgAndArgs...)
		}
	}
}

// ==============================================================================
// PseudoInverse
// ==============================================================================

func TestPseudoInverse_Reconstructs(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	shapes := []struct {
		name             string
		rows, cols, rank int
	}{
		{"square full rank", 4, 4, 4},
		{"tall full rank", 7, 3, 3},
		{"wide full rank", 3, 6, 3},
		{"square rank deficient", 5, 5, 2},
		{"tall rank deficient", 8, 4, 1},
		{"wide rank deficient", 2, 9, 1},
		{"single element", 1, 1, 1},
	}
	for _, tc := range shapes {
		t.Run(tc.name, func(t *testing.T) {
			a := randomLowRank(rng, tc.rows, tc.cols, tc.rank)
			ap := PseudoInverse(a)
			require.Equal(t, tc.cols, ap.Rows)
			require.Equal(t, tc.rows, ap.Cols)

			aapa := a.Mul(ap).Mul(a)
			tol := float64(max(tc.rows, tc.cols)) * 0x1p-52 * maxAbs(a) * 1e4
			requireMatrixClose(t, a, aapa, tol, "A·A⁺·A should reproduce A")

			apaap := ap.Mul(a).Mul(ap)
			requireMatrixClose(t, ap, apaap, 1e-8*math.Max(1, maxAbs(ap)), "A⁺·A·A⁺ should reproduce A⁺")
		})
	}
}

func TestPseudoInverse_Degenerate(t *testing.T) {
	for _, shape := range [][2]int{{0, 0}, {0, 3}, {4, 0}} {
		a := NewMatrix(shape[0], shape[1])
		ap := PseudoInverse(a)
		require.Equal(t, shape[1], ap.Rows)
		require.Equal(t, shape[0], ap.Cols)
		for i := range ap.Values {
			for _, v := range ap.Values[i] {
				require.Zero(t, v)
			}
		}
	}
}

func TestPseudoInverse_WideMatchesTransposed(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	a := randomMatrix(rng, 3, 7)
	direct := PseudoInverse(a)
	viaT := PseudoInverse(a.Transpose()).Transpose()
	requireMatrixClose(t, viaT, direct, 1e-10)
}

func TestPseudoInverse_ZeroMatrix(t *testing.T) {
	a := NewMatrix(3, 2)
	ap := PseudoInverse(a)
	requireMatrixClose(t, NewMatrix(2, 3), ap, 0)
}

func TestPseudoInverse_Invertible(t *testing.T) {
	a := NewMatrixFromRows([][]float64{{4, 7}, {2, 6}})
	ap := PseudoInverse(a)
	want := NewMatrixFromRows([][]float64{{0.6, -0.7}, {-0.2, 0.4}})
	requireMatrixClose(t, want, ap, 1e-12)
}

func TestPseudoInverse_SingularDirectionDropped(t *testing.T) {
	// diag(2, 0) has pseudo-inverse diag(0.5, 0).
	a := NewMatrixFromRows([][]float64{{2, 0}, {0, 0}})
	ap := PseudoInverse(a)
	requireMatrixClose(t, NewMatrixFromRows([][]float64{{0.5, 0}, {0, 0}}), ap, 1e-15)
}

// ==============================================================================
// Solve / Rank
// ==============================================================================

func TestSolve_LeastSquares(t *testing.T) {
	// Fit y = c0 + c1*t exactly through collinear points.
	a := NewMatrixFromRows([][]float64{{1, 0}, {1, 1}, {1, 2}, {1, 3}})
	b := NewVectorFrom([]float64{1, 3, 5, 7})
	x := SolveVector(a, b)
	require.InDelta(t, 1.0, x.Values[0], 1e-12)
	require.InDelta(t, 2.0, x.Values[1], 1e-12)

	xm := Solve(a, b.Column())
	require.Equal(t, 2, xm.Rows)
	require.Equal(t, 1, xm.Cols)
	require.InDelta(t, x.Values[0], xm.Values[0][0], 1e-12)
}

func TestSolve_ShapeMismatchPanics(t *testing.T) {
	require.PanicsWithValue(t, ErrShape, func() {
		Solve(NewMatrix(3, 2), NewMatrix(2, 1))
	})
	require.PanicsWithValue(t, ErrShape, func() {
		SolveVector(NewMatrix(3, 2), NewVector(2))
	})
}

func TestSolve_EmptySystem(t *testing.T) {
	x := Solve(NewMatrix(0, 3), NewMatrix(0, 2))
	require.Equal(t, 3, x.Rows)
	require.Equal(t, 2, x.Cols)
}

func TestRank(t *testing.T) {
	require.Equal(t, 0, Rank(NewMatrix(0, 4)))
	require.Equal(t, 0, Rank(NewMatrix(3, 3)))
	require.Equal(t, 3, Rank(Identity(3)))
	require.Equal(t, 2, Rank(NewMatrixFromRows([][]float64{{1, 2, 3}, {2, 4, 6}, {1, 0, 1}})))
	require.Equal(t, 1, Rank(NewMatrixFromRows([][]float64{{1, 2, 3, 4}, {2, 4, 6, 8}})))
}

func TestFactorize_WideShapes(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	a := randomMatrix(rng, 2, 5)
	svd, ok := Factorize(a)
	require.True(t, ok)
	require.Equal(t, 2, svd.U.Rows)
	require.Equal(t, 2, svd.U.Cols)
	require.Equal(t, 5, svd.V.Rows)
	require.Equal(t, 2, svd.V.Cols)
	require.Len(t, svd.Values, 2)

	// U·diag(s)·Vᵗ reproduces a.
	us := NewMatrix(2, 2)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			us.Values[i][j] = svd.U.Values[i][j] * svd.Values[j]
		}
	}
	requireMatrixClose(t, a, us.Mul(svd.V.Transpose()), 1e-12)
}

func TestZeroThreshold(t *testing.T) {
	require.Equal(t, 3*0x1p-52, ZeroThreshold(2, 3, 1))
	require.Greater(t, ZeroThreshold(4, 4, 0), 0.0)
}
