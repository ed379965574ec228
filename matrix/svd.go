package matrix

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SVD holds a thin singular value decomposition A ≈ U·diag(Values)·Vᵗ of an
// m-by-n matrix, with k = min(m, n): U is m-by-k, V is n-by-k.
type SVD struct {
	U      *Matrix
	Values []float64
	V      *Matrix
}

// Factorize computes the thin SVD of a.
//
// gonum's decomposition is only asked to handle non-empty matrices with at
// least as many rows as columns:
//   - a matrix with no rows or no columns yields k = 0 factors of the right
//     shape without decomposing anything;
//   - a wide matrix is handled by decomposing aᵗ = U'·S·V'ᵗ and returning
//     U = V', V = U'.
//
// The boolean result is false only when the underlying routine fails to
// converge.
func Factorize(a *Matrix) (*SVD, bool) {
	if a.Rows == 0 || a.Cols == 0 {
		return &SVD{U: NewMatrix(a.Rows, 0), V: NewMatrix(a.Cols, 0)}, true
	}
	if a.Rows < a.Cols {
		t, ok := factorizeTall(a.Transpose())
		if !ok {
			return nil, false
		}
		return &SVD{U: t.V, Values: t.Values, V: t.U}, true
	}
	return factorizeTall(a)
}

func factorizeTall(a *Matrix) (*SVD, bool) {
	var svd mat.SVD
	if ok := svd.Factorize(a.dense(), mat.SVDThin); !ok {
		return nil, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	return &SVD{U: fromDense(&u), Values: svd.Values(nil), V: fromDense(&v)}, true
}

// MaxValue returns the largest singular value, or 0 when there are none.
func (s *SVD) MaxValue() float64 {
	maxS := 0.0
	for _, si := range s.Values {
		maxS = math.Max(maxS, si)
	}
	return maxS
}

// ZeroThreshold is the cutoff at or below which a singular value of a
// rows-by-cols matrix is treated as exactly zero.
func ZeroThreshold(rows, cols int, maxS float64) float64 {
	return float64(max(rows, cols)) * ulp(maxS)
}

// ulp returns the spacing between |x| and the next larger float64.
func ulp(x float64) float64 {
	x = math.Abs(x)
	if math.IsInf(x, 0) {
		return math.Inf(1)
	}
	return math.Nextafter(x, math.Inf(1)) - x
}

// reciprocals returns 1/s for singular values above the zero threshold and 0
// for the rest.
func (s *SVD) reciprocals(rows, cols int) []float64 {
	th := ZeroThreshold(rows, cols, s.MaxValue())
	d := make([]float64, len(s.Values))
	for i, si := range s.Values {
		if si > th {
			d[i] = 1 / si
		}
	}
	return d
}

// Rank returns the number of singular values above the zero threshold.
func (s *SVD) Rank(rows, cols int) int {
	th := ZeroThreshold(rows, cols, s.MaxValue())
	r := 0
	for _, si := range s.Values {
		if si > th {
			r++
		}
	}
	return r
}
