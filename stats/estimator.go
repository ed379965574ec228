// Package stats accumulates weighted sufficient statistics (total weight,
// first and second moments) of fixed-dimension observations and derives the
// mean, covariance, correlation, numeric rank and effective number of
// independent dimensions from them.
//
// An Estimator is not safe for concurrent Update calls. Parallel callers
// accumulate into separate estimators and combine them with Merge.
package stats

import (
	"fmt"
	"math"

	"github.com/CK6170/MaxFactor-go/matrix"
)

// Estimator holds the running sums of a stream of d-dimensional weighted
// observations.
//
// sum2 stores the upper triangle of Σ w·x·xᵗ packed column by column: entry
// (i, j) with i <= j lives at i + j(j+1)/2.
type Estimator struct {
	dim  int
	sum0 float64
	sum1 []float64
	sum2 []float64
}

func packedSize(n int) int { return n * (n + 1) / 2 }

func (e *Estimator) ix(i, j int) int {
	if i > j {
		i, j = j, i
	}
	if i < 0 || j >= e.dim {
		panic(fmt.Sprintf("stats: index (%d, %d) out of range for dimension %d", i, j, e.dim))
	}
	return i + packedSize(j)
}

// NewEstimator returns an empty estimator for observations of length dim.
func NewEstimator(dim int) *Estimator {
	if dim <= 0 {
		panic(fmt.Sprintf("stats: dimension must be positive, got %d", dim))
	}
	return &Estimator{
		dim:  dim,
		sum1: make([]float64, dim),
		sum2: make([]float64, packedSize(dim)),
	}
}

// Update adds x with unit weight.
func (e *Estimator) Update(x []float64) {
	e.UpdateWeighted(x, 1)
}

// UpdateWeighted adds x with weight w. It costs O(d²).
func (e *Estimator) UpdateWeighted(x []float64, w float64) {
	if len(x) != e.dim {
		panic(fmt.Sprintf("stats: observation has length %d, estimator dimension is %d", len(x), e.dim))
	}
	e.sum0 += w
	for i, xi := range x {
		e.sum1[i] += w * xi
	}
	k := 0
	for j := 0; j < e.dim; j++ {
		wx := w * x[j]
		for i := 0; i <= j; i++ {
			e.sum2[k] += x[i] * wx
			k++
		}
	}
}

// Merge adds the sums of other into e. Both must have the same dimension.
func (e *Estimator) Merge(other *Estimator) {
	if other.dim != e.dim {
		panic(fmt.Sprintf("stats: cannot merge dimension %d into %d", other.dim, e.dim))
	}
	e.sum0 += other.sum0
	for i := range e.sum1 {
		e.sum1[i] += other.sum1[i]
	}
	for k := range e.sum2 {
		e.sum2[k] += other.sum2[k]
	}
}

// FromRows builds an estimator over rows, each with the matching entry of
// weights, or unit weight when weights is empty. All rows must share a length.
func FromRows(rows [][]float64, weights []float64) *Estimator {
	if len(rows) == 0 {
		panic("stats: no rows")
	}
	if len(weights) != 0 && len(weights) != len(rows) {
		panic(fmt.Sprintf("stats: %d weights for %d rows", len(weights), len(rows)))
	}
	e := NewEstimator(len(rows[0]))
	for i, r := range rows {
		w := 1.0
		if len(weights) != 0 {
			w = weights[i]
		}
		e.UpdateWeighted(r, w)
	}
	return e
}

// Dim returns the observation length.
func (e *Estimator) Dim() int { return e.dim }

// Size returns the total weight seen so far.
func (e *Estimator) Size() float64 { return e.sum0 }

// Mean returns the weighted mean of component i.
func (e *Estimator) Mean(i int) float64 {
	return e.sum1[i] / e.sum0
}

// MeanVector returns the weighted means of all components.
func (e *Estimator) MeanVector() []float64 {
	m := make([]float64, e.dim)
	for i := range m {
		m[i] = e.Mean(i)
	}
	return m
}

// Covariance returns the Bessel-corrected sample covariance of components i
// and j.
func (e *Estimator) Covariance(i, j int) float64 {
	return e.CovarianceWith(i, j, 1)
}

// CovarianceWith returns (Σwxᵢxⱼ - Σwxᵢ·Σwxⱼ/Σw) / (Σw - bessel). bessel = 0
// gives the population covariance.
func (e *Estimator) CovarianceWith(i, j int, bessel float64) float64 {
	return (e.sum2[e.ix(i, j)] - e.sum1[i]*e.sum1[j]/e.sum0) / (e.sum0 - bessel)
}

// Variance returns the Bessel-corrected sample variance of component i.
func (e *Estimator) Variance(i int) float64 {
	return e.CovarianceWith(i, i, 1)
}

// VarianceWith is CovarianceWith(i, i, bessel).
func (e *Estimator) VarianceWith(i int, bessel float64) float64 {
	return e.CovarianceWith(i, i, bessel)
}

// CovarianceMatrix returns the full symmetric d-by-d covariance matrix.
func (e *Estimator) CovarianceMatrix(bessel float64) *matrix.Matrix {
	c := matrix.NewMatrix(e.dim, e.dim)
	s := 1 / (e.sum0 - bessel)
	for j := 0; j < e.dim; j++ {
		mj := e.sum1[j] / e.sum0
		for i := 0; i <= j; i++ {
			v := s * (e.sum2[e.ix(i, j)] - e.sum1[i]*mj)
			c.Values[i][j] = v
			c.Values[j][i] = v
		}
	}
	return c
}

// safeDiv returns x/y, or 0 when y is 0. Only used where |x| <= |y| holds, so
// a zero denominator implies a zero numerator.
func safeDiv(x, y float64) float64 {
	if y == 0 {
		return 0
	}
	return x / y
}

// Correlation returns the Pearson correlation of components i and j, with
// an implicit 1 on the diagonal.
func (e *Estimator) Correlation(i, j int) float64 {
	if i == j {
		return 1
	}
	return e.RawCorrelation(i, j)
}

// RawCorrelation is Correlation without the implicit diagonal: a constant
// component correlates with itself as 0 instead of 1.
func (e *Estimator) RawCorrelation(i, j int) float64 {
	if i != j {
		return safeDiv(e.CovarianceWith(i, j, 0), math.Sqrt(e.VarianceWith(i, 0))*math.Sqrt(e.VarianceWith(j, 0)))
	}
	s := math.Sqrt(e.VarianceWith(i, 0))
	return safeDiv(s*s, s*s)
}

// CorrelationMatrix returns the d-by-d correlation matrix. With implicitDiag
// the diagonal is all ones; otherwise it follows RawCorrelation.
func (e *Estimator) CorrelationMatrix(implicitDiag bool) *matrix.Matrix {
	c := e.CovarianceMatrix(0)
	sd := make([]float64, e.dim)
	for j := range sd {
		sd[j] = math.Sqrt(c.Values[j][j])
	}
	for j := 0; j < e.dim; j++ {
		for i := 0; i < j; i++ {
			v := safeDiv(c.Values[i][j], sd[i]*sd[j])
			c.Values[i][j] = v
			c.Values[j][i] = v
		}
		if implicitDiag {
			c.Values[j][j] = 1
		} else {
			c.Values[j][j] = safeDiv(sd[j]*sd[j], sd[j]*sd[j])
		}
	}
	return c
}

// Rank returns the numeric rank of the uncentered second-moment matrix
// Σ w·x·xᵗ. Centering would drop the rank by one whenever the mean is
// nonzero and lies in the span of the data.
func (e *Estimator) Rank() int {
	r := matrix.NewMatrix(e.dim, e.dim)
	for j := 0; j < e.dim; j++ {
		for i := 0; i <= j; i++ {
			v := e.sum2[e.ix(i, j)]
			r.Values[i][j] = v
			r.Values[j][i] = v
		}
	}
	return matrix.Rank(r)
}

// EffectiveSize estimates the number of independent dimensions as the
// participation ratio (Σ sign(λ)·√|λ|)² / Σ λ over the eigenvalues λ of the
// population correlation matrix. The matrix is symmetric positive
// semidefinite, so its singular values are its eigenvalues.
func (e *Estimator) EffectiveSize() float64 {
	svd, ok := matrix.Factorize(e.CorrelationMatrix(false))
	if !ok {
		return 0
	}
	s, t := 0.0, 0.0
	for _, l := range svd.Values {
		s += math.Copysign(math.Sqrt(math.Abs(l)), l)
		t += l
	}
	return safeDiv(s*s, t)
}
