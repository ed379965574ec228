package matrix

// PseudoInverse returns the Moore-Penrose pseudo-inverse A⁺ = V·diag(1/s)·Uᵗ.
//
// Singular values at or below ZeroThreshold contribute nothing, so singular
// and rank-deficient inputs yield the minimum-norm least-squares inverse
// instead of blowing up. Empty inputs return an all-zero Cols-by-Rows matrix.
// If the decomposition fails to converge the zero matrix is returned as well.
func PseudoInverse(a *Matrix) *Matrix {
	if a.Rows == 0 || a.Cols == 0 {
		return NewMatrix(a.Cols, a.Rows)
	}
	svd, ok := Factorize(a)
	if !ok {
		return NewMatrix(a.Cols, a.Rows)
	}
	// V is owned by svd, so scaling its columns in place is safe.
	return svd.V.scaleColumns(svd.reciprocals(a.Rows, a.Cols)).Mul(svd.U.Transpose())
}

// Solve returns the generalized least-squares solution A⁺·B.
func Solve(a, b *Matrix) *Matrix {
	if a.Rows != b.Rows {
		panic(ErrShape)
	}
	return PseudoInverse(a).Mul(b)
}

// SolveVector returns A⁺·b.
func SolveVector(a *Matrix, b *Vector) *Vector {
	if a.Rows != b.Length {
		panic(ErrShape)
	}
	return PseudoInverse(a).MulVector(b)
}

// Rank returns the numeric rank of a.
func Rank(a *Matrix) int {
	if a.Rows == 0 || a.Cols == 0 {
		return 0
	}
	svd, ok := Factorize(a)
	if !ok {
		return 0
	}
	return svd.Rank(a.Rows, a.Cols)
}
