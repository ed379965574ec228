// Package matrix provides the small dense linear-algebra layer used by the
// fitter: a row-major Matrix/Vector pair, an SVD wrapper that tolerates empty
// and wide inputs, and the Moore-Penrose pseudo-inverse built on top of it.
//
// Heavy lifting (the decomposition itself) is delegated to gonum's mat.SVD.
package matrix

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const MatrixLine = "------------------------------------------------------------------"

// ErrShape is the panic value for operands whose dimensions do not agree.
var ErrShape = errors.New("matrix: dimension mismatch")

type Matrix struct {
	Rows, Cols int
	Values     [][]float64
}

func NewMatrix(rows, cols int) *Matrix {
	values := make([][]float64, rows)
	for i := range values {
		values[i] = make([]float64, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Values: values}
}

// NewMatrixFromRows copies rows into a new matrix. All rows must have the
// same length.
func NewMatrixFromRows(rows [][]float64) *Matrix {
	if len(rows) == 0 {
		return NewMatrix(0, 0)
	}
	m := NewMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != m.Cols {
			panic(ErrShape)
		}
		copy(m.Values[i], r)
	}
	return m
}

// Identity returns the n-by-n identity matrix.
func Identity(n int) *Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		m.Values[i][i] = 1
	}
	return m
}

// Transpose returns a new Cols-by-Rows matrix.
func (m *Matrix) Transpose() *Matrix {
	t := NewMatrix(m.Cols, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			t.Values[j][i] = m.Values[i][j]
		}
	}
	return t
}

// Mul returns the product m*other.
func (m *Matrix) Mul(other *Matrix) *Matrix {
	if m.Cols != other.Rows {
		panic(ErrShape)
	}
	result := NewMatrix(m.Rows, other.Cols)
	for i := 0; i < m.Rows; i++ {
		row := result.Values[i]
		for k := 0; k < m.Cols; k++ {
			a := m.Values[i][k]
			if a == 0 {
				continue
			}
			for j, b := range other.Values[k] {
				row[j] += a * b
			}
		}
	}
	return result
}

func (m *Matrix) MulVector(v *Vector) *Vector {
	if m.Cols != v.Length {
		panic(ErrShape)
	}
	result := NewVector(m.Rows)
	for i := 0; i < m.Rows; i++ {
		for k := 0; k < m.Cols; k++ {
			result.Values[i] += m.Values[i][k] * v.Values[k]
		}
	}
	return result
}

// scaleColumns multiplies column j of m by d[j] in place and returns m.
func (m *Matrix) scaleColumns(d []float64) *Matrix {
	if len(d) != m.Cols {
		panic(ErrShape)
	}
	for i := range m.Values {
		for j := range m.Values[i] {
			m.Values[i][j] *= d[j]
		}
	}
	return m
}

// dense copies m into a gonum matrix. Callers must not pass empty matrices:
// mat.NewDense panics on zero dimensions.
func (m *Matrix) dense() *mat.Dense {
	a := mat.NewDense(m.Rows, m.Cols, nil)
	for i := 0; i < m.Rows; i++ {
		a.SetRow(i, m.Values[i])
	}
	return a
}

func fromDense(d *mat.Dense) *Matrix {
	r, c := d.Dims()
	m := NewMatrix(r, c)
	for i := 0; i < r; i++ {
		mat.Row(m.Values[i], i, d)
	}
	return m
}

func (m *Matrix) ToStrings(title, format string) (string, string) {
	sb := &strings.Builder{}
	csv := &strings.Builder{}
	fmtStr := "%12.4g"
	if format != "" {
		fmtStr = format
	}
	sb.WriteString(MatrixLine + "\n")
	sb.WriteString(title + "\n")
	csv.WriteString(title)
	for i := range m.Values {
		for j := range m.Values[i] {
			fmt.Fprintf(sb, fmtStr, m.Values[i][j])
			fmt.Fprintf(csv, ",%g", m.Values[i][j])
		}
		sb.WriteString("\n")
	}
	sb.WriteString(MatrixLine)
	return sb.String(), csv.String()
}

// PrintMatrix dumps the matrix (trimmed to 12x16). For debugging only.
func PrintMatrix(m *Matrix, title string, debug bool) {
	// Yellow for debug matrices
	if debug {
		fmt.Print("\033[33m")
	}
	fmt.Println(MatrixLine)
	fmt.Println(title, " (", m.Rows, "x", m.Cols, ")")
	maxRows := m.Rows
	if maxRows > 12 { // limit output for readability
		maxRows = 12
	}
	for i := 0; i < maxRows; i++ {
		row := m.Values[i]
		line := fmt.Sprintf("[%03d]", i)
		maxCols := len(row)
		if maxCols > 16 {
			maxCols = 16
		}
		for j := 0; j < maxCols; j++ {
			line += fmt.Sprintf(" %12.5g", row[j])
		}
		if len(row) > maxCols {
			line += " ..."
		}
		fmt.Println(line)
	}
	if m.Rows > maxRows {
		fmt.Println("...")
	}
	fmt.Println(MatrixLine)
	if debug {
		fmt.Print("\033[0m")
	}
}
