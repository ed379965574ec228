package matrix

import (
	"fmt"
	"strings"
)

// Vector is a dense length-N vector of float64 values.
type Vector struct {
	Length int
	Values []float64
}

// NewVector allocates a vector of the given length initialized with zeros.
func NewVector(length int) *Vector {
	return &Vector{Length: length, Values: make([]float64, length)}
}

// NewVectorFrom wraps a copy of values.
func NewVectorFrom(values []float64) *Vector {
	v := NewVector(len(values))
	copy(v.Values, values)
	return v
}

// Column returns v as a Length-by-1 matrix.
func (v *Vector) Column() *Matrix {
	m := NewMatrix(v.Length, 1)
	for i, val := range v.Values {
		m.Values[i][0] = val
	}
	return m
}

// ToStrings formats the vector for display/logging.
//
// The first string is the multi-line display form, the second a single
// comma-separated line suitable for the debug CSV.
func (v *Vector) ToStrings(title, format string) (string, string) {
	sb := &strings.Builder{}
	csv := &strings.Builder{}
	sb.WriteString(MatrixLine + "\n")
	sb.WriteString(title + "\n")
	csv.WriteString(title)
	fmtStr := "%14.6g"
	if format != "" {
		fmtStr = format
	}
	for _, val := range v.Values {
		fmt.Fprintf(sb, fmtStr+"\n", val)
		fmt.Fprintf(csv, ",%g", val)
	}
	sb.WriteString(MatrixLine)
	return sb.String(), csv.String()
}
