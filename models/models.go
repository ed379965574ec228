// Package models defines the JSON-serialized structures shared between the
// fitmode tool and the web server.
//
// Keys are uppercase so that dataset and config files written by hand read
// the same way the tool prints them back.
package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDataset is returned by DATASET.Validate.
var ErrInvalidDataset = errors.New("invalid dataset")

// STAGE identifies where a fit run is in its lifecycle, as reported over the
// websocket trace feed. Iterations between the two arrive as separate
// iteration messages.
type STAGE int

const (
	STARTED STAGE = iota
	FINISHED
)

// String implements fmt.Stringer.
func (s STAGE) String() string {
	switch s {
	case STARTED:
		return "STARTED"
	case FINISHED:
		return "FINISHED"
	default:
		return fmt.Sprintf("STAGE(%d)", int(s))
	}
}

// DATASET is the input to a fit.
//
// X holds one observation per bin and M the matching expected mean. ROWS is
// optional: multivariate observations fed to the sufficient-statistics
// estimator, weighted by WEIGHTS when present (one weight per row).
type DATASET struct {
	NAME    string      `json:"NAME,omitempty"`
	X       []float64   `json:"X"`
	M       []float64   `json:"M"`
	ROWS    [][]float64 `json:"ROWS,omitempty"`
	WEIGHTS []float64   `json:"WEIGHTS,omitempty"`
}

// Validate checks the invariants the fitter and estimator panic on, so that
// callers at an I/O edge can reject bad input with an error instead. Both
// densities work on log x, so observations must be positive as well.
func (d *DATASET) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: empty", ErrInvalidDataset)
	}
	if len(d.X) != len(d.M) {
		return fmt.Errorf("%w: %d observations but %d means", ErrInvalidDataset, len(d.X), len(d.M))
	}
	for i, m := range d.M {
		if !(m > 0) || math.IsInf(m, 1) {
			return fmt.Errorf("%w: mean %d is %g, must be positive and finite", ErrInvalidDataset, i, m)
		}
	}
	for i, x := range d.X {
		if !(x > 0) || math.IsInf(x, 1) {
			return fmt.Errorf("%w: observation %d is %g, must be positive and finite", ErrInvalidDataset, i, x)
		}
	}
	if len(d.ROWS) == 0 {
		if len(d.WEIGHTS) != 0 {
			return fmt.Errorf("%w: WEIGHTS without ROWS", ErrInvalidDataset)
		}
		return nil
	}
	dim := len(d.ROWS[0])
	if dim == 0 {
		return fmt.Errorf("%w: ROWS must have at least one column", ErrInvalidDataset)
	}
	for i, r := range d.ROWS {
		if len(r) != dim {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidDataset, i, len(r), dim)
		}
		for j, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: row %d column %d is %g", ErrInvalidDataset, i, j, v)
			}
		}
	}
	if len(d.WEIGHTS) != 0 && len(d.WEIGHTS) != len(d.ROWS) {
		return fmt.Errorf("%w: %d weights for %d rows", ErrInvalidDataset, len(d.WEIGHTS), len(d.ROWS))
	}
	for i, w := range d.WEIGHTS {
		if !(w >= 0) || math.IsInf(w, 1) {
			return fmt.Errorf("%w: weight %d is %g, must be non-negative and finite", ErrInvalidDataset, i, w)
		}
	}
	return nil
}

// Dim is the column count of ROWS, or 0 when there are none.
func (d *DATASET) Dim() int {
	if len(d.ROWS) == 0 {
		return 0
	}
	return len(d.ROWS[0])
}

// FITCONFIG selects the density family and variance model for a fit.
// Zero MAXITER and TOLERANCE mean the fitter defaults.
type FITCONFIG struct {
	DENSITY   string  `json:"DENSITY"`
	MODEL     string  `json:"MODEL"`
	MAXITER   int     `json:"MAXITER,omitempty"`
	TOLERANCE float64 `json:"TOLERANCE,omitempty"`
	DEBUG     bool    `json:"DEBUG"`
}

// FITRESULT is a persisted fit.
type FITRESULT struct {
	DENSITY    string    `json:"DENSITY"`
	MODEL      string    `json:"MODEL"`
	F          []float64 `json:"F"`
	LOGLIKE    float64   `json:"LOGLIKE"`
	ITERATIONS int       `json:"ITERATIONS"`
	STATUS     string    `json:"STATUS"`
	P          []float64 `json:"P,omitempty"`
}

// JOB is the file format read by the fitmode tool: a dataset and the fit to
// run on it.
type JOB struct {
	DATASET *DATASET   `json:"DATASET"`
	FIT     *FITCONFIG `json:"FIT"`
}
