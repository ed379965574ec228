package maxfactor

import (
	"fmt"
	"strings"
)

// VarianceModel maps a mean m and a parameter vector F to a variance.
//
// The set is closed: P12 and P012 are the only implementations.
type VarianceModel interface {
	Name() string

	// NumParams is the length of F.
	NumParams() int

	// Init returns a fresh copy of the default starting point.
	Init() []float64

	Variance(m float64, F []float64) float64

	// VarianceGrad writes dv/dF into grad and returns v.
	VarianceGrad(grad []float64, m float64, F []float64) float64

	varianceModel()
}

var (
	// P12 is v = F0·m + F1·m².
	P12 VarianceModel = p12{}

	// P012 is v = F0 + F1·m + F2·m².
	P012 VarianceModel = p012{}
)

// VarianceModels lists every supported variance model.
func VarianceModels() []VarianceModel { return []VarianceModel{P12, P012} }

// ParseVarianceModel returns the variance model with the given name
// (case-insensitive).
func ParseVarianceModel(name string) (VarianceModel, error) {
	for _, vm := range VarianceModels() {
		if strings.EqualFold(strings.TrimSpace(name), vm.Name()) {
			return vm, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVarianceModel, name)
}

type p12 struct{}

func (p12) varianceModel() {}

func (p12) Name() string { return "p12" }

func (p12) NumParams() int { return 2 }

func (p12) Init() []float64 { return []float64{0.55, 0.51} }

func (p12) Variance(m float64, F []float64) float64 {
	return m * (F[0] + m*F[1])
}

func (p p12) VarianceGrad(grad []float64, m float64, F []float64) float64 {
	grad[0] = m
	grad[1] = m * m
	return p.Variance(m, F)
}

type p012 struct{}

func (p012) varianceModel() {}

func (p012) Name() string { return "p012" }

func (p012) NumParams() int { return 3 }

func (p012) Init() []float64 {
	F := P12.Init()
	return []float64{1e-7, F[0], F[1]}
}

func (p012) Variance(m float64, F []float64) float64 {
	return F[0] + m*(F[1]+m*F[2])
}

func (p p012) VarianceGrad(grad []float64, m float64, F []float64) float64 {
	grad[0] = 1
	grad[1] = m
	grad[2] = m * m
	return p.Variance(m, F)
}
