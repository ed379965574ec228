package maxfactor

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mathext"
)

// Density is a likelihood family parametrized by mean m and variance v.
//
// The set is closed: Gamma and LogT are the only implementations.
type Density interface {
	Name() string

	// LogF returns the log-density of x (up to an additive constant).
	LogF(x, m, v float64) float64

	// LogFV returns the log-density together with its first and second
	// derivatives with respect to v.
	LogFV(x, m, v float64) (f, df, d2f float64)

	// RightTail returns P(X >= x). The support is x > 0, so it is 1 for
	// x <= 0.
	RightTail(x, m, v float64) float64

	density()
}

var (
	// Gamma is the gamma distribution with shape m²/v and rate m/v.
	Gamma Density = gammaDensity{}

	// LogT is a Student's t with one degree of freedom (Cauchy) on log x,
	// with location and scale matched to the mean and variance of a
	// log-normal.
	LogT Density = logTDensity{}
)

// Densities lists every supported density family.
func Densities() []Density { return []Density{Gamma, LogT} }

// ParseDensity returns the density family with the given name
// (case-insensitive).
func ParseDensity(name string) (Density, error) {
	for _, d := range Densities() {
		if strings.EqualFold(strings.TrimSpace(name), d.Name()) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDensity, name)
}

type gammaDensity struct{}

func (gammaDensity) density() {}

func (gammaDensity) Name() string { return "gamma" }

// shapeRate maps (m, v) to the gamma shape a and rate b.
func shapeRate(m, v float64) (a, b float64) {
	b = m / v
	return m * b, b
}

func lgamma(a float64) float64 {
	l, _ := math.Lgamma(a)
	return l
}

// trigamma is ψ'(a) = ζ(2, a).
func trigamma(a float64) float64 {
	return mathext.Zeta(2, a)
}

func (gammaDensity) LogF(x, m, v float64) float64 {
	a, b := shapeRate(m, v)
	return a*math.Log(b) - lgamma(a) + (a-1)*math.Log(x) - b*x
}

// LogFV differentiates through b = m/v and a = m·b:
//
//	db/dv = -b/v,  d²b/dv² = 2b/v²,  da/dv = m·db/dv.
func (gammaDensity) LogFV(x, m, v float64) (f, df, d2f float64) {
	a, b := shapeRate(m, v)
	gb := -b / v
	hb := -2 * gb / v

	logB := math.Log(b)
	logX := math.Log(x)
	psi := mathext.Digamma(a)

	f = a*logB - lgamma(a) + (a-1)*logX - b*x
	df = gb * (m*(logB+1-psi+logX) - x)
	d2f = hb * (m*(logB+1.5-psi-0.5*a*trigamma(a)+logX) - x)
	return f, df, d2f
}

func (gammaDensity) RightTail(x, m, v float64) float64 {
	switch {
	case x <= 0:
		return 1
	case math.IsInf(x, 1):
		return 0
	}
	a, b := shapeRate(m, v)
	return mathext.GammaIncRegComp(a, b*x)
}

type logTDensity struct{}

func (logTDensity) density() {}

func (logTDensity) Name() string { return "logt" }

// locationScale returns the log-space location and scale
//
//	lm = log(m²/√(m²+v)),  ls = √log(1 + v/m²).
func locationScale(m, v float64) (lm, ls float64) {
	m2 := m * m
	return math.Log(m2 / math.Sqrt(m2+v)), math.Sqrt(math.Log1p(v / m2))
}

func (logTDensity) LogF(x, m, v float64) float64 {
	lm, ls := locationScale(m, v)
	t := (math.Log(x) - lm) / ls
	return -math.Log(ls*x) - math.Log1p(t*t)
}

// LogFV applies the chain rule through s = ls and u = log x - lm, t = u/s.
// With c = 1/(m²+v):
//
//	s' = c/(2s)                 s'' = -c²/(2s) - c²/(4s³)
//	u' = c/2                    u'' = -c²/2
//	t' = (u' - t·s')/s          t'' = (u'' - 2t'·s' - t·s'')/s
//	f  = -log(s·x) - log(1+t²)
//	f' = -s'/s - 2t·t'/(1+t²)
//	f''= -s''/s + (s'/s)² - 2(t'² + t·t'')/(1+t²) + 4t²t'²/(1+t²)²
func (logTDensity) LogFV(x, m, v float64) (f, df, d2f float64) {
	lm, s := locationScale(m, v)
	c := 1 / (m*m + v)

	ds := c / (2 * s)
	d2s := -c*c/(2*s) - c*c/(4*s*s*s)
	du := c / 2
	d2u := -c * c / 2

	t := (math.Log(x) - lm) / s
	dt := (du - t*ds) / s
	d2t := (d2u - 2*dt*ds - t*d2s) / s
	q := 1 + t*t

	f = -math.Log(s*x) - math.Log1p(t*t)
	df = -ds/s - 2*t*dt/q
	d2f = -d2s/s + (ds/s)*(ds/s) - 2*(dt*dt+t*d2t)/q + 4*t*t*dt*dt/(q*q)
	return f, df, d2f
}

// RightTail uses P(T >= t) = ½·I_{1/(1+t²)}(½, ½) for t >= 0 and its
// complement for t < 0.
func (logTDensity) RightTail(x, m, v float64) float64 {
	if x <= 0 {
		return 1
	}
	lm, ls := locationScale(m, v)
	t := (math.Log(x) - lm) / ls
	half := 0.5 * mathext.RegIncBeta(0.5, 0.5, 1/(1+t*t))
	if t < 0 {
		return 1 - half
	}
	return half
}
