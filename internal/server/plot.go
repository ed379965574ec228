package server

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/CK6170/MaxFactor-go/maxfactor"
	"github.com/CK6170/MaxFactor-go/models"
)

// renderFitPlot draws the observations against their means with the fitted
// mean and a ±2 standard deviation band, as a PNG.
func renderFitPlot(w io.Writer, ds *models.DATASET, fitter *maxfactor.Fitter, F []float64) error {
	if len(ds.X) == 0 {
		return fmt.Errorf("dataset has no observations")
	}

	pts := make(plotter.XYs, len(ds.X))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range ds.X {
		pts[i].X = ds.M[i]
		pts[i].Y = ds.X[i]
		lo = math.Min(lo, ds.M[i])
		hi = math.Max(hi, ds.M[i])
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s / %s  F=%.4g", fitter.Density().Name(), fitter.VarianceModel().Name(), F)
	p.X.Label.Text = "expected mean"
	p.Y.Label.Text = "observation"

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Radius = vg.Points(1.5)
	sc.GlyphStyle.Color = color.RGBA{R: 70, G: 110, B: 200, A: 160}

	vm := fitter.VarianceModel()
	sd := func(m float64) float64 { return math.Sqrt(vm.Variance(m, F)) }

	mean := plotter.NewFunction(func(m float64) float64 { return m })
	upper := plotter.NewFunction(func(m float64) float64 { return m + 2*sd(m) })
	lower := plotter.NewFunction(func(m float64) float64 { return m - 2*sd(m) })
	for _, fn := range []*plotter.Function{mean, upper, lower} {
		fn.XMin, fn.XMax = lo, hi
		fn.Samples = 100
		fn.Width = vg.Points(1.5)
	}
	mean.Color = color.RGBA{R: 200, G: 40, B: 40, A: 255}
	for _, fn := range []*plotter.Function{upper, lower} {
		fn.Color = color.RGBA{R: 230, G: 140, B: 20, A: 255}
		fn.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	}

	p.Add(plotter.NewGrid(), sc, mean, upper, lower)
	p.Legend.Add("observations", sc)
	p.Legend.Add("mean", mean)
	p.Legend.Add("±2 sd", upper)
	p.Legend.Top = true
	p.Legend.Left = true

	wt, err := p.WriterTo(7*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
