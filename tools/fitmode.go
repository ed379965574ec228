package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/CK6170/MaxFactor-go/file"
	"github.com/CK6170/MaxFactor-go/matrix"
	"github.com/CK6170/MaxFactor-go/maxfactor"
	models "github.com/CK6170/MaxFactor-go/models"
	"github.com/CK6170/MaxFactor-go/stats"
	ui "github.com/CK6170/MaxFactor-go/ui"
)

// fitmode runs one fit offline:
//
//	go run ./tools fitmode.json
//	go run ./tools -dataset data.json -density logt -model p012
//
// The job file holds a DATASET and a FIT section. With -dataset a bare
// DATASET file is fitted instead and the fit comes from the flags alone. The
// fitted parameters and p-values are written next to the input as
// <name>_fit.json, and a CSV line with the run's numbers is appended to
// fitmode_debug.csv when FIT.DEBUG is set.
func main() {
	density := flag.String("density", "", "override FIT.DENSITY")
	model := flag.String("model", "", "override FIT.MODEL")
	dataset := flag.String("dataset", "", "fit this DATASET file instead of a job file")
	debugFlag := flag.Bool("debug", false, "print each iteration (with -dataset)")
	noSave := flag.Bool("nosave", false, "print only, do not write the result file")
	flag.Parse()

	path := "fitmode.json"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	log.SetFlags(0)
	log.SetOutput(ui.NewRedWriter(os.Stderr))

	var job *models.JOB
	var err error
	if *dataset != "" {
		path = *dataset
		job, err = loadDatasetJob(path, *debugFlag)
	} else {
		job, err = file.LoadJob(path)
	}
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	if *density != "" {
		job.FIT.DENSITY = *density
	}
	if *model != "" {
		job.FIT.MODEL = *model
	}

	res, debug, err := run(job)
	if err != nil {
		log.Fatalf("fit: %v", err)
	}
	if job.FIT.DEBUG {
		file.AppendToFile("fitmode_debug.csv", time.Now().Format(time.RFC3339)+","+path+"\n"+debug)
	}
	if !*noSave {
		if err := file.SaveToJSON(file.ResultPath(path), res); err != nil {
			log.Fatalf("save: %v", err)
		}
	}
}

// loadDatasetJob wraps a bare DATASET file in a job with the default
// gamma/p12 fit.
func loadDatasetJob(path string, debug bool) (*models.JOB, error) {
	ds, err := file.LoadDataset(path)
	if err != nil {
		return nil, err
	}
	return &models.JOB{
		DATASET: ds,
		FIT:     &models.FITCONFIG{DENSITY: maxfactor.Gamma.Name(), MODEL: maxfactor.P12.Name(), DEBUG: debug},
	}, nil
}

// run fits job and prints its report. It returns the result to persist and
// the debug CSV lines collected along the way.
func run(job *models.JOB) (*models.FITRESULT, string, error) {
	cfg := job.FIT
	d, err := maxfactor.ParseDensity(cfg.DENSITY)
	if err != nil {
		return nil, "", err
	}
	vm, err := maxfactor.ParseVarianceModel(cfg.MODEL)
	if err != nil {
		return nil, "", err
	}

	opts := []maxfactor.Option{}
	if cfg.MAXITER > 0 {
		opts = append(opts, maxfactor.WithMaxIter(cfg.MAXITER))
	}
	if cfg.TOLERANCE > 0 {
		opts = append(opts, maxfactor.WithTolerance(cfg.TOLERANCE))
	}
	if cfg.DEBUG {
		opts = append(opts, maxfactor.WithTrace(ui.PrintIterationLine))
	}
	fitter := maxfactor.New(d, vm, opts...)

	ds := job.DATASET
	ui.Debugf(cfg.DEBUG, "fitting %d observations with %s/%s\n", len(ds.X), d.Name(), vm.Name())

	start := time.Now()
	res := fitter.Fit(ds.X, ds.M)
	if cfg.DEBUG {
		fmt.Fprintln(ui.Out)
	}
	ui.PrintResultLine(fmt.Sprintf("%s/%s", d.Name(), vm.Name()), res)
	ui.Debugf(cfg.DEBUG, "fit took %s\n", time.Since(start))
	if res.Status != maxfactor.StatusConverged {
		ui.Warningf("Warning: fit stopped after %d iterations without converging\n", res.Iterations)
	}

	debug := file.RecordData("", matrix.NewVectorFrom(res.F), "F", "")
	p := fitter.EvalAll(ds.X, ds.M, res.F)
	if len(p) > 0 {
		debug = file.RecordData(debug, matrix.NewVectorFrom(p), "p", "%14.6e")
	}

	if est := rowStats(ds); est != nil {
		debug = file.RecordMatrix(debug, est.CovarianceMatrix(1), "covariance", "")
		if cfg.DEBUG {
			matrix.PrintMatrix(est.CorrelationMatrix(true), "correlation", true)
		}
		ui.Greenf("rank %d, effective size %.4f of %d\n", est.Rank(), est.EffectiveSize(), est.Dim())
	}

	return &models.FITRESULT{
		DENSITY:    d.Name(),
		MODEL:      vm.Name(),
		F:          res.F,
		LOGLIKE:    res.LogLike,
		ITERATIONS: res.Iterations,
		STATUS:     res.Status.String(),
		P:          p,
	}, debug, nil
}

// rowStats returns the estimator over ds.ROWS, or nil when there are no rows
// or their total weight is too small for a sample covariance.
func rowStats(ds *models.DATASET) *stats.Estimator {
	if len(ds.ROWS) == 0 {
		return nil
	}
	est := stats.FromRows(ds.ROWS, ds.WEIGHTS)
	if !(est.Size() > 1) {
		ui.Warningf("Warning: total row weight %g too small for row statistics\n", est.Size())
		return nil
	}
	return est
}
