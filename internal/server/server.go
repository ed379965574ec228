package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/CK6170/MaxFactor-go/maxfactor"
	"github.com/CK6170/MaxFactor-go/models"
	"github.com/CK6170/MaxFactor-go/stats"
)

// Config configures a Server.
type Config struct {
	// WebDir, when set, is served at / as a static frontend.
	WebDir string
	// CachePath is the fit cache file. Empty keeps the cache in memory only.
	CachePath string
	// Logger defaults to log.Default().
	Logger *log.Logger
}

type Server struct {
	mux *http.ServeMux
	log *log.Logger

	datasets *DatasetStore
	fits     *FitCache
	metrics  *Metrics

	wsFit *WSHub
}

func New(cfg Config) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		log:      cfg.Logger,
		datasets: NewDatasetStore(),
		fits:     NewFitCache(cfg.CachePath),
		metrics:  NewMetrics(),
		wsFit:    NewWSHub(),
	}
	if s.log == nil {
		s.log = log.Default()
	}

	// API responses can carry one p-value per observation, so they are gzipped
	// when the client accepts it.
	api := http.NewServeMux()
	api.HandleFunc("/api/health", s.handleHealth)
	api.HandleFunc("/api/dataset", s.handleDataset)
	api.HandleFunc("/api/upload/dataset", s.handleUploadDataset)
	api.HandleFunc("/api/download", s.handleDownload)
	api.HandleFunc("/api/fit", s.handleFit)
	api.HandleFunc("/api/eval", s.handleEval)
	api.HandleFunc("/api/stats", s.handleStats)
	api.HandleFunc("/api/plot", s.handlePlot)
	s.mux.Handle("/api/", gzhttp.GzipHandler(api))

	s.mux.Handle("/metrics", s.metrics.Handler())
	s.mux.HandleFunc("/ws/fit", s.handleWSFit)

	if cfg.WebDir != "" {
		fs := http.FileServer(http.Dir(cfg.WebDir))
		s.mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Path
			if p == "/" || strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".js") || strings.HasSuffix(p, ".css") {
				w.Header().Set("Cache-Control", "no-store")
			}
			fs.ServeHTTP(w, r)
		}))
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// writeJSON encodes v before committing status, so an unencodable value
// (NaN, Inf) becomes a 500 instead of an empty success.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("ERROR: encode response: %v", err)
		b, _ = json.Marshal(APIError{Error: "encode response: " + err.Error()})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

// writeError writes the APIError envelope and counts client errors.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 400 && status < 500 {
		s.metrics.badRequests.Inc()
	} else {
		s.log.Printf("ERROR: %v", err)
	}
	s.writeJSON(w, status, APIError{Error: err.Error()})
}

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, HealthResponse{
		OK:        true,
		Timestamp: time.Now(),
		Datasets:  s.datasets.Len(),
		CachedFit: s.fits.Len(),
	})
}

// ==============================================================================
// Datasets
// ==============================================================================

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var ds models.DATASET
	if err := s.readJSON(r, &ds); err != nil {
		s.writeError(w, 400, err)
		return
	}
	s.putDataset(w, &ds, ds.NAME)
}

func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	f, hdr, err := fileFromMultipart(r, "file")
	if err != nil {
		s.writeError(w, 400, err)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, 32<<20))
	if err != nil {
		s.writeError(w, 400, err)
		return
	}
	var ds models.DATASET
	if err := json.Unmarshal(raw, &ds); err != nil {
		s.writeError(w, 400, fmt.Errorf("parse dataset: %w", err))
		return
	}
	name := ds.NAME
	if hdr != nil && name == "" {
		name = hdr.Filename
	}
	s.putDataset(w, &ds, name)
}

func (s *Server) putDataset(w http.ResponseWriter, ds *models.DATASET, name string) {
	rec, err := s.datasets.Put(ds, name)
	if err != nil {
		s.writeError(w, 400, err)
		return
	}
	s.metrics.datasets.Set(float64(s.datasets.Len()))
	s.writeJSON(w, 200, DatasetResponse{DatasetID: rec.ID, N: len(rec.D.X), Dim: rec.D.Dim()})
}

func fileFromMultipart(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, nil, err
	}
	return r.FormFile(field)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rec, ok := s.lookupDataset(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	name := rec.Filename
	if strings.TrimSpace(name) == "" {
		name = rec.ID + ".json"
	}
	raw, err := json.MarshalIndent(rec.D, "", "  ")
	if err != nil {
		s.writeError(w, 500, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	w.WriteHeader(200)
	_, _ = w.Write(raw)
}

func (s *Server) lookupDataset(w http.ResponseWriter, id string) (*DatasetRecord, bool) {
	if strings.TrimSpace(id) == "" {
		s.writeError(w, 400, errors.New("missing datasetId"))
		return nil, false
	}
	rec, ok := s.datasets.Get(id)
	if !ok {
		s.writeError(w, 404, fmt.Errorf("dataset %s not found (upload it first)", id))
		return nil, false
	}
	return rec, true
}

// ==============================================================================
// Fit / Eval
// ==============================================================================

func newFitter(density, model string, opts ...maxfactor.Option) (*maxfactor.Fitter, error) {
	d, err := maxfactor.ParseDensity(density)
	if err != nil {
		return nil, err
	}
	vm, err := maxfactor.ParseVarianceModel(model)
	if err != nil {
		return nil, err
	}
	return maxfactor.New(d, vm, opts...), nil
}

// fit returns the cached result for req, or runs the fit, caches it and
// reports it on /ws/fit.
func (s *Server) fit(rec *DatasetRecord, req FitRequest) (string, *models.FITRESULT, bool, error) {
	probe, err := newFitter(req.Density, req.Model)
	if err != nil {
		return "", nil, false, err
	}
	density := probe.Density().Name()
	model := probe.VarianceModel().Name()
	if req.MaxIter < 0 || req.Tolerance < 0 {
		return "", nil, false, errors.New("maxIter and tolerance must not be negative")
	}

	key := fitKey(rec.ID, density, model, req.MaxIter, req.Tolerance)
	if !req.Force {
		if res, ok := s.fits.Get(key); ok {
			s.metrics.cacheHits.Inc()
			return key, res, true, nil
		}
	}

	event := FitEventDTO{FitID: key, DatasetID: rec.ID, Density: density, Model: model}
	opts := []maxfactor.Option{maxfactor.WithTrace(func(it maxfactor.Iteration) {
		s.wsFit.Broadcast(WSMessage{Type: wsTypeIteration, Data: IterationDTO{
			FitID:    key,
			Iter:     it.Iter,
			F:        append([]float64(nil), it.F...),
			Obj:      it.Obj,
			NewObj:   it.NewObj,
			StepSize: it.StepSize,
		}})
	})}
	if req.MaxIter > 0 {
		opts = append(opts, maxfactor.WithMaxIter(req.MaxIter))
	}
	if req.Tolerance > 0 {
		opts = append(opts, maxfactor.WithTolerance(req.Tolerance))
	}
	fitter := maxfactor.New(probe.Density(), probe.VarianceModel(), opts...)

	event.Stage = models.STARTED.String()
	s.wsFit.Broadcast(WSMessage{Type: wsTypeFit, Data: event})

	start := time.Now()
	res := fitter.Fit(rec.D.X, rec.D.M)
	s.metrics.fitDuration.Observe(time.Since(start).Seconds())
	s.metrics.fitIters.Observe(float64(res.Iterations))
	s.metrics.fits.WithLabelValues(density, model, res.Status.String()).Inc()

	event.Stage = models.FINISHED.String()
	event.Status = res.Status.String()
	s.wsFit.Broadcast(WSMessage{Type: wsTypeFit, Data: event})

	out := &models.FITRESULT{
		DENSITY:    density,
		MODEL:      model,
		F:          res.F,
		LOGLIKE:    res.LogLike,
		ITERATIONS: res.Iterations,
		STATUS:     res.Status.String(),
	}
	if err := s.fits.Set(key, out); err != nil {
		s.log.Printf("WARN: %v", err)
	}
	return key, out, false, nil
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req FitRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, 400, err)
		return
	}
	rec, ok := s.lookupDataset(w, req.DatasetID)
	if !ok {
		return
	}
	key, res, cached, err := s.fit(rec, req)
	if err != nil {
		s.writeError(w, 400, err)
		return
	}
	s.writeJSON(w, 200, FitResponse{
		FitID:      key,
		F:          res.F,
		LogLike:    res.LOGLIKE,
		Iterations: res.ITERATIONS,
		Status:     res.STATUS,
		Cached:     cached,
	})
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req EvalRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, 400, err)
		return
	}
	rec, ok := s.lookupDataset(w, req.DatasetID)
	if !ok {
		return
	}
	fitter, err := newFitter(req.Density, req.Model)
	if err != nil {
		s.writeError(w, 400, err)
		return
	}

	F := req.F
	if F == nil {
		_, res, _, err := s.fit(rec, FitRequest{DatasetID: rec.ID, Density: req.Density, Model: req.Model})
		if err != nil {
			s.writeError(w, 400, err)
			return
		}
		F = res.F
	}
	if err := checkParams(fitter.VarianceModel(), rec.D.M, F); err != nil {
		s.writeError(w, 400, err)
		return
	}

	p := fitter.EvalAll(rec.D.X, rec.D.M, F)
	s.metrics.evals.Add(float64(len(p)))
	s.writeJSON(w, 200, EvalResponse{F: F, P: p})
}

// checkParams rejects parameter vectors the fitter would panic on.
func checkParams(vm maxfactor.VarianceModel, m, F []float64) error {
	if len(F) != vm.NumParams() {
		return fmt.Errorf("%s expects %d parameters, got %d", vm.Name(), vm.NumParams(), len(F))
	}
	for _, mi := range m {
		if v := vm.Variance(mi, F); !(v > 0) {
			return fmt.Errorf("variance %g at mean %g is not positive", v, mi)
		}
	}
	return nil
}

// ==============================================================================
// Stats / Plot
// ==============================================================================

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req StatsRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, 400, err)
		return
	}
	rec, ok := s.lookupDataset(w, req.DatasetID)
	if !ok {
		return
	}
	if len(rec.D.ROWS) == 0 {
		s.writeError(w, 400, errors.New("dataset has no ROWS"))
		return
	}

	est := stats.FromRows(rec.D.ROWS, rec.D.WEIGHTS)
	if !(est.Size() > 1) {
		s.writeError(w, 400, fmt.Errorf("total row weight %g must exceed 1", est.Size()))
		return
	}
	s.writeJSON(w, 200, StatsResponse{
		Size:          est.Size(),
		Mean:          est.MeanVector(),
		Covariance:    est.CovarianceMatrix(1).Values,
		Correlation:   est.CorrelationMatrix(true).Values,
		Rank:          est.Rank(),
		EffectiveSize: est.EffectiveSize(),
	})
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	rec, ok := s.lookupDataset(w, q.Get("datasetId"))
	if !ok {
		return
	}
	req := FitRequest{DatasetID: rec.ID, Density: q.Get("density"), Model: q.Get("model")}
	_, res, _, err := s.fit(rec, req)
	if err != nil {
		s.writeError(w, 400, err)
		return
	}
	fitter, err := newFitter(req.Density, req.Model)
	if err != nil {
		s.writeError(w, 400, err)
		return
	}

	var buf bytes.Buffer
	if err := renderFitPlot(&buf, rec.D, fitter, res.F); err != nil {
		s.writeError(w, 400, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(200)
	_, _ = w.Write(buf.Bytes())
}
