package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each Server owns its own
// registry so several servers (and tests) can coexist in one process.
type Metrics struct {
	reg *prometheus.Registry

	fits        *prometheus.CounterVec
	fitDuration prometheus.Histogram
	fitIters    prometheus.Histogram
	cacheHits   prometheus.Counter
	evals       prometheus.Counter
	badRequests prometheus.Counter
	datasets    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}
	m.fits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maxfactor_fits_total",
		Help: "Fits run, by density, variance model and terminal status.",
	}, []string{"density", "model", "status"})
	m.fitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "maxfactor_fit_duration_seconds",
		Help:    "Wall time of one fit.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	})
	m.fitIters = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "maxfactor_fit_iterations",
		Help:    "Newton iterations per fit.",
		Buckets: prometheus.LinearBuckets(1, 5, 21),
	})
	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maxfactor_fit_cache_hits_total",
		Help: "Fit requests answered from the cache.",
	})
	m.evals = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maxfactor_evaluations_total",
		Help: "Right-tail probabilities computed.",
	})
	m.badRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maxfactor_bad_requests_total",
		Help: "API requests rejected with a 4xx status.",
	})
	m.datasets = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "maxfactor_datasets",
		Help: "Datasets held in memory.",
	})

	m.reg.MustRegister(
		m.fits,
		m.fitDuration,
		m.fitIters,
		m.cacheHits,
		m.evals,
		m.badRequests,
		m.datasets,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
