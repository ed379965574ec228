package server

import "time"

// APIError is the canonical error envelope returned by JSON endpoints.
// The frontend expects the `error` field and will surface it to the user.
type APIError struct {
	Error string `json:"error"`
}

// HealthResponse is returned by /api/health to confirm the server is running.
type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
	Datasets  int       `json:"datasets"`
	CachedFit int       `json:"cachedFits"`
}

// DatasetResponse is returned by the dataset upload endpoints.
// DatasetID is content-derived: uploading the same dataset twice yields the
// same id.
type DatasetResponse struct {
	DatasetID string `json:"datasetId"`
	N         int    `json:"n"`
	Dim       int    `json:"dim"`
}

// FitRequest selects a dataset and the fit to run on it.
// Zero MaxIter and Tolerance mean the fitter defaults. Force skips the cache.
type FitRequest struct {
	DatasetID string  `json:"datasetId"`
	Density   string  `json:"density"`
	Model     string  `json:"model"`
	MaxIter   int     `json:"maxIter,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`
	Force     bool    `json:"force,omitempty"`
}

// FitResponse is returned by /api/fit.
type FitResponse struct {
	FitID      string    `json:"fitId"`
	F          []float64 `json:"F"`
	LogLike    float64   `json:"logLike"`
	Iterations int       `json:"iterations"`
	Status     string    `json:"status"`
	Cached     bool      `json:"cached"`
}

// EvalRequest asks for per-observation p-values. When F is omitted the
// dataset is fitted first (or the cached fit is used).
type EvalRequest struct {
	DatasetID string    `json:"datasetId"`
	Density   string    `json:"density"`
	Model     string    `json:"model"`
	F         []float64 `json:"F,omitempty"`
}

type EvalResponse struct {
	F []float64 `json:"F"`
	P []float64 `json:"p"`
}

type StatsRequest struct {
	DatasetID string `json:"datasetId"`
}

// StatsResponse summarizes a dataset's ROWS.
type StatsResponse struct {
	Size          float64     `json:"size"`
	Mean          []float64   `json:"mean"`
	Covariance    [][]float64 `json:"covariance"`
	Correlation   [][]float64 `json:"correlation"`
	Rank          int         `json:"rank"`
	EffectiveSize float64     `json:"effectiveSize"`
}

// IterationDTO is the websocket view of one optimizer step.
type IterationDTO struct {
	FitID    string    `json:"fitId"`
	Iter     int       `json:"iter"`
	F        []float64 `json:"F"`
	Obj      float64   `json:"obj"`
	NewObj   float64   `json:"newObj"`
	StepSize float64   `json:"stepSize"`
}

// FitEventDTO marks the start and end of a fit on the websocket feed.
type FitEventDTO struct {
	FitID     string `json:"fitId"`
	Stage     string `json:"stage"`
	DatasetID string `json:"datasetId"`
	Density   string `json:"density"`
	Model     string `json:"model"`
	Status    string `json:"status,omitempty"`
}
