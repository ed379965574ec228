package server

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/CK6170/MaxFactor-go/models"
)

type DatasetRecord struct {
	ID string
	D  *models.DATASET
	// Filename as uploaded (best-effort, may be empty)
	Filename string
}

type DatasetStore struct {
	mu sync.RWMutex
	m  map[string]*DatasetRecord
}

func NewDatasetStore() *DatasetStore {
	return &DatasetStore{m: make(map[string]*DatasetRecord)}
}

// Put validates d and stores it under its content id. Storing an identical
// dataset again returns the existing record.
func (s *DatasetStore) Put(d *models.DATASET, filename string) (*DatasetRecord, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	id, err := datasetID(d)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.m[id]; ok {
		return rec, nil
	}
	rec := &DatasetRecord{ID: id, D: d, Filename: filename}
	s.m[id] = rec
	return rec, nil
}

func (s *DatasetStore) Get(id string) (*DatasetRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[id]
	return r, ok
}

func (s *DatasetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// datasetID hashes the numeric content of d. NAME is excluded so renaming a
// file does not invalidate cached fits.
func datasetID(d *models.DATASET) (string, error) {
	payload := struct {
		X       []float64   `json:"x"`
		M       []float64   `json:"m"`
		ROWS    [][]float64 `json:"rows,omitempty"`
		WEIGHTS []float64   `json:"weights,omitempty"`
	}{d.X, d.M, d.ROWS, d.WEIGHTS}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hash dataset: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(raw)), nil
}
