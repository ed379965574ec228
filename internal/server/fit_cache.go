package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/CK6170/MaxFactor-go/models"
)

// FitCache stores finished fits keyed by fitKey, persisted to a JSON file so
// that a restarted server answers repeated requests without refitting.
//
// Dataset ids are content hashes, so a key stays valid across restarts as
// long as the same dataset is uploaded again.
type FitCache struct {
	mu   sync.Mutex
	path string
	m    map[string]*models.FITRESULT
}

func NewFitCache(path string) *FitCache {
	fc := &FitCache{
		path: path,
		m:    map[string]*models.FITRESULT{},
	}
	_ = fc.load()
	return fc
}

func (fc *FitCache) Get(key string) (*models.FITRESULT, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	r, ok := fc.m[key]
	return r, ok
}

// Set stores res under key and rewrites the cache file.
func (fc *FitCache) Set(key string, res *models.FITRESULT) error {
	key = strings.TrimSpace(key)
	if key == "" || res == nil {
		return nil
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.m[key] = res
	return fc.saveLocked()
}

func (fc *FitCache) Len() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.m)
}

// load is best-effort: a missing or corrupt file starts an empty cache.
func (fc *FitCache) load() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.path == "" {
		return nil
	}
	b, err := os.ReadFile(fc.path)
	if err != nil {
		return nil
	}
	var m map[string]*models.FITRESULT
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return nil
	}
	fc.m = m
	return nil
}

func (fc *FitCache) saveLocked() error {
	if fc.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(fc.path), 0o755); err != nil {
		return fmt.Errorf("fit cache: %w", err)
	}
	// encoding/json sorts map keys, so the file is deterministic.
	b, err := json.MarshalIndent(fc.m, "", "  ")
	if err != nil {
		return fmt.Errorf("fit cache: %w", err)
	}
	tmp := fc.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("fit cache: %w", err)
	}
	return os.Rename(tmp, fc.path)
}

// fitKey identifies a fit by dataset and every setting that changes its
// outcome.
func fitKey(datasetID, density, model string, maxIter int, tol float64) string {
	raw := strings.Join([]string{
		datasetID,
		density,
		model,
		strconv.Itoa(maxIter),
		strconv.FormatFloat(tol, 'g', -1, 64),
	}, "|")
	return fmt.Sprintf("%016x", xxhash.Sum64String(raw))
}
