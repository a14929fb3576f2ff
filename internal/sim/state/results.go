// Package state holds the results of completed runs for a batch.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RunResult is the outcome of one (location, draw) run.
type RunResult struct {
	// RunID is the unique identifier logged with every line of the run.
	RunID    string `yaml:"run_id"`
	Location string `yaml:"location"`
	Draw     int    `yaml:"draw"`
	Schedule string `yaml:"schedule"`
	Scenario string `yaml:"scenario"`

	// Efficacy and CatchupProportion are the run's sampled parameters.
	Efficacy          float64 `yaml:"efficacy"`
	CatchupProportion float64 `yaml:"catchup_proportion"`

	Steps    int           `yaml:"steps"`
	Duration time.Duration `yaml:"duration"`
	// Metrics is the observer output keyed by rendered cell name.
	Metrics map[string]float64 `yaml:"metrics"`
	// Error is set when the run failed.
	Error string `yaml:"error,omitempty"`
}

// Failed reports whether the run ended in error.
func (r RunResult) Failed() bool { return r.Error != "" }

// ResultStore is a concurrency-safe store of run results keyed by location
// and draw.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*RunResult // key: "location/draw"
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*RunResult)}
}

func resultKey(location string, draw int) string {
	return fmt.Sprintf("%s/%d", location, draw)
}

// Put stores a copy of r, replacing any earlier result for the same
// location and draw.
func (s *ResultStore) Put(r *RunResult) error {
	if r == nil {
		return errors.New("run result is nil")
	}
	if r.Location == "" {
		return errors.New("location is required")
	}
	cp := copyResult(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[resultKey(r.Location, r.Draw)] = cp
	return nil
}

// Get returns a copy of the result for location and draw, or nil.
func (s *ResultStore) Get(location string, draw int) *RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[resultKey(location, draw)]
	if !ok || r == nil {
		return nil
	}
	return copyResult(r)
}

// List returns copies of every result ordered by location then draw.
func (s *ResultStore) List() []*RunResult {
	s.mu.RLock()
	out := make([]*RunResult, 0, len(s.results))
	for _, r := range s.results {
		if r == nil {
			continue
		}
		out = append(out, copyResult(r))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Draw < out[j].Draw
	})
	return out
}

// Failures counts results that ended in error.
func (s *ResultStore) Failures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if r != nil && r.Failed() {
			n++
		}
	}
	return n
}

// Len returns the number of stored results.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

func copyResult(r *RunResult) *RunResult {
	cp := *r
	if r.Metrics != nil {
		cp.Metrics = make(map[string]float64, len(r.Metrics))
		for k, v := range r.Metrics {
			cp.Metrics[k] = v
		}
	}
	return &cp
}
