// Package runstore implements the Run Store: tracking run start/end
// timestamps and per-step state transitions, with an in-process
// implementation and a Redis-backed one sharing the same interface.
package runstore

import (
	"sync"
	"time"

	"github.com/arclabs/pilot/plan"
)

// RunRecord tracks one run's lifecycle timestamps and per-step state.
type RunRecord struct {
	RunID     string
	Started   time.Time
	Ended     time.Time
	HasEnded  bool
	StepState map[string]plan.StepState
}

// Store is the Run Store contract.
type Store interface {
	// MarkRunStart records the start time on first call for runID and is
	// idempotent on repeated calls; it returns the (started, ended) pair
	// known so far.
	MarkRunStart(runID string) (started time.Time, ended *time.Time)

	// MarkRunEnd records the end time for runID.
	MarkRunEnd(runID string, ended time.Time)

	// MarkStep records stepID's current state for runID.
	MarkStep(runID, stepID string, state plan.StepState)

	// Get returns the full record for runID, or ok=false if unknown.
	Get(runID string) (RunRecord, bool)
}

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*RunRecord
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*RunRecord)}
}

func (s *MemoryStore) recordFor(runID string) *RunRecord {
	r, ok := s.records[runID]
	if !ok {
		r = &RunRecord{RunID: runID, StepState: make(map[string]plan.StepState)}
		s.records[runID] = r
	}
	return r
}

// MarkRunStart captures the start time on the first call for runID; later
// calls leave the captured start time untouched.
func (s *MemoryStore) MarkRunStart(runID string) (time.Time, *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recordFor(runID)
	if r.Started.IsZero() {
		r.Started = time.Now()
	}
	if r.HasEnded {
		ended := r.Ended
		return r.Started, &ended
	}
	return r.Started, nil
}

// MarkRunEnd records ended as runID's end time.
func (s *MemoryStore) MarkRunEnd(runID string, ended time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recordFor(runID)
	r.Ended = ended
	r.HasEnded = true
}

// MarkStep records stepID's current state.
func (s *MemoryStore) MarkStep(runID, stepID string, state plan.StepState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recordFor(runID)
	r.StepState[stepID] = state
}

// Get returns a copy of runID's record.
func (s *MemoryStore) Get(runID string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[runID]
	if !ok {
		return RunRecord{}, false
	}

	steps := make(map[string]plan.StepState, len(r.StepState))
	for k, v := range r.StepState {
		steps[k] = v
	}
	out := *r
	out.StepState = steps
	return out, true
}

var _ Store = (*MemoryStore)(nil)
