// Package budget implements the Budget Manager: per-step timeout scopes
// composed from a run-wide cancellation signal and a per-step deadline,
// plus a shared run-wide token counter. Acquiring a Scope starts its
// timers; releasing it guarantees cleanup on every exit path.
package budget

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scope is a scoped resource returned by Manager.Step. Ctx carries the
// composed deadline; Release must be called on every exit path (success,
// failure, or cancellation) to free the per-step timer.
type Scope struct {
	Ctx     context.Context
	cancel  context.CancelFunc
	release sync.Once
}

// Release cancels the per-step context and frees its tracking. Safe to
// call more than once.
func (s *Scope) Release() {
	s.release.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Manager tracks per-run token spend and issues per-step timeout scopes.
type Manager struct {
	mu     sync.Mutex
	spent  map[string]*int64
	budget map[string]int64
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		spent:  make(map[string]*int64),
		budget: make(map[string]int64),
	}
}

// Step returns a Scope whose context is cancelled when parent is
// cancelled or timeout elapses, whichever comes first. A timeout of zero
// means "no step-local deadline beyond the parent's own lifetime".
// tokenBudget registers (if not already registered) the ceiling used by
// SpendTokens for runID; a tokenBudget of zero leaves any existing budget
// for runID untouched, or disables the check if none was ever set.
func (m *Manager) Step(parent context.Context, runID string, timeout time.Duration, tokenBudget int64) Scope {
	m.mu.Lock()
	if _, ok := m.spent[runID]; !ok {
		zero := int64(0)
		m.spent[runID] = &zero
	}
	if tokenBudget > 0 {
		if _, ok := m.budget[runID]; !ok {
			m.budget[runID] = tokenBudget
		}
	}
	m.mu.Unlock()

	ctx := parent
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	return Scope{Ctx: ctx, cancel: cancel}
}

// SpendTokens atomically adds n to runID's cumulative spend and reports
// whether the run remains within budget. A run with no registered budget
// is treated as unbounded and always returns true.
func (m *Manager) SpendTokens(runID string, n int64) bool {
	m.mu.Lock()
	counter, ok := m.spent[runID]
	if !ok {
		zero := int64(0)
		counter = &zero
		m.spent[runID] = counter
	}
	limit, hasLimit := m.budget[runID]
	m.mu.Unlock()

	total := atomic.AddInt64(counter, n)
	if !hasLimit {
		return true
	}
	return total <= limit
}

// Spent returns the current cumulative spend for runID.
func (m *Manager) Spent(runID string) int64 {
	m.mu.Lock()
	counter, ok := m.spent[runID]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// EstimateTokens applies the Executor's coarse estimate of
// max(1, len(summary)/4) tokens per step.
func EstimateTokens(summary string) int64 {
	n := int64(len(summary) / 4)
	if n < 1 {
		return 1
	}
	return n
}
