// Package plan defines the immutable data carriers shared by the planner,
// executor, tool router and event bus: Plan, Step, StepState, Artifact and
// the Event taxonomy. A run's lifecycle record is runstore.RunRecord.
package plan

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRunID mints a globally unique 128-bit run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Plan is the planner's output: a goal and a dependency-ordered list of
// steps. Immutable after construction.
type Plan struct {
	Goal  string `json:"goal"`
	Steps []Step `json:"steps"`
	// Metadata carries planner provenance (which planner, model name, ...).
	// The core never reads it; it exists for transport/UI display.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Step is one planned tool invocation.
type Step struct {
	ID string `json:"id"`
	// Label is an optional human-facing title, defaulting to ID when empty.
	// Cosmetic only; never consulted by core logic.
	Label   string                 `json:"label,omitempty"`
	Tool    string                 `json:"tool"`
	Input   map[string]interface{} `json:"input"`
	Success string                 `json:"success"`
	Deps    []string               `json:"deps,omitempty"`
}

// DisplayLabel returns Label if set, else ID.
func (s Step) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.ID
}

// MaxAttempts reads the optional top-level "maxAttempts" input field,
// clamped to 1..10. def is used when the field is absent or invalid.
func (s Step) MaxAttempts(def int) int {
	raw, ok := s.Input["maxAttempts"]
	if !ok {
		return clampAttempts(def)
	}
	var n int
	switch v := raw.(type) {
	case float64:
		n = int(v)
	case int:
		n = v
	default:
		return clampAttempts(def)
	}
	return clampAttempts(n)
}

func clampAttempts(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// StepState is one of the monotonic per-attempt transitions a step moves
// through: Pending -> Running -> {Succeeded, Failed, Skipped}.
type StepState string

const (
	StepPending   StepState = "pending"
	StepRunning   StepState = "running"
	StepSucceeded StepState = "succeeded"
	StepFailed    StepState = "failed"
	StepSkipped   StepState = "skipped"
)

// Artifact is a file produced by a tool and (once persisted) located in the
// Artifact Store's run-scoped directory.
type Artifact struct {
	FileName string `json:"fileName"`
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Validate checks structural invariants of a plan: unique step ids,
// topological dependency ordering (every dep of S appears earlier than S).
func Validate(p *Plan) error {
	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.ID == "" {
			return fmt.Errorf("step %d: empty id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("step %q: duplicate id", s.ID)
		}
		for _, dep := range s.Deps {
			if !seen[dep] {
				return fmt.Errorf("step %q: dependency %q does not appear earlier in the plan", s.ID, dep)
			}
		}
		seen[s.ID] = true
	}
	return nil
}
