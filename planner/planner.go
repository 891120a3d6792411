// Package planner implements the Planner: turning a goal into a
// validated, dependency-ordered Plan. LLMPlanner extracts and validates a
// JSON plan from a model response; StaticPlanner loads a flat Plan/Step
// document from YAML.
package planner

import (
	"context"
	"fmt"

	"github.com/arclabs/pilot/plan"
)

// Planner turns a goal into a Plan. Implementations must return a Plan
// that passes plan.Validate before returning it, or an error.
type Planner interface {
	Plan(ctx context.Context, goal string) (*plan.Plan, error)
}

// Validate additionally checks that every step's tool name is among
// knownTools (case-insensitive), so planner-time failures surface before
// the Executor ever starts a run, rather than as an UnknownTool failure
// mid-run.
func Validate(p *plan.Plan, knownTools map[string]struct{}) error {
	if err := plan.Validate(p); err != nil {
		return err
	}

	lowerKnown := make(map[string]struct{}, len(knownTools))
	for name := range knownTools {
		lowerKnown[lower(name)] = struct{}{}
	}

	for _, step := range p.Steps {
		if _, ok := lowerKnown[lower(step.Tool)]; !ok {
			return fmt.Errorf("planner: step %q: unknown tool %q", step.ID, step.Tool)
		}
	}
	return nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
