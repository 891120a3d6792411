package planner

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arclabs/pilot/plan"
)

// staticDefinition is the YAML document shape a StaticPlanner loads: a
// flat list of steps, no parallel or conditional step types, since the
// Executor runs steps sequentially.
type staticDefinition struct {
	Goal  string              `yaml:"goal"`
	Steps []staticStepDefinition `yaml:"steps"`
}

type staticStepDefinition struct {
	ID      string                 `yaml:"id"`
	Label   string                 `yaml:"label"`
	Tool    string                 `yaml:"tool"`
	Input   map[string]interface{} `yaml:"input"`
	Success string                 `yaml:"success"`
	DependsOn []string             `yaml:"depends_on"`
}

// StaticPlanner returns a fixed Plan loaded from a YAML document,
// ignoring the goal argument passed to Plan beyond recording it. Useful
// for deterministic demos and tests that don't need an LLM in the loop.
type StaticPlanner struct {
	def staticDefinition
}

// LoadStaticPlanner parses a YAML document at path into a StaticPlanner.
func LoadStaticPlanner(path string) (*StaticPlanner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("planner: read %s: %w", path, err)
	}
	var def staticDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("planner: parse %s: %w", path, err)
	}
	return &StaticPlanner{def: def}, nil
}

// NewStaticPlannerFromYAML parses an in-memory YAML document, for tests
// and embedded defaults that don't want a filesystem round-trip.
func NewStaticPlannerFromYAML(doc []byte) (*StaticPlanner, error) {
	var def staticDefinition
	if err := yaml.Unmarshal(doc, &def); err != nil {
		return nil, fmt.Errorf("planner: parse yaml: %w", err)
	}
	return &StaticPlanner{def: def}, nil
}

// Plan returns the loaded Plan. goal overrides the YAML document's goal
// field when non-empty, so the same static plan can be replayed under
// different recorded goals.
func (s *StaticPlanner) Plan(ctx context.Context, goal string) (*plan.Plan, error) {
	p := &plan.Plan{
		Goal:     s.def.Goal,
		Metadata: map[string]interface{}{"source": "static"},
	}
	if goal != "" {
		p.Goal = goal
	}

	for _, sd := range s.def.Steps {
		p.Steps = append(p.Steps, plan.Step{
			ID:      sd.ID,
			Label:   sd.Label,
			Tool:    sd.Tool,
			Input:   sd.Input,
			Success: sd.Success,
			Deps:    sd.DependsOn,
		})
	}

	if err := plan.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}
