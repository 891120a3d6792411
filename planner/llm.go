package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arclabs/pilot/plan"
)

// ChatModel is the abstract LLM interface an LLMPlanner consumes: a
// single GenerateResponse call, so any deterministic planner or real
// model-backed client satisfies it.
type ChatModel interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// LLMPlanner asks a ChatModel to produce a JSON plan document and parses
// the result into a validated Plan. KnownTools, if set, is passed to
// Validate after parsing so an unknown tool name fails at plan time
// rather than surfacing mid-run as UnknownTool.
type LLMPlanner struct {
	Model      ChatModel
	KnownTools map[string]struct{}
}

// NewLLMPlanner builds an LLMPlanner over model, validating against
// knownTools if provided.
func NewLLMPlanner(model ChatModel, knownTools map[string]struct{}) *LLMPlanner {
	return &LLMPlanner{Model: model, KnownTools: knownTools}
}

const plannerSystemPrompt = `You convert a goal into a JSON execution plan.
Respond with a single JSON object of the shape:
{"goal": "...", "steps": [{"id": "s1", "tool": "...", "input": {...}, "success": "...", "deps": []}]}
Rules:
- step ids are short unique tokens
- every id in a step's deps must appear earlier in the steps array
- tool must be one of the tools you were told are available
- respond with JSON only, no markdown code fences, no commentary`

// Plan asks the model for a plan and parses its response.
func (l *LLMPlanner) Plan(ctx context.Context, goal string) (*plan.Plan, error) {
	response, err := l.Model.GenerateResponse(ctx, goal, plannerSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("planner: generate plan: %w", err)
	}

	p, err := parsePlanJSON(response)
	if err != nil {
		return nil, fmt.Errorf("planner: parse plan: %w", err)
	}
	if p.Goal == "" {
		p.Goal = goal
	}

	if l.KnownTools != nil {
		if err := Validate(p, l.KnownTools); err != nil {
			return nil, err
		}
	} else if err := plan.Validate(p); err != nil {
		return nil, err
	}

	return p, nil
}

// wireStep is the JSON shape an LLM is asked to emit, decoupled from
// plan.Step's field names so the wire contract can evolve independently
// of the in-process type.
type wireStep struct {
	ID      string                 `json:"id"`
	Label   string                 `json:"label,omitempty"`
	Tool    string                 `json:"tool"`
	Input   map[string]interface{} `json:"input"`
	Success string                 `json:"success"`
	Deps    []string               `json:"deps"`
}

type wirePlan struct {
	Goal  string     `json:"goal"`
	Steps []wireStep `json:"steps"`
}

// parsePlanJSON strips common LLM response wrapping (markdown code
// fences, leading/trailing prose) before decoding.
func parsePlanJSON(response string) (*plan.Plan, error) {
	cleaned := stripCodeFences(response)

	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	jsonStr := cleaned[start : end+1]

	var wp wirePlan
	if err := json.Unmarshal([]byte(jsonStr), &wp); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}

	p := &plan.Plan{Goal: wp.Goal}
	for _, ws := range wp.Steps {
		p.Steps = append(p.Steps, plan.Step{
			ID:      ws.ID,
			Label:   ws.Label,
			Tool:    ws.Tool,
			Input:   ws.Input,
			Success: ws.Success,
			Deps:    ws.Deps,
		})
	}
	return p, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
