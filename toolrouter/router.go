// Package toolrouter implements the Tool Router: a case-insensitive
// name-to-Tool map the Executor dispatches through.
package toolrouter

import (
	"context"
	"fmt"
	"strings"

	"github.com/arclabs/pilot/core"
	"github.com/arclabs/pilot/plan"
)

// Tool is the contract every tool implementation satisfies. Name is the
// canonical string the Router matches case-insensitively.
type Tool interface {
	Name() string
	Run(ctx context.Context, input map[string]interface{}, runContext map[string]interface{}) (payload interface{}, artifacts []plan.Artifact, summary string, err error)
}

// Router holds an immutable, case-insensitive name-to-Tool mapping.
type Router struct {
	tools map[string]Tool
}

// New builds a Router from tools. Later tools with a colliding
// case-insensitive name overwrite earlier ones.
func New(tools ...Tool) *Router {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[normalize(t.Name())] = t
	}
	return &Router{tools: m}
}

func normalize(name string) string {
	return strings.ToLower(name)
}

// Execute dispatches toolName with input and runContext. Returns
// core.ErrUnknownTool if no tool matches toolName case-insensitively.
func (r *Router) Execute(ctx context.Context, toolName string, input map[string]interface{}, runContext map[string]interface{}) (interface{}, []plan.Artifact, string, error) {
	t, ok := r.tools[normalize(toolName)]
	if !ok {
		return nil, nil, "", fmt.Errorf("tool %q: %w", toolName, core.ErrUnknownTool)
	}
	return t.Run(ctx, input, runContext)
}

// Names returns the set of registered tool names (canonical casing, as
// registered) for diagnostics and planner validation.
func (r *Router) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(r.tools))
	for _, t := range r.tools {
		names[t.Name()] = struct{}{}
	}
	return names
}

// Has reports whether toolName matches a registered tool
// case-insensitively.
func (r *Router) Has(toolName string) bool {
	_, ok := r.tools[normalize(toolName)]
	return ok
}
