package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclabs/pilot/approval"
	"github.com/arclabs/pilot/artifact"
	"github.com/arclabs/pilot/budget"
	"github.com/arclabs/pilot/bus"
	"github.com/arclabs/pilot/corelog"
	"github.com/arclabs/pilot/critic"
	"github.com/arclabs/pilot/plan"
	"github.com/arclabs/pilot/runstore"
	"github.com/arclabs/pilot/toolrouter"
	"github.com/arclabs/pilot/tools"
)

type harness struct {
	exec  *Executor
	store *runstore.MemoryStore
	gate  *approval.Gate
	bus   *bus.MemoryBus
}

func newHarness(t *testing.T, riskyTools []string, tokenBudget int64, defaultMaxAttempts, browserExtractMaxAttempts int, extraTools ...toolrouter.Tool) *harness {
	t.Helper()

	allTools := append([]toolrouter.Tool{
		tools.Echo{},
		tools.NewFlaky(),
		tools.NewSearch(),
		tools.BrowserExtract{},
		tools.Summarize{},
	}, extraTools...)

	b := bus.NewMemoryBus()
	gate := approval.New(riskyTools)
	store := runstore.NewMemoryStore()
	budgetMgr := budget.New()
	router := toolrouter.New(allTools...)
	artifacts := artifact.New(t.TempDir())

	exec := New(
		b, gate, store, budgetMgr, critic.Default{}, router, artifacts,
		corelog.NoOpLogger{}, 2*time.Second, defaultMaxAttempts, browserExtractMaxAttempts, tokenBudget,
	)

	return &harness{exec: exec, store: store, gate: gate, bus: b}
}

// collectEvents runs exec.Execute to completion and returns every event
// published for runID, in order. The executor publishes synchronously
// against a buffered channel, so draining after Execute returns is safe.
func collectEvents(t *testing.T, h *harness, runID string, p *plan.Plan) []plan.Event {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.bus.Subscribe(ctx, runID)
	h.exec.Execute(ctx, runID, p)

	var events []plan.Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventTypes(events []plan.Event) []plan.EventType {
	out := make([]plan.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func hasEventType(events []plan.Event, t plan.EventType) bool {
	for _, ev := range events {
		if ev.Type == t {
			return true
		}
	}
	return false
}

func longText(s string) string {
	for len(s) <= 20 {
		s += s
	}
	return s
}

func TestExecuteHappyPathSingleStep(t *testing.T) {
	h := newHarness(t, nil, 0, 2, 6)
	runID := "run-happy"
	p := &plan.Plan{
		Goal: "say hello",
		Steps: []plan.Step{
			{ID: "s1", Tool: "Echo", Input: map[string]interface{}{"text": longText("hello there")}},
		},
	}

	events := collectEvents(t, h, runID, p)

	require.True(t, hasEventType(events, plan.EventRunSucceeded), "events: %v", eventTypes(events))
	assert.True(t, hasEventType(events, plan.EventStepSucceeded))
	assert.False(t, hasEventType(events, plan.EventRunFailed))

	rec, ok := h.store.Get(runID)
	require.True(t, ok)
	assert.Equal(t, plan.StepSucceeded, rec.StepState["s1"])
	assert.True(t, rec.HasEnded)
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	h := newHarness(t, nil, 0, 3, 6)
	runID := "run-flaky-ok"
	p := &plan.Plan{
		Goal: "flaky success",
		Steps: []plan.Step{
			{ID: "s1", Tool: "Flaky", Input: map[string]interface{}{"failTimes": 1}},
		},
	}

	events := collectEvents(t, h, runID, p)

	assert.True(t, hasEventType(events, plan.EventStepFailed), "expected at least one failed attempt: %v", eventTypes(events))
	assert.True(t, hasEventType(events, plan.EventStepSucceeded))
	assert.True(t, hasEventType(events, plan.EventRunSucceeded))

	rec, ok := h.store.Get(runID)
	require.True(t, ok)
	assert.Equal(t, plan.StepSucceeded, rec.StepState["s1"])
}

func TestExecuteRetriesExhausted(t *testing.T) {
	h := newHarness(t, nil, 0, 2, 6)
	runID := "run-flaky-exhausted"
	p := &plan.Plan{
		Goal: "flaky failure",
		Steps: []plan.Step{
			{ID: "s1", Tool: "Flaky", Input: map[string]interface{}{"failTimes": 5}},
		},
	}

	events := collectEvents(t, h, runID, p)

	assert.True(t, hasEventType(events, plan.EventRunFailed), "events: %v", eventTypes(events))
	assert.False(t, hasEventType(events, plan.EventRunSucceeded))

	rec, ok := h.store.Get(runID)
	require.True(t, ok)
	assert.Equal(t, plan.StepFailed, rec.StepState["s1"])
}

func TestExecuteApprovalDenialSkipsStepButRunContinues(t *testing.T) {
	h := newHarness(t, []string{"Echo"}, 0, 2, 6)
	runID := "run-deny"

	h.gate.Deny(runID, "s1", "not authorized for this run")

	p := &plan.Plan{
		Goal: "gated step",
		Steps: []plan.Step{
			{ID: "s1", Tool: "Echo", Input: map[string]interface{}{"text": longText("gated")}},
			{ID: "s2", Tool: "Search", Input: map[string]interface{}{}},
		},
	}

	events := collectEvents(t, h, runID, p)

	require.True(t, hasEventType(events, plan.EventPermissionDenied), "events: %v", eventTypes(events))
	assert.True(t, hasEventType(events, plan.EventRunSucceeded))

	rec, ok := h.store.Get(runID)
	require.True(t, ok)
	assert.Equal(t, plan.StepSkipped, rec.StepState["s1"])
	assert.Equal(t, plan.StepSucceeded, rec.StepState["s2"])
}

func TestExecuteApprovalGrantRunsStep(t *testing.T) {
	h := newHarness(t, []string{"Echo"}, 0, 2, 6)
	runID := "run-grant"
	h.gate.Grant(runID, "s1")

	p := &plan.Plan{
		Goal: "gated step approved",
		Steps: []plan.Step{
			{ID: "s1", Tool: "Echo", Input: map[string]interface{}{"text": longText("approved")}},
		},
	}

	events := collectEvents(t, h, runID, p)

	assert.True(t, hasEventType(events, plan.EventPermissionGranted))
	assert.True(t, hasEventType(events, plan.EventRunSucceeded))
}

func TestExecuteBudgetExhaustionTerminatesRun(t *testing.T) {
	h := newHarness(t, nil, 1, 2, 6)
	runID := "run-budget"
	p := &plan.Plan{
		Goal: "overspend",
		Steps: []plan.Step{
			{ID: "s1", Tool: "Echo", Input: map[string]interface{}{"text": longText("this text is long enough to cost more than one token")}},
			{ID: "s2", Tool: "Echo", Input: map[string]interface{}{"text": longText("should never run")}},
		},
	}

	events := collectEvents(t, h, runID, p)

	require.True(t, hasEventType(events, plan.EventBudgetExceeded), "events: %v", eventTypes(events))
	assert.True(t, hasEventType(events, plan.EventRunFailed))
	assert.False(t, hasEventType(events, plan.EventRunSucceeded))

	rec, ok := h.store.Get(runID)
	require.True(t, ok)
	_, ranSecondStep := rec.StepState["s2"]
	assert.False(t, ranSecondStep, "second step must not have started once the budget was exhausted")
}

func TestExecuteBrowserExtractRepairSwitchesCandidate(t *testing.T) {
	h := newHarness(t, nil, 0, 2, 6)
	runID := "run-repair"
	p := &plan.Plan{
		Goal: "extract with repair",
		Steps: []plan.Step{
			{ID: "search", Tool: "Search", Input: map[string]interface{}{}},
			{ID: "extract", Tool: "BrowserExtract", Input: map[string]interface{}{"url": "https://captcha-heavy.example/article-3"}},
		},
	}

	events := collectEvents(t, h, runID, p)

	require.True(t, hasEventType(events, plan.EventRunSucceeded), "events: %v", eventTypes(events))

	var sawRepair bool
	for _, ev := range events {
		if ev.Type == plan.EventToolOutput && ev.StepID == "extract" && len(ev.Summary) >= 7 {
			if ev.Summary[:7] == "Repair:" {
				sawRepair = true
			}
		}
	}
	assert.True(t, sawRepair, "expected a Repair: ToolOutput event switching away from the blocked domain")

	rec, ok := h.store.Get(runID)
	require.True(t, ok)
	assert.Equal(t, plan.StepSucceeded, rec.StepState["extract"])
}

func TestExecuteUnknownToolIsRetriedThenFails(t *testing.T) {
	h := newHarness(t, nil, 0, 2, 6)
	runID := "run-unknown-tool"
	p := &plan.Plan{
		Goal: "bogus tool",
		Steps: []plan.Step{
			{ID: "s1", Tool: "DoesNotExist", Input: map[string]interface{}{}},
		},
	}

	events := collectEvents(t, h, runID, p)

	assert.True(t, hasEventType(events, plan.EventRunFailed))
}

func TestExecuteCancelledContextStopsFurtherSteps(t *testing.T) {
	h := newHarness(t, nil, 0, 2, 6)
	runID := "run-cancelled"
	p := &plan.Plan{
		Goal: "cancelled before start",
		Steps: []plan.Step{
			{ID: "s1", Tool: "Echo", Input: map[string]interface{}{"text": longText("hi")}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := h.bus.Subscribe(context.Background(), runID)
	h.exec.Execute(ctx, runID, p)

	var events []plan.Event
drain:
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			break drain
		}
	}

	assert.True(t, hasEventType(events, plan.EventRunFailed), "events: %v", eventTypes(events))
	assert.False(t, hasEventType(events, plan.EventStepSucceeded))
}
