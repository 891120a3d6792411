// Package executor implements the Executor: the component that drives a
// Plan to completion, invoking tools through the Tool Router, enforcing
// budgets and timeouts, retrying with input repair, consulting the
// Critic, and awaiting approvals. Steps run strictly sequentially, one
// attempt loop per step, never in parallel.
package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arclabs/pilot/approval"
	"github.com/arclabs/pilot/artifact"
	"github.com/arclabs/pilot/backoff"
	"github.com/arclabs/pilot/budget"
	"github.com/arclabs/pilot/bus"
	"github.com/arclabs/pilot/core"
	"github.com/arclabs/pilot/corelog"
	"github.com/arclabs/pilot/critic"
	"github.com/arclabs/pilot/plan"
	"github.com/arclabs/pilot/runstore"
	"github.com/arclabs/pilot/telemetry"
	"github.com/arclabs/pilot/toolrouter"
)

// toolOutputPreviewLimit caps a payload-preview ToolOutput at 10,000
// characters.
const toolOutputPreviewLimit = 10_000

// maxInlineImageBytes is the inline-image threshold: artifacts whose mime
// type begins image/ and whose size is at most this many bytes are
// additionally published as a base64 data URL.
const maxInlineImageBytes = 2_000_000

// Executor drives Plans to completion. The zero value is not usable;
// build one with New.
type Executor struct {
	Bus       bus.Bus
	Gate      *approval.Gate
	Store     runstore.Store
	Budget    *budget.Manager
	Critic    critic.Critic
	Router    *toolrouter.Router
	Artifacts *artifact.Store
	Logger    corelog.Logger

	StepDeadline              time.Duration
	DefaultMaxAttempts        int
	BrowserExtractMaxAttempts int
	TokenBudget               int64
}

// New builds an Executor from its dependencies and configured defaults.
func New(
	b bus.Bus,
	gate *approval.Gate,
	store runstore.Store,
	budgetMgr *budget.Manager,
	crit critic.Critic,
	router *toolrouter.Router,
	artifacts *artifact.Store,
	logger corelog.Logger,
	stepDeadline time.Duration,
	defaultMaxAttempts int,
	browserExtractMaxAttempts int,
	tokenBudget int64,
) *Executor {
	if logger == nil {
		logger = corelog.NoOpLogger{}
	}
	return &Executor{
		Bus:                       b,
		Gate:                      gate,
		Store:                     store,
		Budget:                    budgetMgr,
		Critic:                    crit,
		Router:                    router,
		Artifacts:                 artifacts,
		Logger:                    logger,
		StepDeadline:              stepDeadline,
		DefaultMaxAttempts:        defaultMaxAttempts,
		BrowserExtractMaxAttempts: browserExtractMaxAttempts,
		TokenBudget:               tokenBudget,
	}
}

// stepOutcome classifies how a step's handling ended.
type stepOutcome int

const (
	outcomeSucceeded stepOutcome = iota
	outcomeSkipped
	outcomeFailed      // exhausted retries; caller must publish RunFailed
	outcomeTerminated  // a terminal event was already published (budget/cancellation)
)

// Execute drives plan p to completion under runID, publishing lifecycle
// events throughout. It never returns an error for routine tool failures;
// those are surfaced exclusively as events, and Execute always returns
// normally after a terminal event has been published.
func (e *Executor) Execute(ctx context.Context, runID string, p *plan.Plan) {
	ctx = corelog.WithRunID(ctx, runID)
	ctx, span := telemetry.StartRun(ctx, runID, p.Goal)
	defer span.End()

	start := time.Now()
	e.Store.MarkRunStart(runID)
	e.Bus.Publish(plan.RunStarted(runID, p.Goal))
	e.Bus.Publish(plan.PlanCreated(runID, p.Goal, p.Steps))

	runContext := make(map[string]interface{})

	for _, step := range p.Steps {
		if ctx.Err() != nil {
			e.terminateFailed(runID, core.ErrCancelled.Error())
			return
		}

		outcome, err := e.runStep(ctx, runID, step, runContext)
		switch outcome {
		case outcomeSucceeded, outcomeSkipped:
			continue
		case outcomeTerminated:
			return
		case outcomeFailed:
			e.terminateFailed(runID, err.Error())
			return
		}
	}

	elapsed := time.Since(start).Milliseconds()
	e.Store.MarkRunEnd(runID, time.Now())
	e.Bus.Publish(plan.RunSucceeded(runID, elapsed))
	telemetry.Counter("pilot.run.terminal", "outcome", "succeeded")
}

func (e *Executor) terminateFailed(runID, message string) {
	e.Store.MarkRunEnd(runID, time.Now())
	e.Bus.Publish(plan.RunFailed(runID, message))
	telemetry.Counter("pilot.run.terminal", "outcome", "failed")
}

// runStep handles one plan step end to end: approval gating, the attempt
// loop, input repair, and the context-map writes subsequent steps read.
func (e *Executor) runStep(ctx context.Context, runID string, step plan.Step, runContext map[string]interface{}) (stepOutcome, error) {
	e.Store.MarkStep(runID, step.ID, plan.StepRunning)
	e.Bus.Publish(plan.StepStarted(runID, step.ID, step.Tool, step.Input))
	telemetry.AddEvent(ctx, "step.started")

	if e.Gate.RequiresApproval(step.Tool) {
		e.Bus.Publish(plan.PermissionRequested(runID, step.ID, step.Tool, step.Input))
		approved, reason, err := e.Gate.WaitForApproval(ctx, runID, step.ID, step.Tool, step.Input)
		if err != nil {
			stepErr := core.NewStepError(runID, step.ID, 1, core.ErrCancelled)
			e.Store.MarkStep(runID, step.ID, plan.StepFailed)
			e.Bus.Publish(plan.StepFailed(runID, step.ID, stepErr.Error(), 1))
			e.terminateFailed(runID, core.ErrCancelled.Error())
			return outcomeTerminated, nil
		}
		if !approved {
			if reason == "" {
				reason = "denied by operator"
			}
			e.Store.MarkStep(runID, step.ID, plan.StepSkipped)
			e.Bus.Publish(plan.PermissionDenied(runID, step.ID, reason))
			return outcomeSkipped, nil
		}
		e.Bus.Publish(plan.PermissionGranted(runID, step.ID))
	}

	maxAttempts := e.maxAttemptsFor(step)
	currentInput := step.Input
	tried := make(map[string]bool)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome, nextInput, stepErr := e.runAttempt(ctx, runID, step, attempt, currentInput, tried, runContext)
		if outcome == outcomeSucceeded || outcome == outcomeTerminated {
			return outcome, nil
		}
		lastErr = stepErr
		currentInput = nextInput

		if attempt == maxAttempts {
			break
		}
		if sleepErr := backoff.Sleep(ctx, attempt); sleepErr != nil {
			e.terminateFailed(runID, core.ErrCancelled.Error())
			return outcomeTerminated, nil
		}
	}

	return outcomeFailed, lastErr
}

// runAttempt executes one attempt of step and reports the resulting
// outcome, the (possibly repaired) input for the next attempt, and the
// error describing this attempt's failure, if any.
func (e *Executor) runAttempt(
	ctx context.Context,
	runID string,
	step plan.Step,
	attempt int,
	currentInput map[string]interface{},
	tried map[string]bool,
	runContext map[string]interface{},
) (stepOutcome, map[string]interface{}, error) {
	stepCtx, span := telemetry.StartStep(ctx, runID, step.ID, step.Tool, attempt)
	defer span.End()
	telemetry.Counter("pilot.step.attempts", "tool", step.Tool)

	scope := e.Budget.Step(stepCtx, runID, e.StepDeadline, e.TokenBudget)
	defer scope.Release()

	payload, artifacts, summary, toolErr := e.Router.Execute(scope.Ctx, step.Tool, currentInput, snapshot(runContext))

	var stepErr error
	if toolErr != nil {
		stepErr = classifyToolError(runID, step.ID, attempt, toolErr, scope.Ctx)
	} else {
		e.Bus.Publish(plan.ToolOutput(runID, step.ID, summary))
		e.publishPayloadPreview(runID, step.ID, payload)

		tokens := budget.EstimateTokens(summary)
		if !e.Budget.SpendTokens(runID, tokens) {
			e.Bus.Publish(plan.BudgetExceeded(runID, "tokens", fmt.Sprintf("run %s exceeded its token budget", runID)))
			e.terminateFailed(runID, core.ErrBudgetExhausted.Error())
			return outcomeTerminated, currentInput, nil
		}

		saved := e.persistArtifacts(runID, step.ID, artifacts)
		e.writeContext(runContext, step, currentInput, payload, saved)

		if e.Critic.Pass(step, payload) {
			e.Store.MarkStep(runID, step.ID, plan.StepSucceeded)
			e.Bus.Publish(plan.StepSucceeded(runID, step.ID))
			telemetry.AddEvent(ctx, "step.succeeded")
			return outcomeSucceeded, currentInput, nil
		}
		stepErr = core.NewStepError(runID, step.ID, attempt, core.ErrCriticRejected)
	}

	telemetry.RecordError(stepCtx, stepErr)
	e.Store.MarkStep(runID, step.ID, plan.StepFailed)
	e.Bus.Publish(plan.StepFailed(runID, step.ID, stepErr.Error(), attempt))

	if !core.IsRetryable(stepErr) {
		e.terminateFailed(runID, stepErr.Error())
		return outcomeTerminated, currentInput, nil
	}

	nextInput := currentInput
	if isBrowserExtraction(step.Tool) {
		nextInput = e.repairInput(ctx, runID, step.ID, currentInput, tried, runContext)
	}

	return outcomeFailed, nextInput, stepErr
}

func classifyToolError(runID, stepID string, attempt int, toolErr error, scopeCtx context.Context) error {
	if errors.Is(toolErr, core.ErrUnknownTool) {
		return core.NewStepError(runID, stepID, attempt, toolErr)
	}
	if scopeCtx.Err() != nil {
		if errors.Is(scopeCtx.Err(), context.DeadlineExceeded) {
			return core.NewStepError(runID, stepID, attempt, fmt.Errorf("%w: %v", core.ErrStepDeadline, toolErr))
		}
		return core.NewStepError(runID, stepID, attempt, core.ErrCancelled)
	}
	return core.NewStepError(runID, stepID, attempt, fmt.Errorf("%w: %v", core.ErrToolFailure, toolErr))
}

func (e *Executor) maxAttemptsFor(step plan.Step) int {
	def := e.DefaultMaxAttempts
	if isBrowserExtraction(step.Tool) {
		def = e.BrowserExtractMaxAttempts
	}
	return step.MaxAttempts(def)
}

// publishPayloadPreview publishes a secondary ToolOutput previewing the
// step's payload: a string payload is previewed verbatim (ellipsized past
// the limit); a non-nil non-string payload is JSON-serialized first, with
// serialization errors swallowed.
func (e *Executor) publishPayloadPreview(runID, stepID string, payload interface{}) {
	if payload == nil {
		return
	}

	var text string
	if s, ok := payload.(string); ok {
		if s == "" {
			return
		}
		text = s
	} else {
		raw, err := json.Marshal(payload)
		if err != nil {
			return
		}
		text = string(raw)
	}

	e.Bus.Publish(plan.ToolOutput(runID, stepID, truncate(text, toolOutputPreviewLimit)))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}

// persistArtifacts saves any artifact whose Path refers to an existing
// file through the Artifact Store, publishes ArtifactCreated for each,
// and inlines small images as a data URL ToolOutput.
func (e *Executor) persistArtifacts(runID, stepID string, artifacts []plan.Artifact) []plan.Artifact {
	saved := make([]plan.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		out := a
		if e.Artifacts != nil && fileExists(a.Path) {
			if persisted, err := e.Artifacts.Save(runID, stepID, a.Path, a.FileName, a.MimeType); err == nil {
				out = persisted
			} else {
				e.Logger.Warn("executor: artifact persist failed", corelog.Fields{"error": err.Error(), "path": a.Path})
			}
		}
		saved = append(saved, out)
		e.Bus.Publish(plan.ArtifactCreated(runID, stepID, out))

		if strings.HasPrefix(out.MimeType, "image/") && out.Size > 0 && out.Size <= maxInlineImageBytes {
			if dataURL, err := inlineDataURL(out); err == nil {
				e.Bus.Publish(plan.ToolOutput(runID, stepID, dataURL))
			}
		}
	}
	return saved
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func inlineDataURL(a plan.Artifact) (string, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", a.MimeType, base64.StdEncoding.EncodeToString(data)), nil
}

// writeContext stores this step's payload and saved artifacts under the
// conventional run-context keys, plus the search/navigation channels
// later browser-extraction repair and final-synthesis steps read.
func (e *Executor) writeContext(runContext map[string]interface{}, step plan.Step, input map[string]interface{}, payload interface{}, saved []plan.Artifact) {
	runContext[fmt.Sprintf("step:%s:payload", step.ID)] = payload
	runContext[fmt.Sprintf("step:%s:artifacts", step.ID)] = saved

	if isSearchTool(step.Tool) {
		runContext["search:results"] = payload
	}
	if isBrowserExtraction(step.Tool) {
		if url, ok := input["url"].(string); ok && url != "" {
			runContext["nav:url"] = url
		}
	}
}

func snapshot(runContext map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(runContext))
	for k, v := range runContext {
		out[k] = v
	}
	return out
}

func isBrowserExtraction(tool string) bool {
	return strings.Contains(strings.ToLower(tool), "browserextract")
}

func isSearchTool(tool string) bool {
	return strings.Contains(strings.ToLower(tool), "search")
}
