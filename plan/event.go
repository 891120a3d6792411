package plan

import "encoding/json"

// EventType discriminates the Event taxonomy on the wire.
type EventType string

const (
	EventRunStarted          EventType = "RunStarted"
	EventPlanCreated         EventType = "PlanCreated"
	EventStepStarted         EventType = "StepStarted"
	EventToolOutput          EventType = "ToolOutput"
	EventArtifactCreated     EventType = "ArtifactCreated"
	EventStepSucceeded       EventType = "StepSucceeded"
	EventStepFailed          EventType = "StepFailed"
	EventRunSucceeded        EventType = "RunSucceeded"
	EventRunFailed           EventType = "RunFailed"
	EventBudgetExceeded      EventType = "BudgetExceeded"
	EventPermissionRequested EventType = "PermissionRequested"
	EventPermissionGranted   EventType = "PermissionGranted"
	EventPermissionDenied    EventType = "PermissionDenied"
)

// Event is a tagged variant carrying a RunID accessor: the bus reads
// RunID directly off the struct, no reflection involved.
type Event struct {
	Type  EventType `json:"$type"`
	RunID string    `json:"runId"`

	// Fields used by a subset of variants; zero-valued otherwise.
	Goal     string      `json:"goal,omitempty"`
	Steps    []Step      `json:"steps,omitempty"`
	StepID   string      `json:"stepId,omitempty"`
	Tool     string      `json:"tool,omitempty"`
	Input    interface{} `json:"input,omitempty"`
	Summary  string      `json:"summary,omitempty"`
	Artifact *Artifact   `json:"artifact,omitempty"`
	Error    string      `json:"error,omitempty"`
	Attempt  int         `json:"attempt,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	What     string      `json:"what,omitempty"`
	Details  string      `json:"details,omitempty"`
	ElapsedMS int64      `json:"elapsedMs,omitempty"`
}

// GetRunID satisfies the routing contract the Event Bus uses to pick a topic.
func (e Event) GetRunID() string { return e.RunID }

// MarshalJSON is the default encoding/json behavior; declared explicitly so
// the wire discriminator field ordering is stable and documented.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(alias(e))
}

func newEvent(t EventType, runID string) Event {
	return Event{Type: t, RunID: runID}
}

func RunStarted(runID, goal string) Event {
	e := newEvent(EventRunStarted, runID)
	e.Goal = goal
	return e
}

func PlanCreated(runID, goal string, steps []Step) Event {
	e := newEvent(EventPlanCreated, runID)
	e.Goal = goal
	e.Steps = steps
	return e
}

func StepStarted(runID, stepID, tool string, input interface{}) Event {
	e := newEvent(EventStepStarted, runID)
	e.StepID = stepID
	e.Tool = tool
	e.Input = input
	return e
}

func ToolOutput(runID, stepID, summary string) Event {
	e := newEvent(EventToolOutput, runID)
	e.StepID = stepID
	e.Summary = summary
	return e
}

func ArtifactCreated(runID, stepID string, a Artifact) Event {
	e := newEvent(EventArtifactCreated, runID)
	e.StepID = stepID
	e.Artifact = &a
	return e
}

func StepSucceeded(runID, stepID string) Event {
	e := newEvent(EventStepSucceeded, runID)
	e.StepID = stepID
	return e
}

func StepFailed(runID, stepID, errMsg string, attempt int) Event {
	e := newEvent(EventStepFailed, runID)
	e.StepID = stepID
	e.Error = errMsg
	e.Attempt = attempt
	return e
}

func RunSucceeded(runID string, elapsedMS int64) Event {
	e := newEvent(EventRunSucceeded, runID)
	e.ElapsedMS = elapsedMS
	return e
}

func RunFailed(runID, errMsg string) Event {
	e := newEvent(EventRunFailed, runID)
	e.Error = errMsg
	return e
}

func BudgetExceeded(runID, what, details string) Event {
	e := newEvent(EventBudgetExceeded, runID)
	e.What = what
	e.Details = details
	return e
}

func PermissionRequested(runID, stepID, tool string, input interface{}) Event {
	e := newEvent(EventPermissionRequested, runID)
	e.StepID = stepID
	e.Tool = tool
	e.Input = input
	return e
}

func PermissionGranted(runID, stepID string) Event {
	e := newEvent(EventPermissionGranted, runID)
	e.StepID = stepID
	return e
}

func PermissionDenied(runID, stepID, reason string) Event {
	e := newEvent(EventPermissionDenied, runID)
	e.StepID = stepID
	e.Reason = reason
	return e
}
