package runstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclabs/pilot/plan"
)

func TestMarkRunStartIsIdempotent(t *testing.T) {
	s := NewMemoryStore()

	started1, ended1 := s.MarkRunStart("run-1")
	assert.Nil(t, ended1)

	started2, ended2 := s.MarkRunStart("run-1")
	assert.Nil(t, ended2)
	assert.Equal(t, started1, started2, "second MarkRunStart must not move the start time")
}

func TestMarkRunEndReflectedOnSubsequentStart(t *testing.T) {
	s := NewMemoryStore()
	started, _ := s.MarkRunStart("run-2")

	end := started.Add(time.Second)
	s.MarkRunEnd("run-2", end)

	gotStart, gotEnd := s.MarkRunStart("run-2")
	require.NotNil(t, gotEnd)
	assert.Equal(t, started, gotStart)
	assert.Equal(t, end, *gotEnd)
}

func TestMarkStepAndGet(t *testing.T) {
	s := NewMemoryStore()
	s.MarkRunStart("run-3")
	s.MarkStep("run-3", "step-1", plan.StepRunning)
	s.MarkStep("run-3", "step-1", plan.StepSucceeded)
	s.MarkStep("run-3", "step-2", plan.StepFailed)

	rec, ok := s.Get("run-3")
	require.True(t, ok)
	assert.Equal(t, plan.StepSucceeded, rec.StepState["step-1"])
	assert.Equal(t, plan.StepFailed, rec.StepState["step-2"])
}

func TestGetUnknownRun(t *testing.T) {
	s := NewMemoryStore()
	_, ok := s.Get("nope")
	assert.False(t, ok)
}
