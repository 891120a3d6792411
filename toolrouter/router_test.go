package toolrouter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclabs/pilot/core"
	"github.com/arclabs/pilot/plan"
)

type stubTool struct {
	name    string
	payload interface{}
	err     error
}

func (s stubTool) Name() string { return s.name }

func (s stubTool) Run(ctx context.Context, input, runContext map[string]interface{}) (interface{}, []plan.Artifact, string, error) {
	if s.err != nil {
		return nil, nil, "", s.err
	}
	return s.payload, nil, "ok", nil
}

func TestExecuteCaseInsensitive(t *testing.T) {
	r := New(stubTool{name: "Search", payload: "result"})

	payload, _, summary, err := r.Execute(context.Background(), "SEARCH", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "result", payload)
	assert.Equal(t, "ok", summary)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := New(stubTool{name: "Search"})

	_, _, _, err := r.Execute(context.Background(), "missing", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownTool))
}

func TestExecutePropagatesToolError(t *testing.T) {
	boom := errors.New("boom")
	r := New(stubTool{name: "Flaky", err: boom})

	_, _, _, err := r.Execute(context.Background(), "flaky", nil, nil)
	assert.True(t, errors.Is(err, boom))
}

func TestNamesAndHas(t *testing.T) {
	r := New(stubTool{name: "Search"}, stubTool{name: "Summarize"})
	names := r.Names()
	_, hasSearch := names["Search"]
	_, hasSummarize := names["Summarize"]
	assert.True(t, hasSearch)
	assert.True(t, hasSummarize)

	assert.True(t, r.Has("search"))
	assert.False(t, r.Has("unknown"))
}
