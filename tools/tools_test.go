package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEcho(t *testing.T) {
	e := Echo{}
	payload, artifacts, summary, err := e.Run(context.Background(), map[string]interface{}{"text": "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", payload)
	assert.Empty(t, artifacts)
	assert.NotEmpty(t, summary)
}

func TestFlakyFailsThenSucceeds(t *testing.T) {
	f := NewFlaky()
	input := map[string]interface{}{"failTimes": 2}

	_, _, _, err1 := f.Run(context.Background(), input, nil)
	assert.Error(t, err1)

	_, _, _, err2 := f.Run(context.Background(), input, nil)
	assert.Error(t, err2)

	payload, _, _, err3 := f.Run(context.Background(), input, nil)
	require.NoError(t, err3)
	assert.Equal(t, "stabilized after retry", payload)
}

func TestSearchReturnsCandidates(t *testing.T) {
	s := NewSearch()
	payload, _, summary, err := s.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	results, ok := payload.([]interface{})
	require.True(t, ok)
	assert.Len(t, results, 3)
	assert.NotEmpty(t, summary)
}

func TestBrowserExtractSucceeds(t *testing.T) {
	b := BrowserExtract{}
	payload, _, _, err := b.Run(context.Background(), map[string]interface{}{"url": "https://example.com/a"}, nil)
	require.NoError(t, err)
	m, ok := payload.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, m["text"], "example.com/a")
}

func TestBrowserExtractBlockedDomain(t *testing.T) {
	b := BrowserExtract{}
	_, _, _, err := b.Run(context.Background(), map[string]interface{}{"url": "https://captcha-heavy.example/x"}, nil)
	assert.Error(t, err)
}

func TestBrowserExtractMissingURL(t *testing.T) {
	b := BrowserExtract{}
	_, _, _, err := b.Run(context.Background(), map[string]interface{}{}, nil)
	assert.Error(t, err)
}

func TestSummarizeFinalSynthesisHasCitations(t *testing.T) {
	s := Summarize{}
	runContext := map[string]interface{}{
		"step:step-1:payload": "first finding",
	}
	payload, _, _, err := s.Run(context.Background(), map[string]interface{}{"mode": "final-synthesis"}, runContext)
	require.NoError(t, err)
	text, ok := payload.(string)
	require.True(t, ok)
	assert.Contains(t, text, "Citations:")
	assert.Contains(t, text, "first finding")
}
