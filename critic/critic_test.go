package critic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arclabs/pilot/plan"
)

func TestPassRejectsNilPayload(t *testing.T) {
	c := Default{}
	assert.False(t, c.Pass(plan.Step{Tool: "search"}, nil))
}

func TestPassRejectsShortString(t *testing.T) {
	c := Default{}
	assert.False(t, c.Pass(plan.Step{Tool: "search"}, "too short"))
}

func TestPassAcceptsLongString(t *testing.T) {
	c := Default{}
	assert.True(t, c.Pass(plan.Step{Tool: "search"}, "this string is definitely over twenty characters"))
}

func TestPassRejectsThinBrowserExtraction(t *testing.T) {
	c := Default{}
	step := plan.Step{Tool: "BrowserExtract"}
	payload := map[string]interface{}{
		"text": "this string is definitely over twenty characters",
		"thin": true,
	}
	assert.False(t, c.Pass(step, payload))
}

func TestPassAcceptsNonThinBrowserExtraction(t *testing.T) {
	c := Default{}
	step := plan.Step{Tool: "BrowserExtract"}
	payload := map[string]interface{}{
		"text": "this string is definitely over twenty characters",
		"thin": false,
	}
	assert.True(t, c.Pass(step, payload))
}

func TestPassRequiresCitationsForFinalSynthesis(t *testing.T) {
	c := Default{}
	step := plan.Step{
		Tool:  "Summarize",
		Input: map[string]interface{}{"mode": "final-synthesis"},
	}
	noCitations := "this string is definitely over twenty characters but lacks anything"
	assert.False(t, c.Pass(step, noCitations))

	withMarker := "Summary text over twenty characters. Citations: [1]"
	assert.True(t, c.Pass(step, withMarker))

	withTwoURLs := "See http://example.com/a and https://example.com/b for details."
	assert.True(t, c.Pass(step, withTwoURLs))
}

func TestPassIgnoresFinalSynthesisRuleForOtherModes(t *testing.T) {
	c := Default{}
	step := plan.Step{
		Tool:  "Summarize",
		Input: map[string]interface{}{"mode": "draft"},
	}
	assert.True(t, c.Pass(step, "this string is definitely over twenty characters"))
}
