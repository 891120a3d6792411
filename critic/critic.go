// Package critic implements the Critic: a pure pass/fail predicate gate
// applied to a step's payload before it is accepted, as a small interface
// with one concrete, swappable default.
package critic

import (
	"encoding/json"
	"strings"

	"github.com/arclabs/pilot/plan"
)

// Critic is a pure predicate over a step's payload. Implementations must
// not mutate payload or have side effects.
type Critic interface {
	Pass(step plan.Step, payload interface{}) bool
}

// Default is the reference Critic implementation.
type Default struct{}

// Pass applies the reference thresholds:
//   - payload must be non-nil
//   - a string payload must have length > 20; any other payload's
//     serialized form must have length > 20
//   - for a tool whose name implies browser extraction, the payload must
//     not carry a thin=true flag
//   - for a summarization tool invoked with mode="final-synthesis", the
//     payload must contain at least two URL-shaped substrings or a
//     literal "Citations:" marker
func (Default) Pass(step plan.Step, payload interface{}) bool {
	if payload == nil {
		return false
	}

	text, ok := payload.(string)
	if !ok {
		serialized, err := json.Marshal(payload)
		if err != nil {
			return false
		}
		text = string(serialized)
	}
	if len(text) <= 20 {
		return false
	}

	if isBrowserExtraction(step.Tool) && isThin(payload) {
		return false
	}

	if isSummarizer(step.Tool) && isFinalSynthesis(step.Input) {
		if !hasCitations(text) {
			return false
		}
	}

	return true
}

func isBrowserExtraction(tool string) bool {
	return strings.Contains(strings.ToLower(tool), "browserextract")
}

func isSummarizer(tool string) bool {
	return strings.Contains(strings.ToLower(tool), "summar")
}

func isFinalSynthesis(input map[string]interface{}) bool {
	if input == nil {
		return false
	}
	mode, _ := input["mode"].(string)
	return mode == "final-synthesis"
}

func isThin(payload interface{}) bool {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return false
	}
	thin, _ := m["thin"].(bool)
	return thin
}

func hasCitations(text string) bool {
	if strings.Contains(text, "Citations:") {
		return true
	}
	return countURLs(text) >= 2
}

func countURLs(text string) int {
	count := 0
	for _, scheme := range []string{"http://", "https://"} {
		from := 0
		for {
			idx := strings.Index(text[from:], scheme)
			if idx < 0 {
				break
			}
			count++
			from += idx + len(scheme)
		}
	}
	return count
}

var _ Critic = Default{}
