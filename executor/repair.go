package executor

import (
	"context"
	"strings"

	"github.com/arclabs/pilot/backoff"
	"github.com/arclabs/pilot/plan"
)

// skipDomains is the static list of known CAPTCHA-heavy domains the
// repair mechanism avoids retrying.
var skipDomains = map[string]bool{
	"captcha-heavy.example": true,
}

const repairSelector = "main, article, #content, body"
const repairTimeoutSec = 30

// repairInput implements BrowserExtract's input-repair specialization:
// pick an untried, non-skip-listed candidate from search:results and
// rewrite the step's input to target it.
func (e *Executor) repairInput(
	ctx context.Context,
	runID, stepID string,
	currentInput map[string]interface{},
	tried map[string]bool,
	runContext map[string]interface{},
) map[string]interface{} {
	if url, ok := currentInput["url"].(string); ok && url != "" {
		tried[strings.ToLower(url)] = true
	}

	candidates := runContext["search:results"]
	chosen := pickCandidate(candidates, tried)

	if chosen == "" {
		e.Bus.Publish(plan.ToolOutput(runID, stepID, "Repair: no untried candidate URLs remain"))
		return currentInput
	}

	e.Bus.Publish(plan.ToolOutput(runID, stepID, "Repair: switching to "+chosen))
	if err := backoff.SleepRepair(ctx); err != nil {
		return currentInput
	}

	return map[string]interface{}{
		"url":        chosen,
		"selector":   repairSelector,
		"timeoutSec": repairTimeoutSec,
	}
}

// pickCandidate scans a search:results-shaped value (a list of entries,
// each either a string URL or a map carrying a "url" field) for the first
// entry that is neither already tried nor on the skip-list.
func pickCandidate(candidates interface{}, tried map[string]bool) string {
	list, ok := candidates.([]interface{})
	if !ok {
		return ""
	}

	for _, item := range list {
		url := extractURL(item)
		if url == "" {
			continue
		}
		lower := strings.ToLower(url)
		if tried[lower] {
			continue
		}
		if skipDomains[hostOf(url)] {
			continue
		}
		return url
	}
	return ""
}

func extractURL(item interface{}) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]interface{}:
		if u, ok := v["url"].(string); ok {
			return u
		}
	}
	return ""
}

func hostOf(rawURL string) string {
	u := strings.TrimPrefix(rawURL, "https://")
	u = strings.TrimPrefix(u, "http://")
	if idx := strings.IndexAny(u, "/?#"); idx >= 0 {
		u = u[:idx]
	}
	return strings.ToLower(u)
}
