// Package tools provides the built-in demo tools exercised by the
// Executor: Echo, Flaky, Search, BrowserExtract, and Summarize. Each is a
// passive component that only responds to requests, implementing the
// toolrouter.Tool contract in-process rather than over a network call.
package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/arclabs/pilot/plan"
)

// Echo returns its input's "text" field unchanged as the payload. Useful
// for wiring smoke tests and as a planner sanity check.
type Echo struct{}

func (Echo) Name() string { return "Echo" }

func (Echo) Run(ctx context.Context, input, runContext map[string]interface{}) (interface{}, []plan.Artifact, string, error) {
	text, _ := input["text"].(string)
	return text, nil, "echoed " + fmt.Sprint(len(text)) + " bytes", nil
}

// Flaky fails its first failTimes calls for a given input, then succeeds,
// exercising the Executor's retry/backoff path. Calls are counted per
// distinct input value (its %v formatting). failTimes defaults to 1 and is
// configurable via the "failTimes" input field.
type Flaky struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewFlaky() *Flaky {
	return &Flaky{counts: make(map[string]int)}
}

func (*Flaky) Name() string { return "Flaky" }

func (f *Flaky) Run(ctx context.Context, input, runContext map[string]interface{}) (interface{}, []plan.Artifact, string, error) {
	failTimes := 1
	if n, ok := input["failTimes"].(int); ok {
		failTimes = n
	} else if n, ok := input["failTimes"].(float64); ok {
		failTimes = int(n)
	}

	key := fmt.Sprintf("%v", input)

	f.mu.Lock()
	f.counts[key]++
	attempt := f.counts[key]
	f.mu.Unlock()

	if attempt <= failTimes {
		return nil, nil, "", fmt.Errorf("flaky: simulated failure (attempt %d of %d)", attempt, failTimes)
	}
	return "stabilized after retry", nil, "succeeded on attempt " + fmt.Sprint(attempt), nil
}

// Search returns a static list of candidate URLs under the conventional
// "search:results" context key shape, simulating a web-search tool for
// BrowserExtract's input-repair path to consume.
type Search struct {
	Results []SearchResult
}

// SearchResult is one candidate the input-repair mechanism may pick up.
type SearchResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// NewSearch builds a Search tool with a small built-in candidate set when
// none is supplied.
func NewSearch(results ...SearchResult) *Search {
	if len(results) == 0 {
		results = []SearchResult{
			{URL: "https://example.com/article-1", Title: "Example Article One"},
			{URL: "https://example.org/article-2", Title: "Example Article Two"},
			{URL: "https://captcha-heavy.example/article-3", Title: "Gated Article"},
		}
	}
	return &Search{Results: results}
}

func (*Search) Name() string { return "Search" }

func (s *Search) Run(ctx context.Context, input, runContext map[string]interface{}) (interface{}, []plan.Artifact, string, error) {
	payload := make([]interface{}, 0, len(s.Results))
	for _, r := range s.Results {
		payload = append(payload, map[string]interface{}{"url": r.URL, "title": r.Title})
	}
	return payload, nil, fmt.Sprintf("found %d candidates", len(payload)), nil
}

// skipDomains is the static list of known CAPTCHA-heavy domains the
// input-repair mechanism avoids.
var skipDomains = map[string]bool{
	"captcha-heavy.example": true,
}

// BrowserExtract simulates extracting page content at a URL. It fails
// deterministically for any URL whose host is in skipDomains, and
// otherwise succeeds with content derived from the URL, giving the
// Executor's input-repair mechanism a concrete success path to retry
// into.
type BrowserExtract struct{}

func (BrowserExtract) Name() string { return "BrowserExtract" }

func (BrowserExtract) Run(ctx context.Context, input, runContext map[string]interface{}) (interface{}, []plan.Artifact, string, error) {
	url, _ := input["url"].(string)
	if url == "" {
		return nil, nil, "", fmt.Errorf("browserextract: missing url")
	}

	if host := hostOf(url); skipDomains[host] {
		return nil, nil, "", fmt.Errorf("browserextract: blocked by anti-bot challenge at %s", url)
	}

	content := "Extracted content from " + url + ". This page discusses the requested topic in detail across several paragraphs."
	payload := map[string]interface{}{
		"url":  url,
		"text": content,
	}
	return payload, nil, "extracted " + fmt.Sprint(len(content)) + " chars from " + url, nil
}

func hostOf(rawURL string) string {
	u := strings.TrimPrefix(rawURL, "https://")
	u = strings.TrimPrefix(u, "http://")
	if idx := strings.IndexAny(u, "/?#"); idx >= 0 {
		u = u[:idx]
	}
	return u
}

// Summarize concatenates the non-empty string payloads found under the
// "step:<id>:payload" context keys the Executor populates, simulating a
// final-synthesis pass. Non-string payloads (such as BrowserExtract's map)
// are not included.
// When invoked with mode="final-synthesis" it appends a Citations marker
// so it satisfies the Critic's stricter threshold for that mode.
type Summarize struct{}

func (Summarize) Name() string { return "Summarize" }

func (Summarize) Run(ctx context.Context, input, runContext map[string]interface{}) (interface{}, []plan.Artifact, string, error) {
	mode, _ := input["mode"].(string)

	var parts []string
	for key, value := range runContext {
		if !strings.HasPrefix(key, "step:") || !strings.HasSuffix(key, ":payload") {
			continue
		}
		if text, ok := value.(string); ok && text != "" {
			parts = append(parts, text)
		}
	}

	summaryText := "Summary covering " + fmt.Sprint(len(parts)) + " prior step outputs."
	if len(parts) > 0 {
		summaryText += " " + strings.Join(parts, " ")
	}

	if mode == "final-synthesis" {
		summaryText += " Citations: [synthesized from prior steps]"
	}

	return summaryText, nil, "synthesized " + fmt.Sprint(len(summaryText)) + " chars", nil
}
