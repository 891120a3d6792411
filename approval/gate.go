// Package approval implements the Approval Gate: a per-(run, step)
// rendezvous that pauses risky steps awaiting an external grant/deny.
package approval

import (
	"context"
	"fmt"
	"sync"
)

type key struct {
	runID  string
	stepID string
}

// decision is the buffered signal carried through a waiter's channel.
type decision struct {
	approved bool
	reason   string
}

// Gate is the Approval Gate. The zero value is not usable; construct with
// New.
type Gate struct {
	mu      sync.Mutex
	waiters map[key]chan decision
	risky   map[string]bool
}

// New creates a Gate whose RequiresApproval policy is the static set of
// risky tool names. A nil or empty set means nothing requires approval,
// the plausible default.
func New(riskyTools []string) *Gate {
	risky := make(map[string]bool, len(riskyTools))
	for _, t := range riskyTools {
		risky[normalizeToolName(t)] = true
	}
	return &Gate{
		waiters: make(map[key]chan decision),
		risky:   risky,
	}
}

func normalizeToolName(name string) string {
	// Case-insensitive match, same convention as the Tool Router.
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// RequiresApproval reports whether toolName is in the configured risky set.
func (g *Gate) RequiresApproval(toolName string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.risky[normalizeToolName(toolName)]
}

// chanFor returns the (lazily created) 1-buffered decision channel for key
// k, so that at most one pending signal is buffered per key: whichever
// side, Grant/Deny or WaitForApproval, arrives first creates the channel,
// and the other side's send/receive rendezvous on it.
func (g *Gate) chanFor(k key) chan decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.waiters[k]
	if !ok {
		ch = make(chan decision, 1)
		g.waiters[k] = ch
	}
	return ch
}

func (g *Gate) clear(k key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.waiters, k)
}

// WaitForApproval suspends until a grant (true), a deny (false), or ctx
// cancellation. At most one waiter may exist per (runID, stepID); a second
// concurrent wait on the same key will observe whichever signal arrives
// at the shared channel (undefined ordering across two simultaneous
// waiters is out of scope for the single-threaded-per-run executor this
// gate is built for).
func (g *Gate) WaitForApproval(ctx context.Context, runID, stepID, toolName string, input interface{}) (approved bool, reason string, err error) {
	k := key{runID: runID, stepID: stepID}
	ch := g.chanFor(k)

	select {
	case d := <-ch:
		g.clear(k)
		return d.approved, d.reason, nil
	case <-ctx.Done():
		g.clear(k)
		return false, "", ctx.Err()
	}
}

// Grant wakes a pending waiter for (runID, stepID) with an approval, or
// buffers the grant for the next WaitForApproval call on that key if none
// is waiting yet.
func (g *Gate) Grant(runID, stepID string) {
	g.signal(runID, stepID, decision{approved: true})
}

// Deny wakes a pending waiter for (runID, stepID) with a denial, or
// buffers the deny for the next WaitForApproval call on that key.
func (g *Gate) Deny(runID, stepID, reason string) {
	g.signal(runID, stepID, decision{approved: false, reason: reason})
}

func (g *Gate) signal(runID, stepID string, d decision) {
	k := key{runID: runID, stepID: stepID}
	ch := g.chanFor(k)
	select {
	case ch <- d:
	default:
		// A signal is already buffered for this key; a second grant/deny
		// before it was consumed is dropped (one buffered signal per key).
	}
}

// String aids debugging/log lines.
func (k key) String() string {
	return fmt.Sprintf("(%s,%s)", k.runID, k.stepID)
}
