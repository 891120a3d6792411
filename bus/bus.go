// Package bus implements the Event Bus: topic-per-run fan-out of typed
// events to subscribers, with an in-process implementation and a
// Redis-backed one sharing the same interface.
package bus

import (
	"context"
	"sync"

	"github.com/arclabs/pilot/plan"
)

const defaultTopic = "default"

// Bus is the Event Bus contract. Publish is non-blocking: it returns once
// the event is queued for its run's topic, not once subscribers process
// it. Publish never returns an error; transport failures are swallowed,
// since delivery is fire-and-forget from the core's point of view.
type Bus interface {
	Publish(event plan.Event)
	// Subscribe returns a channel of events for runID (or the shared
	// "default" topic if runID is ""). The channel is closed when ctx is
	// done.
	Subscribe(ctx context.Context, runID string) <-chan plan.Event
}

// MemoryBus is the default in-process Bus: each run's topic is a set of
// buffered channels, one per subscriber. An event that does not fit a
// slow subscriber's buffer is dropped for that subscriber rather than
// blocking the publisher; delivery is best-effort and nothing is persisted.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string][]chan plan.Event
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan plan.Event)}
}

func topicFor(runID string) string {
	if runID == "" {
		return defaultTopic
	}
	return runID
}

// Publish delivers event to every live subscriber of its run's topic. A
// subscriber whose buffer is full is skipped for this event rather than
// blocking the caller.
func (b *MemoryBus) Publish(event plan.Event) {
	topic := topicFor(event.RunID)
	b.mu.Lock()
	chans := append([]chan plan.Event(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
			// Drop rather than block: publish must never stall the executor.
		}
	}
}

// Subscribe registers a new buffered channel for runID's topic.
func (b *MemoryBus) Subscribe(ctx context.Context, runID string) <-chan plan.Event {
	topic := topicFor(runID)
	ch := make(chan plan.Event, 64)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[topic]
		for i, c := range chans {
			if c == ch {
				b.subs[topic] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch
}
