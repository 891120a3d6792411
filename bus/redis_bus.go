package bus

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/arclabs/pilot/corelog"
	"github.com/arclabs/pilot/plan"
)

// RedisBus fans events out over Redis Pub/Sub, one channel per run topic,
// so a planner/executor process and a separate dashboard process can share
// a run's event stream.
type RedisBus struct {
	client *redis.Client
	prefix string
	logger corelog.Logger
}

// NewRedisBus wraps an existing *redis.Client. prefix namespaces the
// Pub/Sub channel names (e.g. "pilot:events:").
func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	if prefix == "" {
		prefix = "pilot:events:"
	}
	return &RedisBus{client: client, prefix: prefix, logger: corelog.NoOpLogger{}}
}

// SetLogger configures the logger used to report (swallowed) publish
// failures for diagnostics.
func (b *RedisBus) SetLogger(l corelog.Logger) {
	if l == nil {
		l = corelog.NoOpLogger{}
	}
	b.logger = l
}

func (b *RedisBus) channel(runID string) string {
	return b.prefix + topicFor(runID)
}

// Publish marshals event and publishes it to its run's Redis channel.
// Errors are logged and swallowed, never propagated, per the Bus contract.
func (b *RedisBus) Publish(event plan.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("redis bus: marshal failed", corelog.Fields{"error": err.Error()})
		return
	}
	if err := b.client.Publish(context.Background(), b.channel(event.RunID), payload).Err(); err != nil {
		b.logger.Warn("redis bus: publish failed", corelog.Fields{"error": err.Error(), "run_id": event.RunID})
	}
}

// Subscribe opens a Redis Pub/Sub subscription for runID's channel and
// decodes incoming messages back into Events. The returned channel is
// closed when ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, runID string) <-chan plan.Event {
	sub := b.client.Subscribe(ctx, b.channel(runID))
	out := make(chan plan.Event, 64)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev plan.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("redis bus: unmarshal failed", corelog.Fields{"error": err.Error()})
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

var _ Bus = (*RedisBus)(nil)
