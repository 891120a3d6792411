// Package backoff implements the Executor's deterministic inter-attempt
// delay: min(4, 2^attempt) seconds with no jitter, so retries stay
// reproducible across runs.
package backoff

import (
	"context"
	"time"
)

// maxSeconds bounds backoff.Delay and Sleep.
const maxSeconds = 4

// Delay returns the inter-attempt sleep duration for the given attempt
// number (1-indexed): min(4, 2^attempt) seconds.
func Delay(attempt int) time.Duration {
	seconds := 1 << uint(attempt)
	if seconds > maxSeconds || seconds <= 0 {
		seconds = maxSeconds
	}
	return time.Duration(seconds) * time.Second
}

// RepairDelay is the fixed ~1 second pause after an input-repair switch.
const RepairDelay = time.Second

// Sleep blocks for Delay(attempt) or until ctx is cancelled, whichever
// comes first, returning ctx.Err() if cancelled.
func Sleep(ctx context.Context, attempt int) error {
	return sleepFor(ctx, Delay(attempt))
}

// SleepRepair blocks for RepairDelay or until ctx is cancelled.
func SleepRepair(ctx context.Context) error {
	return sleepFor(ctx, RepairDelay)
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
