// Package wake keeps wake cycles aligned to HH:00:30 local time.
// The Synchronizer absorbs sleep-timer drift on wake and the Planner works out
// how long to sleep once the cycle's work is done.
package wake

import (
	"context"
	"time"
)

// Offset is how far past the hour each cycle aims to wake.
const Offset = 30 * time.Second

// FallbackSleep is used when the clock cannot be read after the cycle.
const FallbackSleep = time.Hour

// Sleeper blocks for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a time.Timer.
type TimerSleeper struct{}

// Sleep waits for d, returning ctx.Err() if ctx is cancelled first.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
