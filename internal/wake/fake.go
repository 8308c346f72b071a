package wake

import (
	"context"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/rtc"
)

// FakeSleeper records sleeps and advances a FakeClock instead of blocking.
type FakeSleeper struct {
	// Clock, if set, is advanced by each sleep.
	Clock *rtc.FakeClock

	// Slept contains every requested duration.
	Slept []time.Duration

	// CancelAfter, if > 0, cancels via Cancel once that many sleeps have run.
	CancelAfter int
	Cancel      context.CancelFunc
}

// Sleep records d and advances the clock.
func (f *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Slept = append(f.Slept, d)
	if f.Clock != nil {
		f.Clock.Advance(d)
	}
	if f.CancelAfter > 0 && len(f.Slept) >= f.CancelAfter && f.Cancel != nil {
		f.Cancel()
	}
	return nil
}

// Total returns the sum of all recorded sleeps.
func (f *FakeSleeper) Total() time.Duration {
	var sum time.Duration
	for _, d := range f.Slept {
		sum += d
	}
	return sum
}
