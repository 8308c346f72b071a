package wake

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
	"github.com/sweeney/cloudcover-switch/internal/rtc"
)

// maxStep bounds each wait so cancellation is seen within a second.
const maxStep = time.Second

// Synchronizer waits out small drift around the top of the hour.
type Synchronizer struct {
	clock   rtc.TimeSource
	conv    *localtime.Converter
	sleeper Sleeper
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(clock rtc.TimeSource, conv *localtime.Converter, sleeper Sleeper) *Synchronizer {
	return &Synchronizer{clock: clock, conv: conv, sleeper: sleeper}
}

// Sync reads the local time. If it is within the drift window (minute 58,
// 59 or 0) it waits, in steps of at most one second, until HH:00:30 of the
// target hour. Otherwise it returns immediately.
// It returns the last UTC reading, which the cycle works from without reading
// the clock again, and how long it waited according to the clock.
func (s *Synchronizer) Sync(ctx context.Context) (localtime.DateTime, time.Duration, error) {
	utc, err := s.clock.ReadUTC()
	if err != nil {
		return localtime.DateTime{}, 0, err
	}
	local, err := s.conv.ToLocal(utc)
	if err != nil {
		return localtime.DateTime{}, 0, err
	}

	wait, ok := syncWait(local)
	if !ok {
		return utc, 0, nil
	}

	start := utc.Time()
	target := start.Add(wait)
	for utc.Time().Before(target) {
		waited := utc.Time().Sub(start)
		if err := ctx.Err(); err != nil {
			return utc, waited, err
		}
		step := min(target.Sub(utc.Time()), maxStep)
		if err := s.sleeper.Sleep(ctx, step); err != nil {
			return utc, waited, err
		}
		next, err := s.clock.ReadUTC()
		if err != nil {
			return utc, waited, fmt.Errorf("wake sync: %w", err)
		}
		utc = next
	}
	return utc, utc.Time().Sub(start), nil
}

// syncWait returns the wait needed to reach HH:00:30 from local, and whether
// local is inside the drift window at all.
func syncWait(local localtime.DateTime) (time.Duration, bool) {
	into := time.Duration(local.SecondsIntoHour()) * time.Second
	switch {
	case local.Minute == 0:
		if into >= Offset {
			return 0, false
		}
		return Offset - into, true
	case local.Minute >= 58:
		return time.Hour - into + Offset, true
	default:
		return 0, false
	}
}
