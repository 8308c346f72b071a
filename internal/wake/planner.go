package wake

import (
	"time"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
	"github.com/sweeney/cloudcover-switch/internal/rtc"
)

// Plan is how long to sleep before the next cycle.
type Plan struct {
	SleepSeconds int
	// Fallback is set when the clock could not be read.
	Fallback bool
}

// Duration returns the sleep as a time.Duration.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.SleepSeconds) * time.Second
}

// Planner computes the sleep that lands on the next HH:00:30.
type Planner struct {
	clock rtc.TimeSource
	conv  *localtime.Converter
}

// NewPlanner creates a Planner.
func NewPlanner(clock rtc.TimeSource, conv *localtime.Converter) *Planner {
	return &Planner{clock: clock, conv: conv}
}

// PlanFrom returns the sleep from the given local time to the next HH:00:30.
func PlanFrom(local localtime.DateTime) Plan {
	secs := 3600 - local.SecondsIntoHour() + int(Offset/time.Second)
	return Plan{SleepSeconds: secs}
}

// PlanNow re-reads the clock and plans from it. On a read or conversion
// failure it returns a one-hour fallback plan together with the error.
func (p *Planner) PlanNow() (Plan, error) {
	fallback := Plan{SleepSeconds: int(FallbackSleep / time.Second), Fallback: true}

	utc, err := p.clock.ReadUTC()
	if err != nil {
		return fallback, err
	}
	local, err := p.conv.ToLocal(utc)
	if err != nil {
		return fallback, err
	}
	return PlanFrom(local), nil
}
