package rtc

import (
	"fmt"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
)

// FakeClock is a test double holding a settable UTC instant.
type FakeClock struct {
	// Now is the current instant.
	Now time.Time

	// Step is added to Now after every successful ReadUTC.
	Step time.Duration

	// Reads counts ReadUTC calls.
	Reads int

	// Writes contains every value passed to WriteUTC.
	Writes []localtime.DateTime

	// ReadError, if set, will be returned by ReadUTC.
	ReadError error

	// WriteError, if set, will be returned by WriteUTC.
	WriteError error
}

// NewFakeClock creates a FakeClock set to now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{Now: now.UTC()}
}

// ReadUTC returns the current fake instant.
func (f *FakeClock) ReadUTC() (localtime.DateTime, error) {
	f.Reads++
	if f.ReadError != nil {
		return localtime.DateTime{}, fmt.Errorf("%w: %w", ErrClock, f.ReadError)
	}
	dt := localtime.FromTime(f.Now)
	f.Now = f.Now.Add(f.Step)
	return dt, nil
}

// WriteUTC records the value and moves the fake clock to it.
func (f *FakeClock) WriteUTC(dt localtime.DateTime) error {
	if f.WriteError != nil {
		return fmt.Errorf("%w: %w", ErrClock, f.WriteError)
	}
	if err := checkWritable(dt); err != nil {
		return err
	}
	f.Writes = append(f.Writes, dt)
	f.Now = dt.Time()
	return nil
}

// Advance moves the fake clock forward by d.
func (f *FakeClock) Advance(d time.Duration) {
	f.Now = f.Now.Add(d)
}
