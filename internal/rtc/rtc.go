// Package rtc provides access to the battery-backed clock with hardware abstraction.
// The clock always stores UTC. The real implementation uses the Linux system
// clock, which the kernel keeps in sync with the RTC chip.
// The fake implementation allows testing without hardware.
package rtc

import (
	"errors"
	"fmt"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
)

// ErrClock is wrapped by every read or write failure.
var ErrClock = errors.New("rtc: clock error")

// MaxYear is the last year the clock register set can hold.
const MaxYear = 2099

// TimeSource reads and writes the UTC clock.
type TimeSource interface {
	// ReadUTC returns the current time in the UTC frame.
	ReadUTC() (localtime.DateTime, error)

	// WriteUTC sets the clock. The value must be in the UTC frame.
	WriteUTC(dt localtime.DateTime) error
}

// checkWritable validates a value before it is written to the clock.
func checkWritable(dt localtime.DateTime) error {
	if dt.Frame != localtime.UTC {
		return fmt.Errorf("%w: refusing to store %s time", ErrClock, dt.Frame)
	}
	if err := dt.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrClock, err)
	}
	if dt.Year > MaxYear {
		return fmt.Errorf("%w: year %d after %d", ErrClock, dt.Year, MaxYear)
	}
	return nil
}
