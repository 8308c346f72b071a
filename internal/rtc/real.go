//go:build linux

package rtc

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
)

// SystemClock reads and writes the kernel clock.
type SystemClock struct{}

// NewSystemClock returns a clock backed by the Linux system time.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// ReadUTC returns the current system time in the UTC frame.
func (c *SystemClock) ReadUTC() (localtime.DateTime, error) {
	var tv unix.Timeval
	if err := unix.Gettimeofday(&tv); err != nil {
		return localtime.DateTime{}, fmt.Errorf("%w: gettimeofday: %w", ErrClock, err)
	}
	dt := localtime.FromTime(time.Unix(tv.Unix()))
	if err := dt.Validate(); err != nil {
		// An unset clock reads as 1970; that is not a usable time.
		return localtime.DateTime{}, fmt.Errorf("%w: %w", ErrClock, err)
	}
	return dt, nil
}

// WriteUTC sets the system time. Requires CAP_SYS_TIME.
// The kernel copies the system time to the RTC chip (11-minute mode) or
// hwclock --systohc can be run afterwards.
func (c *SystemClock) WriteUTC(dt localtime.DateTime) error {
	if err := checkWritable(dt); err != nil {
		return err
	}
	tv := unix.NsecToTimeval(dt.Time().UnixNano())
	if err := unix.Settimeofday(&tv); err != nil {
		return fmt.Errorf("%w: settimeofday: %w", ErrClock, err)
	}
	return nil
}
