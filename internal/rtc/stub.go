//go:build !linux

package rtc

import (
	"fmt"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
)

// SystemClock is not available on non-Linux platforms.
type SystemClock struct{}

// NewSystemClock returns a clock that always fails on non-Linux platforms.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// ReadUTC is not implemented on non-Linux platforms.
func (c *SystemClock) ReadUTC() (localtime.DateTime, error) {
	return localtime.DateTime{}, fmt.Errorf("%w: not supported on this platform (requires Linux)", ErrClock)
}

// WriteUTC is not implemented on non-Linux platforms.
func (c *SystemClock) WriteUTC(dt localtime.DateTime) error {
	return fmt.Errorf("%w: not supported on this platform (requires Linux)", ErrClock)
}
