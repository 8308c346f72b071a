// Package gpio drives the output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
)

// Driver sets the main output and the indicator LED bar.
type Driver interface {
	// SetMain switches the main output. true = active.
	SetMain(active bool) error

	// SetIndicators lights the first count of total indicators and turns the
	// rest off. total must match the number of configured indicator lines.
	SetIndicators(count, total int) error

	// Close releases GPIO resources.
	Close() error
}

// ErrIndicators is returned for a count or total the driver cannot show.
var ErrIndicators = errors.New("gpio: invalid indicator request")

// Pin definitions (BCM numbering)
const (
	DefaultChip    = "gpiochip0"
	DefaultPinMain = 13
)

// DefaultLEDPins are the indicator lines, clearest-sky LED first.
var DefaultLEDPins = []int{5, 6, 7, 15, 16}

// checkIndicators validates a SetIndicators request against n lines.
func checkIndicators(count, total, n int) error {
	if total != n {
		return fmt.Errorf("%w: total %d, have %d lines", ErrIndicators, total, n)
	}
	if count < 0 || count > total {
		return fmt.Errorf("%w: count %d of %d", ErrIndicators, count, total)
	}
	return nil
}

// indicatorLevels returns raw line values for count lit indicators.
// The LEDs are wired active-low: 0 = lit.
func indicatorLevels(count, n int) []int {
	levels := make([]int, n)
	for i := range levels {
		if i >= count {
			levels[i] = 1
		}
	}
	return levels
}
