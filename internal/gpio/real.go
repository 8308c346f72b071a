//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "cloudcover-switch"

// RealDriver drives GPIO lines on actual hardware using the Linux GPIO
// character device. Lines stay requested, and hold their values, for as long
// as the process runs.
type RealDriver struct {
	chip *gpiocdev.Chip
	main *gpiocdev.Line
	leds *gpiocdev.Lines
	n    int
}

// NewRealDriver requests the main line and indicator lines as outputs, all
// initially off.
func NewRealDriver(chipName string, pinMain int, ledPins []int) (*RealDriver, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	main, err := chip.RequestLine(pinMain, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request main pin %d: %w", pinMain, err)
	}

	d := &RealDriver{chip: chip, main: main, n: len(ledPins)}
	if len(ledPins) > 0 {
		// Active-low: start with every LED dark.
		leds, err := chip.RequestLines(ledPins, gpiocdev.AsOutput(indicatorLevels(0, len(ledPins))...))
		if err != nil {
			main.Close()
			chip.Close()
			return nil, fmt.Errorf("request LED pins %v: %w", ledPins, err)
		}
		d.leds = leds
	}
	return d, nil
}

// SetMain drives the main line. The main output is active-high.
func (d *RealDriver) SetMain(active bool) error {
	v := 0
	if active {
		v = 1
	}
	if err := d.main.SetValue(v); err != nil {
		return fmt.Errorf("set main pin: %w", err)
	}
	return nil
}

// SetIndicators lights the first count LEDs.
func (d *RealDriver) SetIndicators(count, total int) error {
	if err := checkIndicators(count, total, d.n); err != nil {
		return err
	}
	if d.leds == nil {
		return nil
	}
	if err := d.leds.SetValues(indicatorLevels(count, d.n)); err != nil {
		return fmt.Errorf("set LED pins: %w", err)
	}
	return nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults)
// before closing so nothing is left driven across a reboot.
func (d *RealDriver) Close() error {
	return d.release(true)
}

// Release gives up the lines without reconfiguring them. On the Pi the pins
// keep their last level, which is what a single timer-driven cycle wants.
func (d *RealDriver) Release() error {
	return d.release(false)
}

func (d *RealDriver) release(reset bool) error {
	var errs []error

	if d.main != nil {
		if reset {
			if err := d.main.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
				errs = append(errs, fmt.Errorf("reconfigure main pin: %w", err))
			}
		}
		if err := d.main.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close main pin: %w", err))
		}
	}
	if d.leds != nil {
		if reset {
			if err := d.leds.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
				errs = append(errs, fmt.Errorf("reconfigure LED pins: %w", err))
			}
		}
		if err := d.leds.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close LED pins: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}
