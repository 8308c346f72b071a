//go:build !linux

package gpio

import "errors"

// RealDriver is not available on non-Linux platforms.
type RealDriver struct{}

// NewRealDriver returns an error on non-Linux platforms.
func NewRealDriver(chipName string, pinMain int, ledPins []int) (*RealDriver, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetMain is not implemented on non-Linux platforms.
func (d *RealDriver) SetMain(active bool) error {
	return errors.New("gpio: not supported")
}

// SetIndicators is not implemented on non-Linux platforms.
func (d *RealDriver) SetIndicators(count, total int) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (d *RealDriver) Close() error {
	return nil
}

// Release is not implemented on non-Linux platforms.
func (d *RealDriver) Release() error {
	return nil
}
