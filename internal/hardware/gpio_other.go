//go:build !linux

package hardware

import "errors"

var errGPIOUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// GPIOHeater is not available on non-Linux platforms.
type GPIOHeater struct{}

// NewGPIOHeater returns an error on non-Linux platforms.
func NewGPIOHeater(string, int) (*GPIOHeater, error) {
	return nil, errGPIOUnsupported
}

func (h *GPIOHeater) Set(bool) error { return errGPIOUnsupported }

func (h *GPIOHeater) Close() error { return nil }
