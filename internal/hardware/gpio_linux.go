//go:build linux

package hardware

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOHeater drives the heater relay from one line of a GPIO character device.
type GPIOHeater struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewGPIOHeater requests offset on chip as an output, initially low.
func NewGPIOHeater(chip string, offset int) (*GPIOHeater, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}
	l, err := c.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("reflowd"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request heater line %d: %w", offset, err)
	}
	return &GPIOHeater{chip: c, line: l}, nil
}

// Set implements engine.Heater.
func (h *GPIOHeater) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := h.line.SetValue(v); err != nil {
		return fmt.Errorf("set heater line: %w", err)
	}
	return nil
}

// Close drives the line low and releases it. The line is handed back as an input
// so the relay stays off across a reboot.
func (h *GPIOHeater) Close() error {
	var errs []error
	if h.line != nil {
		if err := h.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("heater line low: %w", err))
		}
		if err := h.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure heater line: %w", err))
		}
		if err := h.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close heater line: %w", err))
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
