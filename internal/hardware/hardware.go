// Package hardware provides the oven sensor and heater adapters: a simulated oven,
// a heater relay on a Linux GPIO line and a thermocouple read through a sysfs file.
package hardware

import (
	"errors"
	"fmt"
	"time"

	"reflow_oven/internal/config"
	"reflow_oven/internal/engine"
)

// Devices is the sensor and heater pair an engine drives.
type Devices struct {
	Sensor engine.Sensor
	Heater engine.Heater
	close  func() error
}

// Close switches the heater off and releases the devices.
func (d *Devices) Close() error {
	var errs []error
	if d.Heater != nil {
		if err := d.Heater.Set(false); err != nil {
			errs = append(errs, fmt.Errorf("heater off: %w", err))
		}
	}
	if d.close != nil {
		if err := d.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the devices selected by cfg.
func Open(cfg config.HardwareConfig) (*Devices, error) {
	switch cfg.Driver {
	case config.DriverSim:
		sim := NewSimulatedOven(cfg.Ambient, time.Now)
		return &Devices{Sensor: sim, Heater: sim}, nil
	case config.DriverGPIO:
		if cfg.SensorPath == "" {
			return nil, errors.New("hardware: gpio driver needs a sensor path")
		}
		heater, err := NewGPIOHeater(cfg.GPIOChip, cfg.HeaterLine)
		if err != nil {
			return nil, err
		}
		return &Devices{Sensor: NewFileSensor(cfg.SensorPath), Heater: heater, close: heater.Close}, nil
	default:
		return nil, fmt.Errorf("hardware: unknown driver %q", cfg.Driver)
	}
}
