package engine

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for Options.
const (
	DefaultMaxTemperature    = 260.0
	DefaultTolerance         = 2.0
	DefaultWatchdogTimeout   = 10 * time.Second
	DefaultTargetPID         = "default"
	DefaultHeaterWindow      = 4 * time.Second
	DefaultHysteresis        = 2.0
	DefaultOvertempMargin    = 15.0
	DefaultMaxReadings       = 7200
	DefaultCalibrationTarget = 150.0
)

// Options tunes an Engine.
type Options struct {
	MaxTemperature    float64       `mapstructure:"max_temperature"`
	Tolerance         float64       `mapstructure:"tolerance"`
	WatchdogTimeout   time.Duration `mapstructure:"watchdog_timeout"`
	TargetPID         string        `mapstructure:"target_pid"`
	HeaterWindow      time.Duration `mapstructure:"heater_window"`
	Hysteresis        float64       `mapstructure:"hysteresis"`
	OvertempMargin    float64       `mapstructure:"overtemp_margin"`
	MaxReadings       int           `mapstructure:"max_readings"`
	CalibrationTarget float64       `mapstructure:"calibration_target"`
	SensorGain        float64       `mapstructure:"sensor_gain"`
	SensorOffset      float64       `mapstructure:"sensor_offset"`
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		MaxTemperature:    DefaultMaxTemperature,
		Tolerance:         DefaultTolerance,
		WatchdogTimeout:   DefaultWatchdogTimeout,
		TargetPID:         DefaultTargetPID,
		HeaterWindow:      DefaultHeaterWindow,
		Hysteresis:        DefaultHysteresis,
		OvertempMargin:    DefaultOvertempMargin,
		MaxReadings:       DefaultMaxReadings,
		CalibrationTarget: DefaultCalibrationTarget,
		SensorGain:        1,
	}
}

var errInvalidOptions = errors.New("invalid engine options")

// Validate checks that the options describe a usable engine.
func (o Options) Validate() error {
	switch {
	case o.MaxTemperature <= 0:
		return fmt.Errorf("%w: max_temperature must be > 0", errInvalidOptions)
	case o.Tolerance < 0:
		return fmt.Errorf("%w: tolerance must be >= 0", errInvalidOptions)
	case o.WatchdogTimeout < 0:
		return fmt.Errorf("%w: watchdog_timeout must be >= 0", errInvalidOptions)
	case o.HeaterWindow <= 0:
		return fmt.Errorf("%w: heater_window must be > 0", errInvalidOptions)
	case o.Hysteresis < 0:
		return fmt.Errorf("%w: hysteresis must be >= 0", errInvalidOptions)
	case o.OvertempMargin < 0:
		return fmt.Errorf("%w: overtemp_margin must be >= 0", errInvalidOptions)
	case o.MaxReadings < 2:
		return fmt.Errorf("%w: max_readings must be >= 2", errInvalidOptions)
	case o.CalibrationTarget < 0 || o.CalibrationTarget > o.MaxTemperature:
		return fmt.Errorf("%w: calibration_target must be within [0, max_temperature]", errInvalidOptions)
	case o.SensorGain == 0:
		return fmt.Errorf("%w: sensor_gain must be non-zero", errInvalidOptions)
	}
	return nil
}
