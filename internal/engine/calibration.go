package engine

import (
	"encoding/json"
	"math"
	"time"
)

// lagRise is the temperature rise that marks the end of the heater dead time.
const lagRise = 1.0

// Calibration describes the sensor correction and the measured thermal behaviour of the oven.
type Calibration struct {
	Gain      float64 `json:"gain"`
	Offset    float64 `json:"offset"`
	HeatRate  float64 `json:"heat_rate"` // °C/s, fastest rise with heater on
	CoolRate  float64 `json:"cool_rate"` // °C/s, fastest fall with heater off
	Lag       float64 `json:"lag"`       // s from heater on until the first lagRise
	Overshoot float64 `json:"overshoot"` // °C rise after the heater was switched off
	Complete  bool    `json:"complete"`
}

type calibrator struct {
	result Calibration

	heatStart time.Time
	startTemp float64
	lagSeen   bool

	offTemp float64
	peak    float64

	lastAt   time.Time
	lastTemp float64

	// baseline waits for the first sample when no temperature was known at begin
	baseline bool
}

func newCalibrator(gain, offset float64) *calibrator {
	return &calibrator{result: Calibration{Gain: gain, Offset: offset}}
}

// apply converts a raw sensor value into °C.
func (c *calibrator) apply(raw float64) float64 {
	return raw*c.result.Gain + c.result.Offset
}

func (c *calibrator) beginHeat(now time.Time, temperature float64, known bool) {
	gain, offset := c.result.Gain, c.result.Offset
	*c = calibrator{result: Calibration{Gain: gain, Offset: offset}}
	c.heatStart = now
	c.setBaseline(ModeCalibrate, now, temperature)
	c.baseline = !known
}

func (c *calibrator) beginCool(now time.Time, temperature float64, known bool) {
	c.setBaseline(ModeCalibrateCool, now, temperature)
	c.baseline = !known
}

func (c *calibrator) setBaseline(mode Mode, now time.Time, temperature float64) {
	if mode == ModeCalibrate {
		c.startTemp = temperature
	} else {
		c.offTemp = temperature
		c.peak = temperature
	}
	c.lastAt = now
	c.lastTemp = temperature
}

// observe records one sample taken in mode.
func (c *calibrator) observe(mode Mode, now time.Time, temperature float64) {
	if c.baseline {
		c.baseline = false
		c.setBaseline(mode, now, temperature)
		return
	}
	dt := now.Sub(c.lastAt).Seconds()
	rate := 0.0
	if dt > 0 {
		rate = (temperature - c.lastTemp) / dt
	}

	switch mode {
	case ModeCalibrate:
		if rate > c.result.HeatRate {
			c.result.HeatRate = rate
		}
		if !c.lagSeen && temperature-c.startTemp >= lagRise {
			c.lagSeen = true
			c.result.Lag = now.Sub(c.heatStart).Seconds()
		}
	case ModeCalibrateCool:
		if temperature > c.peak {
			c.peak = temperature
			c.result.Overshoot = c.peak - c.offTemp
		}
		if -rate > c.result.CoolRate {
			c.result.CoolRate = -rate
		}
		if c.result.CoolRate > 0 {
			c.result.Complete = true
		}
	case ModeOff, ModeOn, ModeTargetPID, ModeReflow, ModeErrorOff:
		return
	}

	c.lastAt = now
	c.lastTemp = temperature
}

// String returns the calibration state as JSON. Values are rounded to three decimals
// so the output only depends on the calibration state.
func (c *calibrator) String() string {
	out := c.result
	out.Gain = round3(out.Gain)
	out.Offset = round3(out.Offset)
	out.HeatRate = round3(out.HeatRate)
	out.CoolRate = round3(out.CoolRate)
	out.Lag = round3(out.Lag)
	out.Overshoot = round3(out.Overshoot)
	b, err := json.Marshal(out)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
