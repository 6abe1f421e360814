package hardware

import (
	"sync"
	"time"
)

// Thermal model of the simulated oven.
const (
	AmbientC         = 25.0  // °C
	HeatRateCPerSec  = 3.0   // °C per second with the element fully on
	CoolCoeffPerSec  = 0.008 // fraction of the excess over ambient lost per second
	HeaterLagSeconds = 2.0   // element warm-up before heat reaches the sensor
)

// SimulatedOven is a first-order oven model. It implements both engine.Sensor and
// engine.Heater and advances the model whenever the temperature is read.
type SimulatedOven struct {
	mu      sync.Mutex
	now     func() time.Time
	ambient float64
	temp    float64
	on      bool
	onSince time.Time
	last    time.Time
	fault   error
}

// NewSimulatedOven starts at ambient. A zero ambient uses AmbientC.
func NewSimulatedOven(ambient float64, now func() time.Time) *SimulatedOven {
	if ambient == 0 {
		ambient = AmbientC
	}
	return &SimulatedOven{now: now, ambient: ambient, temp: ambient}
}

// ReadTemperature advances the model to now and returns the oven temperature.
func (s *SimulatedOven) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault != nil {
		return 0, s.fault
	}
	s.advance(s.now())
	return s.temp, nil
}

// Set switches the simulated element.
func (s *SimulatedOven) Set(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.advance(now)
	if on && !s.on {
		s.onSince = now
	}
	s.on = on
	return nil
}

// SetFault makes every read fail with err until it is cleared with nil.
func (s *SimulatedOven) SetFault(err error) {
	s.mu.Lock()
	s.fault = err
	s.mu.Unlock()
}

// Heating reports whether the element is on.
func (s *SimulatedOven) Heating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

func (s *SimulatedOven) advance(now time.Time) {
	if s.last.IsZero() {
		s.last = now
		return
	}
	elapsed := now.Sub(s.last).Seconds()
	if elapsed <= 0 {
		return
	}
	s.last = now

	if s.on {
		heating := elapsed
		if warm := now.Sub(s.onSince).Seconds() - HeaterLagSeconds; warm < heating {
			heating = max(warm, 0)
		}
		s.temp += HeatRateCPerSec * heating
	}
	s.temp -= (s.temp - s.ambient) * min(CoolCoeffPerSec*elapsed, 1)
}
