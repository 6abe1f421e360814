package engine

import "math"

// Duty limits of the controller output.
const (
	minDuty = 0.0
	maxDuty = 1.0
)

// PIDController turns a temperature error into a heater duty in [0, 1].
// The derivative acts on the measurement so setpoint steps do not kick the output,
// and the integral is bounded so long saturation cannot wind it up.
//
// Not safe for concurrent use.
type PIDController struct {
	params      PIDParams
	integral    float64
	integralMax float64
	lastMeasure float64
	lastOutput  float64
	havePrev    bool
}

// NewPIDController creates a controller with the given coefficients.
func NewPIDController(params PIDParams) *PIDController {
	p := &PIDController{}
	p.SetParams(params)
	return p
}

// SetParams swaps the coefficients and clears the accumulated state.
func (p *PIDController) SetParams(params PIDParams) {
	p.params = params
	p.integralMax = 0
	if params.I > 0 {
		p.integralMax = maxDuty / params.I
	}
	p.Reset()
}

// Params returns the active coefficients.
func (p *PIDController) Params() PIDParams {
	return p.params
}

// Reset clears the integral accumulator and derivative history.
func (p *PIDController) Reset() {
	p.integral = 0
	p.lastMeasure = 0
	p.lastOutput = 0
	p.havePrev = false
}

// Compute returns the duty for the given setpoint and measurement; dt is in seconds.
func (p *PIDController) Compute(setpoint, measured, dt float64) float64 {
	if dt <= 0 {
		return p.lastOutput
	}
	err := setpoint - measured

	integral := p.integral + err*dt
	if p.integralMax > 0 {
		integral = clamp(integral, -p.integralMax, p.integralMax)
	}

	derivative := 0.0
	if p.havePrev {
		derivative = (measured - p.lastMeasure) / dt
	}

	out := p.params.P*err + p.params.I*integral - p.params.D*derivative
	bounded := clamp(out, minDuty, maxDuty)

	// commit the integral unless it pushes further into saturation
	if out == bounded || (out > maxDuty && err < 0) || (out < minDuty && err > 0) {
		p.integral = integral
	}

	p.lastMeasure = measured
	p.havePrev = true
	p.lastOutput = bounded
	return bounded
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
