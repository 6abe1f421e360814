package engine

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	errInvalidReading = errors.New("sensor returned a non-finite value")
	errNoSensor       = errors.New("no sensor attached")
)

// Engine is the reflow state machine. It owns the session, the PID controller and the
// heater command; profiles and PID sets are only looked up by name.
type Engine struct {
	opts   Options
	store  ProfileStore
	sensor Sensor
	heater Heater
	tel    *Telemetry

	mode    Mode
	profile string
	target  float64
	session int

	stageIndex   int
	stageStart   time.Time // dwell clock; zero until the stage target is reached
	stageHeating bool

	pid      *PIDController
	pidName  string
	lastTick time.Time

	heaterOn    bool
	duty        float64
	windowStart time.Time

	watchdog *Watchdog
	hist     *history
	cal      *calibrator

	temperature float64
	haveTemp    bool
	sensorFault bool
}

// New creates an engine in OFF mode. tel may be nil, in which case a fresh emitter is used.
func New(store ProfileStore, sensor Sensor, heater Heater, tel *Telemetry, opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if tel == nil {
		tel = NewTelemetry()
	}
	return &Engine{
		opts:     opts,
		store:    store,
		sensor:   sensor,
		heater:   heater,
		tel:      tel,
		mode:     ModeOff,
		pid:      NewPIDController(PIDParams{}),
		watchdog: NewWatchdog(opts.WatchdogTimeout),
		hist:     newHistory(opts.MaxReadings),
		cal:      newCalibrator(opts.SensorGain, opts.SensorOffset),
	}, nil
}

// Telemetry returns the emitter the engine reports through.
func (e *Engine) Telemetry() *Telemetry { return e.tel }

// Options returns the tuning the engine was built with.
func (e *Engine) Options() Options { return e.opts }

// Mode returns the active mode.
func (e *Engine) Mode() Mode { return e.mode }

// SetMode switches to m. Switching to the current mode is a no-op.
func (e *Engine) SetMode(now time.Time, m Mode) {
	if !m.Valid() {
		e.tel.emitMessage(fmt.Sprintf("ERROR: invalid mode %d", int(m)))
		return
	}
	if m == e.mode {
		return
	}
	switch m {
	case ModeReflow:
		if _, err := e.activeProfile(); err != nil {
			e.tel.emitMessage(fmt.Sprintf("ERROR: cannot start reflow with profile %q: %v", e.profile, err))
			return
		}
	case ModeTargetPID:
		if _, err := e.lookupPID(e.opts.TargetPID); err != nil {
			e.tel.emitMessage(fmt.Sprintf("ERROR: cannot regulate to target with pid %q: %v", e.opts.TargetPID, err))
			return
		}
	case ModeOff, ModeOn, ModeCalibrate, ModeCalibrateCool, ModeErrorOff:
	}
	e.transition(now, m)
}

// SetProfile selects the profile stored under name and returns the resulting selection.
// Unknown names and changes during a reflow run are reported as messages and ignored.
func (e *Engine) SetProfile(name string) string {
	if e.mode == ModeReflow {
		e.tel.emitMessage(fmt.Sprintf("ERROR: cannot change profile to %q during reflow", name))
		return e.profile
	}
	if e.store == nil {
		e.tel.emitMessage(fmt.Sprintf("ERROR: profile %q not found: no profile store", name))
		return e.profile
	}
	if _, err := e.store.GetProfile(name); err != nil {
		e.tel.emitMessage(fmt.Sprintf("ERROR: profile %q not found", name))
		return e.profile
	}
	e.profile = name
	e.stageIndex = 0
	if e.mode.inactive() {
		e.hist.reset(time.Time{})
	}
	return e.profile
}

// SetTarget stores the regulation target clamped to [0, MaxTemperature] and returns it.
func (e *Engine) SetTarget(t float64) float64 {
	e.target = clamp(t, 0, e.opts.MaxTemperature)
	return e.target
}

// WatchdogPing refreshes the watchdog deadline.
func (e *Engine) WatchdogPing(now time.Time) {
	e.watchdog.Ping(now)
}

// Poll advances the engine by one tick.
func (e *Engine) Poll(now time.Time) {
	temp, ok := e.sample(now)
	if !ok {
		return
	}
	dt := 0.0
	if !e.lastTick.IsZero() {
		dt = now.Sub(e.lastTick).Seconds()
	}
	e.lastTick = now

	reading := e.hist.append(now, temp, e.currentTarget())

	switch {
	case e.overTemperature(temp):
		e.failSafe(now, fmt.Sprintf("over-temperature %.1f°C (limit %.1f°C)", temp, e.opts.MaxTemperature+e.opts.OvertempMargin))
	case e.mode.watched() && e.watchdog.Expired(now):
		e.failSafe(now, "watchdog timeout")
	default:
		e.control(now, temp, dt)
	}

	e.tel.emitReadings(e.hist.readings, reading.Time)
}

// MeasureTemperature takes one reading without touching the session. A sensor failure
// trips the same fail-safe as during Poll.
func (e *Engine) MeasureTemperature(now time.Time) (float64, error) {
	raw, err := e.readSensor()
	if err != nil {
		e.sensorFailed(now, err)
		return 0, err
	}
	e.sensorFault = false
	temp := e.cal.apply(raw)
	e.temperature = temp
	e.haveTemp = true
	return temp, nil
}

// ReportTemperature measures once and emits a readings event carrying only that reading.
func (e *Engine) ReportTemperature(now time.Time) {
	temp, err := e.MeasureTemperature(now)
	if err != nil {
		return
	}
	r := Reading{Time: e.hist.elapsed(now), Temperature: temp, Target: e.currentTarget()}
	e.tel.emitReadings([]Reading{r}, r.Time)
}

// CalibrationString returns the calibration state as a JSON document.
func (e *Engine) CalibrationString() string {
	return e.cal.String()
}

// Readings returns a copy of the session history.
func (e *Engine) Readings() []Reading {
	return e.hist.copyAll()
}

// Snapshot returns the externally visible state.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Mode:        e.mode,
		Profile:     e.profile,
		StageIndex:  e.stageIndex,
		Target:      e.target,
		Heater:      e.heaterOn,
		Duty:        e.duty,
		Temperature: e.temperature,
		Session:     e.session,
	}
	if e.mode == ModeReflow {
		if st, ok := e.currentStage(); ok {
			s.Stage = st.Name
		}
	}
	return s
}

// Restore reinstates a persisted profile selection and target without emitting events.
// Unknown profiles are dropped silently.
func (e *Engine) Restore(profile string, target float64) {
	e.SetTarget(target)
	if profile == "" || e.store == nil {
		return
	}
	if _, err := e.store.GetProfile(profile); err == nil {
		e.profile = profile
	}
}

// Shutdown drives the heater off without emitting events. Used when the engine is retired.
func (e *Engine) Shutdown() {
	if e.heater != nil {
		_ = e.heater.Set(false)
	}
	e.heaterOn = false
	e.duty = 0
}

func (e *Engine) transition(now time.Time, m Mode) {
	last := e.mode
	e.mode = m
	if !m.inactive() {
		// a still-broken sensor must trip again in the new mode
		e.sensorFault = false
		if last.inactive() {
			e.startSession(now)
		}
	}
	e.pid.Reset()
	e.lastTick = time.Time{}
	e.windowStart = now

	switch m {
	case ModeOff, ModeErrorOff, ModeCalibrateCool:
		e.duty = 0
		e.switchHeater(now, false)
	case ModeOn, ModeTargetPID, ModeReflow, ModeCalibrate:
	}

	e.tel.emitMode(last, m)

	switch m {
	case ModeReflow:
		e.enterStage(now, 0)
	case ModeTargetPID:
		if err := e.usePID(e.opts.TargetPID); err != nil {
			e.failSafe(now, err.Error())
		}
	case ModeCalibrate:
		e.cal.beginHeat(now, e.temperature, e.haveTemp)
	case ModeCalibrateCool:
		e.cal.beginCool(now, e.temperature, e.haveTemp)
	case ModeOff, ModeOn, ModeErrorOff:
	}
}

func (e *Engine) startSession(now time.Time) {
	e.session++
	e.hist.reset(now)
	e.stageIndex = 0
	e.stageStart = time.Time{}
}

func (e *Engine) control(now time.Time, temp, dt float64) {
	switch e.mode {
	case ModeOff, ModeErrorOff:
		e.duty = 0
		e.switchHeater(now, false)
	case ModeOn:
		e.bangBang(now, temp)
	case ModeTargetPID:
		e.applyDuty(now, e.pid.Compute(e.target, temp, dt))
	case ModeReflow:
		st, running := e.advanceStage(now, temp)
		if running {
			e.applyDuty(now, e.pid.Compute(st.Target, temp, dt))
		}
	case ModeCalibrate:
		e.cal.observe(ModeCalibrate, now, temp)
		if temp >= e.calibrationCeiling() {
			e.transition(now, ModeCalibrateCool)
			return
		}
		e.duty = 1
		e.switchHeater(now, true)
	case ModeCalibrateCool:
		e.cal.observe(ModeCalibrateCool, now, temp)
		e.duty = 0
		e.switchHeater(now, false)
	}
}

// bangBang is the raw on/off regulation used in ON mode.
func (e *Engine) bangBang(now time.Time, temp float64) {
	on := e.heaterOn
	switch {
	case e.target <= 0:
		on = false
	case on && temp >= e.target+e.opts.Hysteresis:
		on = false
	case !on && temp <= e.target-e.opts.Hysteresis:
		on = true
	}
	e.duty = 0
	if on {
		e.duty = 1
	}
	e.switchHeater(now, on)
}

// applyDuty converts a duty into an on/off command with a time-proportioned window.
func (e *Engine) applyDuty(now time.Time, duty float64) {
	e.duty = duty
	window := e.opts.HeaterWindow
	phase := now.Sub(e.windowStart) % window
	if phase < 0 {
		phase += window
	}
	on := duty >= maxDuty || (duty > 0 && float64(phase) < duty*float64(window))
	e.switchHeater(now, on)
}

// switchHeater drives the actuator and emits a heater event when the state changes.
func (e *Engine) switchHeater(now time.Time, on bool) {
	if e.heater != nil {
		if err := e.heater.Set(on); err != nil {
			if on {
				e.failSafe(now, fmt.Sprintf("heater fault: %v", err))
				return
			}
			e.tel.emitMessage(fmt.Sprintf("ERROR: heater off failed: %v", err))
		}
	}
	if on == e.heaterOn {
		return
	}
	e.heaterOn = on
	e.tel.emitHeater(on)
}

// advanceStage runs the stage clock and reports the stage to regulate to.
// It returns false once the profile is finished or aborted.
func (e *Engine) advanceStage(now time.Time, temp float64) (Stage, bool) {
	profile, err := e.activeProfile()
	if err != nil {
		e.failSafe(now, fmt.Sprintf("profile %q unavailable: %v", e.profile, err))
		return Stage{}, false
	}
	if e.stageIndex >= len(profile.Stages) {
		e.transition(now, ModeOff)
		return Stage{}, false
	}
	st := profile.Stages[e.stageIndex]
	if e.stageStart.IsZero() && e.reached(st, temp) {
		e.stageStart = now
	}
	if e.stageStart.IsZero() || now.Sub(e.stageStart).Seconds() < st.Stay {
		return st, true
	}

	next := e.stageIndex + 1
	if next >= len(profile.Stages) {
		e.stageIndex = next
		e.tel.emitMessage(fmt.Sprintf("INFO: profile %q complete", profile.Name))
		e.transition(now, ModeOff)
		return Stage{}, false
	}
	if !e.enterStage(now, next) {
		return Stage{}, false
	}
	return profile.Stages[next], true
}

// enterStage activates stage idx of the selected profile and emits the stage event.
func (e *Engine) enterStage(now time.Time, idx int) bool {
	profile, err := e.activeProfile()
	if err != nil {
		e.failSafe(now, fmt.Sprintf("profile %q unavailable: %v", e.profile, err))
		return false
	}
	st := profile.Stages[idx]
	if err := e.usePID(st.PID); err != nil {
		e.failSafe(now, err.Error())
		return false
	}
	e.stageIndex = idx
	e.stageStart = time.Time{}
	e.stageHeating = !e.haveTemp || st.Target >= e.temperature
	e.pid.Reset()
	e.tel.emitStage(st.Name, st.Target)
	return true
}

func (e *Engine) reached(st Stage, temp float64) bool {
	if e.stageHeating {
		return temp >= st.Target-e.opts.Tolerance
	}
	return temp <= st.Target+e.opts.Tolerance
}

func (e *Engine) usePID(name string) error {
	params, err := e.lookupPID(name)
	if err != nil {
		return fmt.Errorf("pid %q unavailable: %w", name, err)
	}
	if name != e.pidName || params != e.pid.Params() {
		e.pid.SetParams(params)
		e.pidName = name
	}
	return nil
}

func (e *Engine) lookupPID(name string) (PIDParams, error) {
	if e.store == nil {
		return PIDParams{}, ErrPIDNotFound
	}
	return e.store.GetPID(name)
}

func (e *Engine) activeProfile() (Profile, error) {
	if e.profile == "" {
		return Profile{}, fmt.Errorf("%w: none selected", ErrProfileNotFound)
	}
	if e.store == nil {
		return Profile{}, ErrProfileNotFound
	}
	p, err := e.store.GetProfile(e.profile)
	if err != nil {
		return Profile{}, err
	}
	if len(p.Stages) == 0 {
		return Profile{}, fmt.Errorf("profile %q has no stages", e.profile)
	}
	return p, nil
}

func (e *Engine) currentStage() (Stage, bool) {
	p, err := e.activeProfile()
	if err != nil || e.stageIndex >= len(p.Stages) {
		return Stage{}, false
	}
	return p.Stages[e.stageIndex], true
}

// currentTarget is the setpoint in force for the active mode.
func (e *Engine) currentTarget() float64 {
	switch e.mode {
	case ModeOn, ModeTargetPID:
		return e.target
	case ModeReflow:
		if st, ok := e.currentStage(); ok {
			return st.Target
		}
		return 0
	case ModeCalibrate:
		return e.calibrationCeiling()
	case ModeOff, ModeErrorOff, ModeCalibrateCool:
		return 0
	default:
		return 0
	}
}

func (e *Engine) calibrationCeiling() float64 {
	if e.target > 0 {
		return e.target
	}
	return e.opts.CalibrationTarget
}

func (e *Engine) overTemperature(temp float64) bool {
	switch e.mode {
	case ModeOn, ModeTargetPID, ModeReflow, ModeCalibrate:
		return temp > e.opts.MaxTemperature+e.opts.OvertempMargin
	case ModeOff, ModeErrorOff, ModeCalibrateCool:
		return false
	default:
		return false
	}
}

// sample reads and calibrates the sensor, tripping the fail-safe on failure.
func (e *Engine) sample(now time.Time) (float64, bool) {
	temp, err := e.MeasureTemperature(now)
	if err != nil {
		return 0, false
	}
	return temp, true
}

func (e *Engine) readSensor() (float64, error) {
	if e.sensor == nil {
		return 0, errNoSensor
	}
	raw, err := e.sensor.ReadTemperature()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, errInvalidReading
	}
	return raw, nil
}

// sensorFailed reports a fault once per onset and keeps the heater off while it lasts.
func (e *Engine) sensorFailed(now time.Time, err error) {
	if e.sensorFault {
		e.duty = 0
		e.switchHeater(now, false)
		return
	}
	e.sensorFault = true
	e.failSafe(now, fmt.Sprintf("sensor fault: %v", err))
}

// failSafe forces the heater off and the mode to ERROR_OFF.
func (e *Engine) failSafe(now time.Time, reason string) {
	e.tel.emitMessage("ERROR: " + reason)
	if e.mode == ModeErrorOff {
		e.duty = 0
		e.switchHeater(now, false)
		return
	}
	e.transition(now, ModeErrorOff)
}
