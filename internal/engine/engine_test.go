package engine

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ---- test doubles ----

type fakeStore struct {
	pids     map[string]PIDParams
	profiles map[string]Profile
}

func (s *fakeStore) GetPID(name string) (PIDParams, error) {
	p, ok := s.pids[name]
	if !ok {
		return PIDParams{}, ErrPIDNotFound
	}
	return p, nil
}

func (s *fakeStore) GetProfile(name string) (Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

type fakeSensor struct {
	temp  float64
	err   error
	reads int
}

func (s *fakeSensor) ReadTemperature() (float64, error) {
	s.reads++
	return s.temp, s.err
}

type fakeHeater struct {
	on   bool
	sets int
	err  error
}

func (h *fakeHeater) Set(on bool) error {
	h.sets++
	if h.err != nil {
		return h.err
	}
	h.on = on
	return nil
}

type stageEvent struct {
	name   string
	target float64
	at     float64
}

type recorder struct {
	now          *time.Time
	start        time.Time
	messages     []string
	heater       []bool
	modes        [][2]Mode
	stages       []stageEvent
	readingsN    int
	lastReadings []Reading
}

func newRecorder(tel *Telemetry, start time.Time, now *time.Time) *recorder {
	r := &recorder{now: now, start: start}
	tel.OnMessage(func(text string) { r.messages = append(r.messages, text) })
	tel.OnHeater(func(on bool) { r.heater = append(r.heater, on) })
	tel.OnMode(func(last, current Mode) { r.modes = append(r.modes, [2]Mode{last, current}) })
	tel.OnStage(func(name string, target float64) {
		r.stages = append(r.stages, stageEvent{name: name, target: target, at: r.now.Sub(r.start).Seconds()})
	})
	tel.OnReadings(func(readings []Reading, elapsed float64) {
		r.readingsN++
		r.lastReadings = append([]Reading(nil), readings...)
	})
	return r
}

func leadFree() Profile {
	return Profile{
		Key:  "lead_free",
		Name: "Lead free",
		Stages: []Stage{
			{Name: "preheat", PID: "lf", Target: 150, Stay: 60},
			{Name: "soak", PID: "lf", Target: 180, Stay: 90},
			{Name: "reflow", PID: "lf", Target: 245, Stay: 45},
			{Name: "cool", PID: "lf", Target: 50, Stay: 0},
		},
	}
}

func newStore() *fakeStore {
	return &fakeStore{
		pids: map[string]PIDParams{
			"lf":      {P: 0.05, I: 0.001, D: 0.2},
			"default": {P: 0.04, I: 0.002, D: 0.1},
		},
		profiles: map[string]Profile{"lead_free": leadFree()},
	}
}

type fixture struct {
	eng    *Engine
	sensor *fakeSensor
	heater *fakeHeater
	rec    *recorder
	t0     time.Time
	now    time.Time
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		sensor: &fakeSensor{temp: 25},
		heater: &fakeHeater{},
		t0:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.now = f.t0
	tel := NewTelemetry()
	f.rec = newRecorder(tel, f.t0, &f.now)
	eng, err := New(newStore(), f.sensor, f.heater, tel, opts)
	require.NoError(t, err)
	f.eng = eng
	return f
}

func (f *fixture) at(sec float64) time.Time {
	f.now = f.t0.Add(time.Duration(sec * float64(time.Second)))
	return f.now
}

// ---- tests ----

func TestNew_RejectsInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxTemperature = 0
	_, err := New(newStore(), &fakeSensor{}, &fakeHeater{}, nil, opts)
	require.Error(t, err)
}

func TestSetTarget_Clamps(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	cases := []struct {
		in, want float64
	}{
		{-5, 0},
		{0, 0},
		{120.5, 120.5},
		{260, 260},
		{500, 260},
		{math.Inf(1), 260},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		got := f.eng.SetTarget(tc.in)
		require.Equal(t, tc.want, got, "input %v", tc.in)
		require.Equal(t, tc.want, f.eng.Snapshot().Target)
	}
}

func TestSetMode_SameModeIsNoop(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.eng.SetMode(f.at(0), ModeOff)
	require.Empty(t, f.rec.modes)
	require.Equal(t, 0, f.eng.Snapshot().Session)

	f.eng.SetMode(f.at(1), ModeOn)
	f.eng.Poll(f.at(2))
	f.eng.SetMode(f.at(3), ModeOn)
	require.Len(t, f.rec.modes, 1)
	require.Equal(t, [2]Mode{ModeOff, ModeOn}, f.rec.modes[0])
	require.Equal(t, 1, f.eng.Snapshot().Session)
	require.Len(t, f.eng.Readings(), 1, "same-mode switch must not reset the session")
}

func TestSetProfile_MissingLeavesSelectionAndReports(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	require.Equal(t, "lead_free", f.eng.SetProfile("lead_free"))

	got := f.eng.SetProfile("missing")
	require.Equal(t, "lead_free", got)
	require.Equal(t, "lead_free", f.eng.Snapshot().Profile)
	require.Len(t, f.rec.messages, 1)
	require.Contains(t, f.rec.messages[0], "missing")
}

func TestSetProfile_RejectedDuringReflow(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetProfile("lead_free")
	f.eng.WatchdogPing(f.at(0))
	f.eng.SetMode(f.at(0), ModeReflow)

	f.eng.store.(*fakeStore).profiles["other"] = leadFree()
	got := f.eng.SetProfile("other")
	require.Equal(t, "lead_free", got)
	require.Len(t, f.rec.messages, 1)
	require.Contains(t, f.rec.messages[0], "during reflow")
}

func TestSetProfile_ResetsInactiveSession(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.Poll(f.at(0))
	f.eng.Poll(f.at(1))
	require.Len(t, f.eng.Readings(), 2)

	f.eng.SetProfile("lead_free")
	require.Empty(t, f.eng.Readings())

	f.eng.Poll(f.at(2))
	r := f.eng.Readings()
	require.Len(t, r, 1)
	require.True(t, r[0].Reset)
	require.Equal(t, 0.0, r[0].Time)
}

func TestReflow_RequiresProfile(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetMode(f.at(0), ModeReflow)
	require.Equal(t, ModeOff, f.eng.Mode())
	require.Empty(t, f.rec.modes)
	require.Len(t, f.rec.messages, 1)
}

func TestReflow_SoakStartsAfterTargetReachedAndStay(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetProfile("lead_free")
	f.eng.WatchdogPing(f.at(0))
	f.eng.SetMode(f.at(0), ModeReflow)

	for sec := 0; sec <= 120; sec++ {
		if sec < 40 {
			f.sensor.temp = 25 + 125*float64(sec)/40
		} else {
			f.sensor.temp = 150
		}
		now := f.at(float64(sec))
		f.eng.WatchdogPing(now)
		f.eng.Poll(now)
	}

	require.Len(t, f.rec.stages, 2)
	require.Equal(t, stageEvent{name: "preheat", target: 150, at: 0}, f.rec.stages[0])
	require.Equal(t, stageEvent{name: "soak", target: 180, at: 100}, f.rec.stages[1])
	require.Equal(t, ModeReflow, f.eng.Mode())
	require.Equal(t, "soak", f.eng.Snapshot().Stage)
}

func TestReflow_VisitsEveryStageOnceAndFinishesOff(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	// the oven follows each new stage target instantly
	f.eng.Telemetry().OnStage(func(name string, target float64) {
		f.rec.stages = append(f.rec.stages, stageEvent{name: name, target: target, at: f.now.Sub(f.t0).Seconds()})
		f.sensor.temp = target
	})

	f.eng.SetProfile("lead_free")
	f.eng.WatchdogPing(f.at(0))
	f.eng.SetMode(f.at(0), ModeReflow)

	for sec := 0; sec <= 400; sec++ {
		now := f.at(float64(sec))
		f.eng.WatchdogPing(now)
		f.eng.Poll(now)
	}

	names := make([]string, 0, len(f.rec.stages))
	for _, s := range f.rec.stages {
		names = append(names, s.name)
	}
	require.Equal(t, []string{"preheat", "soak", "reflow", "cool"}, names)
	require.Equal(t, []float64{0, 60, 151, 197}, []float64{f.rec.stages[0].at, f.rec.stages[1].at, f.rec.stages[2].at, f.rec.stages[3].at})

	require.Equal(t, [][2]Mode{{ModeOff, ModeReflow}, {ModeReflow, ModeOff}}, f.rec.modes)
	require.Equal(t, ModeOff, f.eng.Mode())
	require.False(t, f.heater.on)

	// idempotent after completion
	stages, modes := len(f.rec.stages), len(f.rec.modes)
	for sec := 401; sec <= 420; sec++ {
		f.eng.Poll(f.at(float64(sec)))
	}
	require.Len(t, f.rec.stages, stages)
	require.Len(t, f.rec.modes, modes)
}

func TestWatchdog_ExpiryTripsErrorOffOnce(t *testing.T) {
	for _, mode := range []Mode{ModeTargetPID, ModeReflow} {
		t.Run(mode.String(), func(t *testing.T) {
			f := newFixture(t, DefaultOptions())
			f.eng.SetProfile("lead_free")
			f.eng.SetTarget(200)
			f.eng.WatchdogPing(f.at(0))
			f.eng.SetMode(f.at(0), mode)

			for sec := 1; sec <= 10; sec++ {
				f.eng.Poll(f.at(float64(sec)))
			}
			require.Equal(t, mode, f.eng.Mode())

			f.eng.Poll(f.at(11))
			require.Equal(t, ModeErrorOff, f.eng.Mode())
			require.False(t, f.heater.on)

			for sec := 12; sec <= 30; sec++ {
				f.eng.Poll(f.at(float64(sec)))
			}
			require.Equal(t, [][2]Mode{{ModeOff, mode}, {mode, ModeErrorOff}}, f.rec.modes)

			timeouts := 0
			for _, m := range f.rec.messages {
				if strings.Contains(m, "watchdog") {
					timeouts++
				}
			}
			require.Equal(t, 1, timeouts)
		})
	}
}

func TestWatchdog_PingKeepsModeAlive(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetTarget(100)
	f.eng.WatchdogPing(f.at(0))
	f.eng.SetMode(f.at(0), ModeTargetPID)
	for sec := 1; sec <= 60; sec++ {
		now := f.at(float64(sec))
		if sec%5 == 0 {
			f.eng.WatchdogPing(now)
		}
		f.eng.Poll(now)
	}
	require.Equal(t, ModeTargetPID, f.eng.Mode())
}

func TestWatchdog_NotAppliedToOnMode(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetTarget(100)
	f.eng.SetMode(f.at(0), ModeOn)
	f.eng.Poll(f.at(60))
	require.Equal(t, ModeOn, f.eng.Mode())
}

func TestTargetPID_RequiresPIDSet(t *testing.T) {
	opts := DefaultOptions()
	opts.TargetPID = "nope"
	f := newFixture(t, opts)
	f.eng.SetMode(f.at(0), ModeTargetPID)
	require.Equal(t, ModeOff, f.eng.Mode())
	require.Len(t, f.rec.messages, 1)
	require.Contains(t, f.rec.messages[0], "nope")
}

func TestSensorFault_FailsSafeOnce(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetTarget(200)
	f.eng.SetMode(f.at(0), ModeOn)
	f.eng.Poll(f.at(1))
	require.True(t, f.heater.on)

	f.sensor.err = errors.New("thermocouple open")
	f.eng.Poll(f.at(2))
	f.eng.Poll(f.at(3))

	require.Equal(t, ModeErrorOff, f.eng.Mode())
	require.False(t, f.heater.on)
	require.Equal(t, [][2]Mode{{ModeOff, ModeOn}, {ModeOn, ModeErrorOff}}, f.rec.modes)
	require.Len(t, f.rec.messages, 1)
	require.Contains(t, f.rec.messages[0], "thermocouple open")
}

func TestSensorFault_RetripsAfterManualRecovery(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetTarget(200)
	f.eng.SetMode(f.at(0), ModeOn)
	f.eng.Poll(f.at(1))

	f.sensor.err = errors.New("thermocouple open")
	f.eng.Poll(f.at(2))
	require.Equal(t, ModeErrorOff, f.eng.Mode())

	// operator switches back on while the sensor is still broken
	f.eng.SetMode(f.at(3), ModeOn)
	f.eng.Poll(f.at(4))
	f.eng.Poll(f.at(5))

	require.Equal(t, ModeErrorOff, f.eng.Mode())
	require.False(t, f.heater.on)
	require.Equal(t, [][2]Mode{
		{ModeOff, ModeOn}, {ModeOn, ModeErrorOff},
		{ModeErrorOff, ModeOn}, {ModeOn, ModeErrorOff},
	}, f.rec.modes)
	require.Len(t, f.rec.messages, 2)
}

func TestSensorFault_RetripsInReflowWithoutPings(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.sensor.err = errors.New("open")
	f.eng.Poll(f.at(0))
	require.Equal(t, ModeErrorOff, f.eng.Mode())

	require.Equal(t, "lead_free", f.eng.SetProfile("lead_free"))
	f.eng.WatchdogPing(f.at(1))
	f.eng.SetMode(f.at(1), ModeReflow)
	require.Equal(t, ModeReflow, f.eng.Mode())

	for sec := 2; sec < 30; sec++ {
		f.eng.Poll(f.at(float64(sec)))
	}
	require.Equal(t, ModeErrorOff, f.eng.Mode())
	require.False(t, f.heater.on)
	require.Equal(t, [2]Mode{ModeReflow, ModeErrorOff}, f.rec.modes[len(f.rec.modes)-1])
	require.Len(t, f.rec.modes, 3)
}

func TestSensorFault_WhileOffKeepsIdleHistory(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.Poll(f.at(0))
	f.eng.Poll(f.at(1))

	f.sensor.err = errors.New("open")
	f.eng.Poll(f.at(2))

	require.Equal(t, ModeErrorOff, f.eng.Mode())
	require.Zero(t, f.eng.Snapshot().Session)
	require.Len(t, f.eng.Readings(), 2)
}

func TestSensorFault_NaNIsAFault(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.sensor.temp = math.NaN()
	f.eng.Poll(f.at(0))
	require.Equal(t, ModeErrorOff, f.eng.Mode())
	require.Empty(t, f.eng.Readings())
}

func TestHeaterFault_FailsSafe(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetTarget(200)
	f.eng.SetMode(f.at(0), ModeOn)
	f.heater.err = errors.New("gpio busy")
	f.eng.Poll(f.at(1))
	require.Equal(t, ModeErrorOff, f.eng.Mode())
	require.Contains(t, f.rec.messages[0], "gpio busy")
}

func TestOverTemperature_FailsSafe(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetTarget(250)
	f.eng.SetMode(f.at(0), ModeOn)
	f.sensor.temp = DefaultMaxTemperature + DefaultOvertempMargin + 1
	f.eng.Poll(f.at(1))
	require.Equal(t, ModeErrorOff, f.eng.Mode())
	require.False(t, f.heater.on)
}

func TestErrorOff_ManualRecovery(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.sensor.err = errors.New("open")
	f.eng.Poll(f.at(0))
	require.Equal(t, ModeErrorOff, f.eng.Mode())

	f.sensor.err = nil
	f.eng.Poll(f.at(1))
	require.Equal(t, ModeErrorOff, f.eng.Mode(), "recovery is manual only")

	f.eng.SetMode(f.at(2), ModeOff)
	require.Equal(t, ModeOff, f.eng.Mode())
}

func TestOnMode_HeaterEventsOnlyOnChange(t *testing.T) {
	opts := DefaultOptions()
	f := newFixture(t, opts)
	f.eng.SetTarget(100)
	f.eng.SetMode(f.at(0), ModeOn)
	for sec := 1; sec <= 5; sec++ {
		f.eng.Poll(f.at(float64(sec)))
	}
	require.Equal(t, []bool{true}, f.rec.heater)

	f.sensor.temp = 100 + opts.Hysteresis
	f.eng.Poll(f.at(6))
	f.eng.Poll(f.at(7))
	require.Equal(t, []bool{true, false}, f.rec.heater)
}

func TestModeOff_ForcesHeaterOffSynchronously(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetTarget(200)
	f.eng.SetMode(f.at(0), ModeOn)
	f.eng.Poll(f.at(1))
	require.True(t, f.heater.on)

	f.eng.SetMode(f.at(1.5), ModeOff)
	require.False(t, f.heater.on)
	require.False(t, f.eng.Snapshot().Heater)
}

func TestSession_ResetFlagAndClearedReadings(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.Poll(f.at(0))
	f.eng.Poll(f.at(1))

	f.eng.SetTarget(100)
	f.eng.SetMode(f.at(5), ModeOn)
	f.eng.Poll(f.at(5))
	f.eng.Poll(f.at(6))

	r := f.eng.Readings()
	require.Len(t, r, 2)
	require.True(t, r[0].Reset)
	require.False(t, r[1].Reset)
	require.Equal(t, 0.0, r[0].Time)
	require.Equal(t, 1.0, r[1].Time)
	require.Equal(t, 100.0, r[1].Target)
	require.Equal(t, 1, f.eng.Snapshot().Session)
}

func TestReadings_BoundedHistory(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxReadings = 10
	f := newFixture(t, opts)
	for sec := 0; sec < 25; sec++ {
		f.eng.Poll(f.at(float64(sec)))
	}
	r := f.eng.Readings()
	require.LessOrEqual(t, len(r), 10)
	require.Equal(t, 24.0, r[len(r)-1].Time)
}

func TestReportTemperature_EmitsSingleReading(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.Poll(f.at(0))
	f.sensor.temp = 42
	f.eng.ReportTemperature(f.at(3))

	require.Equal(t, 2, f.rec.readingsN)
	require.Len(t, f.rec.lastReadings, 1)
	require.Equal(t, 42.0, f.rec.lastReadings[0].Temperature)
	require.False(t, f.rec.lastReadings[0].Reset)
	require.Len(t, f.eng.Readings(), 1, "ad-hoc readings are not stored")
}

func TestSensorCalibration_Applied(t *testing.T) {
	opts := DefaultOptions()
	opts.SensorGain = 2
	opts.SensorOffset = -5
	f := newFixture(t, opts)
	f.sensor.temp = 50
	temp, err := f.eng.MeasureTemperature(f.at(0))
	require.NoError(t, err)
	require.Equal(t, 95.0, temp)
}

func TestCalibrate_HeatsThenCoolsAndReports(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.Poll(f.at(0))
	f.eng.SetTarget(100)
	f.eng.WatchdogPing(f.at(0))
	f.eng.SetMode(f.at(0), ModeCalibrate)

	temp := 25.0
	sec := 0
	for f.eng.Mode() == ModeCalibrate && sec < 100 {
		sec++
		temp += 2
		f.sensor.temp = temp
		now := f.at(float64(sec))
		f.eng.WatchdogPing(now)
		f.eng.Poll(now)
		if f.eng.Mode() == ModeCalibrate {
			require.True(t, f.heater.on)
		}
	}
	require.Equal(t, ModeCalibrateCool, f.eng.Mode())
	require.False(t, f.heater.on)

	// residual heat then cooling
	for _, v := range []float64{temp + 2, temp + 3, temp + 1, temp - 2, temp - 5} {
		sec++
		f.sensor.temp = v
		f.eng.Poll(f.at(float64(sec)))
	}

	var cal Calibration
	require.NoError(t, json.Unmarshal([]byte(f.eng.CalibrationString()), &cal))
	require.Equal(t, 2.0, cal.HeatRate)
	require.Equal(t, 1.0, cal.Lag)
	require.Equal(t, 3.0, cal.Overshoot)
	require.Equal(t, 3.0, cal.CoolRate)
	require.True(t, cal.Complete)
	require.Equal(t, f.eng.CalibrationString(), f.eng.CalibrationString())

	require.Equal(t, [][2]Mode{{ModeOff, ModeCalibrate}, {ModeCalibrate, ModeCalibrateCool}}, f.rec.modes)
}

func TestCalibrate_LagMeasuredFromFirstReading(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.eng.SetTarget(100)
	f.eng.WatchdogPing(f.at(0))
	f.eng.SetMode(f.at(0), ModeCalibrate)

	for sec, temp := range []float64{25, 25.5, 26.5} {
		now := f.at(float64(sec + 1))
		f.sensor.temp = temp
		f.eng.WatchdogPing(now)
		f.eng.Poll(now)
	}
	require.Equal(t, ModeCalibrate, f.eng.Mode())

	var cal Calibration
	require.NoError(t, json.Unmarshal([]byte(f.eng.CalibrationString()), &cal))
	require.Equal(t, 3.0, cal.Lag)
	require.Equal(t, 1.0, cal.HeatRate)
}

func TestParseMode_RoundTrip(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
	_, err := ParseMode("BOGUS")
	require.Error(t, err)
}
