package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reflow_oven"
	"reflow_oven/internal/engine"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in     string
		want   Command
		wantOK bool
	}{
		{in: "WATCHDOG", want: Command{Kind: CmdWatchdog}, wantOK: true},
		{in: "REBOOT", want: Command{Kind: CmdReboot}, wantOK: true},
		{in: "CURRENT-TEMPERATURE", want: Command{Kind: CmdCurrentTemperature}, wantOK: true},
		{in: "ON", want: Command{Kind: CmdMode, Mode: engine.ModeOn}, wantOK: true},
		{in: "OFF", want: Command{Kind: CmdMode, Mode: engine.ModeOff}, wantOK: true},
		{in: "REFLOW", want: Command{Kind: CmdMode, Mode: engine.ModeReflow}, wantOK: true},
		{in: "TARGET_PID", want: Command{Kind: CmdMode, Mode: engine.ModeTargetPID}, wantOK: true},
		{in: "CALIBRATE", want: Command{Kind: CmdMode, Mode: engine.ModeCalibrate}, wantOK: true},
		{in: "COOLDOWN", want: Command{Kind: CmdMode, Mode: engine.ModeCalibrateCool}, wantOK: true},
		{in: " ON\n", want: Command{Kind: CmdMode, Mode: engine.ModeOn}, wantOK: true},
		{in: "profile:lead_free", want: Command{Kind: CmdProfile, Profile: "lead_free"}, wantOK: true},
		{in: "target:180", want: Command{Kind: CmdTarget, Target: 180}, wantOK: true},
		{in: "target:-5", want: Command{Kind: CmdTarget, Target: -5}, wantOK: true},
		{in: "target:12.5", wantOK: false},
		{in: "target:", wantOK: false},
		{in: "profile:", wantOK: false},
		{in: "on", wantOK: false},
		{in: "ERROR_OFF", wantOK: false},
		{in: "", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseCommand(tc.in)
			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				require.Equal(t, tc.want, got)
			}
		})
	}
}

type savedSelection struct {
	profile string
	target  float64
}

type fakeSaver struct {
	mu    sync.Mutex
	saves []savedSelection
}

func (f *fakeSaver) SaveSettings(profile string, target float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, savedSelection{profile: profile, target: target})
}

func (f *fakeSaver) Saves() []savedSelection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedSelection(nil), f.saves...)
}

type commandRig struct {
	*rig
	clock    *fakeClock
	runner   *Runner
	saver    *fakeSaver
	receiver *CommandReceiver
	reboots  int

	mu       sync.Mutex
	messages []string
	readings [][]engine.Reading
}

func newCommandRig(t *testing.T) *commandRig {
	t.Helper()
	cr := &commandRig{rig: newRig(t, engine.DefaultOptions()), clock: newFakeClock(), saver: &fakeSaver{}}
	attach := func(e *engine.Engine) {
		e.Telemetry().OnMessage(func(text string) {
			cr.mu.Lock()
			cr.messages = append(cr.messages, text)
			cr.mu.Unlock()
		})
		e.Telemetry().OnReadings(func(rs []engine.Reading, _ float64) {
			cr.mu.Lock()
			cr.readings = append(cr.readings, append([]engine.Reading(nil), rs...))
			cr.mu.Unlock()
		})
	}
	cr.runner = NewRunner(cr.eng, cr.clock, time.Second, attach, nil)
	cr.receiver = NewCommandReceiver(cr.runner, cr.saver, func() { cr.reboots++ }, nil)
	startRunner(t, cr.runner)
	return cr
}

func (cr *commandRig) mode(t *testing.T) engine.Mode {
	t.Helper()
	var m engine.Mode
	require.NoError(t, cr.runner.Do(context.Background(), func(e *engine.Engine, _ time.Time) { m = e.Mode() }))
	return m
}

func TestCommandReceiver_TargetIsClampedAndSaved(t *testing.T) {
	cr := newCommandRig(t)

	ack, err := cr.receiver.Execute(context.Background(), "target:500")
	require.NoError(t, err)
	require.Equal(t, reflow_oven.TargetAck{Target: engine.DefaultMaxTemperature}, ack)
	require.Equal(t, []savedSelection{{target: engine.DefaultMaxTemperature}}, cr.saver.Saves())

	ack, err = cr.receiver.Execute(context.Background(), "target:-20")
	require.NoError(t, err)
	require.Equal(t, reflow_oven.TargetAck{Target: 0}, ack)
}

func TestCommandReceiver_ProfileSelection(t *testing.T) {
	cr := newCommandRig(t)
	ctx := context.Background()

	ack, err := cr.receiver.Execute(ctx, "profile:lead_free")
	require.NoError(t, err)
	require.Equal(t, reflow_oven.ProfileAck{Profile: "lead_free"}, ack)

	ack, err = cr.receiver.Execute(ctx, "profile:missing")
	require.NoError(t, err)
	require.Equal(t, reflow_oven.ProfileAck{Profile: "lead_free"}, ack)

	cr.mu.Lock()
	defer cr.mu.Unlock()
	require.Len(t, cr.messages, 1)
	require.Contains(t, cr.messages[0], "ERROR")
	require.Len(t, cr.saver.Saves(), 2)
}

func TestCommandReceiver_UnknownCommandIsIgnored(t *testing.T) {
	cr := newCommandRig(t)

	ack, err := cr.receiver.Execute(context.Background(), "SELF_DESTRUCT")
	require.NoError(t, err)
	require.Nil(t, ack)
	require.Equal(t, engine.ModeOff, cr.mode(t))
	require.Empty(t, cr.saver.Saves())
}

func TestCommandReceiver_ModeCommandPingsWatchdog(t *testing.T) {
	cr := newCommandRig(t)

	ack, err := cr.receiver.Execute(context.Background(), "TARGET_PID")
	require.NoError(t, err)
	require.Nil(t, ack)

	cr.clock.Advance(time.Second)
	cr.clock.Tick()
	require.Equal(t, engine.ModeTargetPID, cr.mode(t))

	cr.clock.Advance(engine.DefaultWatchdogTimeout)
	cr.clock.Tick()
	require.Equal(t, engine.ModeErrorOff, cr.mode(t))
}

func TestCommandReceiver_Reboot(t *testing.T) {
	cr := newCommandRig(t)
	ctx := context.Background()

	_, err := cr.receiver.Execute(ctx, "ON")
	require.NoError(t, err)
	require.Equal(t, engine.ModeOn, cr.mode(t))

	_, err = cr.receiver.Execute(ctx, "REBOOT")
	require.NoError(t, err)
	require.Equal(t, engine.ModeOff, cr.mode(t))
	require.Equal(t, 1, cr.reboots)
}

func TestCommandReceiver_CurrentTemperature(t *testing.T) {
	cr := newCommandRig(t)
	cr.sensor.Set(42)

	_, err := cr.receiver.Execute(context.Background(), "CURRENT-TEMPERATURE")
	require.NoError(t, err)

	cr.mu.Lock()
	defer cr.mu.Unlock()
	require.Len(t, cr.readings, 1)
	require.Len(t, cr.readings[0], 1)
	require.Equal(t, 42.0, cr.readings[0][0].Temperature)
}

func TestCommandReceiver_StoppedRunner(t *testing.T) {
	rg := newRig(t, engine.DefaultOptions())
	r := NewRunner(rg.eng, newFakeClock(), time.Second, nil, nil)
	cancel := startRunner(t, r)
	cancel()
	<-r.stopped

	_, err := NewCommandReceiver(r, nil, nil, nil).Execute(context.Background(), "ON")
	require.ErrorIs(t, err, ErrRunnerStopped)
}
