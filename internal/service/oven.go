package service

import (
	"context"
	"time"

	"reflow_oven"
	"reflow_oven/internal/engine"
	"reflow_oven/internal/telemetry"
)

// OvenService is the operator-facing view of the running engine.
type OvenService struct {
	runner   *Runner
	receiver *CommandReceiver
	hub      *telemetry.Hub
	names    func() []string
}

// NewOvenService builds the service. names lists the selectable profiles.
func NewOvenService(runner *Runner, receiver *CommandReceiver, hub *telemetry.Hub, names func() []string) *OvenService {
	return &OvenService{runner: runner, receiver: receiver, hub: hub, names: names}
}

// State returns the current engine snapshot.
func (s *OvenService) State(ctx context.Context) (reflow_oven.OvenState, error) {
	var snap engine.Snapshot
	var at time.Time
	err := s.runner.Do(ctx, func(e *engine.Engine, now time.Time) {
		snap = e.Snapshot()
		at = now
	})
	if err != nil {
		return reflow_oven.OvenState{}, err
	}
	state := reflow_oven.OvenState{
		Mode:         snap.Mode.String(),
		Profile:      snap.Profile,
		Stage:        snap.Stage,
		StageIndex:   snap.StageIndex,
		TargetC:      snap.Target,
		TemperatureC: snap.Temperature,
		Heater:       snap.Heater,
		Duty:         snap.Duty,
		Session:      snap.Session,
		UpdatedAt:    at.UTC(),
	}
	if s.names != nil {
		state.Profiles = s.names()
	}
	if state.Profiles == nil {
		state.Profiles = []string{}
	}
	return state, nil
}

// Command executes one text command and returns its acknowledgement, if any.
func (s *OvenService) Command(ctx context.Context, text string) (any, error) {
	return s.receiver.Execute(ctx, text)
}

// Calibration returns the calibration state as JSON.
func (s *OvenService) Calibration(ctx context.Context) (string, error) {
	var out string
	err := s.runner.Do(ctx, func(e *engine.Engine, _ time.Time) {
		out = e.CalibrationString()
	})
	return out, err
}

// Connect registers a telemetry client. Its queue starts with the connect snapshot
// and the session readings so far; every later event follows without gaps.
func (s *OvenService) Connect(ctx context.Context) (*telemetry.Client, error) {
	var c *telemetry.Client
	err := s.runner.Do(ctx, func(e *engine.Engine, _ time.Time) {
		c = s.hub.Register()
		c.EnqueueJSON(telemetry.Snapshot(e.Snapshot()))
		c.EnqueueJSON(telemetry.Replay(e.Readings()))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Disconnect unregisters c.
func (s *OvenService) Disconnect(c *telemetry.Client) {
	s.hub.Unregister(c)
}
