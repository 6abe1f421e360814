package service

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"reflow_oven"
	"reflow_oven/internal/engine"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/repository"
)

const (
	defaultRecorderQueue = 256
	recorderWriteTimeout = 5 * time.Second
)

type write func(ctx context.Context) error

// Recorder persists telemetry events and operator settings from its own goroutine.
// Publish and SaveSettings never block; when the queue is full the write is dropped.
type Recorder struct {
	events   repository.EventRepo
	settings repository.SettingsRepo
	log      *logger.Logger
	now      func() time.Time

	queue   chan write
	dropped atomic.Uint64
}

func NewRecorder(events repository.EventRepo, settings repository.SettingsRepo, log *logger.Logger) *Recorder {
	return &Recorder{
		events:   events,
		settings: settings,
		log:      log,
		now:      time.Now,
		queue:    make(chan write, defaultRecorderQueue),
	}
}

// Publish implements telemetry.Sink. Mode changes, stage entries and messages are logged;
// readings and heater toggles are not.
func (r *Recorder) Publish(kind string, payload any) {
	ev, ok := r.toEvent(payload)
	if !ok {
		return
	}
	r.enqueue(func(ctx context.Context) error {
		return r.events.Append(ctx, ev)
	})
}

func (r *Recorder) toEvent(payload any) (models.OvenEvent, bool) {
	ev := models.OvenEvent{OccurredAt: r.now().UTC()}
	switch p := payload.(type) {
	case reflow_oven.ModePayload:
		ev.Type = models.EventModeChange
		ev.Description = "mode " + p.Mode
		ev.Metadata = map[string]any{"mode": p.Mode}
	case reflow_oven.StagePayload:
		ev.Type = models.EventStage
		ev.Description = "stage " + p.Stage
		ev.Metadata = map[string]any{"stage": p.Stage, "target_c": p.Target}
	case reflow_oven.MessagePayload:
		ev.Type = models.EventMessage
		if strings.HasPrefix(p.Message, "ERROR") {
			ev.Type = models.EventError
		}
		ev.Description = p.Message
	default:
		return models.OvenEvent{}, false
	}
	return ev, true
}

// SaveSettings implements SettingsSaver.
func (r *Recorder) SaveSettings(profile string, target float64) {
	s := models.OvenSettings{Profile: profile, TargetC: target, UpdatedAt: r.now().UTC()}
	r.enqueue(func(ctx context.Context) error {
		return r.settings.Save(ctx, s)
	})
}

func (r *Recorder) enqueue(w write) {
	select {
	case r.queue <- w:
	default:
		if n := r.dropped.Add(1); r.log != nil {
			r.log.Warnw("recorder_queue_full", "dropped", n)
		}
	}
}

// Dropped reports how many writes were discarded.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Run performs queued writes until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case w := <-r.queue:
			r.apply(ctx, w)
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
	defer cancel()
	for {
		select {
		case w := <-r.queue:
			r.apply(ctx, w)
		default:
			return
		}
	}
}

func (r *Recorder) apply(ctx context.Context, w write) {
	wctx, cancel := context.WithTimeout(ctx, recorderWriteTimeout)
	defer cancel()
	if err := w(wctx); err != nil && r.log != nil {
		r.log.Errorw("recorder_write_failed", "err", err)
	}
}

// Restore applies the saved profile and target to the engine, if any were saved.
func (r *Recorder) Restore(ctx context.Context, runner *Runner) error {
	s, ok, err := r.settings.Load(ctx)
	if err != nil || !ok {
		return err
	}
	if r.log != nil {
		r.log.Infow("settings_restored", "profile", s.Profile, "target_c", s.TargetC)
	}
	return runner.Do(ctx, func(e *engine.Engine, _ time.Time) {
		e.Restore(s.Profile, s.TargetC)
	})
}
