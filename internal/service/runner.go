package service

import (
	"context"
	"errors"
	"time"

	"reflow_oven/internal/engine"
	"reflow_oven/internal/logger"
)

// ErrRunnerStopped is returned by Do once the poll loop has exited.
var ErrRunnerStopped = errors.New("engine runner stopped")

type job struct {
	fn   func(e *engine.Engine, now time.Time)
	done chan struct{}
}

// Runner is the single goroutine that owns the engine. It polls on a ticker and runs
// closures submitted through Do in between polls, so the engine is never touched
// concurrently.
type Runner struct {
	log      *logger.Logger
	clock    Clock
	interval time.Duration
	handle   *engine.Handle
	attach   func(*engine.Engine)

	jobs    chan job
	stopped chan struct{}
}

// NewRunner wraps e. attach, when non-nil, is called for e and for every engine later
// passed to Replace, on the runner goroutine.
func NewRunner(e *engine.Engine, clock Clock, interval time.Duration, attach func(*engine.Engine), log *logger.Logger) *Runner {
	if clock == nil {
		clock = SystemClock{}
	}
	if attach != nil {
		attach(e)
	}
	return &Runner{
		log:      log,
		clock:    clock,
		interval: interval,
		handle:   engine.NewHandle(e),
		attach:   attach,
		jobs:     make(chan job),
		stopped:  make(chan struct{}),
	}
}

// Run polls until ctx is cancelled. On exit the heater is driven off.
func (r *Runner) Run(ctx context.Context) {
	ticks, stop := r.clock.NewTicker(r.interval)
	defer stop()
	defer close(r.stopped)
	defer func() { r.handle.Current().Shutdown() }()

	if r.log != nil {
		r.log.Infow("engine_runner_started", "interval", r.interval.String())
	}
	for {
		select {
		case <-ctx.Done():
			if r.log != nil {
				r.log.Infow("engine_runner_stopped")
			}
			return
		case j := <-r.jobs:
			j.fn(r.handle.Current(), r.clock.Now())
			close(j.done)
		case <-ticks:
			r.handle.Poll(r.clock.Now())
		}
	}
}

// Do runs fn on the runner goroutine with the current engine and waits for it to finish.
func (r *Runner) Do(ctx context.Context, fn func(e *engine.Engine, now time.Time)) error {
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case r.jobs <- j:
	case <-r.stopped:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// an accepted job always runs to completion
	<-j.done
	return nil
}

// Replace installs next as the current engine. The previous engine is switched off,
// its profile selection and target are carried over, and it is released after the next poll.
func (r *Runner) Replace(ctx context.Context, next *engine.Engine) error {
	return r.Do(ctx, func(cur *engine.Engine, now time.Time) {
		snap := cur.Snapshot()
		cur.SetMode(now, engine.ModeOff)
		if r.attach != nil {
			r.attach(next)
		}
		next.Restore(snap.Profile, snap.Target)
		r.handle.Replace(next)
		if r.log != nil {
			r.log.Infow("engine_replaced", "profile", snap.Profile, "target_c", snap.Target)
		}
	})
}
