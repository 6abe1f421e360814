package telemetry

import (
	"reflow_oven"
	"reflow_oven/internal/engine"
	"reflow_oven/internal/logger"
)

// Sink receives every telemetry payload. Publish runs on the engine goroutine and
// must not block.
type Sink interface {
	Publish(kind string, payload any)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(kind string, payload any)

func (f SinkFunc) Publish(kind string, payload any) { f(kind, payload) }

// Bridge registers itself on an engine's telemetry slots and forwards the resulting
// payloads to its sinks.
type Bridge struct {
	log   *logger.Logger
	sinks []Sink
}

func NewBridge(log *logger.Logger, sinks ...Sink) *Bridge {
	return &Bridge{log: log, sinks: sinks}
}

// Add appends a sink. Not safe once engines are attached and polling.
func (b *Bridge) Add(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Attach wires e's telemetry to the bridge, replacing any handlers already registered.
func (b *Bridge) Attach(e *engine.Engine) {
	tel := e.Telemetry()
	tel.OnMessage(func(text string) {
		if b.log != nil {
			b.log.Infow("oven_message", "text", text)
		}
		b.publish(reflow_oven.KindMessage, reflow_oven.MessagePayload{Message: text})
	})
	tel.OnHeater(func(on bool) {
		if b.log != nil {
			b.log.Debugw("oven_heater", "on", on)
		}
		b.publish(reflow_oven.KindHeater, reflow_oven.HeaterPayload{Heater: on})
	})
	tel.OnReadings(func(readings []engine.Reading, _ float64) {
		b.publish(reflow_oven.KindReadings, Latest(readings))
	})
	tel.OnMode(func(last, current engine.Mode) {
		if b.log != nil {
			b.log.Infow("oven_mode_changed", "from", last.String(), "to", current.String())
		}
		b.publish(reflow_oven.KindMode, reflow_oven.ModePayload{Mode: current.String()})
	})
	tel.OnStage(func(name string, target float64) {
		if b.log != nil {
			b.log.Infow("oven_stage", "stage", name, "target_c", target)
		}
		b.publish(reflow_oven.KindStage, reflow_oven.StagePayload{Stage: name, Target: target})
	})
}

func (b *Bridge) publish(kind string, payload any) {
	for _, s := range b.sinks {
		s.Publish(kind, payload)
	}
}
