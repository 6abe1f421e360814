// Package telemetry turns engine events into wire payloads and fans them out to the
// websocket hub, the MQTT mirror and other sinks.
package telemetry

import (
	"reflow_oven"
	"reflow_oven/internal/engine"
)

// Readings packs readings into the parallel-array wire form. The flag of the first
// reading decides Reset.
func Readings(readings []engine.Reading) reflow_oven.ReadingsPayload {
	p := reflow_oven.ReadingsPayload{
		Times:    make([]float64, len(readings)),
		Readings: make([]float64, len(readings)),
		Targets:  make([]float64, len(readings)),
	}
	for i, r := range readings {
		p.Times[i] = r.Time
		p.Readings[i] = r.Temperature
		p.Targets[i] = r.Target
	}
	if len(readings) > 0 {
		p.Reset = readings[0].Reset
	}
	return p
}

// Replay packs the whole session history for a newly connected client. It always
// carries Reset, so the client starts a fresh chart even after the oldest readings
// were trimmed.
func Replay(readings []engine.Reading) reflow_oven.ReadingsPayload {
	p := Readings(readings)
	p.Reset = true
	return p
}

// Latest packs only the newest reading.
func Latest(readings []engine.Reading) reflow_oven.ReadingsPayload {
	if len(readings) == 0 {
		return Readings(nil)
	}
	return Readings(readings[len(readings)-1:])
}

// Snapshot builds the connect frame from an engine snapshot.
func Snapshot(s engine.Snapshot) reflow_oven.ConnectSnapshot {
	return reflow_oven.ConnectSnapshot{
		Reset:   true,
		Message: "Connected",
		Mode:    s.Mode.String(),
		Target:  s.Target,
		Profile: s.Profile,
		Stage:   s.Stage,
		Heater:  s.Heater,
	}
}
