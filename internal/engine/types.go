// Package engine contains the reflow process-control core: mode state machine,
// stage progression, PID regulation, watchdog and fail-safe handling.
//
// The engine never reads the wall clock. Every operation that depends on time takes
// the current monotonic timestamp as an argument, which keeps runs deterministic.
// An Engine is not safe for concurrent use; a single goroutine owns it.
package engine

import "errors"

// PIDParams holds one named set of PID coefficients.
type PIDParams struct {
	P float64 `json:"p"`
	I float64 `json:"i"`
	D float64 `json:"d"`
}

// Stage is one segment of a reflow profile.
type Stage struct {
	Name   string  `json:"name"`
	PID    string  `json:"pid"`    // name of a PIDParams set
	Target float64 `json:"target"` // °C
	Stay   float64 `json:"stay"`   // seconds at target
}

// Profile is an ordered, non-empty sequence of stages.
type Profile struct {
	Key    string  `json:"key"`
	Name   string  `json:"name"`
	Stages []Stage `json:"stages"`
}

// Reading is one temperature sample of a session.
type Reading struct {
	Time        float64 // seconds since session start
	Temperature float64 // °C
	Target      float64 // °C setpoint in force when sampled
	Reset       bool    // first reading of a session
}

// Snapshot is a read-only view of the engine state.
type Snapshot struct {
	Mode        Mode
	Profile     string
	Stage       string
	StageIndex  int
	Target      float64
	Heater      bool
	Duty        float64
	Temperature float64
	Session     int // increments with every new session
}

// Lookup errors returned by a ProfileStore.
var (
	ErrPIDNotFound     = errors.New("pid set not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileStore resolves PID sets and profiles by name.
type ProfileStore interface {
	GetPID(name string) (PIDParams, error)
	GetProfile(name string) (Profile, error)
}

// Sensor returns the raw oven temperature.
type Sensor interface {
	ReadTemperature() (float64, error)
}

// Heater switches the heating element.
type Heater interface {
	Set(on bool) error
}
