package engine

import "fmt"

// Mode is the operating mode of the oven. Exactly one mode is active at any time.
type Mode int

const (
	ModeOff Mode = iota
	ModeOn
	ModeTargetPID
	ModeReflow
	ModeCalibrate
	ModeCalibrateCool
	ModeErrorOff
)

// Modes lists every mode in declaration order.
var Modes = []Mode{
	ModeOff,
	ModeOn,
	ModeTargetPID,
	ModeReflow,
	ModeCalibrate,
	ModeCalibrateCool,
	ModeErrorOff,
}

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "OFF"
	case ModeOn:
		return "ON"
	case ModeTargetPID:
		return "TARGET_PID"
	case ModeReflow:
		return "REFLOW"
	case ModeCalibrate:
		return "CALIBRATE"
	case ModeCalibrateCool:
		return "CALIBRATE_COOL"
	case ModeErrorOff:
		return "ERROR_OFF"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a wire name back to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if m.String() == s {
			return m, nil
		}
	}
	return ModeOff, fmt.Errorf("unknown mode %q", s)
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m >= ModeOff && m <= ModeErrorOff
}

// inactive modes never drive the heater and end a session.
func (m Mode) inactive() bool {
	switch m {
	case ModeOff, ModeErrorOff:
		return true
	case ModeOn, ModeTargetPID, ModeReflow, ModeCalibrate, ModeCalibrateCool:
		return false
	default:
		return true
	}
}

// watched modes are guarded by the watchdog.
func (m Mode) watched() bool {
	switch m {
	case ModeTargetPID, ModeReflow, ModeCalibrate:
		return true
	case ModeOff, ModeOn, ModeCalibrateCool, ModeErrorOff:
		return false
	default:
		return false
	}
}
