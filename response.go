package reflow_oven

import "time"

// Telemetry event kinds. They name the websocket payload shape and the MQTT topic suffix.
const (
	KindReadings = "readings"
	KindMessage  = "message"
	KindHeater   = "heater"
	KindMode     = "mode"
	KindStage    = "stage"
)

// ReadingsPayload carries parallel arrays of session readings.
type ReadingsPayload struct {
	Times    []float64 `json:"times"`
	Readings []float64 `json:"readings"`
	Targets  []float64 `json:"targets"`
	Reset    bool      `json:"reset"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

type HeaterPayload struct {
	Heater bool `json:"heater"`
}

type ModePayload struct {
	Mode string `json:"mode"`
}

type StagePayload struct {
	Stage  string  `json:"stage"`
	Target float64 `json:"target"`
}

// ProfileAck answers a profile:<name> command.
type ProfileAck struct {
	Profile string `json:"profile"`
}

// TargetAck answers a target:<n> command with the stored (clamped) value.
type TargetAck struct {
	Target float64 `json:"target"`
}

// ConnectSnapshot is the first frame a websocket client receives.
type ConnectSnapshot struct {
	Reset   bool    `json:"reset"`
	Message string  `json:"message"`
	Mode    string  `json:"mode"`
	Target  float64 `json:"target"`
	Profile string  `json:"profile"`
	Stage   string  `json:"stage"`
	Heater  bool    `json:"heater"`
}

// OvenState is the current snapshot of the oven as served over HTTP.
type OvenState struct {
	Mode         string    `json:"mode"`
	Profile      string    `json:"profile"`
	Stage        string    `json:"stage,omitempty"`
	StageIndex   int       `json:"stage_index"`
	TargetC      float64   `json:"target_c"`
	TemperatureC float64   `json:"temperature_c"`
	Heater       bool      `json:"heater"`
	Duty         float64   `json:"duty"`
	Session      int       `json:"session"`
	Profiles     []string  `json:"profiles"`
	UpdatedAt    time.Time `json:"updated_at"`
}
