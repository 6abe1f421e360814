package models

import "time"

// Event types stored in the oven event log.
const (
	EventModeChange = "MODE_CHANGE"
	EventStage      = "STAGE"
	EventMessage    = "MESSAGE"
	EventError      = "ERROR"
)

// OvenEvent is a single log entry.
type OvenEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // MODE_CHANGE | STAGE | MESSAGE | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
