package models

import "time"

// OvenSettings is the operator selection restored at startup.
type OvenSettings struct {
	Profile   string    `json:"profile"`
	TargetC   float64   `json:"target_c"` // °C
	UpdatedAt time.Time `json:"updated_at"`
}
