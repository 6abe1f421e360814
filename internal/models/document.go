package models

import "time"

// Names of the stored JSON documents.
const (
	DocumentProfiles = "profiles"
	DocumentConfig   = "config"
)

// Document is a named JSON document kept verbatim, such as the profiles catalogue.
type Document struct {
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}
