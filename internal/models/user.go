package models

// User is an operator allowed to change profiles and engine configuration.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
