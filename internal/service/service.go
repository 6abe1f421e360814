package service

import (
	"context"

	"reflow_oven"
	"reflow_oven/internal/engine"
	"reflow_oven/internal/models"
	"reflow_oven/internal/telemetry"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Oven exposes the engine to HTTP and websocket clients.
type Oven interface {
	State(ctx context.Context) (reflow_oven.OvenState, error)
	Command(ctx context.Context, text string) (any, error)
	Calibration(ctx context.Context) (string, error)
	Connect(ctx context.Context) (*telemetry.Client, error)
	Disconnect(c *telemetry.Client)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.OvenEvent, error)
}

// Profiles serves and replaces the profiles document.
type Profiles interface {
	Get(ctx context.Context) (string, error)
	Put(ctx context.Context, body []byte) error
}

// Config serves and replaces the engine configuration document.
type Config interface {
	Get() ([]byte, error)
	Put(ctx context.Context, body []byte) (engine.Options, error)
}

// Service aggregates everything the handlers need.
type Service struct {
	Authorization
	Oven
	EventLog
	Profiles
	Config
}
