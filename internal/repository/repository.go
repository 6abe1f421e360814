// Package repository persists oven settings, the event log, stored documents and users in sqlite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"reflow_oven/internal/models"
)

// sqliteTimeLayout is the TIMESTAMP text format used for every stored time.
const sqliteTimeLayout = "2006-01-02 15:04:05"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrUserExists       = errors.New("user already exists")
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type SettingsRepo interface {
	Save(ctx context.Context, s models.OvenSettings) error
	Load(ctx context.Context) (models.OvenSettings, bool, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.OvenEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.OvenEvent, error)
}

type DocumentRepo interface {
	Get(ctx context.Context, name string) (models.Document, error)
	Put(ctx context.Context, d models.Document) error
}

type Repository struct {
	Settings  SettingsRepo
	Events    EventRepo
	Documents DocumentRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Settings:  NewSettingsSQLite(db),
		Events:    NewEventSQLite(db),
		Documents: NewDocumentSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
