package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reflow_oven/internal/models"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db}
}

const (
	settingsRowID = 1

	upsertSettingsSQL = `
		INSERT INTO oven_settings (id, profile, target_c, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profile=excluded.profile,
			target_c=excluded.target_c,
			updated_at=excluded.updated_at
	`

	selectSettingsSQL = `
		SELECT profile, target_c, updated_at
		FROM oven_settings WHERE id=?
	`
)

// Save upserts the single settings row.
func (r *SettingsSQLite) Save(ctx context.Context, s models.OvenSettings) error {
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, upsertSettingsSQL,
		settingsRowID,
		s.Profile,
		s.TargetC,
		ts.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Load fetches the settings row. ok is false when nothing was saved yet.
func (r *SettingsSQLite) Load(ctx context.Context) (models.OvenSettings, bool, error) {
	var s models.OvenSettings
	err := r.db.QueryRowContext(ctx, selectSettingsSQL, settingsRowID).Scan(&s.Profile, &s.TargetC, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OvenSettings{}, false, nil
		}
		return models.OvenSettings{}, false, fmt.Errorf("load settings: %w", err)
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, true, nil
}
