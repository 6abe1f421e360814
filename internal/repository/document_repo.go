package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reflow_oven/internal/models"
)

type DocumentSQLite struct {
	db *sql.DB
}

func NewDocumentSQLite(db *sql.DB) *DocumentSQLite {
	return &DocumentSQLite{db: db}
}

const (
	upsertDocumentSQL = `
		INSERT INTO documents (name, body, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			body=excluded.body,
			updated_at=excluded.updated_at
	`
	selectDocumentSQL = `SELECT name, body, updated_at FROM documents WHERE name = ?`
)

// Get returns the named document or ErrDocumentNotFound.
func (r *DocumentSQLite) Get(ctx context.Context, name string) (models.Document, error) {
	var d models.Document
	err := r.db.QueryRowContext(ctx, selectDocumentSQL, name).Scan(&d.Name, &d.Body, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
		}
		return models.Document{}, fmt.Errorf("select document %q: %w", name, err)
	}
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

// Put stores d, replacing any document with the same name.
func (r *DocumentSQLite) Put(ctx context.Context, d models.Document) error {
	ts := d.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, upsertDocumentSQL, d.Name, d.Body, ts.UTC().Format(sqliteTimeLayout)); err != nil {
		return fmt.Errorf("store document %q: %w", d.Name, err)
	}
	return nil
}
