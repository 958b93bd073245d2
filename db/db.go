// Package db provides the optional Postgres clip history: connection helper, schema
// migration, and small data access helpers. Credentials are never written here.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// ClipRecord is one stored clip workflow result.
type ClipRecord struct {
	ID        int64     `json:"id"`
	User      string    `json:"user"`
	ClipID    string    `json:"clip_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Connect opens a Postgres connection for dsn and verifies it is reachable.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DB_DSN")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return database, nil
}

// Migrate applies idempotent schema changes for all required tables and indices.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clip_requests (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			clip_id TEXT,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clip_requests_created ON clip_requests(created_at DESC)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

// ClipHistory records clip workflow results.
type ClipHistory struct{ DB *sql.DB }

// RecordClip inserts one result. clipID is empty for failed workflows.
func (h *ClipHistory) RecordClip(ctx context.Context, user, clipID, status string) error {
	var cid sql.NullString
	if clipID != "" {
		cid = sql.NullString{String: clipID, Valid: true}
	}
	_, err := h.DB.ExecContext(ctx, `INSERT INTO clip_requests (username, clip_id, status, created_at) VALUES ($1, $2, $3, NOW())`, user, cid, status)
	if err != nil {
		return fmt.Errorf("insert clip request: %w", err)
	}
	return nil
}

// ListRecentClips returns up to limit records, newest first.
func (h *ClipHistory) ListRecentClips(ctx context.Context, limit int) ([]ClipRecord, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	rows, err := h.DB.QueryContext(ctx, `SELECT id, username, COALESCE(clip_id, ''), status, created_at FROM clip_requests ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ClipRecord, 0, limit)
	for rows.Next() {
		var rec ClipRecord
		if err := rows.Scan(&rec.ID, &rec.User, &rec.ClipID, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Ping reports whether the history database is reachable.
func (h *ClipHistory) Ping(ctx context.Context) error { return h.DB.PingContext(ctx) }
