// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resume

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/timeshift/internal/persistence/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	principal_id TEXT NOT NULL,
	asset_id TEXT NOT NULL,
	offset_ms INTEGER,
	time_ms INTEGER,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (principal_id, asset_id)
);
CREATE INDEX IF NOT EXISTS idx_bookmarks_updated ON bookmarks(updated_at);
`

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

func NewSqliteStore(ctx context.Context, dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(ctx, dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, schemaVersion, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resume store: migration failed: %w", err)
	}
	return &SqliteStore{DB: db}, nil
}

func (s *SqliteStore) Put(ctx context.Context, principalID, assetID string, b *Bookmark) error {
	query := `
	INSERT INTO bookmarks (principal_id, asset_id, offset_ms, time_ms, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(principal_id, asset_id) DO UPDATE SET
		offset_ms = excluded.offset_ms,
		time_ms = excluded.time_ms,
		updated_at = excluded.updated_at
	`
	_, err := s.DB.ExecContext(ctx, query,
		principalID, assetID, nullInt(b.OffsetMs), nullInt(b.TimeMs), b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SqliteStore) Get(ctx context.Context, principalID, assetID string) (*Bookmark, error) {
	query := `SELECT offset_ms, time_ms, updated_at FROM bookmarks WHERE principal_id = ? AND asset_id = ?`
	var (
		offset, ts sql.NullInt64
		updatedAt  string
	)
	err := s.DB.QueryRowContext(ctx, query, principalID, assetID).Scan(&offset, &ts, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b := &Bookmark{}
	if offset.Valid {
		b.OffsetMs = &offset.Int64
	}
	if ts.Valid {
		b.TimeMs = &ts.Int64
	}
	b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return b, nil
}

func (s *SqliteStore) Delete(ctx context.Context, principalID, assetID string) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM bookmarks WHERE principal_id = ? AND asset_id = ?", principalID, assetID)
	return err
}

// Check runs a quick integrity check of the database file.
func (s *SqliteStore) Check(ctx context.Context) error {
	return sqlite.CheckIntegrity(ctx, s.DB, false)
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
