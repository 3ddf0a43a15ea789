// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesWAL(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "test.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestMigrate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "test.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	schema := `CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`
	require.NoError(t, Migrate(ctx, db, 1, schema))
	// A second run would fail on CREATE TABLE if it were applied again.
	require.NoError(t, Migrate(ctx, db, 1, schema))

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestCheckIntegrity_Healthy(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "test.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	assert.NoError(t, CheckIntegrity(ctx, db, false))
	assert.NoError(t, CheckIntegrity(ctx, db, true))
}

func TestCheckIntegrity_ClosedDB(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "test.sqlite"), DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = CheckIntegrity(ctx, db, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorrupt)
}

func TestIntegrityError(t *testing.T) {
	err := error(&IntegrityError{Problems: []string{"row 1 missing", "page 7 unused"}})
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, "sqlite: integrity check failed: row 1 missing; page 7 unused", err.Error())
}
