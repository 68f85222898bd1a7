package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(t.TempDir(), DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestMigrateUp_FreshDB(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	rows, err := database.Conn().QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var versions []int
	for rows.Next() {
		var v int
		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{1}, versions)

	// Core tables exist.
	for _, table := range []string{"sessions", "annotations"} {
		var name string
		err := database.Conn().QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir, DefaultOpenOptions())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Reopening must not re-apply migrations.
	second, err := Open(dir, DefaultOpenOptions())
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	var count int
	err = second.Conn().QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMigrateDown(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, MigrateDown(ctx, database.Conn(), 1))

	var name string
	err := database.Conn().QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='sessions'",
	).Scan(&name)
	assert.Error(t, err, "sessions table should be dropped")
}

func TestMigrateDown_TooMany(t *testing.T) {
	database := openTestDB(t)
	err := MigrateDown(context.Background(), database.Conn(), 5)
	assert.Error(t, err)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial", migrations[0].Name)
	assert.NotEmpty(t, migrations[0].UpSQL)
	assert.NotEmpty(t, migrations[0].DownSQL)
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename  string
		version   int
		name      string
		direction string
		wantErr   bool
	}{
		{"0001_initial.up.sql", 1, "initial", "up", false},
		{"0001_initial.down.sql", 1, "initial", "down", false},
		{"0042_add_metrics.up.sql", 42, "add_metrics", "up", false},
		{"initial.up.sql", 0, "", "", true},
		{"0001_initial.sql", 0, "", "", true},
		{"abcd_initial.up.sql", 0, "", "", true},
		{"0000_zero.up.sql", 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, direction, err := parseFilename(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.direction, direction)
		})
	}
}

func TestWithTx(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	t.Run("commit on success", func(t *testing.T) {
		err := database.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO sessions (id, name, initial_input, created_at, updated_at) VALUES (?, ?, ?, 0, 0)",
				"s1", "test", "input")
			return err
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, database.Conn().QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sessions").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("rollback on error", func(t *testing.T) {
		err := database.WithTx(ctx, func(tx *sql.Tx) error {
			_, execErr := tx.ExecContext(ctx,
				"INSERT INTO sessions (id, name, initial_input, created_at, updated_at) VALUES (?, ?, ?, 0, 0)",
				"s2", "test", "input")
			require.NoError(t, execErr)
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		var count int
		require.NoError(t, database.Conn().QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sessions").Scan(&count))
		assert.Equal(t, 1, count, "rolled back insert must not persist")
	})
}
