// Package db owns the SQLite connection and schema migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	dbFileName  = "margin.db"
	maxRetries  = 5
	initialWait = 100 * time.Millisecond
)

// OpenOptions configures the database connection pool.
type OpenOptions struct {
	MaxOpenConns  int
	MaxIdleConns  int
	BusyTimeoutMS int
}

// DefaultOpenOptions returns the pool settings used when none are configured.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		MaxOpenConns:  1,
		MaxIdleConns:  1,
		BusyTimeoutMS: 5000,
	}
}

// DB wraps a SQL database connection with retry logic and migrations.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection with connection pooling and retry
// logic, then applies pending migrations. The database file is created in
// the specified data directory.
//
// If the existing file turns out to be corrupted it is moved aside to a
// timestamped .corrupt backup and a fresh database is created in its place.
func Open(dataDir string, opts OpenOptions) (*DB, error) {
	db, err := open(dataDir, opts)
	if err != nil && isCorruptionError(err) {
		log.Warn().Err(err).Str("data_dir", dataDir).Msg("database corrupted, backing it up and starting fresh")
		if recErr := recoverFromCorruption(dataDir); recErr != nil {
			return nil, fmt.Errorf("recover corrupted database: %w", recErr)
		}
		db, err = open(dataDir, opts)
	}
	return db, err
}

func open(dataDir string, opts OpenOptions) (*DB, error) {
	dbPath := filepath.Join(dataDir, dbFileName)

	// Open with pragmas for WAL mode, busy timeout, and foreign keys
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)",
		dbPath, opts.BusyTimeoutMS,
	)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(opts.MaxIdleConns)
	conn.SetConnMaxLifetime(0) // Connections live forever

	db := &DB{conn: conn}

	// Verify connectivity with retry
	if err := db.pingWithRetry(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrateUp(context.Background(), conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection for direct queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// WithTx executes a function within a transaction.
// If the function returns an error, the transaction is rolled back.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// pingWithRetry attempts to ping the database with exponential backoff.
// Only SQLITE_BUSY is retried; other failures, corruption included, need to
// surface immediately so Open can react to them.
func (db *DB) pingWithRetry(ctx context.Context) error {
	wait := initialWait
	var err error
	for i := 0; i < maxRetries; i++ {
		err = db.conn.PingContext(ctx)
		if err == nil {
			return nil
		}
		if !isBusyError(err) {
			return err
		}

		if i < maxRetries-1 {
			time.Sleep(wait)
			wait *= 2
		}
	}

	return fmt.Errorf("failed to ping database after %d retries: %w", maxRetries, err)
}
