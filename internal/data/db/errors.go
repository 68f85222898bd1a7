package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// isBusyError reports whether the error is SQLITE_BUSY, the only ping
// failure worth retrying.
func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_BUSY
	}
	return false
}

// isCorruptionError reports whether the error indicates the database file
// itself is damaged or unreadable.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CANTOPEN:
			return true
		}
	}

	// Some drivers surface corruption as plain text only.
	msg := err.Error()
	return strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "database corruption")
}

// recoverFromCorruption moves the damaged database file aside under a
// timestamped .corrupt name so Open can create a fresh one. The WAL and SHM
// siblings move with it; SQLite will not initialize a new database next to
// orphaned WAL/SHM files from the old one.
func recoverFromCorruption(dataDir string) error {
	dbPath := filepath.Join(dataDir, dbFileName)
	backupPath := fmt.Sprintf("%s.corrupt.%s", dbPath, time.Now().Format("20060102-150405"))

	if err := os.Rename(dbPath, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("back up corrupted database: %w", err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		sidecar := dbPath + suffix
		if _, err := os.Stat(sidecar); err != nil {
			continue
		}
		if err := os.Rename(sidecar, backupPath+suffix); err != nil {
			if delErr := os.Remove(sidecar); delErr != nil {
				return fmt.Errorf("back up or remove %s file: %w", suffix, err)
			}
		}
	}

	return nil
}
