package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/data/db"
)

// SessionStore implements session.Store using SQLite.
type SessionStore struct {
	db *db.DB
}

var _ session.Store = (*SessionStore)(nil)

// NewSessionStore creates a new SQLite-backed session store.
func NewSessionStore(db *db.DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = "id, name, initial_input, optimized_prompt, metrics, log, created_at, updated_at"

// List returns all sessions, most recently updated first.
func (s *SessionStore) List(ctx context.Context) ([]*session.Session, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// Get returns a session by ID. Returns session.ErrNotFound if not found.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)

	sess, err := scanSession(row)
	if IsNotFoundError(err) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return sess, nil
}

// Save inserts or updates a session.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	metrics, err := json.Marshal(sess.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	logJSON, err := json.Marshal(sess.Log)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO sessions (id, name, initial_input, optimized_prompt, metrics, log, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			initial_input = excluded.initial_input,
			optimized_prompt = excluded.optimized_prompt,
			metrics = excluded.metrics,
			log = excluded.log,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Name, sess.InitialInput, sess.OptimizedPrompt,
		string(metrics), string(logJSON),
		sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Delete removes a session and, via the schema's cascade, its annotations.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.Conn().ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return session.ErrNotFound
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		sess      session.Session
		metrics   string
		logJSON   string
		createdAt int64
		updatedAt int64
	)

	err := row.Scan(
		&sess.ID, &sess.Name, &sess.InitialInput, &sess.OptimizedPrompt,
		&metrics, &logJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metrics), &sess.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(logJSON), &sess.Log); err != nil {
		return nil, fmt.Errorf("failed to unmarshal log: %w", err)
	}

	sess.CreatedAt = time.Unix(0, createdAt)
	sess.UpdatedAt = time.Unix(0, updatedAt)

	return &sess, nil
}
