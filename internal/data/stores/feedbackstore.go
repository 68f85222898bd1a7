package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/margin/internal/core/annotate"
	"github.com/colonyops/margin/internal/data/db"
)

// AnnotationRecord is an annotation plus its persistence envelope: the
// session it belongs to and the text snippet it covered when created.
type AnnotationRecord struct {
	annotate.Annotation
	SessionID   string
	ContextText string
}

// FeedbackStore persists annotations using SQLite. It is the local side of
// the persistence boundary; backend sync happens above it and reconciles
// ids through AdoptAnnotationID.
type FeedbackStore struct {
	db *db.DB
}

// NewFeedbackStore creates a new SQLite-backed feedback store.
func NewFeedbackStore(db *db.DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

// SaveAnnotation inserts an annotation record.
func (s *FeedbackStore) SaveAnnotation(ctx context.Context, rec AnnotationRecord) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO annotations (id, session_id, start_offset, end_offset, context_text, comment_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Range.Start, rec.Range.End,
		rec.ContextText, rec.Comment, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save annotation: %w", err)
	}
	return nil
}

// ListAnnotations returns a session's annotations ordered by start offset.
func (s *FeedbackStore) ListAnnotations(ctx context.Context, sessionID string) ([]AnnotationRecord, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, session_id, start_offset, end_offset, context_text, comment_text, created_at
		FROM annotations
		WHERE session_id = ?
		ORDER BY start_offset ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []AnnotationRecord
	for rows.Next() {
		var (
			rec       AnnotationRecord
			createdAt int64
		)
		err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.Range.Start, &rec.Range.End,
			&rec.ContextText, &rec.Comment, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		rec.CreatedAt = time.Unix(0, createdAt)
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// DeleteAnnotation removes one annotation. It reports whether a row was
// actually deleted so rollback paths can tell a miss from a hit.
func (s *FeedbackStore) DeleteAnnotation(ctx context.Context, id string) (bool, error) {
	res, err := s.db.Conn().ExecContext(ctx, "DELETE FROM annotations WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete annotation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check delete result: %w", err)
	}
	return affected > 0, nil
}

// AdoptAnnotationID rewrites an annotation's id after the backend assigns
// its own. No-op when the old id is gone, which happens when the annotation
// was rolled back while the sync request was in flight.
func (s *FeedbackStore) AdoptAnnotationID(ctx context.Context, oldID, newID string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		"UPDATE annotations SET id = ? WHERE id = ?", newID, oldID)
	if err != nil {
		return fmt.Errorf("failed to adopt annotation id: %w", err)
	}
	return nil
}

// DeleteSessionAnnotations removes all annotations for a session.
func (s *FeedbackStore) DeleteSessionAnnotations(ctx context.Context, sessionID string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		"DELETE FROM annotations WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session annotations: %w", err)
	}
	return nil
}
