package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/margin/internal/core/annotate"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/data/db"
)

func seedSession(t *testing.T, database *db.DB, id string) {
	t.Helper()
	store := NewSessionStore(database)
	sess := session.New(id, "test", "The quick brown fox", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(context.Background(), sess))
}

func record(id, sessionID string, start, end int, context, comment string) AnnotationRecord {
	return AnnotationRecord{
		Annotation: annotate.Annotation{
			ID:        id,
			Range:     annotate.Range{Start: start, End: end},
			Comment:   comment,
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		SessionID:   sessionID,
		ContextText: context,
	}
}

func TestFeedbackStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save and list ordered by start offset", func(t *testing.T) {
		database := openTestDB(t)
		seedSession(t, database, "s1")
		store := NewFeedbackStore(database)

		// Insert out of document order.
		require.NoError(t, store.SaveAnnotation(ctx, record("a2", "s1", 10, 15, "brown", "wrong color")))
		require.NoError(t, store.SaveAnnotation(ctx, record("a1", "s1", 4, 9, "quick", "too informal")))

		recs, err := store.ListAnnotations(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "a1", recs[0].ID)
		assert.Equal(t, annotate.Range{Start: 4, End: 9}, recs[0].Range)
		assert.Equal(t, "quick", recs[0].ContextText)
		assert.Equal(t, "a2", recs[1].ID)
	})

	t.Run("list scoped to session", func(t *testing.T) {
		database := openTestDB(t)
		seedSession(t, database, "s1")
		seedSession(t, database, "s2")
		store := NewFeedbackStore(database)

		require.NoError(t, store.SaveAnnotation(ctx, record("a1", "s1", 0, 3, "The", "x")))
		require.NoError(t, store.SaveAnnotation(ctx, record("b1", "s2", 0, 3, "The", "y")))

		recs, err := store.ListAnnotations(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "a1", recs[0].ID)
	})

	t.Run("delete annotation", func(t *testing.T) {
		database := openTestDB(t)
		seedSession(t, database, "s1")
		store := NewFeedbackStore(database)

		require.NoError(t, store.SaveAnnotation(ctx, record("a1", "s1", 4, 9, "quick", "x")))

		deleted, err := store.DeleteAnnotation(ctx, "a1")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.DeleteAnnotation(ctx, "a1")
		require.NoError(t, err)
		assert.False(t, deleted, "second delete finds nothing")
	})

	t.Run("adopt annotation id", func(t *testing.T) {
		database := openTestDB(t)
		seedSession(t, database, "s1")
		store := NewFeedbackStore(database)

		require.NoError(t, store.SaveAnnotation(ctx, record("local-1", "s1", 4, 9, "quick", "x")))
		require.NoError(t, store.AdoptAnnotationID(ctx, "local-1", "backend-42"))

		recs, err := store.ListAnnotations(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "backend-42", recs[0].ID)
	})

	t.Run("adopt missing id is a no-op", func(t *testing.T) {
		database := openTestDB(t)
		seedSession(t, database, "s1")
		store := NewFeedbackStore(database)

		assert.NoError(t, store.AdoptAnnotationID(ctx, "gone", "backend-42"))
	})

	t.Run("delete session annotations", func(t *testing.T) {
		database := openTestDB(t)
		seedSession(t, database, "s1")
		store := NewFeedbackStore(database)

		require.NoError(t, store.SaveAnnotation(ctx, record("a1", "s1", 0, 3, "The", "x")))
		require.NoError(t, store.SaveAnnotation(ctx, record("a2", "s1", 4, 9, "quick", "y")))

		require.NoError(t, store.DeleteSessionAnnotations(ctx, "s1"))

		recs, err := store.ListAnnotations(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("deleting a session cascades to annotations", func(t *testing.T) {
		database := openTestDB(t)
		seedSession(t, database, "s1")
		store := NewFeedbackStore(database)

		require.NoError(t, store.SaveAnnotation(ctx, record("a1", "s1", 0, 3, "The", "x")))
		require.NoError(t, NewSessionStore(database).Delete(ctx, "s1"))

		recs, err := store.ListAnnotations(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		database := openTestDB(t)
		seedSession(t, database, "s1")
		store := NewFeedbackStore(database)

		require.NoError(t, store.SaveAnnotation(ctx, record("a1", "s1", 0, 3, "The", "x")))
		assert.Error(t, store.SaveAnnotation(ctx, record("a1", "s1", 4, 9, "quick", "y")))
	})
}
