package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/margin/internal/core/annotate"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/data/db"
	"github.com/colonyops/margin/internal/data/stores"
	"github.com/colonyops/margin/internal/optimizer"
	"github.com/colonyops/margin/pkg/tuitest"
)

const testPrompt = "The quick brown fox jumps over the lazy dog"

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err, "Open")
	t.Cleanup(func() { _ = database.Close() })

	return Deps{
		Sessions: stores.NewSessionStore(database),
		Feedback: stores.NewFeedbackStore(database),
	}
}

func newTestView(t *testing.T) *AnnotateView {
	t.Helper()
	deps := newTestDeps(t)

	sess := session.New("s1", "demo", testPrompt, time.Now())
	require.NoError(t, deps.Sessions.Save(context.Background(), sess))

	return NewAnnotateView(deps, sess, nil, 80, 24)
}

// commitTestComment drives the full selection-to-commit flow over [start,
// end) with the given comment text.
func commitTestComment(t *testing.T, v *AnnotateView, start, end int, comment string) *AnnotateView {
	t.Helper()

	v.setCursor(start)
	v, _ = v.Update(tuitest.KeyPress('v'))
	v.setCursor(end - 1)
	v, _ = v.Update(tuitest.KeyPress('c'))
	require.NotNil(t, v.commentModal, "comment modal should open")

	for _, msg := range tuitest.Type(comment) {
		v, _ = v.Update(msg)
	}
	v, _ = v.Update(tuitest.KeyEnter())
	return v
}

func TestAnnotateViewCursorMovement(t *testing.T) {
	v := newTestView(t)

	v, _ = v.Update(tuitest.KeyPress('l'))
	v, _ = v.Update(tuitest.KeyPress('l'))
	assert.Equal(t, 2, v.cursor)

	v, _ = v.Update(tuitest.KeyPress('h'))
	assert.Equal(t, 1, v.cursor)

	v, _ = v.Update(tuitest.KeyPress('h'))
	v, _ = v.Update(tuitest.KeyPress('h'))
	assert.Equal(t, 0, v.cursor, "cursor clamps at start")

	v, _ = v.Update(tuitest.KeyPress('G'))
	assert.Equal(t, annotate.RuneLen(testPrompt)-1, v.cursor)

	v, _ = v.Update(tuitest.KeyPress('l'))
	assert.Equal(t, annotate.RuneLen(testPrompt)-1, v.cursor, "cursor clamps at end")

	v, _ = v.Update(tuitest.KeyPress('g'))
	assert.Equal(t, 0, v.cursor)
}

func TestAnnotateViewCommentWithoutSelection(t *testing.T) {
	v := newTestView(t)

	v, _ = v.Update(tuitest.KeyPress('c'))

	assert.Nil(t, v.commentModal)
	assert.Equal(t, "Press v to select text first", v.status)
}

func TestAnnotateViewCommitComment(t *testing.T) {
	v := newTestView(t)

	// "quick" is [4, 9)
	v = commitTestComment(t, v, 4, 9, "too informal")

	assert.Nil(t, v.commentModal)
	assert.False(t, v.visualMode)
	require.Equal(t, 1, v.store.Len())

	ann := v.store.List()[0]
	assert.Equal(t, annotate.Range{Start: 4, End: 9}, ann.Range)
	assert.Equal(t, "too informal", ann.Comment)

	recs, err := v.deps.Feedback.ListAnnotations(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "quick", recs[0].ContextText)

	got, err := v.deps.Sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	last := got.Log[len(got.Log)-1]
	assert.Equal(t, session.LogCommentAdded, last.Kind)
}

func TestAnnotateViewOverlapKeepsModalOpen(t *testing.T) {
	v := newTestView(t)
	v = commitTestComment(t, v, 4, 9, "first")

	v = commitTestComment(t, v, 6, 12, "second")

	require.NotNil(t, v.commentModal, "modal stays open on overlap")
	assert.Contains(t, tuitest.StripANSI(v.commentModal.View()), "overlaps an existing comment")
	assert.Equal(t, 1, v.store.Len())
}

func TestAnnotateViewDeleteUnderCursor(t *testing.T) {
	v := newTestView(t)
	v = commitTestComment(t, v, 4, 9, "remove me")

	v.setCursor(5)
	v, _ = v.Update(tuitest.KeyPress('d'))
	require.NotNil(t, v.confirmModal)

	v, _ = v.Update(tuitest.KeyPress('y'))

	assert.Nil(t, v.confirmModal)
	assert.Equal(t, 0, v.store.Len())

	recs, err := v.deps.Feedback.ListAnnotations(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAnnotateViewDeleteCancelled(t *testing.T) {
	v := newTestView(t)
	v = commitTestComment(t, v, 4, 9, "keep me")

	v.setCursor(5)
	v, _ = v.Update(tuitest.KeyPress('d'))
	v, _ = v.Update(tuitest.KeyPress('n'))

	assert.Nil(t, v.confirmModal)
	assert.Equal(t, 1, v.store.Len())
}

func TestAnnotateViewHover(t *testing.T) {
	v := newTestView(t)
	v = commitTestComment(t, v, 4, 9, "note")
	id := v.store.List()[0].ID

	v.setCursor(6)
	assert.Equal(t, id, v.ctrl.Hovered())

	v.setCursor(20)
	assert.Empty(t, v.ctrl.Hovered())
}

func TestAnnotateViewSyncAdoptsBackendID(t *testing.T) {
	v := newTestView(t)
	v = commitTestComment(t, v, 4, 9, "note")
	localID := v.store.List()[0].ID

	v, _ = v.Update(commentSyncedMsg{
		localID: localID,
		comment: optimizer.Comment{ID: "backend-42"},
	})

	_, ok := v.store.Get("backend-42")
	assert.True(t, ok, "store should carry backend id")
	_, ok = v.store.Get(localID)
	assert.False(t, ok)

	recs, err := v.deps.Feedback.ListAnnotations(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "backend-42", recs[0].ID)
}

func TestAnnotateViewSyncErrorRollsBack(t *testing.T) {
	v := newTestView(t)
	v = commitTestComment(t, v, 4, 9, "note")
	localID := v.store.List()[0].ID

	v, _ = v.Update(commentSyncErrMsg{
		localID: localID,
		err:     errors.New("backend rejected comment"),
	})

	assert.Equal(t, 0, v.store.Len())
	assert.True(t, v.statusErr)
	assert.Contains(t, v.status, "backend rejected comment")

	recs, err := v.deps.Feedback.ListAnnotations(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAnnotateViewRestoresPersistedAnnotations(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	sess := session.New("s1", "demo", testPrompt, time.Now())
	require.NoError(t, deps.Sessions.Save(ctx, sess))

	rec := stores.AnnotationRecord{
		Annotation: annotate.Annotation{
			ID:        "a1",
			Range:     annotate.Range{Start: 4, End: 9},
			Comment:   "restored",
			CreatedAt: time.Now(),
		},
		SessionID:   "s1",
		ContextText: "quick",
	}
	require.NoError(t, deps.Feedback.SaveAnnotation(ctx, rec))

	recs, err := deps.Feedback.ListAnnotations(ctx, "s1")
	require.NoError(t, err)

	v := NewAnnotateView(deps, sess, recs, 80, 24)
	require.Equal(t, 1, v.store.Len())
	assert.Equal(t, "a1", v.store.List()[0].ID)
}

func TestAnnotateViewSkipsStaleAnnotations(t *testing.T) {
	deps := newTestDeps(t)
	sess := session.New("s1", "demo", "short text", time.Now())

	recs := []stores.AnnotationRecord{{
		Annotation: annotate.Annotation{
			ID:      "stale",
			Range:   annotate.Range{Start: 5, End: 500},
			Comment: "out of range",
		},
		SessionID: "s1",
	}}

	v := NewAnnotateView(deps, sess, recs, 80, 24)
	assert.Equal(t, 0, v.store.Len())
}

func TestAnnotateViewRenderShowsHighlights(t *testing.T) {
	v := newTestView(t)
	v = commitTestComment(t, v, 4, 9, "note")

	out := tuitest.StripANSI(v.View())
	assert.Contains(t, out, "quick brown fox")
	assert.Contains(t, out, "1 comments")
}

func TestLayoutRows(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wrapWidth int
		want      []renderedRow
	}{
		{
			name:      "empty text yields one empty row",
			src:       "",
			wrapWidth: 10,
			want:      []renderedRow{{start: 0, length: 0}},
		},
		{
			name:      "single short line",
			src:       "abc",
			wrapWidth: 10,
			want:      []renderedRow{{start: 0, length: 3}},
		},
		{
			name:      "hard break keeps newline on its row",
			src:       "ab\ncd",
			wrapWidth: 10,
			want: []renderedRow{
				{start: 0, length: 3},
				{start: 3, length: 2},
			},
		},
		{
			name:      "wraps at width",
			src:       "abcdefgh",
			wrapWidth: 3,
			want: []renderedRow{
				{start: 0, length: 3},
				{start: 3, length: 3},
				{start: 6, length: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, layoutRows([]rune(tt.src), tt.wrapWidth))
		})
	}
}

func TestPositionOf(t *testing.T) {
	rows := layoutRows([]rune("abcdefgh"), 3)

	row, col := positionOf(rows, 0)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	row, col = positionOf(rows, 4)
	assert.Equal(t, 1, row)
	assert.Equal(t, 1, col)

	row, col = positionOf(rows, 7)
	assert.Equal(t, 2, row)
	assert.Equal(t, 1, col)
}
