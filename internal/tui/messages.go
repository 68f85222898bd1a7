package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/data/stores"
	"github.com/colonyops/margin/internal/optimizer"
)

// Deps carries the services the TUI operates on. Optimizer is nil when no
// backend is configured; Sync is false when annotations stay local only.
type Deps struct {
	Sessions  session.Store
	Feedback  *stores.FeedbackStore
	Optimizer *optimizer.Client
	Sync      bool
}

// Online reports whether a backend client is available.
func (d Deps) Online() bool {
	return d.Optimizer != nil
}

const requestTimeout = 30 * time.Second

type sessionsLoadedMsg struct {
	sessions []*session.Session
	err      error
}

type sessionOpenedMsg struct {
	sess *session.Session
	recs []stores.AnnotationRecord
	err  error
}

// commentSyncedMsg reports a successful backend save for an annotation. The
// backend id replaces the local one.
type commentSyncedMsg struct {
	localID string
	comment optimizer.Comment
}

// commentSyncErrMsg reports a failed backend save. The optimistic local
// annotation gets rolled back.
type commentSyncErrMsg struct {
	localID string
	err     error
}

type optimizeDoneMsg struct {
	result optimizer.OptimizeResult
	err    error
}

type statusMsg struct {
	text  string
	isErr bool
}

func loadSessionsCmd(deps Deps) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		sessions, err := deps.Sessions.List(ctx)
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

func openSessionCmd(deps Deps, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		sess, err := deps.Sessions.Get(ctx, id)
		if err != nil {
			return sessionOpenedMsg{err: err}
		}
		recs, err := deps.Feedback.ListAnnotations(ctx, id)
		if err != nil {
			return sessionOpenedMsg{err: err}
		}
		return sessionOpenedMsg{sess: sess, recs: recs}
	}
}

// syncCommentCmd pushes a committed annotation to the backend.
func syncCommentCmd(client *optimizer.Client, req optimizer.CommentRequest, localID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		comment, err := client.SaveComment(ctx, req)
		if err != nil {
			return commentSyncErrMsg{localID: localID, err: err}
		}
		return commentSyncedMsg{localID: localID, comment: comment}
	}
}

// reoptimizeCmd asks the backend for a new prompt using collected feedback.
func reoptimizeCmd(client *optimizer.Client, sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		result, err := client.OptimizeWithFeedback(ctx, sessionID)
		return optimizeDoneMsg{result: result, err: err}
	}
}
