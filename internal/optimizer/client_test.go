package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second)
}

func TestOptimize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/optimize", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "write a poem", payload["human_input"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":     "Write a structured poem",
			"session_id": "sess-1",
			"metrics":    map[string]float64{"score": 0.9},
		})
	})

	got, err := client.Optimize(context.Background(), "write a poem")
	require.NoError(t, err)
	assert.Equal(t, "Write a structured poem", got.Result)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, map[string]float64{"score": 0.9}, got.Metrics)
}

func TestOptimize_BackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":      "model unavailable",
			"session_id": "sess-1",
		})
	})

	_, err := client.Optimize(context.Background(), "input")
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "model unavailable")
}

func TestOptimizeWithFeedback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/optimize-with-feedback", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "sess-1", payload["session_id"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":     "Improved prompt",
			"session_id": "sess-1",
		})
	})

	got, err := client.OptimizeWithFeedback(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Improved prompt", got.Result)
}

func TestSaveComment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/comments", r.URL.Path)

		var req CommentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "quick", req.Text)
		assert.Equal(t, 4, req.StartOffset)
		assert.Equal(t, 9, req.EndOffset)
		assert.Equal(t, "too informal", req.Feedback)
		assert.Equal(t, "sess-1", req.PromptID)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"comment": map[string]any{
				"id":          "backend-42",
				"text":        req.Text,
				"startOffset": req.StartOffset,
				"endOffset":   req.EndOffset,
				"comment":     req.Feedback,
				"promptId":    req.PromptID,
			},
		})
	})

	got, err := client.SaveComment(context.Background(), CommentRequest{
		Text:        "quick",
		StartOffset: 4,
		EndOffset:   9,
		Feedback:    "too informal",
		PromptID:    "sess-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "backend-42", got.ID)
	assert.Equal(t, "too informal", got.Feedback)
}

func TestSaveComment_Failure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Missing required fields: promptId",
		})
	})

	_, err := client.SaveComment(context.Background(), CommentRequest{Text: "x"})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "Missing required fields")
}

func TestListComments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"comments": []map[string]any{
				{"id": "c1", "text": "quick", "startOffset": 4, "endOffset": 9},
			},
		})
	})

	got, err := client.ListComments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, 4, got[0].StartOffset)
}

func TestGetSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/sess-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"session": map[string]any{
				"session_id":              "sess-1",
				"initial_human_input":     "raw",
				"latest_optimized_prompt": "polished",
			},
		})
	})

	got, err := client.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "polished", got.LatestOptimizedPrompt)
}

func TestGetSession_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "Session not found"})
	})

	_, err := client.GetSession(context.Background(), "missing")
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
}

func TestSessionLog(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/sess-1/log", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("[2024-01-01] SESSION_START\n"))
	})

	got, err := client.SessionLog(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Contains(t, got, "SESSION_START")
}

func TestTransportErrorIsNotPersistenceError(t *testing.T) {
	client := New("http://127.0.0.1:0", 100*time.Millisecond)

	_, err := client.Optimize(context.Background(), "input")
	require.Error(t, err)
	var perr *PersistenceError
	assert.False(t, errors.As(err, &perr), "unreachable backend is a transport error")
}
