// Package optimizer is the HTTP client for the prompt optimization backend.
// All of margin works without it; the client only exists when a backend URL
// is configured.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// PersistenceError is returned when the backend accepts a request but
// reports that it could not persist the data, or when the response cannot
// be interpreted. It is distinct from transport errors so callers can tell
// "the backend said no" from "the backend is unreachable".
type PersistenceError struct {
	Op      string
	Message string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("backend %s failed: %s", e.Op, e.Message)
}

// Client talks to the optimizer backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// OptimizeResult is the backend's answer to an optimization request.
type OptimizeResult struct {
	Result    string             `json:"result"`
	SessionID string             `json:"session_id"`
	Metrics   map[string]float64 `json:"metrics"`
	Err       string             `json:"error"`
}

// Optimize submits raw human input for a first optimization pass.
func (c *Client) Optimize(ctx context.Context, humanInput string) (OptimizeResult, error) {
	var out OptimizeResult
	err := c.postJSON(ctx, "/optimize", map[string]any{"human_input": humanInput}, &out)
	if err != nil {
		return OptimizeResult{}, err
	}
	if out.Err != "" {
		return OptimizeResult{}, &PersistenceError{Op: "optimize", Message: out.Err}
	}
	return out, nil
}

// OptimizeWithFeedback asks the backend to re-optimize a session using the
// feedback comments it has collected.
func (c *Client) OptimizeWithFeedback(ctx context.Context, sessionID string) (OptimizeResult, error) {
	var out OptimizeResult
	err := c.postJSON(ctx, "/optimize-with-feedback", map[string]any{"session_id": sessionID}, &out)
	if err != nil {
		return OptimizeResult{}, err
	}
	if out.Err != "" {
		return OptimizeResult{}, &PersistenceError{Op: "optimize-with-feedback", Message: out.Err}
	}
	return out, nil
}

// CommentRequest is the payload for saving one annotation to the backend.
type CommentRequest struct {
	Text        string `json:"text"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	Feedback    string `json:"feedback"`
	PromptID    string `json:"promptId"`
}

// Comment is an annotation as the backend stores it.
type Comment struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	Feedback    string `json:"comment"`
	PromptID    string `json:"promptId"`
	CreatedAt   string `json:"createdAt"`
}

type commentResponse struct {
	Success bool            `json:"success"`
	Comment json.RawMessage `json:"comment"`
	Err     string          `json:"error"`
}

// SaveComment pushes an annotation to the backend and returns the stored
// comment, including the id the backend assigned.
func (c *Client) SaveComment(ctx context.Context, req CommentRequest) (Comment, error) {
	var resp commentResponse
	if err := c.postJSON(ctx, "/comments", req, &resp); err != nil {
		return Comment{}, err
	}
	if !resp.Success {
		msg := resp.Err
		if msg == "" {
			msg = "unknown error"
		}
		return Comment{}, &PersistenceError{Op: "save comment", Message: msg}
	}

	var comment Comment
	if len(resp.Comment) > 0 {
		if err := json.Unmarshal(resp.Comment, &comment); err != nil {
			return Comment{}, &PersistenceError{Op: "save comment", Message: "malformed comment in response"}
		}
	}
	return comment, nil
}

type listCommentsResponse struct {
	Success  bool      `json:"success"`
	Comments []Comment `json:"comments"`
	Err      string    `json:"error"`
}

// ListComments returns every comment the backend has stored.
func (c *Client) ListComments(ctx context.Context) ([]Comment, error) {
	var resp listCommentsResponse
	if err := c.getJSON(ctx, "/comments", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &PersistenceError{Op: "list comments", Message: resp.Err}
	}
	return resp.Comments, nil
}

// SessionInfo is the backend's view of an optimization session.
type SessionInfo struct {
	SessionID             string `json:"session_id"`
	InitialHumanInput     string `json:"initial_human_input"`
	UpdatedHumanInput     string `json:"updated_human_input"`
	LatestOptimizedPrompt string `json:"latest_optimized_prompt"`
	CreatedAt             string `json:"created_at"`
}

type sessionResponse struct {
	Success bool        `json:"success"`
	Session SessionInfo `json:"session"`
	Err     string      `json:"error"`
}

// GetSession fetches a session's state from the backend.
func (c *Client) GetSession(ctx context.Context, sessionID string) (SessionInfo, error) {
	var resp sessionResponse
	if err := c.getJSON(ctx, "/session/"+url.PathEscape(sessionID), &resp); err != nil {
		return SessionInfo{}, err
	}
	if !resp.Success {
		msg := resp.Err
		if msg == "" {
			msg = "session not found"
		}
		return SessionInfo{}, &PersistenceError{Op: "get session", Message: msg}
	}
	return resp.Session, nil
}

// SessionLog fetches a session's activity log as plain text.
func (c *Client) SessionLog(ctx context.Context, sessionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/session/"+url.PathEscape(sessionID)+"/log", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request session log: %w", err)
	}
	defer closeBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read session log: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &PersistenceError{Op: "session log", Message: errorFromBody(body, resp.StatusCode)}
	}

	return string(body), nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	return c.do(req, out)
}

// do executes the request and decodes the JSON body into out. Non-2xx
// responses still get decoded when possible: the backend returns its error
// payloads with error status codes, and callers surface those as
// PersistenceErrors from the decoded fields.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer closeBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &PersistenceError{Op: req.URL.Path, Message: errorFromBody(body, resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// errorFromBody pulls the backend's error field out of a response body,
// falling back to the status code.
func errorFromBody(body []byte, status int) string {
	var payload struct {
		Err string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Err != "" {
		return payload.Err
	}
	return fmt.Sprintf("status %d", status)
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		log.Debug().Err(err).Msg("optimizer: close response body")
	}
}
