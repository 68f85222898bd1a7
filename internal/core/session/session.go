// Package session defines the optimization session domain: the prompt text
// under annotation, its optimization history, and the per-session activity
// log.
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a name to a URL-safe slug.
// "My Session Name" -> "my-session-name"
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// ErrNotFound is returned by stores when no session matches the given id.
var ErrNotFound = errors.New("session not found")

// Log entry kinds. Every mutation of a session appends one entry.
const (
	LogSessionStart = "SESSION_START"
	LogCommentAdded = "COMMENT_ADDED"
	LogPromptUpdate = "PROMPT_UPDATE"
	LogInputUpdate  = "INPUT_UPDATE"
)

// LogEntry is one timestamped event in a session's history.
type LogEntry struct {
	At      time.Time         `json:"at"`
	Kind    string            `json:"kind"`
	Details map[string]string `json:"details,omitempty"`
}

// Session is one prompt optimization session. OptimizedPrompt is empty until
// the first optimization pass completes; until then annotation targets the
// initial input.
type Session struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	InitialInput    string             `json:"initial_input"`
	OptimizedPrompt string             `json:"optimized_prompt,omitempty"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	Log             []LogEntry         `json:"log,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// New builds a session over the given input and records the opening log
// entry.
func New(id, name, initialInput string, now time.Time) *Session {
	s := &Session{
		ID:           id,
		Name:         name,
		InitialInput: initialInput,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.AppendLog(now, LogSessionStart, map[string]string{
		"action": "Session Created",
		"input":  initialInput,
	})
	return s
}

// Text returns the text currently under annotation: the optimized prompt
// when one exists, otherwise the initial input.
func (s *Session) Text() string {
	if s.OptimizedPrompt != "" {
		return s.OptimizedPrompt
	}
	return s.InitialInput
}

// SetOptimizedPrompt replaces the optimized prompt and logs the update.
func (s *Session) SetOptimizedPrompt(prompt string, now time.Time) {
	s.OptimizedPrompt = prompt
	s.UpdatedAt = now
	s.AppendLog(now, LogPromptUpdate, map[string]string{
		"action":     "Optimized Prompt Updated",
		"new_prompt": prompt,
	})
}

// SetInput replaces the initial input and logs the update.
func (s *Session) SetInput(input string, now time.Time) {
	s.InitialInput = input
	s.UpdatedAt = now
	s.AppendLog(now, LogInputUpdate, map[string]string{
		"action":    "Human Input Updated",
		"new_input": input,
	})
}

// LogComment records that an annotation was attached to the session text.
func (s *Session) LogComment(id, text, comment string, now time.Time) {
	s.UpdatedAt = now
	s.AppendLog(now, LogCommentAdded, map[string]string{
		"feedback_id": id,
		"text":        text,
		"feedback":    comment,
	})
}

// AppendLog appends a raw log entry. Callers normally use the typed helpers.
func (s *Session) AppendLog(at time.Time, kind string, details map[string]string) {
	s.Log = append(s.Log, LogEntry{At: at, Kind: kind, Details: details})
}

// FormatLog renders the session log as plain text, one block per entry,
// oldest first. Detail keys are sorted for stable output.
func (s *Session) FormatLog() string {
	var sb strings.Builder
	for i, e := range s.Log {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%s] %s\n", e.At.Format(time.RFC3339), e.Kind)

		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, e.Details[k])
		}
	}
	return sb.String()
}

// Store is the persistence boundary for sessions.
type Store interface {
	List(ctx context.Context) ([]*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
