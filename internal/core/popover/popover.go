// Package popover models the comment popover lifecycle as an explicit state
// machine, decoupled from any rendering toolkit. The host view feeds it
// captured selections and keystrokes; the controller decides what is pending,
// what may commit, and what survives a failed commit.
package popover

import (
	"errors"
	"strings"

	"github.com/colonyops/margin/internal/core/annotate"
)

// ErrNotEditing is returned by Commit when no selection has been captured,
// as distinct from a captured selection with a blank draft.
var ErrNotEditing = errors.New("no pending selection to commit")

// State is the controller's lifecycle state. Hover tracking is orthogonal
// and does not appear here.
type State int

const (
	// Idle means no popover is open and no selection is pending.
	Idle State = iota
	// Editing means a selection has been captured and a comment draft is open.
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	default:
		return "unknown"
	}
}

// Controller owns the popover lifecycle over a single annotation store.
// Exactly one selection can be pending at a time; a second Begin while
// editing replaces the pending selection and discards the draft.
type Controller struct {
	store *annotate.Store

	state   State
	pending annotate.Candidate
	draft   string

	hoverID string
}

// NewController builds an idle controller over the given store.
func NewController(store *annotate.Store) *Controller {
	return &Controller{store: store}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Pending returns the captured selection currently being commented on.
// Meaningful only while Editing.
func (c *Controller) Pending() annotate.Candidate {
	return c.pending
}

// Draft returns the in-progress comment text.
func (c *Controller) Draft() string {
	return c.draft
}

// SetDraft replaces the in-progress comment text.
func (c *Controller) SetDraft(text string) {
	if c.state != Editing {
		return
	}
	c.draft = text
}

// Begin opens the popover for a captured selection. Any previous pending
// selection and draft are discarded.
func (c *Controller) Begin(cand annotate.Candidate) {
	c.state = Editing
	c.pending = cand
	c.draft = ""
}

// Commit tries to turn the pending selection and draft into a stored
// annotation. On success the controller returns to Idle and hands back the
// new annotation. On any failure the controller STAYS in Editing with the
// pending selection and draft intact, so the user can correct and retry;
// the error is surfaced for display.
func (c *Controller) Commit() (annotate.Annotation, error) {
	if c.state != Editing {
		return annotate.Annotation{}, ErrNotEditing
	}
	comment := strings.TrimSpace(c.draft)
	if comment == "" {
		return annotate.Annotation{}, annotate.ErrEmptyComment
	}

	ann, err := c.store.Add(c.pending.Range, comment)
	if err != nil {
		return annotate.Annotation{}, err
	}

	c.reset()
	return ann, nil
}

// Cancel dismisses the popover, discarding the pending selection and draft.
// The store is untouched.
func (c *Controller) Cancel() {
	c.reset()
}

func (c *Controller) reset() {
	c.state = Idle
	c.pending = annotate.Candidate{}
	c.draft = ""
}

// HoverEnter records that the cursor is resting over the highlighted run
// with the given annotation id. Hover state is independent of the popover
// lifecycle; entering hover while Editing is allowed and changes nothing
// about the pending selection.
func (c *Controller) HoverEnter(annotationID string) {
	c.hoverID = annotationID
}

// HoverLeave clears the hover track.
func (c *Controller) HoverLeave() {
	c.hoverID = ""
}

// Hovered returns the hovered annotation id, or "" when nothing is hovered.
func (c *Controller) Hovered() string {
	return c.hoverID
}
