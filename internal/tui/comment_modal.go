package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/v2/textinput"
	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/colonyops/margin/internal/core/annotate"
	"github.com/colonyops/margin/internal/core/styles"
)

const contextPreviewMax = 100

// CommentModal handles comment entry for a captured selection.
type CommentModal struct {
	textInput      textinput.Model
	offsetRange    string // e.g., "Offsets 4-9"
	contextPreview string
	errText        string
	width          int
	submitted      bool
	cancelled      bool
}

// NewCommentModal creates a comment modal for the given selection candidate.
func NewCommentModal(cand annotate.Candidate, width int) CommentModal {
	ti := textinput.New()
	ti.Placeholder = "Enter your feedback..."
	ti.Focus()
	ti.SetWidth(width - 10) // Account for padding and borders

	return CommentModal{
		textInput:      ti,
		offsetRange:    fmt.Sprintf("Offsets %d-%d", cand.Range.Start, cand.Range.End),
		contextPreview: formatContextPreview(cand.Text),
		width:          width,
	}
}

// formatContextPreview truncates long selections to keep the modal compact.
func formatContextPreview(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= contextPreviewMax {
		return text
	}
	return string(runes[:contextPreviewMax]) + "…"
}

// Update handles messages.
func (m CommentModal) Update(msg tea.Msg) (CommentModal, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			if m.textInput.Value() != "" {
				m.submitted = true
				return m, nil
			}
		case "esc":
			m.cancelled = true
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the modal content.
func (m CommentModal) View() string {
	parts := []string{
		styles.ModalTitleStyle.Render("Add Feedback"),
		styles.ModalLabelStyle.Render(m.offsetRange),
		styles.TextMutedStyle.Italic(true).Render("> " + m.contextPreview),
		m.textInput.View(),
	}
	if m.errText != "" {
		parts = append(parts, styles.ModalErrorStyle.Render(m.errText))
	}
	parts = append(parts, styles.ModalHelpStyle.Render("enter: save • esc: cancel"))

	return strings.Join(parts, "\n")
}

// Submitted returns true if the comment was submitted.
func (m CommentModal) Submitted() bool {
	return m.submitted
}

// Cancelled returns true if the modal was cancelled.
func (m CommentModal) Cancelled() bool {
	return m.cancelled
}

// Value returns the entered comment text.
func (m CommentModal) Value() string {
	return m.textInput.Value()
}

// SetError shows a validation error and reopens the modal for editing.
func (m *CommentModal) SetError(text string) {
	m.errText = text
	m.submitted = false
}
