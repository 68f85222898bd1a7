package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/glamour"
	lipgloss "github.com/charmbracelet/lipgloss/v2"

	"github.com/colonyops/margin/internal/core/styles"
)

// FinalizeAction is the action chosen when finalizing feedback.
type FinalizeAction int

const (
	FinalizeActionNone FinalizeAction = iota
	FinalizeActionReoptimize
	FinalizeActionExport
)

type finalizeOption struct {
	label       string
	description string
	action      FinalizeAction
}

// FinalizeModal previews the collected feedback and offers what to do with
// it. The re-optimize option only appears when a backend is available.
type FinalizeModal struct {
	preview     string
	feedback    string
	options     []finalizeOption
	selectedIdx int
	width       int
	confirmed   bool
	cancelled   bool
}

// NewFinalizeModal builds the modal over the generated feedback summary.
func NewFinalizeModal(feedback string, online bool, width int) FinalizeModal {
	var options []finalizeOption
	if online {
		options = append(options, finalizeOption{
			label:       "Re-optimize",
			description: "Send feedback to the optimizer and fetch a new prompt",
			action:      FinalizeActionReoptimize,
		})
	}
	options = append(options, finalizeOption{
		label:       "Export",
		description: "Write the feedback summary to a file",
		action:      FinalizeActionExport,
	})

	return FinalizeModal{
		preview:  renderPreview(feedback, width),
		feedback: feedback,
		options:  options,
		width:    width,
	}
}

// renderPreview renders the feedback summary as markdown. Falls back to the
// raw text when the renderer cannot be built.
func renderPreview(feedback string, width int) string {
	wrap := width - 8
	if wrap < 20 {
		wrap = 20
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(styles.GlamourStyle()),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return feedback
	}

	out, err := r.Render(markdownQuote(feedback))
	if err != nil {
		return feedback
	}
	return strings.TrimRight(out, "\n")
}

// markdownQuote keeps "> " context lines rendering as blockquotes while the
// rest stays plain paragraphs.
func markdownQuote(feedback string) string {
	return strings.ReplaceAll(feedback, "\n\n", "\n\n---\n\n")
}

// Update handles input events.
func (m FinalizeModal) Update(msg tea.Msg) (FinalizeModal, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "j", "down", "tab":
			m.selectedIdx = (m.selectedIdx + 1) % len(m.options)
		case "k", "up", "shift+tab":
			m.selectedIdx = (m.selectedIdx - 1 + len(m.options)) % len(m.options)
		case "enter":
			m.confirmed = true
		case "esc":
			m.cancelled = true
		}
	}
	return m, nil
}

// View renders the modal content.
func (m FinalizeModal) View() string {
	var buttons []string
	for i, opt := range m.options {
		style := styles.ModalButtonStyle
		if i == m.selectedIdx {
			style = styles.ModalButtonSelectedStyle
		}
		buttons = append(buttons, style.Render(opt.label))
	}

	parts := []string{
		styles.ModalTitleStyle.Render("Finalize Feedback"),
		"",
		m.preview,
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, buttons...),
		styles.ModalLabelStyle.Render(m.options[m.selectedIdx].description),
		styles.ModalHelpStyle.Render("j/k: choose • enter: confirm • esc: cancel"),
	}

	return strings.Join(parts, "\n")
}

// Confirmed returns true once an action has been chosen.
func (m FinalizeModal) Confirmed() bool {
	return m.confirmed
}

// Cancelled returns true if the modal was dismissed.
func (m FinalizeModal) Cancelled() bool {
	return m.cancelled
}

// Action returns the chosen action.
func (m FinalizeModal) Action() FinalizeAction {
	if !m.confirmed {
		return FinalizeActionNone
	}
	return m.options[m.selectedIdx].action
}

// Feedback returns the raw feedback summary.
func (m FinalizeModal) Feedback() string {
	return m.feedback
}
