package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/v2/list"
	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/colonyops/margin/internal/core/prompts"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/core/styles"
)

// pickerItem is one row in the picker: a section header, an existing
// session, or a prompt file to start a new session from.
type pickerItem struct {
	isHeader bool
	header   string

	sess   *session.Session
	prompt *prompts.File
}

// FilterValue implements list.Item.
func (i pickerItem) FilterValue() string {
	switch {
	case i.sess != nil:
		return i.sess.Name
	case i.prompt != nil:
		return i.prompt.RelPath
	default:
		return ""
	}
}

// pickerDelegate renders picker rows.
type pickerDelegate struct{}

func (d pickerDelegate) Height() int                             { return 1 }
func (d pickerDelegate) Spacing() int                            { return 0 }
func (d pickerDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d pickerDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(pickerItem)
	if !ok {
		return
	}

	if item.isHeader {
		_, _ = io.WriteString(w, styles.CommandHeaderStyle.Render(item.header))
		return
	}

	isSelected := index == m.Index()
	style := styles.TextPrimaryStyle
	cursor := "  "
	if isSelected {
		style = styles.ModalButtonSelectedStyle
		cursor = "> "
	}

	var label string
	switch {
	case item.sess != nil:
		label = fmt.Sprintf("%s  %s", item.sess.Name, styles.TextMutedStyle.Render(relativeTime(item.sess.UpdatedAt)))
	case item.prompt != nil:
		label = item.prompt.RelPath
	}

	_, _ = io.WriteString(w, cursor)
	_, _ = io.WriteString(w, style.Render(label))
}

// relativeTime formats a timestamp as a short age like "2h ago".
func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// sessionPickedMsg is emitted when an existing session is chosen.
type sessionPickedMsg struct {
	id string
}

// promptPickedMsg is emitted when a prompt file is chosen to start a new
// session from.
type promptPickedMsg struct {
	file prompts.File
}

// PickerView lets the user open an existing session or start a new one
// from a discovered prompt file.
type PickerView struct {
	list   list.Model
	width  int
	height int
	empty  bool
}

// NewPickerView builds the picker over loaded sessions and prompt files.
func NewPickerView(sessions []*session.Session, files []prompts.File, width, height int) PickerView {
	items := buildPickerItems(sessions, files)

	l := list.New(items, pickerDelegate{}, max(width-4, 20), max(height-6, 3))
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	v := PickerView{
		list:   l,
		width:  width,
		height: height,
		empty:  len(items) == 0,
	}
	v.selectFirstEntry()
	return v
}

func buildPickerItems(sessions []*session.Session, files []prompts.File) []list.Item {
	var items []list.Item
	if len(sessions) > 0 {
		items = append(items, pickerItem{isHeader: true, header: "Sessions"})
		for _, sess := range sessions {
			items = append(items, pickerItem{sess: sess})
		}
	}
	if len(files) > 0 {
		items = append(items, pickerItem{isHeader: true, header: "Prompts"})
		for i := range files {
			items = append(items, pickerItem{prompt: &files[i]})
		}
	}
	return items
}

// selectFirstEntry selects the first non-header row.
func (v *PickerView) selectFirstEntry() {
	for i, item := range v.list.Items() {
		if pi, ok := item.(pickerItem); ok && !pi.isHeader {
			v.list.Select(i)
			return
		}
	}
}

// SetSize updates the picker dimensions.
func (v *PickerView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.list.SetSize(max(width-4, 20), max(height-6, 3))
}

// Update handles input for the picker.
func (v PickerView) Update(msg tea.Msg) (PickerView, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}

	switch keyMsg.String() {
	case "enter":
		item, ok := v.list.SelectedItem().(pickerItem)
		if !ok || item.isHeader {
			return v, nil
		}
		switch {
		case item.sess != nil:
			id := item.sess.ID
			return v, func() tea.Msg { return sessionPickedMsg{id: id} }
		case item.prompt != nil:
			file := *item.prompt
			return v, func() tea.Msg { return promptPickedMsg{file: file} }
		}
		return v, nil
	case "j", "down", "k", "up":
		var cmd tea.Cmd
		v.list, cmd = v.list.Update(normalizeListKey(keyMsg))
		v.skipHeader(keyMsg.String())
		return v, cmd
	}
	return v, nil
}

// normalizeListKey maps vim motions onto the arrow keys the list handles.
func normalizeListKey(msg tea.KeyMsg) tea.Msg {
	switch msg.String() {
	case "j":
		return tea.KeyPressMsg(tea.Key{Code: tea.KeyDown})
	case "k":
		return tea.KeyPressMsg(tea.Key{Code: tea.KeyUp})
	default:
		return msg
	}
}

// skipHeader moves the selection off a header row in the travel direction.
func (v *PickerView) skipHeader(key string) {
	item, ok := v.list.SelectedItem().(pickerItem)
	if !ok || !item.isHeader {
		return
	}
	idx := v.list.Index()
	switch key {
	case "j", "down":
		if idx+1 < len(v.list.Items()) {
			v.list.Select(idx + 1)
		}
	case "k", "up":
		if idx > 0 {
			v.list.Select(idx - 1)
		} else {
			v.selectFirstEntry()
		}
	}
}

// View renders the picker.
func (v PickerView) View() string {
	title := styles.TextPrimaryStyle.Render("margin")
	subtitle := styles.TextMutedStyle.Render("Pick a session or a prompt to annotate")

	body := v.list.View()
	if v.empty {
		body = styles.TextMutedStyle.Render("No sessions or prompt files found.")
	}

	help := styles.StatusHelpStyle.Render("j/k: move • enter: open • q: quit")
	return title + "\n" + subtitle + "\n\n" + body + "\n" + help
}
