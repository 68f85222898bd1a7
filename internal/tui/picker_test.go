package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/margin/internal/core/prompts"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/pkg/tuitest"
)

func testPickerData() ([]*session.Session, []prompts.File) {
	now := time.Now()
	sessions := []*session.Session{
		session.New("s1", "login prompt", "input", now),
		session.New("s2", "search prompt", "input", now),
	}
	files := []prompts.File{
		{Path: "/tmp/prompts/draft.md", RelPath: "draft.md"},
	}
	return sessions, files
}

func TestPickerItemsGroupedWithHeaders(t *testing.T) {
	sessions, files := testPickerData()
	items := buildPickerItems(sessions, files)

	require.Len(t, items, 5)
	assert.True(t, items[0].(pickerItem).isHeader)
	assert.Equal(t, "Sessions", items[0].(pickerItem).header)
	assert.Equal(t, "s1", items[1].(pickerItem).sess.ID)
	assert.True(t, items[3].(pickerItem).isHeader)
	assert.Equal(t, "Prompts", items[3].(pickerItem).header)
	assert.Equal(t, "draft.md", items[4].(pickerItem).prompt.RelPath)
}

func TestPickerItemsOmitEmptySections(t *testing.T) {
	_, files := testPickerData()

	items := buildPickerItems(nil, files)
	require.Len(t, items, 2)
	assert.Equal(t, "Prompts", items[0].(pickerItem).header)

	assert.Empty(t, buildPickerItems(nil, nil))
}

func TestPickerSelectsFirstEntry(t *testing.T) {
	sessions, files := testPickerData()
	picker := NewPickerView(sessions, files, 80, 24)

	item, ok := picker.list.SelectedItem().(pickerItem)
	require.True(t, ok)
	assert.False(t, item.isHeader)
	assert.Equal(t, "s1", item.sess.ID)
}

func TestPickerEnterEmitsSessionPick(t *testing.T) {
	sessions, files := testPickerData()
	picker := NewPickerView(sessions, files, 80, 24)

	picker, cmd := picker.Update(tuitest.KeyEnter())
	require.NotNil(t, cmd)

	msg, ok := cmd().(sessionPickedMsg)
	require.True(t, ok)
	assert.Equal(t, "s1", msg.id)
}

func TestPickerEnterEmitsPromptPick(t *testing.T) {
	_, files := testPickerData()
	picker := NewPickerView(nil, files, 80, 24)

	picker, cmd := picker.Update(tuitest.KeyEnter())
	require.NotNil(t, cmd)

	msg, ok := cmd().(promptPickedMsg)
	require.True(t, ok)
	assert.Equal(t, "draft.md", msg.file.RelPath)
}

func TestPickerNavigationSkipsHeaders(t *testing.T) {
	sessions, files := testPickerData()
	picker := NewPickerView(sessions, files, 80, 24)

	// s1 -> s2 -> (Prompts header skipped) -> draft.md
	picker, _ = picker.Update(tuitest.KeyPress('j'))
	item := picker.list.SelectedItem().(pickerItem)
	require.NotNil(t, item.sess)
	assert.Equal(t, "s2", item.sess.ID)

	picker, _ = picker.Update(tuitest.KeyPress('j'))
	item = picker.list.SelectedItem().(pickerItem)
	require.NotNil(t, item.prompt)
	assert.Equal(t, "draft.md", item.prompt.RelPath)
}

func TestPickerEmptyView(t *testing.T) {
	picker := NewPickerView(nil, nil, 80, 24)

	view := tuitest.StripANSI(picker.View())
	assert.Contains(t, view, "No sessions or prompt files found")
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{name: "seconds", t: now.Add(-30 * time.Second), want: "just now"},
		{name: "minutes", t: now.Add(-5 * time.Minute), want: "5m ago"},
		{name: "hours", t: now.Add(-3 * time.Hour), want: "3h ago"},
		{name: "days", t: now.Add(-49 * time.Hour), want: "2d ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relativeTime(tt.t))
		})
	}
}
