package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
	lipgloss "github.com/charmbracelet/lipgloss/v2"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/margin/internal/core/annotate"
	"github.com/colonyops/margin/internal/core/feedback"
	"github.com/colonyops/margin/internal/core/popover"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/core/styles"
	"github.com/colonyops/margin/internal/data/stores"
	"github.com/colonyops/margin/internal/optimizer"
)

// backToPickerMsg returns the user to the session picker.
type backToPickerMsg struct{}

// AnnotateView is the annotation surface for one session: the optimized
// prompt with committed comment ranges highlighted, a cursor for navigation
// and selection, and modals for comment entry, deletion, and finalization.
type AnnotateView struct {
	deps Deps
	sess *session.Session

	store *annotate.Store
	ctrl  *popover.Controller

	cursor       int // absolute rune offset into the source text
	visualMode   bool
	visualAnchor int

	width  int
	height int
	scroll int // first visible text row

	commentModal  *CommentModal
	confirmModal  *ConfirmModal
	finalizeModal *FinalizeModal
	deleteID      string

	status     string
	statusErr  bool
	optimizing bool
}

// NewAnnotateView builds the view over a session and its persisted
// annotations. Records whose ranges no longer fit the current text are
// skipped rather than failing the whole session.
func NewAnnotateView(deps Deps, sess *session.Session, recs []stores.AnnotationRecord, width, height int) *AnnotateView {
	store := annotate.NewStore(sess.Text())
	for _, rec := range recs {
		if err := store.Restore(rec.Annotation); err != nil {
			log.Warn().
				Str("annotation_id", rec.ID).
				Err(err).
				Msg("skipping stale annotation")
		}
	}

	return &AnnotateView{
		deps:   deps,
		sess:   sess,
		store:  store,
		ctrl:   popover.NewController(store),
		width:  width,
		height: height,
	}
}


// SetSize updates the view dimensions.
func (v *AnnotateView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampScroll()
}

// wrapWidth is the column count text wraps at.
func (v *AnnotateView) wrapWidth() int {
	return max(v.width-2, 20)
}

// textHeight is the number of text rows visible between header and footer.
func (v *AnnotateView) textHeight() int {
	return max(v.height-4, 1)
}

// Update handles messages for the view.
func (v *AnnotateView) Update(msg tea.Msg) (*AnnotateView, tea.Cmd) {
	switch msg := msg.(type) {
	case commentSyncedMsg:
		return v, v.handleCommentSynced(msg)
	case commentSyncErrMsg:
		return v, v.handleCommentSyncErr(msg)
	case optimizeDoneMsg:
		return v, v.handleOptimizeDone(msg)
	case statusMsg:
		v.setStatus(msg.text, msg.isErr)
		return v, nil
	}

	switch {
	case v.commentModal != nil:
		return v.updateCommentModal(msg)
	case v.confirmModal != nil:
		return v.updateConfirmModal(msg)
	case v.finalizeModal != nil:
		return v.updateFinalizeModal(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}
	return v.handleKey(keyMsg)
}

func (v *AnnotateView) handleKey(msg tea.KeyMsg) (*AnnotateView, tea.Cmd) {
	switch msg.String() {
	case "q":
		return v, func() tea.Msg { return backToPickerMsg{} }

	case "esc":
		if v.visualMode {
			v.visualMode = false
			return v, nil
		}
		return v, func() tea.Msg { return backToPickerMsg{} }

	case "h", "left":
		v.moveCursor(-1)
	case "l", "right":
		v.moveCursor(1)
	case "j", "down":
		v.moveCursorRow(1)
	case "k", "up":
		v.moveCursorRow(-1)
	case "g", "home":
		v.setCursor(0)
	case "G", "end":
		v.setCursor(v.store.SourceLen() - 1)

	case "v":
		if !v.visualMode {
			v.visualMode = true
			v.visualAnchor = v.cursor
		} else {
			v.visualMode = false
		}

	case "c", "enter":
		return v.beginComment()

	case "d", "x":
		return v.beginDelete()

	case "f":
		return v.beginFinalize()
	}

	return v, nil
}

// setCursor moves the cursor and refreshes hover state and scrolling.
func (v *AnnotateView) setCursor(offset int) {
	maxOffset := v.store.SourceLen() - 1
	if maxOffset < 0 {
		maxOffset = 0
	}
	v.cursor = min(max(offset, 0), maxOffset)

	view := annotate.NewView(v.store.Segments())
	if id := view.AnnotationAt(v.cursor); id != "" {
		v.ctrl.HoverEnter(id)
	} else {
		v.ctrl.HoverLeave()
	}
	v.clampScroll()
}

func (v *AnnotateView) moveCursor(delta int) {
	v.setCursor(v.cursor + delta)
}

// moveCursorRow moves the cursor vertically through the wrapped layout,
// keeping the column where possible.
func (v *AnnotateView) moveCursorRow(delta int) {
	rows := layoutRows([]rune(v.store.Source()), v.wrapWidth())
	row, col := positionOf(rows, v.cursor)
	row += delta
	if row < 0 || row >= len(rows) {
		return
	}
	target := rows[row]
	if col >= target.length {
		col = max(target.length-1, 0)
	}
	v.setCursor(target.start + col)
}

func (v *AnnotateView) clampScroll() {
	rows := layoutRows([]rune(v.store.Source()), v.wrapWidth())
	row, _ := positionOf(rows, v.cursor)
	visible := v.textHeight()
	if row < v.scroll {
		v.scroll = row
	}
	if row >= v.scroll+visible {
		v.scroll = row - visible + 1
	}
	v.scroll = max(v.scroll, 0)
}

func (v *AnnotateView) setStatus(text string, isErr bool) {
	v.status = text
	v.statusErr = isErr
}

// selectionRange returns the active visual selection as an absolute
// half-open range. The cursor rune is included.
func (v *AnnotateView) selectionRange() annotate.Range {
	start, end := v.visualAnchor, v.cursor
	if start > end {
		start, end = end, start
	}
	return annotate.Range{Start: start, End: end + 1}
}

// beginComment captures the current selection and opens the comment modal.
func (v *AnnotateView) beginComment() (*AnnotateView, tea.Cmd) {
	if !v.visualMode {
		v.setStatus("Press v to select text first", false)
		return v, nil
	}

	r := v.selectionRange()
	view := annotate.NewView(v.store.Segments())
	anchor, err := view.PointAt(r.Start)
	if err != nil {
		v.setStatus(err.Error(), true)
		return v, nil
	}
	cursor, err := view.PointAt(r.End)
	if err != nil {
		v.setStatus(err.Error(), true)
		return v, nil
	}

	cand, ok := view.CaptureSelection(annotate.Selection{Anchor: anchor, Cursor: cursor}, v.wrapWidth())
	if !ok {
		v.setStatus("Nothing selected", false)
		return v, nil
	}

	v.ctrl.Begin(cand)
	modal := NewCommentModal(cand, min(v.width-4, 70))
	v.commentModal = &modal
	return v, nil
}

func (v *AnnotateView) updateCommentModal(msg tea.Msg) (*AnnotateView, tea.Cmd) {
	modal, cmd := v.commentModal.Update(msg)
	v.commentModal = &modal

	switch {
	case modal.Cancelled():
		v.ctrl.Cancel()
		v.commentModal = nil
		return v, cmd
	case modal.Submitted():
		return v.commitComment(modal.Value())
	}
	return v, cmd
}

// commitComment runs the optimistic commit: the annotation is added to the
// store and saved locally right away; the backend sync happens async and
// rolls it back on failure.
func (v *AnnotateView) commitComment(draft string) (*AnnotateView, tea.Cmd) {
	cand := v.ctrl.Pending()
	v.ctrl.SetDraft(draft)

	ann, err := v.ctrl.Commit()
	if err != nil {
		switch {
		case errors.Is(err, annotate.ErrEmptyComment):
			v.commentModal.SetError("Comment cannot be empty")
		case annotate.IsOverlapError(err):
			v.commentModal.SetError("Selection overlaps an existing comment")
		default:
			v.commentModal.SetError(err.Error())
		}
		return v, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	rec := stores.AnnotationRecord{
		Annotation:  ann,
		SessionID:   v.sess.ID,
		ContextText: cand.Text,
	}
	if err := v.deps.Feedback.SaveAnnotation(ctx, rec); err != nil {
		v.store.Remove(ann.ID)
		// Back to editing so the draft is not lost.
		v.ctrl.Begin(cand)
		v.ctrl.SetDraft(draft)
		v.commentModal.SetError("Save failed: " + err.Error())
		return v, nil
	}

	v.sess.LogComment(ann.ID, cand.Text, ann.Comment, time.Now())
	if err := v.deps.Sessions.Save(ctx, v.sess); err != nil {
		log.Error().Err(err).Msg("failed to save session log")
	}

	v.commentModal = nil
	v.visualMode = false
	v.setCursor(ann.Range.Start)

	if v.deps.Sync && v.deps.Online() {
		v.setStatus("Saving comment...", false)
		req := optimizer.CommentRequest{
			Text:        cand.Text,
			StartOffset: ann.Range.Start,
			EndOffset:   ann.Range.End,
			Feedback:    ann.Comment,
			PromptID:    v.sess.ID,
		}
		return v, syncCommentCmd(v.deps.Optimizer, req, ann.ID)
	}

	v.setStatus("Comment added", false)
	return v, nil
}

func (v *AnnotateView) handleCommentSynced(msg commentSyncedMsg) tea.Cmd {
	newID := msg.comment.ID
	if newID != "" && newID != msg.localID {
		v.store.AdoptID(msg.localID, newID)

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := v.deps.Feedback.AdoptAnnotationID(ctx, msg.localID, newID); err != nil {
			log.Error().Err(err).Msg("failed to adopt backend annotation id")
		}
	}
	v.setStatus("Comment saved", false)
	return nil
}

// handleCommentSyncErr rolls back an optimistically committed annotation
// after the backend rejected it.
func (v *AnnotateView) handleCommentSyncErr(msg commentSyncErrMsg) tea.Cmd {
	v.store.Remove(msg.localID)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := v.deps.Feedback.DeleteAnnotation(ctx, msg.localID); err != nil {
		log.Error().Err(err).Msg("failed to roll back annotation")
	}

	v.setStatus("Comment rejected: "+msg.err.Error(), true)
	return nil
}

// beginDelete asks for confirmation before removing the annotation under
// the cursor.
func (v *AnnotateView) beginDelete() (*AnnotateView, tea.Cmd) {
	ann, ok := v.store.At(v.cursor)
	if !ok {
		v.setStatus("No comment under cursor", false)
		return v, nil
	}

	modal := NewConfirmModal(fmt.Sprintf("Delete comment on %q?", formatContextPreview(ann.Range.Slice(v.store.Source()))))
	v.confirmModal = &modal
	v.deleteID = ann.ID
	return v, nil
}

func (v *AnnotateView) updateConfirmModal(msg tea.Msg) (*AnnotateView, tea.Cmd) {
	modal, cmd := v.confirmModal.Update(msg)
	v.confirmModal = &modal

	switch {
	case modal.Cancelled():
		v.confirmModal = nil
		v.deleteID = ""
	case modal.Confirmed():
		v.confirmModal = nil
		v.deleteAnnotation(v.deleteID)
		v.deleteID = ""
	}
	return v, cmd
}

func (v *AnnotateView) deleteAnnotation(id string) {
	if !v.store.Remove(id) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := v.deps.Feedback.DeleteAnnotation(ctx, id); err != nil {
		v.setStatus("Delete failed: "+err.Error(), true)
		return
	}

	v.ctrl.HoverLeave()
	v.setCursor(v.cursor)
	v.setStatus("Comment deleted", false)
}

// beginFinalize builds the feedback summary and opens the finalize modal.
func (v *AnnotateView) beginFinalize() (*AnnotateView, tea.Cmd) {
	if v.store.Len() == 0 {
		v.setStatus("No comments to finalize", false)
		return v, nil
	}

	fb := feedback.Build(v.sess, v.store.List())
	modal := NewFinalizeModal(fb, v.deps.Online() && v.deps.Sync, min(v.width-4, 80))
	v.finalizeModal = &modal
	return v, nil
}

func (v *AnnotateView) updateFinalizeModal(msg tea.Msg) (*AnnotateView, tea.Cmd) {
	modal, cmd := v.finalizeModal.Update(msg)
	v.finalizeModal = &modal

	switch {
	case modal.Cancelled():
		v.finalizeModal = nil
	case modal.Confirmed():
		action := modal.Action()
		fb := modal.Feedback()
		v.finalizeModal = nil

		switch action {
		case FinalizeActionReoptimize:
			v.optimizing = true
			v.setStatus("Re-optimizing prompt...", false)
			return v, reoptimizeCmd(v.deps.Optimizer, v.sess.ID)
		case FinalizeActionExport:
			v.exportFeedback(fb)
		}
	}
	return v, cmd
}

// exportFeedback writes the feedback summary next to the working directory.
func (v *AnnotateView) exportFeedback(fb string) {
	name := fmt.Sprintf("feedback-%s-%s.md", session.Slugify(v.sess.Name), time.Now().Format("20060102-150405"))
	if err := os.WriteFile(name, []byte(fb+"\n"), 0o644); err != nil {
		v.setStatus("Export failed: "+err.Error(), true)
		return
	}
	v.setStatus("Feedback written to "+name, false)
}

// handleOptimizeDone swaps in the re-optimized prompt. Existing annotations
// reference offsets in the old text, so they are cleared.
func (v *AnnotateView) handleOptimizeDone(msg optimizeDoneMsg) tea.Cmd {
	v.optimizing = false
	if msg.err != nil {
		v.setStatus("Re-optimize failed: "+msg.err.Error(), true)
		return nil
	}

	now := time.Now()
	v.sess.SetOptimizedPrompt(msg.result.Result, now)
	if msg.result.SessionID != "" && v.sess.ID != msg.result.SessionID {
		// Keep the local id; the backend session is tracked in the log.
		v.sess.AppendLog(now, session.LogPromptUpdate, map[string]string{
			"backend_session": msg.result.SessionID,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := v.deps.Feedback.DeleteSessionAnnotations(ctx, v.sess.ID); err != nil {
		log.Error().Err(err).Msg("failed to clear annotations after re-optimize")
	}
	if err := v.deps.Sessions.Save(ctx, v.sess); err != nil {
		log.Error().Err(err).Msg("failed to save re-optimized session")
	}

	v.store = annotate.NewStore(v.sess.Text())
	v.ctrl = popover.NewController(v.store)
	v.cursor = 0
	v.scroll = 0
	v.visualMode = false
	v.setStatus("Prompt re-optimized", false)
	return nil
}

// View renders the annotation surface with any active overlay.
func (v *AnnotateView) View() string {
	background := v.renderBackground()

	switch {
	case v.commentModal != nil:
		modal := styles.ModalStyle.Render(v.commentModal.View())
		return overlayCentered(background, modal, v.width, v.height)
	case v.confirmModal != nil:
		modal := styles.ModalStyle.Render(v.confirmModal.View())
		return overlayCentered(background, modal, v.width, v.height)
	case v.finalizeModal != nil:
		modal := styles.ModalStyle.Render(v.finalizeModal.View())
		return overlayCentered(background, modal, v.width, v.height)
	}

	if hovered := v.ctrl.Hovered(); hovered != "" {
		if ann, ok := v.store.Get(hovered); ok {
			return v.overlayTooltip(background, ann)
		}
	}

	return background
}

func (v *AnnotateView) renderBackground() string {
	header := v.renderHeader()
	text := v.renderText()
	footer := v.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, header, text, footer)
}

func (v *AnnotateView) renderHeader() string {
	title := styles.TextPrimaryStyle.Render(v.sess.Name)
	count := styles.TextMutedStyle.Render(fmt.Sprintf("%d comments", v.store.Len()))
	gap := v.width - lipgloss.Width(title) - lipgloss.Width(count)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + count
}

func (v *AnnotateView) renderFooter() string {
	mode := "NORMAL"
	if v.visualMode {
		mode = "VISUAL"
	}
	if v.optimizing {
		mode = "WORKING"
	}
	left := styles.StatusBarModeStyle.Render(" " + mode + " ")

	status := v.status
	statusStyle := styles.TextMutedStyle
	if v.statusErr {
		statusStyle = styles.TextErrorStyle
	}

	help := styles.StatusHelpStyle.Render("v: select • c: comment • d: delete • f: finalize • q: back")
	line := left + " " + statusStyle.Render(status)
	gap := v.width - lipgloss.Width(line) - lipgloss.Width(help)
	if gap < 1 {
		gap = 1
	}
	return styles.StatusBarStyle.Render(line + strings.Repeat(" ", gap) + help)
}

// renderText draws the wrapped source text with highlight, selection, and
// cursor styling, windowed to the visible rows. Wrapping here uses the same
// arithmetic as the selection anchor so popovers land where the text shows.
func (v *AnnotateView) renderText() string {
	wrapWidth := v.wrapWidth()
	sel := annotate.Range{}
	if v.visualMode {
		sel = v.selectionRange()
	}

	var rows []string
	var row strings.Builder
	col := 0
	offset := 0

	flush := func() {
		rows = append(rows, row.String())
		row.Reset()
		col = 0
	}

	for _, leaf := range annotate.NewView(v.store.Segments()).Leaves() {
		for _, r := range leaf.Text {
			if r == '\n' {
				if offset == v.cursor {
					row.WriteString(styles.CursorStyle.Render(" "))
				}
				offset++
				flush()
				continue
			}

			row.WriteString(v.styleRune(offset, leaf.AnnotationID, sel).Render(string(r)))
			offset++
			col++
			if col >= wrapWidth {
				flush()
			}
		}
	}
	if row.Len() > 0 || len(rows) == 0 {
		flush()
	}

	top := min(v.scroll, max(len(rows)-1, 0))
	bottom := min(top+v.textHeight(), len(rows))
	visible := rows[top:bottom]
	for len(visible) < v.textHeight() {
		visible = append(visible, "")
	}
	return strings.Join(visible, "\n")
}

// styleRune picks the style for one source rune. Cursor wins over
// selection, selection over hover, hover over plain highlight.
func (v *AnnotateView) styleRune(offset int, annotationID string, sel annotate.Range) lipgloss.Style {
	switch {
	case offset == v.cursor:
		return styles.CursorStyle
	case v.visualMode && sel.Contains(offset):
		return styles.SelectionStyle
	case annotationID != "" && annotationID == v.ctrl.Hovered():
		return styles.HighlightHoverStyle
	case annotationID != "":
		return styles.HighlightStyle
	default:
		return styles.TextPrimaryStyle
	}
}

// overlayTooltip floats the hovered annotation's comment near the cursor.
func (v *AnnotateView) overlayTooltip(background string, ann annotate.Annotation) string {
	rows := layoutRows([]rune(v.store.Source()), v.wrapWidth())
	row, col := positionOf(rows, v.cursor)

	tooltip := renderTooltip(ann.Comment, v.width)
	// One row below the cursor, offset past the header line.
	y := row - v.scroll + 2
	x := col + 2
	return overlayAt(background, tooltip, x, y, v.width, v.height)
}

// renderedRow is one wrapped display row: the absolute rune offset of its
// first rune and its length in runes.
type renderedRow struct {
	start  int
	length int
}

// layoutRows computes the wrapped row layout of the source text. Hard line
// breaks end a row; the newline rune itself belongs to the row it ends.
func layoutRows(src []rune, wrapWidth int) []renderedRow {
	var rows []renderedRow
	start := 0
	col := 0
	for i, r := range src {
		if r == '\n' {
			rows = append(rows, renderedRow{start: start, length: i - start + 1})
			start = i + 1
			col = 0
			continue
		}
		col++
		if wrapWidth > 0 && col >= wrapWidth {
			rows = append(rows, renderedRow{start: start, length: i - start + 1})
			start = i + 1
			col = 0
		}
	}
	if start < len(src) || len(rows) == 0 {
		rows = append(rows, renderedRow{start: start, length: len(src) - start})
	}
	return rows
}

// positionOf locates the display row and column of an absolute offset.
func positionOf(rows []renderedRow, offset int) (row, col int) {
	for i, r := range rows {
		if offset < r.start+r.length {
			return i, offset - r.start
		}
	}
	last := len(rows) - 1
	return last, rows[last].length
}
