package annotate

import "fmt"

// This file is the offset mapper: it converts selection endpoints expressed
// in rendering-local terms (a leaf node plus an offset within that leaf)
// into absolute rune offsets over the source text.
//
// A leaf-local offset is only meaningful inside its own leaf. Once prior
// highlighted segments exist, the text is split across multiple leaves,
// each with its own zero-based offset; treating a leaf-local offset as a
// document-global one silently produces wrong ranges as soon as a second
// annotation lands near an existing one. The mapper walks the leaves in
// document order, accumulating each leaf's source length, and only then
// adds the local offset.

// Leaf is one rendered node: a contiguous run of source text, possibly
// wrapped in highlight markup by the host. Its rendered text always has the
// same rune content as the source run it was produced from.
type Leaf struct {
	Text         string
	AnnotationID string // non-empty when the leaf renders a highlighted run

	runeLen int
}

// RuneLen returns the leaf's source length in runes.
func (l Leaf) RuneLen() int {
	return l.runeLen
}

// View is the rendered form of a source text: an ordered sequence of leaf
// nodes whose concatenated text reproduces the source exactly. Build one
// from the renderer's segment sequence after every recomposition.
type View struct {
	leaves []Leaf
	total  int
}

// NewView builds a view over the given segment sequence.
func NewView(segments []Segment) View {
	leaves := make([]Leaf, 0, len(segments))
	total := 0
	for _, seg := range segments {
		n := RuneLen(seg.Text)
		leaves = append(leaves, Leaf{
			Text:         seg.Text,
			AnnotationID: seg.AnnotationID,
			runeLen:      n,
		})
		total += n
	}
	return View{leaves: leaves, total: total}
}

// Leaves returns the ordered leaf nodes.
func (v View) Leaves() []Leaf {
	return v.leaves
}

// RuneLen returns the total source length in runes.
func (v View) RuneLen() int {
	return v.total
}

// Point is a rendering-local position: a zero-based leaf index and a rune
// offset within that leaf. Points are not comparable across leaves without
// accumulation through the view.
type Point struct {
	Leaf   int
	Offset int
}

// Selection is a pair of rendering-local endpoints. Anchor is where the
// selection gesture started; Cursor is where it currently extends to. The
// two may be in either order.
type Selection struct {
	Anchor Point
	Cursor Point
}

// ScreenPos is a row/column position relative to the rendering container,
// used purely for popover placement. It carries no offset semantics.
type ScreenPos struct {
	Row int
	Col int
}

// Candidate is a captured selection resolved to absolute offsets into the
// source text, ready to be handed to the popover controller.
type Candidate struct {
	Text   string
	Range  Range
	Anchor ScreenPos
}

// AbsoluteOffset converts a rendering-local point into an absolute rune
// offset by summing the source lengths of every leaf before it. The walk is
// correct regardless of how many highlighted leaves precede or contain the
// point.
func (v View) AbsoluteOffset(p Point) (int, error) {
	if p.Leaf < 0 || p.Leaf > len(v.leaves) {
		return 0, fmt.Errorf("leaf index %d out of range (%d leaves)", p.Leaf, len(v.leaves))
	}
	// A point one past the last leaf with offset 0 denotes end-of-text.
	if p.Leaf == len(v.leaves) {
		if p.Offset != 0 {
			return 0, fmt.Errorf("offset %d past end of text", p.Offset)
		}
		return v.total, nil
	}

	prefix := 0
	for _, leaf := range v.leaves[:p.Leaf] {
		prefix += leaf.runeLen
	}

	if p.Offset < 0 || p.Offset > v.leaves[p.Leaf].runeLen {
		return 0, fmt.Errorf("offset %d out of range for leaf %d (length %d)", p.Offset, p.Leaf, v.leaves[p.Leaf].runeLen)
	}

	return prefix + p.Offset, nil
}

// PointAt is the inverse of AbsoluteOffset: it locates the leaf containing
// the given absolute rune offset. Offsets on a boundary between two leaves
// resolve to the start of the later leaf; the end-of-text offset resolves
// to the end of the last leaf.
func (v View) PointAt(offset int) (Point, error) {
	if offset < 0 || offset > v.total {
		return Point{}, fmt.Errorf("offset %d out of range (text length %d)", offset, v.total)
	}

	remaining := offset
	for i, leaf := range v.leaves {
		if remaining < leaf.runeLen {
			return Point{Leaf: i, Offset: remaining}, nil
		}
		remaining -= leaf.runeLen
	}

	if n := len(v.leaves); n > 0 {
		return Point{Leaf: n - 1, Offset: v.leaves[n-1].runeLen}, nil
	}
	return Point{}, nil
}

// AnnotationAt returns the id of the highlighted leaf covering the given
// absolute offset, or "" when the offset falls in plain text.
func (v View) AnnotationAt(offset int) string {
	if offset < 0 || offset >= v.total {
		return ""
	}
	remaining := offset
	for _, leaf := range v.leaves {
		if remaining < leaf.runeLen {
			return leaf.AnnotationID
		}
		remaining -= leaf.runeLen
	}
	return ""
}

// CaptureSelection resolves a rendering-local selection into a candidate
// with absolute offsets. It returns ok=false for collapsed or empty
// selections; that is the no-candidate outcome, not an error. wrapWidth is
// the container's wrap width in columns and only feeds the anchor screen
// position for popover placement.
func (v View) CaptureSelection(sel Selection, wrapWidth int) (Candidate, bool) {
	start, err := v.AbsoluteOffset(sel.Anchor)
	if err != nil {
		return Candidate{}, false
	}
	end, err := v.AbsoluteOffset(sel.Cursor)
	if err != nil {
		return Candidate{}, false
	}

	if start > end {
		start, end = end, start
	}
	if start == end {
		return Candidate{}, false
	}

	return Candidate{
		Text:   v.slice(start, end),
		Range:  Range{Start: start, End: end},
		Anchor: v.screenPos(start, wrapWidth),
	}, true
}

// slice extracts [start, end) rune offsets from the concatenated leaves.
func (v View) slice(start, end int) string {
	var runes []rune
	for _, leaf := range v.leaves {
		runes = append(runes, []rune(leaf.Text)...)
	}
	return string(runes[start:end])
}

// screenPos derives a row/column anchor from an absolute offset and the
// container wrap width. Hard line breaks in the text reset the column.
func (v View) screenPos(offset, wrapWidth int) ScreenPos {
	row, col := 0, 0
	seen := 0
	for _, leaf := range v.leaves {
		for _, r := range leaf.Text {
			if seen == offset {
				return ScreenPos{Row: row, Col: col}
			}
			seen++
			if r == '\n' {
				row++
				col = 0
				continue
			}
			col++
			if wrapWidth > 0 && col >= wrapWidth {
				row++
				col = 0
			}
		}
	}
	return ScreenPos{Row: row, Col: col}
}
