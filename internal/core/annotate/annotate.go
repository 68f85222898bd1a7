// Package annotate implements the text annotation engine: comment ranges
// anchored to character offsets in an immutable source text, an ordered
// non-overlapping store of committed annotations, and composition of the
// source text with those ranges into renderable segments.
//
// All offsets in this package are rune (Unicode code point) offsets into the
// source text. The same unit is used by the offset mapper, the store, and
// the renderer; mixing units silently corrupts ranges, so callers must not
// convert to byte or UTF-16 offsets at any boundary.
package annotate

import (
	"time"
	"unicode/utf8"
)

// Range is a half-open interval [Start, End) of rune offsets over a source
// text. A valid range satisfies 0 <= Start < End <= len(source in runes).
type Range struct {
	Start int `json:"start_offset"`
	End   int `json:"end_offset"`
}

// Len returns the number of runes the range covers.
func (r Range) Len() int {
	return r.End - r.Start
}

// Contains reports whether the given rune offset falls inside the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// Overlaps reports whether two ranges intersect. Ranges that merely touch
// at a boundary (r.End == o.Start or o.End == r.Start) do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Validate checks the range against the source length in runes.
func (r Range) Validate(sourceLen int) error {
	switch {
	case r.Start < 0:
		return &RangeError{Range: r, SourceLen: sourceLen, Reason: "start is negative"}
	case r.Start >= r.End:
		return &RangeError{Range: r, SourceLen: sourceLen, Reason: "range is empty or inverted"}
	case r.End > sourceLen:
		return &RangeError{Range: r, SourceLen: sourceLen, Reason: "end is past the end of the text"}
	}
	return nil
}

// Slice extracts the range's substring from source.
func (r Range) Slice(source string) string {
	runes := []rune(source)
	if r.Start < 0 || r.End > len(runes) || r.Start >= r.End {
		return ""
	}
	return string(runes[r.Start:r.End])
}

// Annotation is a committed comment bound to a range of the source text.
// Annotations are immutable after commit; the only permitted mutation is id
// adoption when a persisted copy comes back with a different identifier.
type Annotation struct {
	ID        string    `json:"id"`
	Range     Range     `json:"range"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// RuneLen returns the length of s in runes, the offset unit used by this
// package.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
