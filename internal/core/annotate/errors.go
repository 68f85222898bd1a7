package annotate

import (
	"errors"
	"fmt"
)

// Sentinel errors for annotation operations.
var (
	// ErrEmptyComment is returned when an annotation is committed without
	// comment text.
	ErrEmptyComment = errors.New("comment text is empty")
)

// RangeError reports a range that violates the offset invariant: out of
// bounds, empty, or inverted. The store is left unchanged.
type RangeError struct {
	Range     Range
	SourceLen int
	Reason    string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range [%d,%d) over text of length %d: %s",
		e.Range.Start, e.Range.End, e.SourceLen, e.Reason)
}

// OverlapError reports a candidate range that intersects an already
// committed annotation. Overlap is a user error signaled back to the
// caller, never silently clipped or merged: clipping would attach a comment
// to a substring the user did not select.
type OverlapError struct {
	Range      Range  // the rejected candidate
	ConflictID string // id of the committed annotation it intersects
	Conflict   Range  // range of that annotation
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("range [%d,%d) overlaps existing annotation %s at [%d,%d)",
		e.Range.Start, e.Range.End, e.ConflictID, e.Conflict.Start, e.Conflict.End)
}

// IsRangeError reports whether err is a RangeError.
func IsRangeError(err error) bool {
	var re *RangeError
	return errors.As(err, &re)
}

// IsOverlapError reports whether err is an OverlapError.
func IsOverlapError(err error) bool {
	var oe *OverlapError
	return errors.As(err, &oe)
}
