package annotate

import "fmt"

// SegmentKind distinguishes plain text runs from highlighted runs.
type SegmentKind int

const (
	SegmentPlain SegmentKind = iota
	SegmentHighlighted
)

// String returns the string representation of the segment kind.
func (k SegmentKind) String() string {
	switch k {
	case SegmentPlain:
		return "plain"
	case SegmentHighlighted:
		return "highlighted"
	default:
		return "unknown"
	}
}

// Segment is a contiguous run of either plain or highlighted source text.
// AnnotationID is set exactly when Kind is SegmentHighlighted. Concatenating
// a render's segments in order reproduces the source text.
type Segment struct {
	Kind         SegmentKind
	Text         string
	AnnotationID string
}

// Render composes the source text with a sorted, non-overlapping annotation
// set into an ordered segment sequence covering the text exactly once.
//
// The algorithm is a single left-to-right scan: for each annotation, emit
// the plain run between the cursor and the annotation start, then the
// highlighted run, then advance the cursor. It is O(n + k) and correct only
// because the store guarantees ascending, pairwise non-overlapping input;
// handing it anything else is a programming error and panics rather than
// silently producing corrupted offsets.
//
// Determinism: the same (source, annotations) pair always yields a
// structurally identical sequence.
func Render(source string, anns []Annotation) []Segment {
	runes := []rune(source)
	segments := make([]Segment, 0, 2*len(anns)+1)

	cursor := 0
	for _, ann := range anns {
		r := ann.Range
		if r.Start < cursor || r.Start >= r.End || r.End > len(runes) {
			panic(fmt.Sprintf("annotate: render requires sorted non-overlapping annotations, got [%d,%d) at cursor %d", r.Start, r.End, cursor))
		}
		if r.Start > cursor {
			segments = append(segments, Segment{
				Kind: SegmentPlain,
				Text: string(runes[cursor:r.Start]),
			})
		}
		segments = append(segments, Segment{
			Kind:         SegmentHighlighted,
			Text:         string(runes[r.Start:r.End]),
			AnnotationID: ann.ID,
		})
		cursor = r.End
	}

	if cursor < len(runes) {
		segments = append(segments, Segment{
			Kind: SegmentPlain,
			Text: string(runes[cursor:]),
		})
	}

	return segments
}
