package annotate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func concat(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		source string
		anns   []Annotation
		want   []Segment
	}{
		{
			name:   "no annotations",
			source: "The quick brown fox",
			want: []Segment{
				{Kind: SegmentPlain, Text: "The quick brown fox"},
			},
		},
		{
			name:   "single annotation mid-text",
			source: "The quick brown fox",
			anns: []Annotation{
				{ID: "id1", Range: Range{Start: 4, End: 9}, Comment: "adj"},
			},
			want: []Segment{
				{Kind: SegmentPlain, Text: "The "},
				{Kind: SegmentHighlighted, Text: "quick", AnnotationID: "id1"},
				{Kind: SegmentPlain, Text: " brown fox"},
			},
		},
		{
			name:   "annotation at start",
			source: "abcdef",
			anns: []Annotation{
				{ID: "id1", Range: Range{Start: 0, End: 3}},
			},
			want: []Segment{
				{Kind: SegmentHighlighted, Text: "abc", AnnotationID: "id1"},
				{Kind: SegmentPlain, Text: "def"},
			},
		},
		{
			name:   "annotation at end",
			source: "abcdef",
			anns: []Annotation{
				{ID: "id1", Range: Range{Start: 3, End: 6}},
			},
			want: []Segment{
				{Kind: SegmentPlain, Text: "abc"},
				{Kind: SegmentHighlighted, Text: "def", AnnotationID: "id1"},
			},
		},
		{
			name:   "touching annotations produce no empty plain run",
			source: "abcdef",
			anns: []Annotation{
				{ID: "id1", Range: Range{Start: 0, End: 3}},
				{ID: "id2", Range: Range{Start: 3, End: 6}},
			},
			want: []Segment{
				{Kind: SegmentHighlighted, Text: "abc", AnnotationID: "id1"},
				{Kind: SegmentHighlighted, Text: "def", AnnotationID: "id2"},
			},
		},
		{
			name:   "whole text annotated",
			source: "abc",
			anns: []Annotation{
				{ID: "id1", Range: Range{Start: 0, End: 3}},
			},
			want: []Segment{
				{Kind: SegmentHighlighted, Text: "abc", AnnotationID: "id1"},
			},
		},
		{
			name:   "multibyte runes split on rune boundaries",
			source: "héllo wörld",
			anns: []Annotation{
				{ID: "id1", Range: Range{Start: 6, End: 11}},
			},
			want: []Segment{
				{Kind: SegmentPlain, Text: "héllo "},
				{Kind: SegmentHighlighted, Text: "wörld", AnnotationID: "id1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.source, tt.anns)
			assert.Equal(t, tt.want, got)

			// Round-trip law: concatenated segments reproduce the source.
			assert.Equal(t, tt.source, concat(got))
		})
	}
}

func TestRenderScenario(t *testing.T) {
	// Scenario A then C from observed behavior: two annotations over
	// "The quick brown fox" produce three plain runs interleaved with two
	// highlighted runs, and the concatenation is still the original
	// 19-character string.
	s := newTestStore("The quick brown fox")

	quick, err := s.Add(Range{Start: 4, End: 9}, "adj")
	require.NoError(t, err)
	brown, err := s.Add(Range{Start: 10, End: 15}, "color")
	require.NoError(t, err)

	segs := s.Segments()
	require.Len(t, segs, 5)
	assert.Equal(t, Segment{Kind: SegmentPlain, Text: "The "}, segs[0])
	assert.Equal(t, Segment{Kind: SegmentHighlighted, Text: "quick", AnnotationID: quick.ID}, segs[1])
	assert.Equal(t, Segment{Kind: SegmentPlain, Text: " "}, segs[2])
	assert.Equal(t, Segment{Kind: SegmentHighlighted, Text: "brown", AnnotationID: brown.ID}, segs[3])
	assert.Equal(t, Segment{Kind: SegmentPlain, Text: " fox"}, segs[4])

	assert.Equal(t, "The quick brown fox", concat(segs))
	assert.Equal(t, 19, len(concat(segs)))
}

func TestRenderIdempotent(t *testing.T) {
	source := "The quick brown fox"
	anns := []Annotation{
		{ID: "id1", Range: Range{Start: 4, End: 9}},
		{ID: "id2", Range: Range{Start: 10, End: 15}},
	}

	first := Render(source, anns)
	second := Render(source, anns)
	assert.Equal(t, first, second)
}

func TestRenderPanicsOnInvalidInput(t *testing.T) {
	// The renderer is only ever handed store output; anything unsorted or
	// overlapping is a bug elsewhere and must fail loudly.
	assert.Panics(t, func() {
		Render("abcdef", []Annotation{
			{ID: "id1", Range: Range{Start: 3, End: 6}},
			{ID: "id2", Range: Range{Start: 0, End: 2}},
		})
	})

	assert.Panics(t, func() {
		Render("abcdef", []Annotation{
			{ID: "id1", Range: Range{Start: 0, End: 4}},
			{ID: "id2", Range: Range{Start: 2, End: 6}},
		})
	})

	assert.Panics(t, func() {
		Render("abc", []Annotation{
			{ID: "id1", Range: Range{Start: 0, End: 9}},
		})
	})
}
