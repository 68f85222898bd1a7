// Package feedback turns a session's annotations into the plain-text
// summary handed to the optimizer on a re-optimization pass.
package feedback

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/colonyops/margin/internal/core/annotate"
	"github.com/colonyops/margin/internal/core/session"
)

// ansiStripPattern matches ANSI escape sequences for stripping.
var ansiStripPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// Build creates a formatted feedback string from a session's annotations.
// Annotations arrive already sorted by start offset; the summary preserves
// that order so feedback reads in document order.
// Format:
//
//	Session: <name>
//	Comments: <count>
//
//	Offsets <start>-<end>:
//	> <annotated text>
//	<comment text>
//
//	Offsets <start>-<end>:
//	> <annotated text>
//	<comment>
func Build(sess *session.Session, anns []annotate.Annotation) string {
	if sess == nil || len(anns) == 0 {
		return ""
	}

	source := []rune(sess.Text())

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Session: %s\n", sess.Name))
	b.WriteString(fmt.Sprintf("Comments: %d\n\n", len(anns)))

	for i, ann := range anns {
		if i > 0 {
			b.WriteString("\n")
		}

		b.WriteString(fmt.Sprintf("Offsets %d-%d:\n", ann.Range.Start, ann.Range.End))

		text := quotedText(source, ann.Range)
		for _, line := range strings.Split(text, "\n") {
			b.WriteString(fmt.Sprintf("> %s\n", line))
		}

		b.WriteString(ann.Comment)
		b.WriteString("\n")
	}

	return b.String()
}

// quotedText extracts the annotated run from the source, clamped to bounds
// in case the session text changed underneath stale annotations.
func quotedText(source []rune, r annotate.Range) string {
	start, end := r.Start, r.End
	if start < 0 {
		start = 0
	}
	if end > len(source) {
		end = len(source)
	}
	if start >= end {
		return ""
	}
	return ansiStripPattern.ReplaceAllString(string(source[start:end]), "")
}
