package annotate

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Store owns the committed annotation set for one source text. It enforces
// the pairwise non-overlap invariant and hands out annotations in ascending
// start-offset order, which is what makes rendering a single deterministic
// left-to-right pass.
//
// A Store is scoped to one session and is not safe for concurrent use; all
// access is expected to be serialized through the hosting event loop.
type Store struct {
	source    string
	sourceLen int
	anns      []Annotation // ascending by Range.Start

	// Overridable for tests.
	now   func() time.Time
	newID func() string
}

// NewStore creates an empty store over the given source text. The source is
// immutable for the lifetime of the store; all ranges are measured against
// this exact string.
func NewStore(source string) *Store {
	return &Store{
		source:    source,
		sourceLen: RuneLen(source),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Source returns the source text the store's offsets are anchored to.
func (s *Store) Source() string {
	return s.source
}

// SourceLen returns the source length in runes.
func (s *Store) SourceLen() int {
	return s.sourceLen
}

// Len returns the number of committed annotations.
func (s *Store) Len() int {
	return len(s.anns)
}

// Add validates the range and comment, assigns a fresh id, and commits a
// new annotation. It returns a *RangeError for out-of-bounds, empty, or
// inverted ranges, ErrEmptyComment for blank comment text, and an
// *OverlapError when the range intersects a committed annotation. On any
// error the store is left unchanged.
func (s *Store) Add(r Range, comment string) (Annotation, error) {
	if err := r.Validate(s.sourceLen); err != nil {
		return Annotation{}, err
	}
	if comment == "" {
		return Annotation{}, ErrEmptyComment
	}

	// Index of the first committed annotation starting at or after r.Start.
	// Only the neighbors on either side can intersect the candidate.
	idx := sort.Search(len(s.anns), func(i int) bool {
		return s.anns[i].Range.Start >= r.Start
	})
	if idx > 0 && s.anns[idx-1].Range.Overlaps(r) {
		prev := s.anns[idx-1]
		return Annotation{}, &OverlapError{Range: r, ConflictID: prev.ID, Conflict: prev.Range}
	}
	if idx < len(s.anns) && s.anns[idx].Range.Overlaps(r) {
		next := s.anns[idx]
		return Annotation{}, &OverlapError{Range: r, ConflictID: next.ID, Conflict: next.Range}
	}

	ann := Annotation{
		ID:        s.newID(),
		Range:     r,
		Comment:   comment,
		CreatedAt: s.now(),
	}

	s.anns = append(s.anns, Annotation{})
	copy(s.anns[idx+1:], s.anns[idx:])
	s.anns[idx] = ann

	return ann, nil
}

// List returns the committed annotations sorted ascending by start offset.
// Iteration order is always positional, never insertion order. The returned
// slice is a copy.
func (s *Store) List() []Annotation {
	out := make([]Annotation, len(s.anns))
	copy(out, s.anns)
	return out
}

// Get returns the annotation with the given id.
func (s *Store) Get(id string) (Annotation, bool) {
	for _, ann := range s.anns {
		if ann.ID == id {
			return ann, true
		}
	}
	return Annotation{}, false
}

// At returns the annotation covering the given rune offset, if any. Used by
// hover lookups.
func (s *Store) At(offset int) (Annotation, bool) {
	idx := sort.Search(len(s.anns), func(i int) bool {
		return s.anns[i].Range.End > offset
	})
	if idx < len(s.anns) && s.anns[idx].Range.Contains(offset) {
		return s.anns[idx], true
	}
	return Annotation{}, false
}

// Remove deletes the annotation with the given id and reports whether it
// was present. This is the rollback path for the optimistic-commit
// discipline: a failed persistence call undoes the local commit with
// Remove, leaving the store in its previous valid state.
func (s *Store) Remove(id string) bool {
	for i, ann := range s.anns {
		if ann.ID == id {
			s.anns = append(s.anns[:i], s.anns[i+1:]...)
			return true
		}
	}
	return false
}

// AdoptID replaces a locally-assigned annotation id with the identifier the
// persistence backend returned, keeping the two id spaces consistent.
// Reports whether the old id was found.
func (s *Store) AdoptID(oldID, newID string) bool {
	if oldID == "" || newID == "" {
		return false
	}
	for i, ann := range s.anns {
		if ann.ID == oldID {
			s.anns[i].ID = newID
			return true
		}
	}
	return false
}

// Restore commits a previously persisted annotation without assigning a new
// id, preserving its recorded creation time. Used when rehydrating a
// session from the feedback store. The non-overlap invariant is still
// enforced.
func (s *Store) Restore(ann Annotation) error {
	if err := ann.Range.Validate(s.sourceLen); err != nil {
		return err
	}
	if ann.Comment == "" {
		return ErrEmptyComment
	}

	idx := sort.Search(len(s.anns), func(i int) bool {
		return s.anns[i].Range.Start >= ann.Range.Start
	})
	if idx > 0 && s.anns[idx-1].Range.Overlaps(ann.Range) {
		prev := s.anns[idx-1]
		return &OverlapError{Range: ann.Range, ConflictID: prev.ID, Conflict: prev.Range}
	}
	if idx < len(s.anns) && s.anns[idx].Range.Overlaps(ann.Range) {
		next := s.anns[idx]
		return &OverlapError{Range: ann.Range, ConflictID: next.ID, Conflict: next.Range}
	}

	s.anns = append(s.anns, Annotation{})
	copy(s.anns[idx+1:], s.anns[idx:])
	s.anns[idx] = ann
	return nil
}

// Segments composes the source text with the committed annotation set.
func (s *Store) Segments() []Segment {
	return Render(s.source, s.anns)
}
