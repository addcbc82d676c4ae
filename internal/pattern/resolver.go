package pattern

import (
	"fmt"
	"iter"
)

// Candidate is one expanded file name. Whether it exists is decided by the
// consumer at the moment it tries to open it.
type Candidate struct {
	Index int
	Name  string
}

// Sequence is the lazy, restartable expansion of a Spec.
type Sequence struct {
	spec   Spec
	format string
	first  int
}

// Resolve expands spec without touching the filesystem.
func Resolve(spec Spec) Sequence {
	format, err := goFormat(spec.Template)
	if err != nil {
		// only reachable for specs built without Parse
		format = spec.Template
	}
	return Sequence{spec: spec, format: format, first: spec.First}
}

// Len returns the number of candidates.
func (s Sequence) Len() int {
	if s.first > s.spec.Last {
		return 0
	}
	return s.spec.Last - s.first + 1
}

// At returns the i-th candidate, 0 <= i < Len().
func (s Sequence) At(i int) Candidate {
	index := s.first + i
	return Candidate{Index: index, Name: fmt.Sprintf(s.format, index)}
}

// All yields the candidates in ascending index order. Each call starts over.
func (s Sequence) All() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for i := 0; i < s.Len(); i++ {
			if !yield(s.At(i)) {
				return
			}
		}
	}
}

// From returns the suffix of s starting at index. An index past the end gives
// an empty sequence; one before the start gives s unchanged.
func (s Sequence) From(index int) Sequence {
	if index <= s.first {
		return s
	}
	return Sequence{spec: s.spec, format: s.format, first: index}
}
