// Package source holds the location types shared by the parser, the analyzer
// and the project engine.
package source

import "fmt"

// Span is a half-open byte range [Start, End) inside one document.
type Span struct {
	Start int
	End   int
}

// Contains reports whether offset falls inside the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// Spanned pairs a value with the location it was read from.
type Spanned[T any] struct {
	Value T
	Span  Span
}

// Position converts a byte offset into a 0-based line and column.
func Position(content string, offset int) (line, col int) {
	if offset > len(content) {
		offset = len(content)
	}
	for i := 0; i < offset; i++ {
		if content[i] == '\n' {
			line++
			col = 0
			continue
		}
		col++
	}
	return line, col
}
