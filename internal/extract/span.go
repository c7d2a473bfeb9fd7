package extract

import (
	"fmt"
	"sort"

	"gqlembed/internal/posmap"
	"gqlembed/internal/source"
)

type HoleKind uint8

const (
	// HoleIdentifier is `${Name}`: a plain reference the host can resolve.
	HoleIdentifier HoleKind = iota
	// HoleComplex is any other expression (call, member access, conditional...).
	HoleComplex
)

func (k HoleKind) String() string {
	if k == HoleIdentifier {
		return "identifier"
	}
	return "complex"
}

// Hole is one `${...}` interpolation.
type Hole struct {
	Offset   int         // позиция в Text
	Host     source.Span // весь `${...}`
	Expr     string
	ExprSpan source.Span
	Kind     HoleKind
}

// EmbeddedSpan is one tagged template occurrence.
type EmbeddedSpan struct {
	File    source.FileID
	Path    string
	Version int64
	// Host covers the literal content between the backticks.
	Host  source.Span
	Tag   string
	Raw   string
	Text  string
	Holes []Hole
	// Binding is the declaring variable (`const Binding = gql`...``), if any.
	Binding  string
	Exported bool
	Map      *posmap.Table
	Digest   uint64

	lineStarts []int
}

// ID identifies the span within one unit version.
func (s *EmbeddedSpan) ID() string {
	return fmt.Sprintf("%s:%d", s.Path, s.Host.Start)
}

func (s *EmbeddedSpan) String() string {
	if s.Binding != "" {
		return fmt.Sprintf("%s (%s)", s.ID(), s.Binding)
	}
	return s.ID()
}

// Position converts an offset of Text into a 1-based line/column.
func (s *EmbeddedSpan) Position(off int) source.LineCol {
	s.ensureLines()
	line := sort.Search(len(s.lineStarts), func(i int) bool { return s.lineStarts[i] > off }) - 1
	if line < 0 {
		line = 0
	}
	// #nosec G115 -- embedded documents are far below 4GiB
	return source.LineCol{Line: uint32(line + 1), Col: uint32(off - s.lineStarts[line] + 1)}
}

// Offset converts a 1-based line/column of Text into an offset, clamped to Text.
func (s *EmbeddedSpan) Offset(pos source.LineCol) int {
	s.ensureLines()
	if pos.Line == 0 {
		return 0
	}
	line := int(pos.Line) - 1
	if line >= len(s.lineStarts) {
		return len(s.Text)
	}
	off := s.lineStarts[line] + int(pos.Col) - 1
	end := len(s.Text)
	if line+1 < len(s.lineStarts) {
		end = s.lineStarts[line+1] - 1
	}
	if off > end {
		off = end
	}
	if off < s.lineStarts[line] {
		off = s.lineStarts[line]
	}
	return off
}

// HostSpan maps an embedded range to host coordinates.
func (s *EmbeddedSpan) HostSpan(start, end int) source.Span {
	hs, ok := s.Map.ToHost(start)
	if !ok {
		hs = s.Host.Start
	}
	he, ok := s.Map.ToHost(end)
	if !ok || he < hs {
		he = hs
	}
	return source.Span{File: s.File, Start: hs, End: he}
}

// Contains reports whether the host offset lies inside the literal.
func (s *EmbeddedSpan) Contains(hostOff uint32) bool {
	return s.Host.Contains(hostOff)
}

func (s *EmbeddedSpan) ensureLines() {
	if s.lineStarts != nil {
		return
	}
	s.lineStarts = []int{0}
	for i := 0; i < len(s.Text); i++ {
		if s.Text[i] == '\n' {
			s.lineStarts = append(s.lineStarts, i+1)
		}
	}
}
