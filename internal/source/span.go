package source

import (
	"fmt"
)

type Span struct {
	File  FileID
	Start uint32 // в байтах включительно
	End   uint32 // в байтах не включительно
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Contains reports whether off lies inside the span; the end offset counts as inside
// so that a cursor placed right after the last character still hits the span.
func (s Span) Contains(off uint32) bool {
	return off >= s.Start && off <= s.End
}
