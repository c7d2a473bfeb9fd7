package compose

import (
	"fmt"
	"unicode/utf8"

	"github.com/vektah/gqlparser/v2/ast"

	"gqlembed/internal/extract"
	"gqlembed/internal/source"
)

type Kind uint8

const (
	KindOperation Kind = iota
	KindFragment
	// KindBroken is a span whose text did not parse; it carries the whole text.
	KindBroken
)

func (k Kind) String() string {
	switch k {
	case KindOperation:
		return "operation"
	case KindFragment:
		return "fragment"
	}
	return "broken"
}

type EdgeKind uint8

const (
	EdgeSpread EdgeKind = iota
	EdgeHole
)

// Edge points from a node to a fragment it pulls in.
type Edge struct {
	To   *Node
	Kind EdgeKind
	// Site is where the reference is written in host coordinates.
	Site source.Span
}

// Node is one top-level definition of an embedded document.
type Node struct {
	ID            int
	Kind          Kind
	Name          string
	Operation     ast.Operation
	TypeCondition string
	Span          *extract.EmbeddedSpan
	// Start/End delimit the definition inside Span.Text.
	Start, End int
	// NameStart/NameEnd locate the name (or the definition keyword when anonymous).
	NameStart, NameEnd int
	Edges              []Edge

	spreads []spreadSite
}

type spreadSite struct {
	name   string
	offset int
}

// Text returns the definition source.
func (n *Node) Text() string {
	return n.Span.Text[n.Start:n.End]
}

// Site returns the host location of the definition name.
func (n *Node) Site() source.Span {
	return n.Span.HostSpan(n.NameStart, n.NameEnd)
}

// Label is a short human readable description.
func (n *Node) Label() string {
	switch n.Kind {
	case KindFragment:
		return "fragment " + n.Name
	case KindOperation:
		if n.Name == "" {
			return "anonymous " + string(n.Operation)
		}
		return fmt.Sprintf("%s %s", n.Operation, n.Name)
	}
	return "document " + n.Span.ID()
}

func (n *Node) addEdge(e Edge) {
	for _, prev := range n.Edges {
		if prev.To == e.To {
			return
		}
	}
	n.Edges = append(n.Edges, e)
}

// runeOffsets converts gqlparser rune offsets into byte offsets of text.
type runeOffsets struct {
	text  string
	ascii bool
}

func newRuneOffsets(text string) runeOffsets {
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	return runeOffsets{text: text, ascii: ascii}
}

func (r runeOffsets) byteOffset(runeOff int) int {
	if r.ascii {
		if runeOff > len(r.text) {
			return len(r.text)
		}
		return runeOff
	}
	n := 0
	for i := range r.text {
		if n == runeOff {
			return i
		}
		n++
	}
	return len(r.text)
}

func decodeRune(s string) (rune, int) {
	return utf8.DecodeRuneInString(s)
}
