package compose

import (
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"gqlembed/internal/diag"
	"gqlembed/internal/extract"
	"gqlembed/internal/source"
)

// Segment maps a range of the composed text back to the literal it came from.
type Segment struct {
	Start, End int
	Span       *extract.EmbeddedSpan
	SpanStart  int
}

// ComposedDocument is the root definition followed by every fragment it
// transitively needs, each exactly once, in first-seen order.
type ComposedDocument struct {
	Root      *Node
	Text      string
	Segments  []Segment
	Fragments []*Node
	Digest    uint64

	lineStarts []int
}

// Composition is the outcome of composing one root.
type Composition struct {
	Root *Node
	// Doc is nil when the root is blocked by a cycle.
	Doc        *ComposedDocument
	Diags      []diag.Diagnostic
	TooComplex bool
}

// Compose inlines the fragments of root. The result is a pure function of the
// project: composing twice yields identical text.
func (p *Project) Compose(root *Node) *Composition {
	c := &Composition{Root: root}
	c.Diags = append(c.Diags, p.nodeDiags[root]...)
	if p.blocked[root] {
		return c
	}

	doc := &ComposedDocument{Root: root}
	var b strings.Builder
	appendNode := func(n *Node) {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		start := b.Len()
		b.WriteString(n.Text())
		doc.Segments = append(doc.Segments, Segment{Start: start, End: b.Len(), Span: n.Span, SpanStart: n.Start})
	}
	appendNode(root)

	seen := make(map[string]bool)
	if root.Kind == KindFragment {
		seen[root.Name] = true
	}
	complex := p.complex[root.Span]
	var visit func(n *Node)
	visit = func(n *Node) {
		for _, e := range n.Edges {
			t := e.To
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			doc.Fragments = append(doc.Fragments, t)
			appendNode(t)
			if p.complex[t.Span] {
				complex = true
			}
			visit(t)
		}
	}
	visit(root)

	doc.Text = b.String()
	doc.Digest = xxh3.HashString(doc.Text)
	doc.indexLines()
	c.Doc = doc

	if complex {
		c.TooComplex = true
		d := diag.NewError(diag.CmpTooComplexExpression, root.Site(), tooComplexMessage).
			WithEmbedded(root.Span.Position(root.NameStart))
		c.Diags = append(c.Diags, d)
	}
	return c
}

// Locate maps a byte offset of the composed text to a literal and an offset
// inside that literal's embedded text.
func (d *ComposedDocument) Locate(off int) (*extract.EmbeddedSpan, int) {
	i := sort.Search(len(d.Segments), func(i int) bool { return d.Segments[i].End > off })
	if i == len(d.Segments) {
		last := d.Segments[len(d.Segments)-1]
		return last.Span, last.SpanStart + (last.End - last.Start)
	}
	seg := d.Segments[i]
	if off < seg.Start {
		// разделитель между определениями
		if i == 0 {
			return seg.Span, seg.SpanStart
		}
		prev := d.Segments[i-1]
		return prev.Span, prev.SpanStart + (prev.End - prev.Start)
	}
	return seg.Span, seg.SpanStart + (off - seg.Start)
}

// Offset converts a gqlparser line/column (1-based, column in runes) into a
// byte offset of the composed text.
func (d *ComposedDocument) Offset(line, column int) int {
	if d.lineStarts == nil {
		d.indexLines()
	}
	if line < 1 {
		return 0
	}
	if line > len(d.lineStarts) {
		return len(d.Text)
	}
	off := d.lineStarts[line-1]
	for col := 1; col < column && off < len(d.Text) && d.Text[off] != '\n'; col++ {
		_, size := decodeRune(d.Text[off:])
		off += size
	}
	return off
}

func (d *ComposedDocument) indexLines() {
	d.lineStarts = []int{0}
	for i := 0; i < len(d.Text); i++ {
		if d.Text[i] == '\n' {
			d.lineStarts = append(d.lineStarts, i+1)
		}
	}
}

// HostLocation maps a composed byte offset to host coordinates and the
// embedded line/column of the literal it belongs to.
func (d *ComposedDocument) HostLocation(off int) (source.Span, source.LineCol) {
	sp, emb := d.Locate(off)
	host := sp.HostSpan(emb, emb)
	return host, sp.Position(emb)
}
