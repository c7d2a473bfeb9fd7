// Package extract finds tagged template literals in host syntax trees.
package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/zeebo/xxh3"

	"gqlembed/internal/host"
	"gqlembed/internal/posmap"
	"gqlembed/internal/source"
)

const DefaultTag = "gql"

// Extractor scans units for templates tagged with Tag.
type Extractor struct {
	Tag   string
	Cache *posmap.Cache
}

func New(tag string, cache *posmap.Cache) *Extractor {
	if tag == "" {
		tag = DefaultTag
	}
	return &Extractor{Tag: tag, Cache: cache}
}

// Extract returns the spans of a in source order. A nil AST (host parse
// failure) yields no spans.
func (e *Extractor) Extract(a *host.AST) []*EmbeddedSpan {
	root := a.Root()
	if root == nil {
		return nil
	}
	var out []*EmbeddedSpan
	e.walk(a, root, &out)
	return out
}

func (e *Extractor) walk(a *host.AST, n *sitter.Node, out *[]*EmbeddedSpan) {
	if n.Type() == "call_expression" {
		if sp := e.spanFor(a, n); sp != nil {
			*out = append(*out, sp)
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		e.walk(a, n.NamedChild(i), out)
	}
}

func (e *Extractor) tagMatches(a *host.AST, fn *sitter.Node) bool {
	switch fn.Type() {
	case "identifier", "member_expression":
		return strings.Join(strings.Fields(a.Text(fn)), "") == e.Tag
	}
	return false
}

func (e *Extractor) spanFor(a *host.AST, call *sitter.Node) *EmbeddedSpan {
	fn := call.ChildByFieldName("function")
	tmpl := call.ChildByFieldName("arguments")
	if fn == nil || tmpl == nil || tmpl.Type() != "template_string" || !e.tagMatches(a, fn) {
		return nil
	}
	start := tmpl.StartByte() + 1
	end := tmpl.EndByte()
	if end > start && a.Content[end-1] == '`' {
		end--
	}
	if end < start {
		end = start
	}
	raw := string(a.Content[start:end])

	var holes []Hole
	var ranges []posmap.HoleRange
	for i := 0; i < int(tmpl.NamedChildCount()); i++ {
		sub := tmpl.NamedChild(i)
		if sub.Type() != "template_substitution" {
			continue
		}
		h := Hole{
			Host: source.Span{File: a.File, Start: sub.StartByte(), End: sub.EndByte()},
			Kind: HoleComplex,
		}
		if expr := sub.NamedChild(0); expr != nil {
			h.Expr = a.Text(expr)
			h.ExprSpan = source.Span{File: a.File, Start: expr.StartByte(), End: expr.EndByte()}
			if expr.Type() == "identifier" && sub.NamedChildCount() == 1 {
				h.Kind = HoleIdentifier
			}
		}
		holes = append(holes, h)
		ranges = append(ranges, posmap.HoleRange{
			Start: int(sub.StartByte() - start),
			End:   int(sub.EndByte() - start),
		})
	}

	dec := e.Cache.Decode(posmap.Key{Path: a.Path, Start: start, Version: a.Version}, raw, ranges)
	for i := range holes {
		holes[i].Offset = dec.Holes[i]
	}

	sp := &EmbeddedSpan{
		File:    a.File,
		Path:    a.Path,
		Version: a.Version,
		Host:    source.Span{File: a.File, Start: start, End: end},
		Tag:     e.Tag,
		Raw:     raw,
		Text:    dec.Text,
		Holes:   holes,
		Map:     dec.Table,
		Digest:  xxh3.HashString(dec.Text),
	}
	// индекс строк строим сразу: спаны читаются параллельно
	sp.ensureLines()
	sp.Binding = declaringBinding(a, call)
	if sp.Binding != "" && a.Symbols != nil {
		sp.Exported = a.Symbols.IsExported(sp.Binding)
	}
	return sp
}

// declaringBinding returns X for `const X = tag`...`` (optionally wrapped in
// `as const`/parentheses), or "".
func declaringBinding(a *host.AST, call *sitter.Node) string {
	n := call
	for p := n.Parent(); p != nil; p = n.Parent() {
		switch p.Type() {
		case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
			n = p
			continue
		case "variable_declarator":
			v := p.ChildByFieldName("value")
			name := p.ChildByFieldName("name")
			if v != nil && name != nil && v.StartByte() == n.StartByte() && v.EndByte() == n.EndByte() && name.Type() == "identifier" {
				return a.Text(name)
			}
		}
		return ""
	}
	return ""
}
