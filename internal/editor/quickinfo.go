package editor

import (
	"context"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"gqlembed/internal/source"
)

// QuickInfo is the hover text of the name under the cursor.
type QuickInfo struct {
	Text string
	Doc  string
	Span source.Span
}

// QuickInfo resolves the schema field, type, directive or fragment named at
// a host offset.
func (s *Surface) QuickInfo(ctx context.Context, path string, off uint32) (*QuickInfo, bool) {
	c, ok := s.cursorAt(ctx, path, off)
	if !ok {
		return nil, false
	}
	text := c.span.Text
	start, end := wordAt(text, c.emb)
	if start == end {
		return nil, false
	}
	word := text[start:end]

	var sch *ast.Schema
	if c.snap != nil {
		sch = c.snap.Schema
	}
	cc := scanContext(sch, text[:start])

	var info *QuickInfo
	switch cc.kind {
	case ctxField:
		if alias, ok := aliasTarget(text, end); ok {
			word = alias
		}
		info = fieldInfo(sch, cc.parent, word)
	case ctxTypeCondition:
		info = typeInfo(sch, word)
	case ctxDirective:
		if sch != nil {
			if d := sch.Directives[word]; d != nil {
				info = &QuickInfo{Text: "@" + d.Name, Doc: d.Description}
			}
		}
	case ctxSpread:
		if n, ok := c.project.Fragment(word); ok {
			info = &QuickInfo{Text: "fragment " + n.Name + " on " + n.TypeCondition}
		}
	}
	if info == nil {
		return nil, false
	}
	info.Span = c.span.HostSpan(start, end)

	if !s.current(c) {
		return nil, false
	}
	return info, true
}

// aliasTarget returns `field` for a cursor on `alias` in `alias: field`.
func aliasTarget(text string, end int) (string, bool) {
	rest := strings.TrimLeft(text[end:], " \t\r\n,")
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n,")
	s, e := wordAt(rest, 0)
	if s == e {
		return "", false
	}
	return rest[s:e], true
}

func fieldInfo(s *ast.Schema, parent, name string) *QuickInfo {
	if name == "__typename" && parent != "" {
		return &QuickInfo{Text: parent + ".__typename: String!"}
	}
	if s == nil || parent == "" {
		return nil
	}
	def := s.Types[parent]
	if def == nil {
		return nil
	}
	f := def.Fields.ForName(name)
	if f == nil {
		return nil
	}
	return &QuickInfo{Text: parent + "." + f.Name + ": " + f.Type.String(), Doc: f.Description}
}

func typeInfo(s *ast.Schema, name string) *QuickInfo {
	if s == nil {
		return nil
	}
	def := s.Types[name]
	if def == nil {
		return nil
	}
	return &QuickInfo{Text: kindLabel(def.Kind) + " " + def.Name, Doc: def.Description}
}
