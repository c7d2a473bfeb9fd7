package editor

import (
	"context"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"gqlembed/internal/compose"
	"gqlembed/internal/extract"
	"gqlembed/internal/schema"
	"gqlembed/internal/source"
)

type CompletionKind string

const (
	KindKeyword   CompletionKind = "keyword"
	KindField     CompletionKind = "field"
	KindFragment  CompletionKind = "fragment"
	KindType      CompletionKind = "type"
	KindDirective CompletionKind = "directive"
)

type Completion struct {
	Name   string
	Kind   CompletionKind
	Detail string
}

var topLevelKeywords = []string{"fragment", "mutation", "query", "subscription"}

// cursor is a host offset resolved to a point inside one embedded literal.
type cursor struct {
	u       *unit
	gen     uint64
	span    *extract.EmbeddedSpan
	emb     int
	project *compose.Project
	snap    *schema.Snapshot
}

// cursorAt maps a host offset of path into the literal that contains it.
// Offsets outside literals, and inside `${...}`, belong to the host.
func (s *Surface) cursorAt(ctx context.Context, path string, off uint32) (*cursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[source.NormalizePath(path)]
	if !ok {
		return nil, false
	}
	s.analyzeLocked(ctx)
	for _, sp := range u.spans {
		if !sp.Contains(off) {
			continue
		}
		emb, ok := sp.Map.ToEmbedded(off)
		if !ok {
			return nil, false
		}
		return &cursor{u: u, gen: u.gen, span: sp, emb: emb, project: s.project, snap: s.snapshot()}, true
	}
	return nil, false
}

// current reports whether the unit is unchanged since the cursor was taken.
func (s *Surface) current(c *cursor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[c.u.path]
	return ok && u == c.u && u.gen == c.gen
}

// Completions lists candidates at a host offset. The boolean is false when
// the offset is not inside an embedded document, or when the unit changed
// while the list was computed.
func (s *Surface) Completions(ctx context.Context, path string, off uint32) ([]Completion, bool) {
	c, ok := s.cursorAt(ctx, path, off)
	if !ok {
		return nil, false
	}
	text := c.span.Text
	start, _ := wordAt(text, c.emb)
	prefix := text[start:c.emb]

	var sch *ast.Schema
	if c.snap != nil {
		sch = c.snap.Schema
	}
	cc := scanContext(sch, text[:start])

	var out []Completion
	switch cc.kind {
	case ctxTopLevel:
		for _, kw := range topLevelKeywords {
			out = append(out, Completion{Name: kw, Kind: KindKeyword})
		}
	case ctxSpread:
		out = append(out, Completion{Name: "on", Kind: KindKeyword})
		for _, name := range c.project.FragmentNames() {
			n, _ := c.project.Fragment(name)
			out = append(out, Completion{Name: name, Kind: KindFragment, Detail: "fragment " + name + " on " + n.TypeCondition})
		}
	case ctxTypeCondition:
		out = typeCompletions(sch)
	case ctxDirective:
		out = directiveCompletions(sch)
	case ctxField:
		out = fieldCompletions(sch, cc.parent)
	}
	out = filterPrefix(out, prefix)

	if !s.current(c) {
		return nil, false
	}
	return out, true
}

func fieldCompletions(s *ast.Schema, parent string) []Completion {
	var out []Completion
	if s != nil {
		if def := s.Types[parent]; def != nil {
			for _, f := range def.Fields {
				if strings.HasPrefix(f.Name, "__") {
					continue
				}
				out = append(out, Completion{Name: f.Name, Kind: KindField, Detail: f.Type.String()})
			}
		}
	}
	return append(out, Completion{Name: "__typename", Kind: KindField, Detail: "String!"})
}

// typeCompletions lists the types a fragment can be declared on.
func typeCompletions(s *ast.Schema) []Completion {
	if s == nil {
		return nil
	}
	var out []Completion
	for name, def := range s.Types {
		if strings.HasPrefix(name, "__") {
			continue
		}
		switch def.Kind {
		case ast.Object, ast.Interface, ast.Union:
			out = append(out, Completion{Name: name, Kind: KindType, Detail: kindLabel(def.Kind)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func directiveCompletions(s *ast.Schema) []Completion {
	if s == nil {
		return nil
	}
	var out []Completion
	for name, d := range s.Directives {
		if !executable(d) {
			continue
		}
		out = append(out, Completion{Name: name, Kind: KindDirective, Detail: d.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func executable(d *ast.DirectiveDefinition) bool {
	for _, loc := range d.Locations {
		switch loc {
		case ast.LocationField, ast.LocationFragmentSpread, ast.LocationInlineFragment,
			ast.LocationQuery, ast.LocationMutation, ast.LocationSubscription, ast.LocationFragmentDefinition:
			return true
		}
	}
	return false
}

func filterPrefix(items []Completion, prefix string) []Completion {
	if prefix == "" {
		return items
	}
	out := items[:0]
	for _, it := range items {
		if strings.HasPrefix(it.Name, prefix) {
			out = append(out, it)
		}
	}
	return out
}

func kindLabel(k ast.DefinitionKind) string {
	switch k {
	case ast.Object:
		return "type"
	case ast.InputObject:
		return "input"
	}
	return strings.ToLower(string(k))
}
