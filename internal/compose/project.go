// Package compose links embedded documents into a composition graph and
// inlines the fragments every operation or fragment needs.
package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"gqlembed/internal/diag"
	"gqlembed/internal/extract"
	"gqlembed/internal/host"
	"gqlembed/internal/source"
)

const tooComplexMessage = "This operation or fragment has too complex dynamic expression(s) to analyze."

// Options tune fragment resolution.
type Options struct {
	// GlobalFragments lets `...Name` resolve to any fragment defined in scope,
	// not only to fragments of the same literal or of interpolated documents.
	GlobalFragments bool
}

type holeTarget struct {
	span *extract.EmbeddedSpan
	site source.Span
}

// Project is an immutable composition graph over a set of spans. It is rebuilt,
// never mutated, when the underlying spans change.
type Project struct {
	Spans []*extract.EmbeddedSpan
	Nodes []*Node
	// Loose holds engine diagnostics of spans without definitions.
	Loose []diag.Diagnostic

	opts      Options
	bySpan    map[*extract.EmbeddedSpan][]*Node
	byBinding map[host.DocumentRef]*extract.EmbeddedSpan
	fragments map[string][]*Node
	holes     map[*extract.EmbeddedSpan][]holeTarget
	complex   map[*extract.EmbeddedSpan]bool
	nodeDiags map[*Node][]diag.Diagnostic
	blocked   map[*Node]bool
	dg        *depGraph
}

// Build parses every span, resolves holes and spreads and analyses the graph.
func Build(spans []*extract.EmbeddedSpan, resolver host.Resolver, opts Options) *Project {
	p := &Project{
		Spans:     spans,
		opts:      opts,
		bySpan:    make(map[*extract.EmbeddedSpan][]*Node, len(spans)),
		byBinding: make(map[host.DocumentRef]*extract.EmbeddedSpan),
		fragments: make(map[string][]*Node),
		holes:     make(map[*extract.EmbeddedSpan][]holeTarget),
		complex:   make(map[*extract.EmbeddedSpan]bool),
		nodeDiags: make(map[*Node][]diag.Diagnostic),
		blocked:   make(map[*Node]bool),
	}
	for _, sp := range spans {
		if sp.Binding != "" {
			p.byBinding[host.DocumentRef{Path: sp.Path, Name: sp.Binding}] = sp
		}
		for _, n := range parseSpan(sp) {
			n.ID = len(p.Nodes)
			p.Nodes = append(p.Nodes, n)
			p.bySpan[sp] = append(p.bySpan[sp], n)
			if n.Kind == KindFragment {
				p.fragments[n.Name] = append(p.fragments[n.Name], n)
			}
		}
	}
	for _, sp := range spans {
		p.resolveHoles(sp, resolver)
	}
	for _, n := range p.Nodes {
		p.resolveEdges(n)
	}
	p.reportDuplicates()
	p.dg = newDepGraph(p.Nodes)
	p.reportCycles()
	return p
}

// NodesOf returns the definitions parsed from sp in source order.
func (p *Project) NodesOf(sp *extract.EmbeddedSpan) []*Node {
	return p.bySpan[sp]
}

// Fragment returns the first definition of the named fragment.
func (p *Project) Fragment(name string) (*Node, bool) {
	defs := p.fragments[name]
	if len(defs) == 0 {
		return nil, false
	}
	return defs[0], true
}

// FragmentNames lists every fragment name in scope, sorted.
func (p *Project) FragmentNames() []string {
	names := make([]string, 0, len(p.fragments))
	for name := range p.fragments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseSpan splits one literal into definition nodes.
func parseSpan(sp *extract.EmbeddedSpan) []*Node {
	if strings.TrimSpace(sp.Text) == "" {
		return nil
	}
	doc, err := parser.ParseQuery(&ast.Source{Name: sp.ID(), Input: sp.Text})
	if err != nil {
		return []*Node{{Kind: KindBroken, Span: sp, Start: 0, End: len(sp.Text), NameStart: 0, NameEnd: 0}}
	}
	ro := newRuneOffsets(sp.Text)
	var nodes []*Node
	for _, op := range doc.Operations {
		start := ro.byteOffset(op.Position.Start)
		n := &Node{Kind: KindOperation, Name: op.Name, Operation: op.Operation, Span: sp, Start: start}
		n.NameStart, n.NameEnd = nameRange(sp.Text, start, op.Name, string(op.Operation))
		collectSpreads(op.SelectionSet, ro, &n.spreads)
		nodes = append(nodes, n)
	}
	for _, fr := range doc.Fragments {
		start := ro.byteOffset(fr.Position.Start)
		n := &Node{Kind: KindFragment, Name: fr.Name, TypeCondition: fr.TypeCondition, Span: sp, Start: start}
		n.NameStart, n.NameEnd = nameRange(sp.Text, start, fr.Name, "fragment")
		collectSpreads(fr.SelectionSet, ro, &n.spreads)
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 {
		return nil
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Start < nodes[j].Start })
	// ведущие пробелы и комментарии относим к первому определению
	nodes[0].Start = 0
	for i, n := range nodes {
		if i+1 < len(nodes) {
			n.End = nodes[i+1].Start
		} else {
			n.End = len(sp.Text)
		}
	}
	return nodes
}

func nameRange(text string, start int, name, keyword string) (int, int) {
	if name != "" {
		if i := strings.Index(text[start:], name); i >= 0 {
			return start + i, start + i + len(name)
		}
	}
	if keyword != "" && strings.HasPrefix(text[start:], keyword) {
		return start, start + len(keyword)
	}
	return start, start + 1
}

func collectSpreads(set ast.SelectionSet, ro runeOffsets, out *[]spreadSite) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			collectSpreads(s.SelectionSet, ro, out)
		case *ast.InlineFragment:
			collectSpreads(s.SelectionSet, ro, out)
		case *ast.FragmentSpread:
			off := 0
			if s.Position != nil {
				off = spreadStart(ro.text, ro.byteOffset(s.Position.Start))
			}
			*out = append(*out, spreadSite{name: s.Name, offset: off})
		}
	}
}

// spreadStart moves from the fragment name back to its `...` token.
func spreadStart(text string, nameOff int) int {
	i := nameOff
	for i > 0 && strings.ContainsRune(" \t\n\r,", rune(text[i-1])) {
		i--
	}
	if i >= 3 && text[i-3:i] == "..." {
		return i - 3
	}
	return nameOff
}

// resolveHoles maps the identifier holes of sp to the spans they name.
func (p *Project) resolveHoles(sp *extract.EmbeddedSpan, resolver host.Resolver) {
	for _, h := range sp.Holes {
		if h.Kind == extract.HoleComplex {
			p.complex[sp] = true
			continue
		}
		var ref host.DocumentRef
		ok := false
		if resolver != nil {
			ref, ok = resolver.ResolveIdentifier(h.Expr, host.Scope{Path: sp.Path})
		}
		if !ok {
			d := diag.NewError(diag.CmpUnresolvedInterpolation, h.ExprSpan,
				fmt.Sprintf("Cannot resolve interpolation %q to a document.", h.Expr)).
				WithEmbedded(sp.Position(h.Offset))
			p.attach(sp, d)
			continue
		}
		target, ok := p.byBinding[ref]
		if !ok {
			// идентификатор есть, но это не документ: значение вычисляется динамически
			p.complex[sp] = true
			continue
		}
		p.holes[sp] = append(p.holes[sp], holeTarget{span: target, site: h.Host})
	}
}

// attach binds a span-level diagnostic to the first definition of sp.
func (p *Project) attach(sp *extract.EmbeddedSpan, d diag.Diagnostic) {
	if nodes := p.bySpan[sp]; len(nodes) > 0 {
		p.nodeDiags[nodes[0]] = append(p.nodeDiags[nodes[0]], d)
		return
	}
	p.Loose = append(p.Loose, d)
}

// resolveEdges adds spread edges in document order, then the remaining
// fragments of interpolated documents.
func (p *Project) resolveEdges(n *Node) {
	sp := n.Span
	for _, s := range n.spreads {
		target := p.lookupFragment(sp, s.name)
		if target == nil {
			continue
		}
		end := s.offset + strings.Index(sp.Text[s.offset:], s.name) + len(s.name)
		n.addEdge(Edge{To: target, Kind: EdgeSpread, Site: sp.HostSpan(s.offset, end)})
	}
	for _, ht := range p.holes[sp] {
		for _, t := range p.bySpan[ht.span] {
			if t.Kind == KindFragment {
				n.addEdge(Edge{To: t, Kind: EdgeHole, Site: ht.site})
			}
		}
	}
}

// lookupFragment resolves `...name` seen in sp: same literal first, then
// interpolated literals, then (optionally) the whole scope.
func (p *Project) lookupFragment(sp *extract.EmbeddedSpan, name string) *Node {
	for _, n := range p.bySpan[sp] {
		if n.Kind == KindFragment && n.Name == name {
			return n
		}
	}
	for _, ht := range p.holes[sp] {
		for _, n := range p.bySpan[ht.span] {
			if n.Kind == KindFragment && n.Name == name {
				return n
			}
		}
	}
	if p.opts.GlobalFragments {
		if defs := p.fragments[name]; len(defs) > 0 {
			return defs[0]
		}
	}
	return nil
}

// reportDuplicates emits one diagnostic per fragment name defined more than
// once, with a note at every other definition site.
func (p *Project) reportDuplicates() {
	for _, name := range p.FragmentNames() {
		defs := p.fragments[name]
		if len(defs) < 2 {
			continue
		}
		first := defs[0]
		d := diag.NewError(diag.CmpDuplicateFragment, first.Site(),
			fmt.Sprintf("There are multiple fragments named %q (%d definitions).", name, len(defs))).
			WithEmbedded(first.Span.Position(first.NameStart))
		for _, other := range defs[1:] {
			d = d.WithNote(other.Site(), fmt.Sprintf("fragment %q is also defined here", name))
		}
		p.nodeDiags[first] = append(p.nodeDiags[first], d)
	}
}

// reportCycles walks the graph in node order and reports every back edge at
// its re-entry site. Nodes on a cycle, and roots reaching one, are blocked.
func (p *Project) reportCycles() {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(p.Nodes))
	cyclic := make(map[int]bool)
	var stack []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		color[n.ID] = grey
		stack = append(stack, n)
		for _, e := range n.Edges {
			switch color[e.To.ID] {
			case white:
				visit(e.To)
			case grey:
				for _, m := range stack[p.reportBackEdge(n, e, stack):] {
					cyclic[m.ID] = true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n.ID] = black
	}
	for _, n := range p.Nodes {
		if color[n.ID] == white {
			visit(n)
		}
	}

	for _, n := range p.Nodes {
		if p.dg.reachesAny(n.ID, cyclic) {
			p.blocked[n] = true
		}
	}
}

// reportBackEdge returns the stack index where the reported cycle starts.
func (p *Project) reportBackEdge(from *Node, e Edge, stack []*Node) int {
	start := 0
	for i, n := range stack {
		if n == e.To {
			start = i
			break
		}
	}
	names := make([]string, 0, len(stack)-start+1)
	for _, n := range stack[start:] {
		names = append(names, n.Name)
	}
	names = append(names, e.To.Name)
	d := diag.NewError(diag.CmpCycle, e.Site,
		fmt.Sprintf("Cannot compose fragment %q: it refers to itself (%s).", e.To.Name, strings.Join(names, " -> ")))
	if emb, ok := from.Span.Map.ToEmbedded(e.Site.Start); ok {
		d = d.WithEmbedded(from.Span.Position(emb))
	}
	p.nodeDiags[from] = append(p.nodeDiags[from], d)
	return start
}

// Dependents returns every node that transitively pulls in one of the given
// nodes, excluding the nodes themselves, in node order.
func (p *Project) Dependents(nodes []*Node) []*Node {
	ids := make([]int, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	out := make([]*Node, 0)
	for _, id := range p.dg.dependents(ids) {
		out = append(out, p.Nodes[id])
	}
	return out
}

// Order returns nodes with fragments before the documents that use them.
// Ties, and graphs with cycles, fall back to node order.
func (p *Project) Order() []*Node {
	ids := p.dg.order()
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.Nodes[id])
	}
	return out
}
