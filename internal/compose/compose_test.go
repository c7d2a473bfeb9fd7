package compose

import (
	"context"
	"sort"
	"strings"
	"testing"

	"gqlembed/internal/diag"
	"gqlembed/internal/extract"
	"gqlembed/internal/host"
	"gqlembed/internal/source"
)

func buildProject(t *testing.T, opts Options, files map[string]string) *Project {
	t.Helper()
	fs := source.NewFileSet()
	prog := host.NewProgram()
	parser := host.NewParser()
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	ex := extract.New("gql", nil)
	var spans []*extract.EmbeddedSpan
	for _, p := range paths {
		id := fs.AddVirtual(p, []byte(files[p]))
		a, err := parser.Parse(context.Background(), fs.Get(id))
		if err != nil {
			t.Fatalf("parse %s: %v", p, err)
		}
		prog.Set(a)
		spans = append(spans, ex.Extract(a)...)
	}
	return Build(spans, prog, opts)
}

func node(t *testing.T, p *Project, label string) *Node {
	t.Helper()
	for _, n := range p.Nodes {
		if n.Label() == label {
			return n
		}
	}
	t.Fatalf("node %q not found", label)
	return nil
}

func allDiags(p *Project) []diag.Diagnostic {
	out := append([]diag.Diagnostic(nil), p.Loose...)
	for _, n := range p.Nodes {
		out = append(out, p.Compose(n).Diags...)
	}
	return out
}

func countCode(ds []diag.Diagnostic, code diag.Code) int {
	n := 0
	for _, d := range ds {
		if d.Code == code {
			n++
		}
	}
	return n
}

const fragmentsTS = "import { gql } from 'graphql-tag';\n" +
	"export const UserFields = gql`\n  fragment UserFields on User { id ...NameFields }\n  fragment NameFields on User { name }\n`;\n"

const queriesTS = "import { gql } from 'graphql-tag';\n" +
	"import { UserFields } from './fragments';\n" +
	"export const Me = gql`\n  query Me {\n    me { ...UserFields ...NameFields }\n  }\n  ${UserFields}\n`;\n"

func TestComposeInlinesFragmentsOnce(t *testing.T) {
	p := buildProject(t, Options{}, map[string]string{
		"src/fragments.ts": fragmentsTS,
		"src/queries.ts":   queriesTS,
	})
	me := node(t, p, "query Me")
	c := p.Compose(me)
	if c.Doc == nil {
		t.Fatalf("expected composed output, diags: %+v", c.Diags)
	}
	text := c.Doc.Text
	if strings.Count(text, "fragment NameFields") != 1 || strings.Count(text, "fragment UserFields") != 1 {
		t.Fatalf("fragments not inlined exactly once:\n%s", text)
	}
	if strings.Index(text, "fragment UserFields") > strings.Index(text, "fragment NameFields") {
		t.Fatalf("expected first-seen order:\n%s", text)
	}
	if len(c.Diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", c.Diags)
	}

	again := p.Compose(me)
	if again.Doc.Text != text || again.Doc.Digest != c.Doc.Digest {
		t.Fatalf("composition is not deterministic")
	}
}

func TestComposeSegmentsMapBack(t *testing.T) {
	p := buildProject(t, Options{}, map[string]string{
		"src/fragments.ts": fragmentsTS,
		"src/queries.ts":   queriesTS,
	})
	c := p.Compose(node(t, p, "query Me"))
	off := strings.Index(c.Doc.Text, "name }")
	sp, emb := c.Doc.Locate(off)
	if sp.Path != "src/fragments.ts" || !strings.HasPrefix(sp.Text[emb:], "name }") {
		t.Fatalf("Locate(%d) = %s:%d", off, sp.Path, emb)
	}
	host, pos := c.Doc.HostLocation(off)
	if !strings.HasPrefix(fragmentsTS[host.Start:], "name }") {
		t.Fatalf("host location %d points at %q", host.Start, fragmentsTS[host.Start:])
	}
	if pos.Line != 3 {
		t.Fatalf("embedded position = %+v", pos)
	}
}

func TestComposeCycleBlocksOutput(t *testing.T) {
	src := "const A = gql`fragment A on User { id ...B }`;\n" +
		"const B = gql`fragment B on User { name ...A }`;\n"
	p := buildProject(t, Options{GlobalFragments: true}, map[string]string{"src/cycle.ts": src})

	a, b := node(t, p, "fragment A"), node(t, p, "fragment B")
	if p.Compose(a).Doc != nil || p.Compose(b).Doc != nil {
		t.Fatalf("cyclic fragments must not produce composed output")
	}
	if got := countCode(allDiags(p), diag.CmpCycle); got != 1 {
		t.Fatalf("got %d cycle diagnostics, want 1", got)
	}
	cyc := p.Compose(b).Diags
	if len(cyc) != 1 || !strings.Contains(cyc[0].Message, "A -> B -> A") {
		t.Fatalf("expected cycle reported at re-entry in B: %+v", cyc)
	}
	if !strings.HasPrefix(src[cyc[0].Primary.Start:], "...A") {
		t.Fatalf("cycle site %d points at %q", cyc[0].Primary.Start, src[cyc[0].Primary.Start:])
	}
}

func TestComposeBlocksOnlyCycleReachers(t *testing.T) {
	files := map[string]string{
		"a.ts": "const Solo = gql`query Solo { me { id } }`;\n",
		"b.ts": "const Chain = gql`query Chain { me { ...Leaf } } fragment Leaf on User { id }`;\n",
		"c.ts": "const Loop = gql`query Loop { me { ...X } } fragment X on User { id ...Y } fragment Y on User { name ...X }`;\n",
	}
	for i := 0; i < 20; i++ {
		p := buildProject(t, Options{}, files)
		if p.Nodes[0].Label() != "query Solo" {
			t.Fatalf("node 0 = %s", p.Nodes[0].Label())
		}
		for _, label := range []string{"query Solo", "query Chain", "fragment Leaf"} {
			if c := p.Compose(node(t, p, label)); c.Doc == nil {
				t.Fatalf("run %d: %s is blocked: %+v", i, label, c.Diags)
			}
		}
		for _, label := range []string{"query Loop", "fragment X", "fragment Y"} {
			if c := p.Compose(node(t, p, label)); c.Doc != nil {
				t.Fatalf("run %d: %s composed despite the cycle", i, label)
			}
		}
		if got := countCode(allDiags(p), diag.CmpCycle); got != 1 {
			t.Fatalf("run %d: got %d cycle diagnostics, want 1", i, got)
		}
	}
}

func TestComposeDuplicateFragment(t *testing.T) {
	p := buildProject(t, Options{}, map[string]string{
		"a.ts": "const X = gql`fragment MyFragment on User { id }`;\n",
		"b.ts": "const Y = gql`fragment MyFragment on User { name }`;\n",
	})
	ds := allDiags(p)
	if got := countCode(ds, diag.CmpDuplicateFragment); got != 1 {
		t.Fatalf("got %d duplicate diagnostics, want 1", got)
	}
	for _, d := range ds {
		if d.Code == diag.CmpDuplicateFragment && len(d.Notes) != 1 {
			t.Fatalf("expected a note at the second definition: %+v", d)
		}
	}
}

func TestComposeTooComplexHole(t *testing.T) {
	p := buildProject(t, Options{}, map[string]string{
		"a.ts": "const Q = gql`query Q { me { id } } ${makeFragment()}`;\n",
	})
	c := p.Compose(node(t, p, "query Q"))
	if !c.TooComplex || c.Doc == nil {
		t.Fatalf("expected degraded composition, got %+v", c)
	}
	if got := countCode(allDiags(p), diag.CmpTooComplexExpression); got != 1 {
		t.Fatalf("got %d too-complex diagnostics, want 1", got)
	}
	if c.Diags[0].Message != tooComplexMessage {
		t.Fatalf("message = %q", c.Diags[0].Message)
	}
}

func TestComposeUnresolvedHole(t *testing.T) {
	src := "const Q = gql`query Q { me { id } } ${Missing}`;\n"
	p := buildProject(t, Options{}, map[string]string{"a.ts": src})
	ds := p.Compose(node(t, p, "query Q")).Diags
	if len(ds) != 1 || ds[0].Code != diag.CmpUnresolvedInterpolation {
		t.Fatalf("unexpected diagnostics: %+v", ds)
	}
	if got := src[ds[0].Primary.Start:ds[0].Primary.End]; got != "Missing" {
		t.Fatalf("diagnostic points at %q", got)
	}
}

func TestComposeBrokenSpan(t *testing.T) {
	p := buildProject(t, Options{}, map[string]string{"a.ts": "const Q = gql`query Q { me { id }`;\n"})
	if len(p.Nodes) != 1 || p.Nodes[0].Kind != KindBroken {
		t.Fatalf("expected one broken node, got %+v", p.Nodes)
	}
	c := p.Compose(p.Nodes[0])
	if c.Doc == nil || c.Doc.Text != "query Q { me { id }" {
		t.Fatalf("broken node must compose to its own text: %+v", c.Doc)
	}
}

func TestDependentsAndOrder(t *testing.T) {
	p := buildProject(t, Options{}, map[string]string{
		"src/fragments.ts": fragmentsTS,
		"src/queries.ts":   queriesTS,
	})
	names := node(t, p, "fragment NameFields")
	deps := p.Dependents([]*Node{names})
	labels := make([]string, 0, len(deps))
	for _, n := range deps {
		labels = append(labels, n.Label())
	}
	if strings.Join(labels, ",") != "fragment UserFields,query Me" {
		t.Fatalf("dependents = %v", labels)
	}

	pos := make(map[string]int)
	for i, n := range p.Order() {
		pos[n.Label()] = i
	}
	if pos["fragment NameFields"] > pos["fragment UserFields"] || pos["fragment UserFields"] > pos["query Me"] {
		t.Fatalf("order does not put dependencies first: %v", pos)
	}
}
