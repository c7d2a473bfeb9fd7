// Package typegen derives TypeScript declarations from composed documents.
// Output is a pure function of the schema and the composed text.
package typegen

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gqlembed/internal/compose"
	"gqlembed/internal/schema"
)

var (
	ErrNotComposed = errors.New("document is not composed")
	ErrTooComplex  = errors.New("document has dynamic interpolations")
	ErrNoSchema    = errors.New("no schema")
)

// Generator holds the emission policy. It is safe for concurrent use.
type Generator struct {
	// Scalars maps scalar names to TypeScript types. Built-in scalars have
	// defaults; unmapped custom scalars become `any`.
	Scalars map[string]string
	// MaskFragments keeps spreads as an intersection with the fragment's own
	// named type instead of merging the fragment's fields.
	MaskFragments bool
	// RootNames overrides RootTypeName for the listed roots, see UnitRootNames.
	RootNames map[*compose.Node]string
}

// Ref names a type declared in another unit's generated module.
type Ref struct {
	Name string
	Unit string
}

// GeneratedType is one `export type` declaration.
type GeneratedType struct {
	Name string
	Body string
	// Deps are the generated types Body refers to, sorted.
	Deps    []string
	Imports []Ref
}

// Decl renders the declaration.
func (t *GeneratedType) Decl() string {
	return "export type " + t.Name + " = " + t.Body + ";\n"
}

var defaultScalars = map[string]string{
	"String":  "string",
	"ID":      "string",
	"Int":     "number",
	"Float":   "number",
	"Boolean": "boolean",
}

// RootTypeName is the name of the declaration generated for a root node.
func RootTypeName(n *compose.Node) string {
	title := cases.Title(language.Und, cases.NoLower)
	switch n.Kind {
	case compose.KindFragment:
		return withSuffix(title.String(n.Name), "Fragment")
	case compose.KindOperation:
		name := n.Name
		if name == "" {
			name = n.Span.Binding
		}
		if name == "" {
			name = "Anonymous"
		}
		return withSuffix(title.String(name), title.String(string(n.Operation)))
	}
	return ""
}

// UnitRootNames assigns root type names to the operations of one unit, given
// in node order. The first operation keeps its RootTypeName; later ones with
// the same name get an ordinal before the operation suffix (AnonymousQuery,
// Anonymous2Query). Fragment names are unique per project and are left alone.
func UnitRootNames(nodes []*compose.Node) map[*compose.Node]string {
	taken := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		taken[RootTypeName(n)] = true
	}
	title := cases.Title(language.Und, cases.NoLower)
	out := make(map[*compose.Node]string, len(nodes))
	used := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.Kind != compose.KindOperation {
			continue
		}
		name := RootTypeName(n)
		if used[name] {
			suffix := title.String(string(n.Operation))
			stem := strings.TrimSuffix(name, suffix)
			for k := 2; ; k++ {
				cand := stem + strconv.Itoa(k) + suffix
				if !taken[cand] && !used[cand] {
					name = cand
					break
				}
			}
		}
		used[name] = true
		out[n] = name
	}
	return out
}

func (g *Generator) rootName(n *compose.Node) string {
	if name, ok := g.RootNames[n]; ok {
		return name
	}
	return RootTypeName(n)
}

func withSuffix(name, suffix string) string {
	if strings.HasSuffix(name, suffix) {
		return name
	}
	return name + suffix
}

// Generate builds the declarations of c's root: the root type, its nested
// selection types, referenced enums and, for operations, the variables type
// with its input objects.
func (g *Generator) Generate(c *compose.Composition, snap *schema.Snapshot) ([]*GeneratedType, error) {
	switch {
	case c == nil || c.Doc == nil:
		return nil, ErrNotComposed
	case c.TooComplex:
		return nil, ErrTooComplex
	case snap == nil || snap.Schema == nil:
		return nil, ErrNoSchema
	}
	doc, err := parser.ParseQuery(&ast.Source{Name: c.Root.Span.ID(), Input: c.Doc.Text})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Root.Label(), err)
	}

	s := &gen{
		g:         g,
		snap:      snap,
		doc:       doc,
		unit:      c.Root.Span.Path,
		fragUnits: make(map[string]string, len(c.Doc.Fragments)),
		title:     cases.Title(language.Und, cases.NoLower),
		types:     make(map[string]*GeneratedType),
		reserved:  make(map[string]bool),
	}
	for _, f := range c.Doc.Fragments {
		s.fragUnits[f.Name] = f.Span.Path
	}

	root := g.rootName(c.Root)
	switch c.Root.Kind {
	case compose.KindOperation:
		op := doc.Operations.ForName(c.Root.Name)
		if op == nil && len(doc.Operations) > 0 {
			op = doc.Operations[0]
		}
		if op == nil {
			return nil, fmt.Errorf("%s: operation not found", c.Root.Label())
		}
		parent := snap.RootType(op.Operation)
		if parent == nil {
			return nil, fmt.Errorf("%s: schema has no %s root", c.Root.Label(), op.Operation)
		}
		if _, err := s.object(s.reserve(root), parent, op.SelectionSet); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Root.Label(), err)
		}
		if err := s.variables(s.reserve(root+"Variables"), op); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Root.Label(), err)
		}
	case compose.KindFragment:
		fr := doc.Fragments.ForName(c.Root.Name)
		if fr == nil {
			return nil, fmt.Errorf("%s: fragment not found", c.Root.Label())
		}
		parent := snap.Type(fr.TypeCondition)
		if parent == nil {
			return nil, fmt.Errorf("%s: unknown type %q", c.Root.Label(), fr.TypeCondition)
		}
		if _, err := s.object(s.reserve(root), parent, fr.SelectionSet); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Root.Label(), err)
		}
	default:
		return nil, ErrNotComposed
	}
	return s.out, nil
}

type gen struct {
	g         *Generator
	snap      *schema.Snapshot
	doc       *ast.QueryDocument
	unit      string
	fragUnits map[string]string
	title     cases.Caser
	types     map[string]*GeneratedType
	reserved  map[string]bool
	out       []*GeneratedType
}

// reserve returns name, or name with a numeric suffix when already taken.
func (s *gen) reserve(name string) string {
	cand := name
	for i := 2; s.reserved[cand]; i++ {
		cand = name + strconv.Itoa(i)
	}
	s.reserved[cand] = true
	return cand
}

func (s *gen) add(t *GeneratedType) {
	t.Deps = sortedUnique(t.Deps)
	sort.Slice(t.Imports, func(i, j int) bool { return t.Imports[i].Name < t.Imports[j].Name })
	s.types[t.Name] = t
	s.out = append(s.out, t)
}

// field is one response key with every occurrence merged.
type field struct {
	key      string
	name     string
	optional bool
	subs     ast.SelectionSet
}

type shape struct {
	fields []*field
	byKey  map[string]*field
	masks  []string
}

func (sh *shape) addField(f *ast.Field, conditional bool) {
	key := f.Alias
	if key == "" {
		key = f.Name
	}
	if prev, ok := sh.byKey[key]; ok {
		prev.optional = prev.optional && conditional
		prev.subs = append(prev.subs, f.SelectionSet...)
		return
	}
	nf := &field{key: key, name: f.Name, optional: conditional, subs: append(ast.SelectionSet(nil), f.SelectionSet...)}
	sh.byKey[key] = nf
	sh.fields = append(sh.fields, nf)
}

func (sh *shape) addMask(name string) {
	for _, m := range sh.masks {
		if m == name {
			return
		}
	}
	sh.masks = append(sh.masks, name)
}

// object emits the type of set selected on parent under the reserved name.
// Abstract parents narrowed by type conditions become a union with one
// member per possible type.
func (s *gen) object(name string, parent *ast.Definition, set ast.SelectionSet) (string, error) {
	if !parent.IsAbstractType() || !s.narrows(set, parent) {
		return name, s.shapeType(name, parent, set)
	}
	possible := s.snap.PossibleTypes(parent)
	variants := make([]string, 0, len(possible))
	for _, t := range possible {
		v := s.reserve(name + "_" + t.Name)
		if err := s.shapeType(v, t, set); err != nil {
			return "", err
		}
		variants = append(variants, v)
	}
	body := "never"
	if len(variants) > 0 {
		body = strings.Join(variants, " | ")
	}
	s.add(&GeneratedType{Name: name, Body: body, Deps: variants})
	return name, nil
}

func (s *gen) shapeType(name string, runtime *ast.Definition, set ast.SelectionSet) error {
	sh := &shape{byKey: make(map[string]*field)}
	if err := s.collect(set, runtime, false, sh); err != nil {
		return err
	}
	t := &GeneratedType{Name: name}
	lines := make([]string, 0, len(sh.fields))
	for _, f := range sh.fields {
		ts, err := s.fieldType(name, runtime, f, t)
		if err != nil {
			return err
		}
		opt := ""
		if f.optional {
			opt = "?"
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s;", f.key, opt, ts))
	}
	parts := make([]string, 0, 1+len(sh.masks))
	if len(lines) > 0 || len(sh.masks) == 0 {
		parts = append(parts, objectLiteral(lines))
	}
	for _, m := range sh.masks {
		mt := withSuffix(s.title.String(m), "Fragment")
		parts = append(parts, mt)
		if unit := s.fragUnits[m]; unit != "" && unit != s.unit {
			t.Imports = append(t.Imports, Ref{Name: mt, Unit: unit})
		} else {
			t.Deps = append(t.Deps, mt)
		}
	}
	t.Body = strings.Join(parts, " & ")
	s.add(t)
	return nil
}

func objectLiteral(lines []string) string {
	if len(lines) == 0 {
		return "{}"
	}
	return "{\n  " + strings.Join(lines, "\n  ") + "\n}"
}

func (s *gen) fieldType(owner string, runtime *ast.Definition, f *field, t *GeneratedType) (string, error) {
	if f.name == "__typename" {
		return s.typename(runtime), nil
	}
	def := s.snap.Field(runtime.Name, f.name)
	if def == nil {
		return "", fmt.Errorf("unknown field %s.%s", runtime.Name, f.name)
	}
	return renderType(def.Type, func(named string) (string, error) {
		nd := s.snap.Type(named)
		if nd == nil {
			return "", fmt.Errorf("unknown type %q", named)
		}
		switch nd.Kind {
		case ast.Scalar:
			return s.scalar(named), nil
		case ast.Enum:
			t.Deps = append(t.Deps, s.enum(nd))
			return nd.Name, nil
		case ast.Object, ast.Interface, ast.Union:
			if len(f.subs) == 0 {
				return "", fmt.Errorf("field %s.%s of type %s needs a selection", runtime.Name, f.name, named)
			}
			n, err := s.object(s.reserve(owner+"_"+s.title.String(f.key)), nd, f.subs)
			if err != nil {
				return "", err
			}
			t.Deps = append(t.Deps, n)
			return n, nil
		}
		return "", fmt.Errorf("type %q cannot be selected", named)
	})
}

// typename types __typename as the literal name(s) of the runtime type.
func (s *gen) typename(runtime *ast.Definition) string {
	possible := s.snap.PossibleTypes(runtime)
	lits := make([]string, 0, len(possible))
	for _, p := range possible {
		lits = append(lits, strconv.Quote(p.Name))
	}
	if len(lits) == 0 {
		return "never"
	}
	return strings.Join(lits, " | ")
}

// collect gathers the fields set selects on runtime, following inline
// fragments and (unless masked) spreads whose condition applies.
func (s *gen) collect(set ast.SelectionSet, runtime *ast.Definition, cond bool, sh *shape) error {
	for _, sel := range set {
		switch x := sel.(type) {
		case *ast.Field:
			sh.addField(x, cond || conditional(x.Directives))
		case *ast.InlineFragment:
			if !s.applies(x.TypeCondition, runtime) {
				continue
			}
			if err := s.collect(x.SelectionSet, runtime, cond || conditional(x.Directives), sh); err != nil {
				return err
			}
		case *ast.FragmentSpread:
			fr := s.doc.Fragments.ForName(x.Name)
			if fr == nil {
				return fmt.Errorf("unknown fragment %q", x.Name)
			}
			if !s.applies(fr.TypeCondition, runtime) {
				continue
			}
			if s.g.MaskFragments {
				sh.addMask(fr.Name)
				continue
			}
			if err := s.collect(fr.SelectionSet, runtime, cond || conditional(x.Directives), sh); err != nil {
				return err
			}
		}
	}
	return nil
}

// narrows reports whether set holds a type condition other than parent.
func (s *gen) narrows(set ast.SelectionSet, parent *ast.Definition) bool {
	for _, sel := range set {
		switch x := sel.(type) {
		case *ast.InlineFragment:
			if x.TypeCondition != "" && x.TypeCondition != parent.Name {
				return true
			}
			if s.narrows(x.SelectionSet, parent) {
				return true
			}
		case *ast.FragmentSpread:
			fr := s.doc.Fragments.ForName(x.Name)
			if fr == nil {
				continue
			}
			if fr.TypeCondition != parent.Name {
				return true
			}
			if !s.g.MaskFragments && s.narrows(fr.SelectionSet, parent) {
				return true
			}
		}
	}
	return false
}

func (s *gen) applies(cond string, runtime *ast.Definition) bool {
	if cond == "" || cond == runtime.Name {
		return true
	}
	if runtime.IsAbstractType() {
		return false
	}
	cd := s.snap.Type(cond)
	if cd == nil || !cd.IsAbstractType() {
		return false
	}
	for _, p := range s.snap.PossibleTypes(cd) {
		if p.Name == runtime.Name {
			return true
		}
	}
	return false
}

func conditional(dirs ast.DirectiveList) bool {
	return dirs.ForName("include") != nil || dirs.ForName("skip") != nil
}

func (s *gen) scalar(name string) string {
	if ts, ok := s.g.Scalars[name]; ok {
		return ts
	}
	if ts, ok := defaultScalars[name]; ok {
		return ts
	}
	return "any"
}

func (s *gen) enum(def *ast.Definition) string {
	if _, ok := s.types[def.Name]; ok {
		return def.Name
	}
	s.reserved[def.Name] = true
	lits := make([]string, 0, len(def.EnumValues))
	for _, v := range def.EnumValues {
		lits = append(lits, strconv.Quote(v.Name))
	}
	body := "never"
	if len(lits) > 0 {
		body = strings.Join(lits, " | ")
	}
	s.add(&GeneratedType{Name: def.Name, Body: body})
	return def.Name
}

// variables emits the companion type of an operation's variable definitions.
func (s *gen) variables(name string, op *ast.OperationDefinition) error {
	t := &GeneratedType{Name: name}
	lines := make([]string, 0, len(op.VariableDefinitions))
	for _, v := range op.VariableDefinitions {
		ts, err := renderType(v.Type, s.inputLeaf(t))
		if err != nil {
			return fmt.Errorf("variable $%s: %w", v.Variable, err)
		}
		opt := ""
		if !v.Type.NonNull || v.DefaultValue != nil {
			opt = "?"
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s;", v.Variable, opt, ts))
	}
	t.Body = objectLiteral(lines)
	s.add(t)
	return nil
}

func (s *gen) inputLeaf(t *GeneratedType) func(string) (string, error) {
	return func(named string) (string, error) {
		nd := s.snap.Type(named)
		if nd == nil {
			return "", fmt.Errorf("unknown type %q", named)
		}
		switch nd.Kind {
		case ast.Scalar:
			return s.scalar(named), nil
		case ast.Enum:
			t.Deps = append(t.Deps, s.enum(nd))
			return nd.Name, nil
		case ast.InputObject:
			if err := s.input(nd); err != nil {
				return "", err
			}
			t.Deps = append(t.Deps, nd.Name)
			return nd.Name, nil
		}
		return "", fmt.Errorf("type %q is not an input type", named)
	}
}

func (s *gen) input(def *ast.Definition) error {
	if s.reserved[def.Name] {
		// уже сгенерирован или генерируется выше по стеку (рекурсивный input)
		return nil
	}
	s.reserved[def.Name] = true
	t := &GeneratedType{Name: def.Name}
	lines := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		ts, err := renderType(f.Type, s.inputLeaf(t))
		if err != nil {
			return fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		opt := ""
		if !f.Type.NonNull || f.DefaultValue != nil {
			opt = "?"
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s;", f.Name, opt, ts))
	}
	t.Body = objectLiteral(lines)
	s.add(t)
	return nil
}

// renderType applies list and nullability wrappers around the named leaf.
func renderType(t *ast.Type, leaf func(named string) (string, error)) (string, error) {
	var out string
	if t.Elem != nil {
		inner, err := renderType(t.Elem, leaf)
		if err != nil {
			return "", err
		}
		if strings.Contains(inner, " ") {
			inner = "(" + inner + ")"
		}
		out = inner + "[]"
	} else {
		var err error
		if out, err = leaf(t.NamedType); err != nil {
			return "", err
		}
	}
	if !t.NonNull {
		out += " | null"
	}
	return out, nil
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
