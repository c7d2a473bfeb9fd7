package editor

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"
)

type contextKind uint8

const (
	ctxNone contextKind = iota
	ctxTopLevel
	ctxField
	ctxSpread
	ctxTypeCondition
	ctxDirective
)

// cursorContext is what the grammar expects at a point of an embedded document.
type cursorContext struct {
	kind contextKind
	// parent is the type whose fields are selectable (ctxField).
	parent string
}

type frame struct {
	typ string
}

// scanner replays the tokens before the cursor and tracks the selection-set
// nesting. It tolerates incomplete input: scanning stops at the first token
// the lexer rejects.
type scanner struct {
	schema *ast.Schema

	stack   []frame
	pending string // тип, который откроет следующая `{`
	parens  int
	prev    lexer.Token
	prev2   lexer.Token
	topKw   string
}

func scanContext(s *ast.Schema, text string) cursorContext {
	sc := &scanner{schema: s}
	lx := lexer.New(&ast.Source{Input: text})
	for {
		tok, err := lx.ReadToken()
		if err != nil || tok.Kind == lexer.EOF {
			break
		}
		if tok.Kind == lexer.Comment {
			continue
		}
		sc.step(tok)
		sc.prev2, sc.prev = sc.prev, tok
	}
	return sc.result()
}

func (sc *scanner) top() string {
	if len(sc.stack) == 0 {
		return ""
	}
	return sc.stack[len(sc.stack)-1].typ
}

func (sc *scanner) step(tok lexer.Token) {
	if sc.parens > 0 {
		switch tok.Kind {
		case lexer.ParenL:
			sc.parens++
		case lexer.ParenR:
			sc.parens--
		}
		return
	}
	switch tok.Kind {
	case lexer.ParenL:
		sc.parens++
	case lexer.BraceL:
		typ := sc.pending
		if len(sc.stack) == 0 && typ == "" && sc.topKw == "" {
			typ = sc.rootType(ast.Query)
		}
		sc.stack = append(sc.stack, frame{typ: typ})
		sc.pending = ""
	case lexer.BraceR:
		if len(sc.stack) > 0 {
			sc.stack = sc.stack[:len(sc.stack)-1]
		}
		sc.pending = ""
		if len(sc.stack) == 0 {
			sc.topKw = ""
		}
	case lexer.Spread:
		// `... {` и `... @dir {` сужают до того же типа
		sc.pending = sc.top()
	case lexer.Name:
		sc.name(tok.Value)
	}
}

func (sc *scanner) name(v string) {
	switch {
	case sc.prev.Kind == lexer.At:
		// имя директивы
	case len(sc.stack) == 0:
		switch {
		case sc.prev.Kind == lexer.Name && sc.prev.Value == "on":
			sc.pending = v
		case v == "query" || v == "mutation" || v == "subscription":
			sc.topKw = v
			sc.pending = sc.rootType(ast.Operation(v))
		case v == "fragment":
			sc.topKw = v
		}
	case sc.prev.Kind == lexer.Spread:
		if v != "on" {
			sc.pending = ""
		}
	case sc.prev.Kind == lexer.Name && sc.prev.Value == "on" && sc.prev2.Kind == lexer.Spread:
		sc.pending = v
	default:
		// у `alias: field` тип задаёт последнее имя
		sc.pending = fieldType(sc.schema, sc.top(), v)
	}
}

func (sc *scanner) rootType(op ast.Operation) string {
	if sc.schema == nil {
		return ""
	}
	var def *ast.Definition
	switch op {
	case ast.Query:
		def = sc.schema.Query
	case ast.Mutation:
		def = sc.schema.Mutation
	case ast.Subscription:
		def = sc.schema.Subscription
	}
	if def == nil {
		return ""
	}
	return def.Name
}

func (sc *scanner) result() cursorContext {
	if sc.parens > 0 {
		return cursorContext{}
	}
	switch {
	case sc.prev.Kind == lexer.At:
		return cursorContext{kind: ctxDirective}
	case sc.prev.Kind == lexer.Spread:
		return cursorContext{kind: ctxSpread}
	case sc.prev.Kind == lexer.Name && sc.prev.Value == "on" &&
		(sc.prev2.Kind == lexer.Spread || (len(sc.stack) == 0 && sc.topKw == "fragment")):
		return cursorContext{kind: ctxTypeCondition}
	case len(sc.stack) == 0:
		if sc.topKw != "" {
			return cursorContext{}
		}
		return cursorContext{kind: ctxTopLevel}
	}
	return cursorContext{kind: ctxField, parent: sc.top()}
}

// fieldType returns the named type of parent.field, or "".
func fieldType(s *ast.Schema, parent, field string) string {
	if s == nil || parent == "" {
		return ""
	}
	def := s.Types[parent]
	if def == nil {
		return ""
	}
	f := def.Fields.ForName(field)
	if f == nil {
		return ""
	}
	return f.Type.Name()
}

func isNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// wordAt returns the bounds of the name containing or ending at off.
func wordAt(text string, off int) (int, int) {
	start, end := off, off
	for start > 0 && isNameByte(text[start-1]) {
		start--
	}
	for end < len(text) && isNameByte(text[end]) {
		end++
	}
	return start, end
}
