// Package host is the host-language collaborator: it turns TypeScript and
// JavaScript SourceUnits into syntax trees with byte positions, keeps a symbol
// table per unit and answers "what does this identifier refer to".
package host

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"gqlembed/internal/source"
)

// ErrUnsupported is returned for files that are not TypeScript/JavaScript.
var ErrUnsupported = errors.New("unsupported host file")

type Language uint8

const (
	LangTypeScript Language = iota
	LangTSX
)

// LanguageFor picks the grammar by file extension.
func LanguageFor(p string) (Language, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".ts", ".mts", ".cts", ".js", ".mjs", ".cjs":
		return LangTypeScript, true
	case ".tsx", ".jsx":
		return LangTSX, true
	}
	return 0, false
}

func (l Language) grammar() *sitter.Language {
	if l == LangTSX {
		return tsx.GetLanguage()
	}
	return typescript.GetLanguage()
}

// AST is the parsed form of one SourceUnit version.
type AST struct {
	File    source.FileID
	Path    string
	Version int64
	Content []byte
	Lang    Language
	Symbols *SymbolTable

	tree *sitter.Tree
}

// Root returns the program node.
func (a *AST) Root() *sitter.Node {
	if a == nil || a.tree == nil {
		return nil
	}
	return a.tree.RootNode()
}

// HasError reports whether the host grammar recovered from syntax errors.
func (a *AST) HasError() bool {
	root := a.Root()
	return root != nil && root.HasError()
}

// Text returns the source text covered by n.
func (a *AST) Text(n *sitter.Node) string {
	return n.Content(a.Content)
}

func (a *AST) Close() {
	if a != nil && a.tree != nil {
		a.tree.Close()
		a.tree = nil
	}
}

// Edit is a single replaced byte range, expressed against the old content.
type Edit struct {
	Start  uint32
	OldEnd uint32
	NewEnd uint32
}

// Diff returns the smallest single edit turning old into updated.
func Diff(old, updated []byte) Edit {
	prefix := 0
	for prefix < len(old) && prefix < len(updated) && old[prefix] == updated[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(updated)-prefix &&
		old[len(old)-1-suffix] == updated[len(updated)-1-suffix] {
		suffix++
	}
	// #nosec G115 -- file sizes fit uint32
	return Edit{
		Start:  uint32(prefix),
		OldEnd: uint32(len(old) - suffix),
		NewEnd: uint32(len(updated) - suffix),
	}
}

// Parser builds ASTs. A fresh tree-sitter parser is created per call, so a
// Parser may be shared between goroutines.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse parses one file version.
func (p *Parser) Parse(ctx context.Context, f *source.File) (*AST, error) {
	return p.parse(ctx, f, nil)
}

// Reparse parses f reusing the tree of old, which must be an earlier version of
// the same path. old stays usable afterwards.
func (p *Parser) Reparse(ctx context.Context, old *AST, f *source.File) (*AST, error) {
	if old == nil || old.tree == nil || old.Path != f.Path {
		return p.parse(ctx, f, nil)
	}
	e := Diff(old.Content, f.Content)
	prev := old.tree.Copy()
	prev.Edit(sitter.EditInput{
		StartIndex:  e.Start,
		OldEndIndex: e.OldEnd,
		NewEndIndex: e.NewEnd,
		StartPoint:  pointAt(old.Content, e.Start),
		OldEndPoint: pointAt(old.Content, e.OldEnd),
		NewEndPoint: pointAt(f.Content, e.NewEnd),
	})
	a, err := p.parse(ctx, f, prev)
	prev.Close()
	return a, err
}

func (p *Parser) parse(ctx context.Context, f *source.File, prev *sitter.Tree) (*AST, error) {
	lang, ok := LanguageFor(f.Path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, f.Path)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.grammar())

	tree, err := parser.ParseCtx(ctx, prev, f.Content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	a := &AST{
		File:    f.ID,
		Path:    f.Path,
		Version: f.Version,
		Content: f.Content,
		Lang:    lang,
		tree:    tree,
	}
	a.Symbols = collectSymbols(a)
	return a, nil
}

func pointAt(content []byte, off uint32) sitter.Point {
	var row, col uint32
	for i := uint32(0); i < off && int(i) < len(content); i++ {
		if content[i] == '\n' {
			row++
			col = 0
			continue
		}
		col++
	}
	return sitter.Point{Row: row, Column: col}
}
