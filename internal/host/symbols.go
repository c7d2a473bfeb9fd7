package host

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Binding is a top-level variable declaration.
type Binding struct {
	Name       string
	ValueStart uint32
	ValueEnd   uint32
	ValueKind  string // тип узла значения, "" если нет инициализатора
}

// Import is one imported name.
type Import struct {
	Local    string
	Imported string // "default" для импорта по умолчанию
	Module   string
}

// SymbolTable holds the module-level names of one unit.
type SymbolTable struct {
	Bindings map[string]Binding
	Imports  map[string]Import
	// Exports maps an exported name to the local name it exposes.
	Exports map[string]string
	// Forwards holds `export { a as b } from "./m"` re-exports by exported name.
	Forwards map[string]Import
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{
		Bindings: make(map[string]Binding),
		Imports:  make(map[string]Import),
		Exports:  make(map[string]string),
		Forwards: make(map[string]Import),
	}
}

// IsExported reports whether the local binding is visible to other units.
func (s *SymbolTable) IsExported(local string) bool {
	for _, l := range s.Exports {
		if l == local {
			return true
		}
	}
	return false
}

func collectSymbols(a *AST) *SymbolTable {
	st := newSymbolTable()
	root := a.Root()
	if root == nil {
		return st
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "lexical_declaration", "variable_declaration":
			collectDeclarators(a, child, st, false)
		case "export_statement":
			collectExport(a, child, st)
		case "import_statement":
			collectImport(a, child, st)
		}
	}
	return st
}

func collectDeclarators(a *AST, decl *sitter.Node, st *SymbolTable, exported bool) {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		d := decl.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		name := d.ChildByFieldName("name")
		if name == nil || name.Type() != "identifier" {
			continue
		}
		b := Binding{Name: a.Text(name)}
		if v := d.ChildByFieldName("value"); v != nil {
			b.ValueStart, b.ValueEnd, b.ValueKind = v.StartByte(), v.EndByte(), v.Type()
		}
		st.Bindings[b.Name] = b
		if exported {
			st.Exports[b.Name] = b.Name
		}
	}
}

func collectExport(a *AST, stmt *sitter.Node, st *SymbolTable) {
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		switch decl.Type() {
		case "lexical_declaration", "variable_declaration":
			collectDeclarators(a, decl, st, true)
		}
		return
	}
	var module string
	if src := stmt.ChildByFieldName("source"); src != nil {
		module = unquote(a.Text(src))
	}
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		clause := stmt.NamedChild(i)
		if clause.Type() != "export_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			spec := clause.NamedChild(j)
			if spec.Type() != "export_specifier" {
				continue
			}
			name := spec.ChildByFieldName("name")
			if name == nil {
				continue
			}
			local := a.Text(name)
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = a.Text(alias)
			}
			if module != "" {
				st.Forwards[exported] = Import{Local: exported, Imported: local, Module: module}
				continue
			}
			st.Exports[exported] = local
		}
	}
}

func collectImport(a *AST, stmt *sitter.Node, st *SymbolTable) {
	src := stmt.ChildByFieldName("source")
	if src == nil {
		return
	}
	module := unquote(a.Text(src))
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		clause := stmt.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			part := clause.NamedChild(j)
			switch part.Type() {
			case "identifier":
				local := a.Text(part)
				st.Imports[local] = Import{Local: local, Imported: "default", Module: module}
			case "named_imports":
				for k := 0; k < int(part.NamedChildCount()); k++ {
					spec := part.NamedChild(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("name")
					if name == nil {
						continue
					}
					imported := a.Text(name)
					local := imported
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = a.Text(alias)
					}
					st.Imports[local] = Import{Local: local, Imported: imported, Module: module}
				}
			}
		}
	}
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}
