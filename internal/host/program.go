package host

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// DocumentRef names the declaration an identifier resolves to.
type DocumentRef struct {
	Path string
	Name string // local binding name inside Path
}

// Scope is the lookup context of an identifier.
type Scope struct {
	Path string
}

// Resolver is the symbol-resolution capability consumed by composition.
type Resolver interface {
	ResolveIdentifier(name string, scope Scope) (DocumentRef, bool)
}

// moduleExtensions are tried in order when an import specifier has no extension.
var moduleExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

const maxForwardDepth = 8

// Program is the set of currently known units. It implements Resolver.
type Program struct {
	mu    sync.RWMutex
	units map[string]*AST
}

func NewProgram() *Program {
	return &Program{units: make(map[string]*AST)}
}

// Set replaces the AST stored for a.Path.
func (p *Program) Set(a *AST) {
	p.mu.Lock()
	p.units[a.Path] = a
	p.mu.Unlock()
}

func (p *Program) Remove(unitPath string) {
	p.mu.Lock()
	delete(p.units, unitPath)
	p.mu.Unlock()
}

func (p *Program) Get(unitPath string) (*AST, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.units[unitPath]
	return a, ok
}

// Units returns all ASTs ordered by path.
func (p *Program) Units() []*AST {
	p.mu.RLock()
	out := make([]*AST, 0, len(p.units))
	for _, a := range p.units {
		out = append(out, a)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ResolveIdentifier follows local declarations, named imports and re-exports.
func (p *Program) ResolveIdentifier(name string, scope Scope) (DocumentRef, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.units[scope.Path]
	if !ok || a.Symbols == nil {
		return DocumentRef{}, false
	}
	if _, ok := a.Symbols.Bindings[name]; ok {
		return DocumentRef{Path: a.Path, Name: name}, true
	}
	imp, ok := a.Symbols.Imports[name]
	if !ok || imp.Imported == "default" {
		return DocumentRef{}, false
	}
	target, ok := p.resolveModule(a.Path, imp.Module)
	if !ok {
		return DocumentRef{}, false
	}
	return p.resolveExport(target, imp.Imported, 0)
}

func (p *Program) resolveExport(unitPath, exported string, depth int) (DocumentRef, bool) {
	if depth > maxForwardDepth {
		return DocumentRef{}, false
	}
	a, ok := p.units[unitPath]
	if !ok || a.Symbols == nil {
		return DocumentRef{}, false
	}
	if local, ok := a.Symbols.Exports[exported]; ok {
		if _, ok := a.Symbols.Bindings[local]; ok {
			return DocumentRef{Path: unitPath, Name: local}, true
		}
		// export { X } где X импортирован
		if imp, ok := a.Symbols.Imports[local]; ok && imp.Imported != "default" {
			if target, ok := p.resolveModule(unitPath, imp.Module); ok {
				return p.resolveExport(target, imp.Imported, depth+1)
			}
		}
		return DocumentRef{}, false
	}
	if fwd, ok := a.Symbols.Forwards[exported]; ok {
		if target, ok := p.resolveModule(unitPath, fwd.Module); ok {
			return p.resolveExport(target, fwd.Imported, depth+1)
		}
	}
	return DocumentRef{}, false
}

// resolveModule maps a relative module specifier to a known unit path.
func (p *Program) resolveModule(fromPath, spec string) (string, bool) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return "", false
	}
	base := path.Join(path.Dir(fromPath), spec)
	candidates := []string{base}
	if ext := path.Ext(base); ext == ".js" || ext == ".jsx" || ext == ".mjs" || ext == ".cjs" {
		// TS разрешает импорт "./x.js", указывающий на x.ts
		trimmed := strings.TrimSuffix(base, ext)
		for _, e := range moduleExtensions {
			candidates = append(candidates, trimmed+e)
		}
	}
	for _, e := range moduleExtensions {
		candidates = append(candidates, base+e)
	}
	for _, e := range moduleExtensions {
		candidates = append(candidates, path.Join(base, "index"+e))
	}
	for _, c := range candidates {
		if _, ok := p.units[c]; ok {
			return c, true
		}
	}
	return "", false
}
