package typegen

import (
	"sort"
	"strconv"
	"strings"
)

const header = "// Code generated by gqlembed. DO NOT EDIT.\n"

// Emit renders one TypeScript module. Declarations repeated across roots
// (shared enums and input objects) are written once. importPath maps the
// unit that declares an external type to a module specifier.
func Emit(types []*GeneratedType, importPath func(unit string) string) string {
	ordered := Order(types)

	byModule := make(map[string]map[string]bool)
	for _, t := range ordered {
		for _, ref := range t.Imports {
			if importPath == nil {
				continue
			}
			spec := importPath(ref.Unit)
			if byModule[spec] == nil {
				byModule[spec] = make(map[string]bool)
			}
			byModule[spec][ref.Name] = true
		}
	}
	modules := make([]string, 0, len(byModule))
	for spec := range byModule {
		modules = append(modules, spec)
	}
	sort.Strings(modules)

	var b strings.Builder
	b.WriteString(header)
	if len(modules) > 0 {
		b.WriteByte('\n')
	}
	for _, spec := range modules {
		names := make([]string, 0, len(byModule[spec]))
		for name := range byModule[spec] {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("import type { " + strings.Join(names, ", ") + " } from " + strconv.Quote(spec) + ";\n")
	}
	for _, t := range ordered {
		b.WriteByte('\n')
		b.WriteString(t.Decl())
	}
	return b.String()
}
