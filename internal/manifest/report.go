package manifest

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gqlembed/internal/compose"
	"gqlembed/internal/source"
)

type ReportOptions struct {
	IncludeFragments bool
	Title            string
}

// Report writes a markdown listing of every operation (and optionally
// fragment) with its source text, grouped by file.
func Report(w io.Writer, p *compose.Project, fs *source.FileSet, opts ReportOptions) error {
	byFile := make(map[string][]*compose.Node)
	for _, n := range p.Nodes {
		switch n.Kind {
		case compose.KindOperation:
		case compose.KindFragment:
			if !opts.IncludeFragments {
				continue
			}
		default:
			continue
		}
		path := n.Span.Path
		if f := fs.Get(n.Span.File); f != nil {
			path = f.RelPath(fs.BaseDir())
		}
		byFile[path] = append(byFile[path], n)
	}
	files := make([]string, 0, len(byFile))
	for path := range byFile {
		files = append(files, path)
	}
	sort.Strings(files)

	title := opts.Title
	if title == "" {
		title = "GraphQL documents"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	if len(files) == 0 {
		b.WriteString("\nNo documents found.\n")
	}
	for _, path := range files {
		fmt.Fprintf(&b, "\n## %s\n", path)
		nodes := byFile[path]
		sort.SliceStable(nodes, func(i, j int) bool {
			if nodes[i].Span.Host.Start != nodes[j].Span.Host.Start {
				return nodes[i].Span.Host.Start < nodes[j].Span.Host.Start
			}
			return nodes[i].Start < nodes[j].Start
		})
		for _, n := range nodes {
			line := uint32(0)
			if f := fs.Get(n.Span.File); f != nil {
				line = f.Position(n.Site().Start).Line
			}
			fmt.Fprintf(&b, "\n### %s (line %d)\n\n", n.Label(), line)
			b.WriteString("```graphql\n")
			b.WriteString(strings.TrimSpace(n.Text()))
			b.WriteString("\n```\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
