package diag

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"gqlembed/internal/source"
)

// projectPath stands in for the file of project-level diagnostics.
const projectPath = "<project>"

type shortLine struct {
	kind string // severity label или "note"
	code string
	path string
	line uint32
	col  uint32
	msg  string
}

func (l shortLine) String() string {
	return fmt.Sprintf("%s %s %s:%d:%d %s", l.kind, l.code, l.path, l.line, l.col, l.msg)
}

func compareShort(a, b shortLine) int {
	return cmp.Or(
		cmp.Compare(a.path, b.path),
		cmp.Compare(a.line, b.line),
		cmp.Compare(a.col, b.col),
		cmp.Compare(a.kind, b.kind),
		cmp.Compare(a.code, b.code),
		cmp.Compare(a.msg, b.msg),
	)
}

// FormatShortDiagnostics renders one line per diagnostic, plus one per note
// when includeNotes is set:
//
//	<severity> <CODE> <path>:<line>:<col> <message>
//
// Paths are relative to the FileSet base, positions are host positions and
// messages are folded onto one line. Lines are sorted by location, so the
// output is stable across runs; tests compare against it directly.
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if fs == nil {
		return ""
	}
	var lines []shortLine
	add := func(kind, code string, sp source.Span, msg string) {
		path, pos, ok := locate(fs, sp)
		if !ok {
			return
		}
		lines = append(lines, shortLine{kind: kind, code: code, path: path, line: pos.Line, col: pos.Col, msg: oneLine(msg)})
	}
	for i := range diags {
		d := &diags[i]
		add(d.Severity.Label(), d.Code.ID(), d.Primary, d.Message)
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			add("note", d.Code.ID(), n.Span, n.Msg)
		}
	}
	slices.SortStableFunc(lines, compareShort)

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	return strings.Join(out, "\n")
}

func locate(fs *source.FileSet, sp source.Span) (string, source.LineCol, bool) {
	if sp.File == source.NoFile {
		return projectPath, source.LineCol{}, true
	}
	if !fs.HasFile(sp.File) {
		return "", source.LineCol{}, false
	}
	start, _ := fs.Resolve(sp)
	rel := filepath.ToSlash(fs.Get(sp.File).RelPath(fs.BaseDir()))
	for strings.HasPrefix(rel, "./") {
		rel = rel[2:]
	}
	return rel, start, true
}

func oneLine(msg string) string {
	msg = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(msg)
	return strings.TrimSpace(msg)
}
