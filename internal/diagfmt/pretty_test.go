package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"gqlembed/internal/diag"
	"gqlembed/internal/source"
)

const queryTS = "const Q = gql`\n\tquery { me { missing } }\n`;\n"

func sampleBag(t *testing.T) (*diag.Bag, *source.FileSet, source.FileID) {
	t.Helper()
	fs := source.NewFileSetWithBase("/home/user/project")
	id := fs.AddVirtual("/home/user/project/src/query.ts", []byte(queryTS))
	start := uint32(strings.Index(queryTS, "missing"))
	bag := diag.NewBag(10)
	bag.Add(diag.NewError(diag.SemaConformance, source.Span{File: id, Start: start, End: start + 7},
		`Cannot query field "missing" on type "User".`).WithEmbedded(source.LineCol{Line: 2, Col: 15}))
	return bag, fs, id
}

// TestPathModes проверяет различные режимы форматирования путей
func TestPathModes(t *testing.T) {
	bag, fs, _ := sampleBag(t)
	tests := []struct {
		name     string
		mode     PathMode
		contains string
	}{
		{name: "Absolute path", mode: PathModeAbsolute, contains: "/home/user/project/src/query.ts:2:15"},
		{name: "Relative path", mode: PathModeRelative, contains: "\nsrc/query.ts:2:15"},
		{name: "Basename only", mode: PathModeBasename, contains: "\nquery.ts:2:15"},
		{name: "Auto inside base", mode: PathModeAuto, contains: "\nsrc/query.ts:2:15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{PathMode: tt.mode})
			output := "\n" + buf.String()
			if !strings.Contains(output, tt.contains) {
				t.Errorf("Expected output to contain %q, got:\n%s", tt.contains, output)
			}
			if !strings.Contains(output, "ERROR SEM3001: Cannot query field") {
				t.Errorf("Expected header in output, got:\n%s", output)
			}
		})
	}
}

func TestPrettySnippetUnderlinesSpan(t *testing.T) {
	bag, fs, _ := sampleBag(t)
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{Context: 1, PathMode: PathModeBasename})
	lines := strings.Split(buf.String(), "\n")
	if len(lines) < 4 {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	if lines[1] != "1 | const Q = gql`" || lines[2] != "2 |     query { me { missing } }" {
		t.Fatalf("context lines wrong:\n%s", buf.String())
	}
	caret := strings.Index(lines[3], "^")
	if caret != strings.Index(lines[2], "missing") || !strings.HasSuffix(lines[3], "^~~~~~") {
		t.Fatalf("caret misplaced:\n%s", buf.String())
	}
}

func TestPrettyProjectLevelAndNotes(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("frags.ts", []byte("a\nb\n"))
	bag := diag.NewBag(4)
	bag.Add(diag.NewProject(diag.SchAcquisition, "schema unavailable"))
	bag.Add(diag.NewError(diag.CmpDuplicateFragment, source.Span{File: id, Start: 0, End: 1}, "duplicate fragment").
		WithNote(source.Span{File: id, Start: 2, End: 3}, "also defined here"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{ShowNotes: true})
	out := buf.String()
	if !strings.Contains(out, "gqlembed: ERROR SCH5001: schema unavailable\n") {
		t.Fatalf("project diagnostic missing:\n%s", out)
	}
	if !strings.Contains(out, "note: frags.ts:2:1: also defined here") {
		t.Fatalf("note missing:\n%s", out)
	}
}

func TestSummary(t *testing.T) {
	bag, _, id := sampleBag(t)
	bag.Add(diag.New(diag.SevWarning, diag.CmpTooComplexExpression, source.Span{File: id}, "w"))
	var buf bytes.Buffer
	Summary(&buf, bag, false)
	if buf.String() != "1 error, 1 warning\n" {
		t.Fatalf("Summary = %q", buf.String())
	}
	buf.Reset()
	Summary(&buf, diag.NewBag(0), false)
	if buf.Len() != 0 {
		t.Fatalf("empty bag must print nothing")
	}
}
