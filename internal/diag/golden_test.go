package diag

import (
	"testing"

	"gqlembed/internal/source"
)

func TestFormatShortDiagnostics(t *testing.T) {
	fs := source.NewFileSetWithBase("/workspace")

	userFile := fs.Add("/workspace/src/queries.ts", []byte("a\nb\n"), 0)
	otherFile := fs.Add("/workspace/src/other.ts", []byte("x\n"), 0)

	diags := []Diagnostic{
		{
			Severity: SevError,
			Code:     CmpDuplicateFragment,
			Message:  "first line\nsecond",
			Primary:  source.Span{File: userFile, Start: 0, End: 1},
			Notes: []Note{
				{Span: source.Span{File: otherFile, Start: 0, End: 0}, Msg: "also defined here"},
				{Span: source.Span{File: userFile, Start: 2, End: 3}, Msg: "note line"},
			},
		},
		{
			Severity: SevWarning,
			Code:     SemaConformance,
			Message:  "another",
			Primary:  source.Span{File: userFile, Start: 2, End: 3},
		},
	}

	expected := "note CMP4001 src/other.ts:1:1 also defined here\n" +
		"error CMP4001 src/queries.ts:1:1 first line second\n" +
		"note CMP4001 src/queries.ts:2:1 note line\n" +
		"warning SEM3001 src/queries.ts:2:1 another"

	if got := FormatShortDiagnostics(diags, fs, true); got != expected {
		t.Fatalf("unexpected diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestProjectLevelDiagnostic(t *testing.T) {
	fs := source.NewFileSet()
	d := NewProject(SchAcquisition, "schema unavailable")
	if !d.IsProjectLevel() {
		t.Fatalf("expected project-level diagnostic")
	}
	got := FormatShortDiagnostics([]Diagnostic{d}, fs, false)
	if got != "error SCH5001 <project>:0:0 schema unavailable" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestDedupByLocationAndMessage(t *testing.T) {
	sp := source.Span{File: 0, Start: 4, End: 8}
	items := []Diagnostic{
		NewError(SemaConformance, sp, "Cannot query field \"x\" on type \"Query\"."),
		NewError(SemaConformance, sp, "Cannot query field \"x\" on type \"Query\"."),
		NewError(SemaConformance, sp, "other message"),
		NewError(SemaConformance, source.Span{File: 0, Start: 9, End: 9}, "other message"),
	}
	got := Dedup(items)
	if len(got) != 3 {
		t.Fatalf("Dedup kept %d diagnostics, want 3", len(got))
	}
	if !HasErrors(got) {
		t.Fatalf("expected errors")
	}
}

func TestBagLimitAndSort(t *testing.T) {
	b := NewBag(2)
	b.Add(NewError(SemaConformance, source.Span{File: 1, Start: 5}, "b"))
	b.Add(New(SevWarning, CmpTooComplexExpression, source.Span{File: 0, Start: 9}, "a"))
	if b.Add(NewError(SemaConformance, source.Span{}, "c")) {
		t.Fatalf("expected bag limit to reject third diagnostic")
	}
	b.Sort()
	if b.Items()[0].Message != "a" {
		t.Fatalf("unexpected order: %+v", b.Items())
	}
	if !b.HasErrors() || b.Len() != 2 {
		t.Fatalf("expected two diagnostics with an error")
	}
}

func TestCodeIDs(t *testing.T) {
	cases := map[Code]string{
		SynUnexpectedToken:         "SYN2001",
		SemaConformance:            "SEM3001",
		CmpDuplicateFragment:       "CMP4001",
		CmpUnresolvedInterpolation: "CMP4002",
		CmpTooComplexExpression:    "CMP4003",
		CmpCycle:                   "CMP4004",
		SchAcquisition:             "SCH5001",
		IOLoadFileError:            "IO6001",
	}
	for code, want := range cases {
		if got := code.ID(); got != want {
			t.Fatalf("%d.ID() = %s, want %s", code, got, want)
		}
	}
}
