package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSetVersioning(t *testing.T) {
	fs := NewFileSet()

	id1 := fs.Add("src/query.ts", []byte("hello world"), 0)
	id2 := fs.Add("src/query.ts", []byte("hello universe"), 0)
	if id1 == id2 {
		t.Fatalf("expected a new FileID for the second Add")
	}
	if got := fs.Get(id1).Version; got != 1 {
		t.Fatalf("first version = %d, want 1", got)
	}
	if got := fs.Get(id2).Version; got != 2 {
		t.Fatalf("second version = %d, want 2", got)
	}
	// старая версия остаётся доступной
	if string(fs.Get(id1).Content) != "hello world" {
		t.Fatalf("old content lost: %q", fs.Get(id1).Content)
	}
	if fs.Get(id1).Hash == fs.Get(id2).Hash {
		t.Fatalf("expected different hashes for different content")
	}
}

func TestAddVersionRejectsStaleVersion(t *testing.T) {
	fs := NewFileSet()
	if _, err := fs.AddVersion("a.ts", []byte("x"), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fs.AddVersion("a.ts", []byte("y"), 3); err == nil {
		t.Fatalf("expected error for non-increasing version")
	}
	id, err := fs.AddVersion("a.ts", []byte("z"), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.Get(id).Flags&FileVirtual == 0 {
		t.Fatalf("editor versions must be virtual")
	}
}

func TestPositionAndOffsetRoundTrip(t *testing.T) {
	fs := NewFileSet()
	content := "line1\nline2\n\nline4"
	f := fs.Get(fs.AddVirtual("t.ts", []byte(content)))

	tests := []struct {
		off  uint32
		want LineCol
	}{
		{0, LineCol{1, 1}},
		{4, LineCol{1, 5}},
		{5, LineCol{1, 6}},
		{6, LineCol{2, 1}},
		{12, LineCol{3, 1}},
		{13, LineCol{4, 1}},
		{17, LineCol{4, 5}},
	}
	for _, tt := range tests {
		got := f.Position(tt.off)
		if got != tt.want {
			t.Fatalf("Position(%d) = %+v, want %+v", tt.off, got, tt.want)
		}
		if back := f.Offset(got); back != tt.off {
			t.Fatalf("Offset(%+v) = %d, want %d", got, back, tt.off)
		}
	}
	if got := f.GetLine(2); got != "line2" {
		t.Fatalf("GetLine(2) = %q", got)
	}
	if got := f.GetLine(9); got != "" {
		t.Fatalf("GetLine(9) = %q, want empty", got)
	}
}

func TestLoadNormalizesCRLFAndBOM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	if err := os.WriteFile(path, []byte("\xEF\xBB\xBFa\r\nb"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs := NewFileSetWithBase(dir)
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	f := fs.Get(id)
	if string(f.Content) != "a\nb" {
		t.Fatalf("content = %q", f.Content)
	}
	if f.Flags&FileHadBOM == 0 || f.Flags&FileNormalizedCRLF == 0 {
		t.Fatalf("flags = %b", f.Flags)
	}
	if got := f.RelPath(dir); got != "a.ts" {
		t.Fatalf("RelPath = %q", got)
	}
}

func TestSpanContains(t *testing.T) {
	s := Span{File: 1, Start: 10, End: 20}
	if !s.Contains(10) || !s.Contains(20) || s.Contains(21) {
		t.Fatalf("Contains mismatch")
	}
	if s.Len() != 10 {
		t.Fatalf("Len = %d", s.Len())
	}
}
