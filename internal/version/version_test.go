package version

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
)

func TestColoredWithoutColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	for _, v := range []string{"0.1.0-dev", "1.2.3", "1.2.3-rc.1+build.123", "weird"} {
		if got := Colored(v); got != v {
			t.Errorf("Colored(%q) = %q", v, got)
		}
	}
}

func TestColoredHighlightsComponents(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	got := Colored("1.2.3-dev")
	if got == "1.2.3-dev" || !bytes.HasSuffix([]byte(got), []byte("-dev")) {
		t.Fatalf("Colored = %q", got)
	}
}

func TestWriteIncludesMetadata(t *testing.T) {
	prevColor, prevCommit, prevDate := color.NoColor, GitCommit, BuildDate
	color.NoColor = true
	GitCommit, BuildDate = "abc123", "2024-01-15T10:30:00Z"
	defer func() { color.NoColor, GitCommit, BuildDate = prevColor, prevCommit, prevDate }()

	var buf bytes.Buffer
	if err := Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "gqlembed " + Version + "\ncommit: abc123\nbuilt:  2024-01-15T10:30:00Z\n"
	if buf.String() != want {
		t.Fatalf("Write = %q, want %q", buf.String(), want)
	}
}
