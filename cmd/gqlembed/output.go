package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gqlembed/internal/diag"
	"gqlembed/internal/diagfmt"
	"gqlembed/internal/driver"
)

// failed marks the command as failed without printing anything more; the
// diagnostics are already on the output.
func failed(cmd *cobra.Command) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return fmt.Errorf("")
}

func (s *session) printDiagnostics(w io.Writer, res *driver.Result, format string, withNotes bool) error {
	bag := diag.NewBag(0)
	for _, d := range res.Diagnostics {
		bag.Add(d)
	}
	bag.Sort()
	switch format {
	case "pretty":
		diagfmt.Pretty(w, bag, res.FileSet, diagfmt.PrettyOpts{
			Color:     s.color,
			Context:   1,
			PathMode:  diagfmt.PathModeAuto,
			ShowNotes: withNotes,
		})
		diagfmt.Summary(w, bag, s.color)
		return nil
	case "short":
		return diagfmt.Short(w, bag, res.FileSet, withNotes)
	case "json":
		return diagfmt.JSON(w, bag, res.FileSet, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         diagfmt.PathModeRelative,
			IncludeNotes:     withNotes,
		})
	}
	return fmt.Errorf("unknown format: %s", format)
}

func checkDiagnosticFormat(format string) error {
	switch format {
	case "pretty", "short", "json":
		return nil
	}
	return fmt.Errorf("unknown format %q (expected pretty|short|json)", format)
}

// openOutput returns stdout for "" and "-", otherwise creates path.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path) // #nosec G304 -- output path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (s *session) printTimings() {
	if s.timer == nil {
		return
	}
	fmt.Fprint(os.Stderr, s.timer.Summary())
}
