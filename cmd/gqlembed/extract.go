package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gqlembed/internal/driver"
	"gqlembed/internal/manifest"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Write a manifest of every embedded document",
	Long: `Extract and compose the embedded documents of the project and write a
manifest (JSON or msgpack) listing each operation and fragment with its
location and composed text. With --validate the manifest also carries
per-document error counts.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringP("out", "o", "-", "manifest path (- for stdout)")
	extractCmd.Flags().String("format", "json", "manifest format (json|msgpack)")
	extractCmd.Flags().Bool("validate", false, "validate documents against the schema")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if format != "json" && format != "msgpack" {
		return fmt.Errorf("unknown format %q (expected json|msgpack)", format)
	}
	withValidation, err := cmd.Flags().GetBool("validate")
	if err != nil {
		return fmt.Errorf("failed to get validate flag: %w", err)
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	run := driver.Extract
	if withValidation {
		run = driver.Validate
	}
	res, err := s.runPipeline(cmd.Context(), "extract", run)
	s.printTimings()
	if err != nil {
		return err
	}

	m := manifest.Build(res.Project, res.FileSet, res.Results)
	w, err := openOutput(out)
	if err != nil {
		return err
	}
	if format == "msgpack" {
		err = m.WriteMsgpack(w)
	} else {
		err = m.WriteJSON(w)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	// диагностики идут в stderr, stdout может быть манифестом
	if len(res.Diagnostics) > 0 {
		if err := s.printDiagnostics(os.Stderr, res, "pretty", false); err != nil {
			return err
		}
	}
	if withValidation && res.HasErrors() {
		return failed(cmd)
	}
	return nil
}
