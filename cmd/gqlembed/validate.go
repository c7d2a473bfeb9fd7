package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gqlembed/internal/driver"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate embedded documents against the schema",
	Long: `Extract and compose every embedded document of the project and validate it
against the configured schema. Exits with status 1 when any error is reported.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("format", "pretty", "output format (pretty|short|json)")
	validateCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if err := checkDiagnosticFormat(format); err != nil {
		return err
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	res, err := s.runPipeline(cmd.Context(), "validate", driver.Validate)
	s.printTimings()
	if err != nil {
		return err
	}
	if err := s.printDiagnostics(cmd.OutOrStdout(), res, format, withNotes); err != nil {
		return err
	}
	if res.HasErrors() {
		return failed(cmd)
	}
	return nil
}
