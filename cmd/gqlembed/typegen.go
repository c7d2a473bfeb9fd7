package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gqlembed/internal/driver"
)

var typegenCmd = &cobra.Command{
	Use:   "typegen",
	Short: "Generate TypeScript types for embedded documents",
	Long: `Validate the project and write one TypeScript module per source file into the
output directory. Documents with errors are skipped and make the command exit
with status 1. Unchanged modules are not rewritten.`,
	Args: cobra.NoArgs,
	RunE: runTypegen,
}

func init() {
	typegenCmd.Flags().String("out", "", "output directory (relative to each source file, or absolute)")
	typegenCmd.Flags().String("format", "pretty", "diagnostics format (pretty|short|json)")
	typegenCmd.Flags().Bool("mask-fragments", false, "keep fragment spreads as references to the fragment type")
}

func runTypegen(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if err := checkDiagnosticFormat(format); err != nil {
		return err
	}
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	if out != "" {
		s.cfg.Typegen.OutDir = out
	}
	if cmd.Flags().Changed("mask-fragments") {
		if s.cfg.Typegen.MaskFragments, err = cmd.Flags().GetBool("mask-fragments"); err != nil {
			return fmt.Errorf("failed to get mask-fragments flag: %w", err)
		}
	}

	res, err := s.runPipeline(cmd.Context(), "typegen", driver.Typegen)
	s.printTimings()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if err := s.printDiagnostics(w, res, format, false); err != nil {
		return err
	}
	if format == "pretty" {
		mark := color.New(color.FgGreen)
		if !s.color {
			mark.DisableColor()
		}
		for _, g := range res.Generated {
			if !g.Written {
				continue
			}
			rel, relErr := filepath.Rel(s.cfg.Root, g.Path)
			if relErr != nil {
				rel = g.Path
			}
			fmt.Fprintf(w, "%s %s (%d types)\n", mark.Sprint("wrote"), filepath.ToSlash(rel), g.Types)
		}
	}
	if res.HasErrors() {
		return failed(cmd)
	}
	return nil
}
