package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gqlembed/internal/driver"
	"gqlembed/internal/manifest"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a markdown listing of the project's documents",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringP("out", "o", "-", "report path (- for stdout)")
	reportCmd.Flags().Bool("fragments", false, "include fragment definitions")
	reportCmd.Flags().String("title", "", "report title")
}

func runReport(cmd *cobra.Command, _ []string) error {
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	fragments, err := cmd.Flags().GetBool("fragments")
	if err != nil {
		return fmt.Errorf("failed to get fragments flag: %w", err)
	}
	title, err := cmd.Flags().GetString("title")
	if err != nil {
		return fmt.Errorf("failed to get title flag: %w", err)
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	res, err := s.runPipeline(cmd.Context(), "report", driver.Extract)
	s.printTimings()
	if err != nil {
		return err
	}
	w, err := openOutput(out)
	if err != nil {
		return err
	}
	err = manifest.Report(w, res.Project, res.FileSet, manifest.ReportOptions{IncludeFragments: fragments, Title: title})
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
