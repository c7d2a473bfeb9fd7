package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vektah/gqlparser/v2/formatter"

	"gqlembed/internal/driver"
	"gqlembed/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and refresh the project's schema",
}

var schemaFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Load the schema, bypassing the disk cache, and print a summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		snap, err := s.loadSchema(cmd, true)
		if err != nil {
			return err
		}
		label := color.New(color.Bold)
		if !s.color {
			label.DisableColor()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", label.Sprint("schema:"), snap.Origin, snap.Source)
		fmt.Fprintf(cmd.OutOrStdout(), "  types:  %d\n", userTypes(snap))
		fmt.Fprintf(cmd.OutOrStdout(), "  digest: %016x\n", snap.Digest)
		fmt.Fprintf(cmd.OutOrStdout(), "  loaded: %s\n", snap.LoadedAt.Format(time.RFC3339))
		return nil
	},
}

var schemaPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the schema as SDL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		snap, err := s.loadSchema(cmd, false)
		if err != nil {
			return err
		}
		formatter.NewFormatter(cmd.OutOrStdout()).FormatSchema(snap.Schema)
		return nil
	},
}

var schemaClearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop cached introspection results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		if s.cfg.Schema.CacheDir == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "no schema cache_dir configured")
			return nil
		}
		if err := s.schema.ClearCache(); err != nil {
			return fmt.Errorf("failed to clear schema cache: %w", err)
		}
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaFetchCmd, schemaPrintCmd, schemaClearCacheCmd)
}

func (s *session) loadSchema(cmd *cobra.Command, refresh bool) (*schema.Snapshot, error) {
	if !s.schema.Configured() {
		return nil, driver.ErrNoSchema
	}
	if refresh {
		return s.schema.Refresh(cmd.Context())
	}
	return s.schema.Acquire(cmd.Context())
}

func userTypes(snap *schema.Snapshot) int {
	n := 0
	for _, def := range snap.Schema.Types {
		if !def.BuiltIn {
			n++
		}
	}
	return n
}
