package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gqlembed/internal/logging"
	"gqlembed/internal/prof"
	"gqlembed/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "gqlembed",
	Short: "GraphQL documents embedded in TypeScript and JavaScript",
	Long: `gqlembed extracts gql tagged templates from a TypeScript/JavaScript project,
composes them across files, validates them against a schema and generates
TypeScript types. The serve command speaks the language-service plugin protocol.`,
	SilenceUsage:      true,
	PersistentPreRunE: startProfiling,
}

// profiling is stopped in main so that failing commands still flush profiles.
var profiling *prof.Session

// main registers subcommands and persistent flags, then executes the root
// command. Any error, including failed validation, exits with status 1.
func main() {
	// Устанавливаем версию для автоматического флага --version
	rootCmd.Version = version.Version

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(typegenCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("project", ".", "project directory or path to gqlembed.toml")
	rootCmd.PersistentFlags().String("tag", "", "template tag name (overrides config)")
	rootCmd.PersistentFlags().String("schema", "", "schema file or URL (overrides config)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("ui", "auto", "progress UI for batch commands (auto|on|off)")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("log-level", logging.DefaultLevel, "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Int("jobs", 0, "max parallel workers (0=auto)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file on exit")
	rootCmd.PersistentFlags().String("trace", "", "write a runtime trace to file")

	err := rootCmd.Execute()
	if stopErr := profiling.Stop(); stopErr != nil {
		fmt.Fprintf(os.Stderr, "gqlembed: %v\n", stopErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func startProfiling(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return err
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return err
	}
	if opts.Trace, err = flags.GetString("trace"); err != nil {
		return err
	}
	if !opts.Enabled() {
		return nil
	}
	profiling, err = prof.Start(opts)
	return err
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) // #nosec G115 -- fd fits in int
}
