package main

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gqlembed/internal/compose"
	"gqlembed/internal/editor"
	"gqlembed/internal/tsserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the language-service plugin protocol over stdio",
	Long: `Read one JSON request per line from stdin and answer diagnostics, completions
and quick info for embedded documents. Project files are preloaded so that
open buffers can resolve fragments from files that are not open.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	log := s.log.WithField("component", "tsserver")
	surface, err := editor.NewSurface(editor.Options{
		Tag:     s.cfg.Tag,
		Compose: compose.Options{GlobalFragments: s.cfg.GlobalFragments},
		Schema:  s.schema,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	files, err := s.cfg.Files()
	if err != nil {
		return err
	}
	for _, path := range files {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the project walk
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("failed to preload file")
			continue
		}
		surface.Load(path, data)
	}
	// ошибка схемы уходит в диагностики уровня проекта
	_ = surface.LoadSchema(cmd.Context())
	log.WithFields(logrus.Fields{"files": len(files), "root": s.cfg.Root}).Info("serving")

	server := tsserver.NewServer(os.Stdin, os.Stdout, surface, tsserver.Options{Logger: log})
	if err := server.Run(cmd.Context()); err != nil && !errors.Is(err, tsserver.ErrExit) {
		return err
	}
	return nil
}
