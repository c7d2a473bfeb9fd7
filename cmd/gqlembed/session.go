package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gqlembed/internal/driver"
	"gqlembed/internal/logging"
	"gqlembed/internal/observ"
	"gqlembed/internal/project"
	"gqlembed/internal/schema"
)

// session is the state shared by every command: the resolved project
// configuration with flag overrides applied, the logger and the schema.
type session struct {
	cfg    *project.Config
	log    *logrus.Logger
	schema *schema.Manager
	timer  *observ.Timer
	color  bool
	ui     uiMode
	jobs   int
}

func newSession(cmd *cobra.Command) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	projectPath, err := flags.GetString("project")
	if err != nil {
		return nil, fmt.Errorf("failed to get project flag: %w", err)
	}
	level, err := flags.GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	log, err := logging.New(level, os.Stderr)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(projectPath)
	if err != nil {
		return nil, err
	}

	tag, err := flags.GetString("tag")
	if err != nil {
		return nil, fmt.Errorf("failed to get tag flag: %w", err)
	}
	if tag != "" {
		cfg.Tag = tag
	}
	schemaFlag, err := flags.GetString("schema")
	if err != nil {
		return nil, fmt.Errorf("failed to get schema flag: %w", err)
	}
	if err := overrideSchema(cfg, schemaFlag); err != nil {
		return nil, err
	}

	colorFlag, err := flags.GetString("color")
	if err != nil {
		return nil, fmt.Errorf("failed to get color flag: %w", err)
	}
	useColor, err := readColor(colorFlag, os.Stdout)
	if err != nil {
		return nil, err
	}
	uiFlag, err := flags.GetString("ui")
	if err != nil {
		return nil, fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return nil, err
	}
	showTimings, err := flags.GetBool("timings")
	if err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs flag: %w", err)
	}

	s := &session{
		cfg:   cfg,
		log:   log,
		color: useColor,
		ui:    mode,
		jobs:  jobs,
	}
	s.schema = schema.NewManager(cfg.SchemaConfig(), schema.WithLogger(log.WithField("component", "schema")))
	if showTimings {
		s.timer = observ.NewTimer()
	}
	log.WithFields(logrus.Fields{"root": cfg.Root, "config": cfg.Path, "tag": cfg.Tag}).Debug("project loaded")
	return s, nil
}

// loadConfig accepts a gqlembed.toml path or a directory. A directory without
// a config file anywhere above it gets the defaults rooted at itself.
func loadConfig(path string) (*project.Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project: %w", err)
	}
	if !st.IsDir() {
		return project.Load(abs)
	}
	cfg, err := project.Discover(abs)
	if errors.Is(err, project.ErrNoConfig) {
		return project.Default(abs), nil
	}
	return cfg, err
}

func overrideSchema(cfg *project.Config, value string) error {
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		cfg.Schema.URL, cfg.Schema.File = value, ""
		return nil
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return fmt.Errorf("failed to resolve schema %q: %w", value, err)
	}
	cfg.Schema.File, cfg.Schema.URL = abs, ""
	return nil
}

func (s *session) driverOptions() driver.Options {
	return driver.Options{
		Config: s.cfg,
		Schema: s.schema,
		Jobs:   s.jobs,
		Logger: s.log,
		Timer:  s.timer,
	}
}
