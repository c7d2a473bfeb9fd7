package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigName is the project configuration file name.
const ConfigName = "gqlembed.toml"

// ErrNoConfig is returned when no gqlembed.toml exists at or above the start directory.
var ErrNoConfig = errors.New("gqlembed.toml not found")

// FindConfig walks up from startDir to locate gqlembed.toml.
func FindConfig(startDir string) (string, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, ConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%w (searched from %s)", ErrNoConfig, startDir)
}
