package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"gqlembed/internal/extract"
	"gqlembed/internal/schema"
)

var (
	DefaultInclude = []string{"**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx", "**/*.mts", "**/*.cts"}
	DefaultExclude = []string{"node_modules/**", "**/node_modules/**", "**/__generated__/**", "**/*.d.ts"}
)

const DefaultOutDir = "__generated__"

type SchemaSection struct {
	File     string            `toml:"file"`
	URL      string            `toml:"url"`
	Method   string            `toml:"method"`
	Headers  map[string]string `toml:"headers"`
	CacheDir string            `toml:"cache_dir"`
}

type TypegenSection struct {
	OutDir        string            `toml:"out_dir"`
	MaskFragments bool              `toml:"mask_fragments"`
	Scalars       map[string]string `toml:"scalars"`
}

// Config is the decoded gqlembed.toml plus the directory it was found in.
type Config struct {
	Root            string         `toml:"-"`
	Path            string         `toml:"-"`
	Tag             string         `toml:"tag"`
	Include         []string       `toml:"include"`
	Exclude         []string       `toml:"exclude"`
	GlobalFragments bool           `toml:"global_fragments"`
	Schema          SchemaSection  `toml:"schema"`
	Typegen         TypegenSection `toml:"typegen"`
}

// Default returns the configuration used when root has no gqlembed.toml.
func Default(root string) *Config {
	c := &Config{Root: root}
	c.applyDefaults()
	return c
}

// Load decodes the configuration at path.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	var cfg Config
	meta, err := toml.DecodeFile(abs, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = abs
	cfg.Root = filepath.Dir(abs)
	if cfg.Schema.File != "" && cfg.Schema.URL != "" {
		return nil, fmt.Errorf("%s: [schema] sets both file and url", path)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Discover finds gqlembed.toml at or above startDir and loads it.
func Discover(startDir string) (*Config, error) {
	path, err := FindConfig(startDir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Tag) == "" {
		c.Tag = extract.DefaultTag
	}
	if len(c.Include) == 0 {
		c.Include = DefaultInclude
	}
	if c.Exclude == nil {
		c.Exclude = DefaultExclude
	}
	if c.Typegen.OutDir == "" {
		c.Typegen.OutDir = DefaultOutDir
	}
}

// SchemaConfig returns the schema manager configuration. The project's .env
// supplies header variables.
func (c *Config) SchemaConfig() schema.Config {
	return schema.Config{
		File:     c.Schema.File,
		URL:      c.Schema.URL,
		Method:   c.Schema.Method,
		Headers:  c.Schema.Headers,
		CacheDir: c.Schema.CacheDir,
		EnvFile:  filepath.Join(c.Root, ".env"),
		BaseDir:  c.Root,
	}
}
