package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const sampleConfig = `
tag = "graphql"
exclude = ["**/__generated__/**", "legacy/**"]

[schema]
url = "https://api.example.com/graphql"
headers = { Authorization = "Bearer ${API_TOKEN}" }
cache_dir = ".gqlembed"

[typegen]
mask_fragments = true
[typegen.scalars]
DateTime = "string"
`

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigName), sampleConfig)
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Root != root || cfg.Tag != "graphql" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.Typegen.MaskFragments || cfg.Typegen.Scalars["DateTime"] != "string" || cfg.Typegen.OutDir != DefaultOutDir {
		t.Fatalf("typegen = %+v", cfg.Typegen)
	}
	if len(cfg.Include) != len(DefaultInclude) {
		t.Fatalf("include defaults not applied: %v", cfg.Include)
	}
	sc := cfg.SchemaConfig()
	if sc.URL != "https://api.example.com/graphql" || sc.Headers["Authorization"] != "Bearer ${API_TOKEN}" {
		t.Fatalf("schema config = %+v", sc)
	}
	if sc.EnvFile != filepath.Join(root, ".env") || sc.BaseDir != root {
		t.Fatalf("schema paths = %q %q", sc.EnvFile, sc.BaseDir)
	}
}

func TestDiscoverWithoutConfig(t *testing.T) {
	_, err := Discover(t.TempDir())
	if !errors.Is(err, ErrNoConfig) {
		t.Fatalf("Discover = %v, want ErrNoConfig", err)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, content, want string
	}{
		{"unknown key", "tagg = \"gql\"\n", "unknown keys: tagg"},
		{"file and url", "[schema]\nfile = \"a.graphql\"\nurl = \"http://x\"\n", "both file and url"},
		{"syntax", "tag = \n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, tt.name+".toml")
		writeFile(t, path, tt.content)
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: Load = %v, want %q", tt.name, err, tt.want)
		}
	}
}

func TestFilesAppliesGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigName), sampleConfig)
	for _, rel := range []string{
		"src/a.ts",
		"src/b.tsx",
		"src/types.d.ts",
		"src/__generated__/a.ts",
		"legacy/old.ts",
		"node_modules/pkg/index.ts",
		"README.md",
		"index.js",
	} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(rel)), "")
	}
	cfg, err := Load(filepath.Join(root, ConfigName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	files, err := cfg.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	var rels []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		rels = append(rels, filepath.ToSlash(rel))
	}
	// exclude задан явно, поэтому *.d.ts остаётся
	want := "index.js,src/a.ts,src/b.tsx,src/types.d.ts"
	if got := strings.Join(rels, ","); got != want {
		t.Fatalf("Files = %s, want %s", got, want)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/repo")
	if cfg.Tag != "gql" || cfg.Typegen.OutDir != DefaultOutDir {
		t.Fatalf("Default = %+v", cfg)
	}
	ok, err := cfg.Match("src/x.d.ts")
	if err != nil || ok {
		t.Fatalf("Match(d.ts) = %v, %v", ok, err)
	}
	ok, err = cfg.Match("src/x.ts")
	if err != nil || !ok {
		t.Fatalf("Match(ts) = %v, %v", ok, err)
	}
}
