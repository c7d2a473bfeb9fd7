package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gqlembed/internal/project"
)

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "src")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg, err := loadConfig(sub)
	if err != nil {
		t.Fatalf("loadConfig without config: %v", err)
	}
	if cfg.Root != sub || cfg.Path != "" {
		t.Fatalf("defaults must be rooted at the directory, got %+v", cfg)
	}

	path := filepath.Join(root, project.ConfigName)
	if err := os.WriteFile(path, []byte("tag = \"graphql\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	for _, arg := range []string{sub, path} {
		cfg, err := loadConfig(arg)
		if err != nil {
			t.Fatalf("loadConfig(%s): %v", arg, err)
		}
		if cfg.Root != root || cfg.Tag != "graphql" {
			t.Fatalf("loadConfig(%s) = root %s tag %s", arg, cfg.Root, cfg.Tag)
		}
	}

	if _, err := loadConfig(filepath.Join(root, "missing")); err == nil {
		t.Fatalf("expected error for a missing project")
	}
}

func TestOverrideSchema(t *testing.T) {
	cfg := project.Default(t.TempDir())
	cfg.Schema.File = "schema.graphql"
	if err := overrideSchema(cfg, "https://api.example.com/graphql"); err != nil {
		t.Fatalf("override url: %v", err)
	}
	if cfg.Schema.URL != "https://api.example.com/graphql" || cfg.Schema.File != "" {
		t.Fatalf("url override not applied: %+v", cfg.Schema)
	}
	if err := overrideSchema(cfg, "other.graphql"); err != nil {
		t.Fatalf("override file: %v", err)
	}
	if !filepath.IsAbs(cfg.Schema.File) || cfg.Schema.URL != "" {
		t.Fatalf("file override not applied: %+v", cfg.Schema)
	}
	before := cfg.Schema
	if err := overrideSchema(cfg, ""); err != nil || cfg.Schema.File != before.File {
		t.Fatalf("empty flag must keep the config")
	}
}

func TestFlagValues(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "ON": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Fatalf("readUIMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatalf("expected error for bad --ui")
	}
	if on, err := readColor("on", os.Stdout); err != nil || !on {
		t.Fatalf("readColor(on) = %v, %v", on, err)
	}
	if _, err := readColor("rainbow", os.Stdout); err == nil {
		t.Fatalf("expected error for bad --color")
	}
	if err := checkDiagnosticFormat("sarif"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderVersionJSON(&buf); err != nil {
		t.Fatalf("renderVersionJSON: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload.Tool != "gqlembed" || payload.Version == "" {
		t.Fatalf("payload = %+v", payload)
	}
}
