package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/ankit-chaubey/image-metadata-surgery/internal/config"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, "cache"))

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "surgery", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Clean.Suffix != "_clean" {
		t.Fatalf("unexpected suffix: %q", cfg.Clean.Suffix)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled by default")
	}
	if want := filepath.Join(home, "cache", "surgery", "history.jsonl"); cfg.History.Path != want {
		t.Fatalf("history path = %q, want %q", cfg.History.Path, want)
	}
}

func TestLoadFileAndExpandPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "surgery.toml")
	content := `
[clean]
suffix = " _nometa "
output_dir = "~/cleaned"
workers = 4

[decode]
xmp_properties = true

[logging]
level = "DEBUG"
format = "json"

[history]
enabled = false
path = "~/logs/history.jsonl"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Clean.Suffix != "_nometa" {
		t.Fatalf("suffix not trimmed: %q", cfg.Clean.Suffix)
	}
	if cfg.Clean.OutputDir != filepath.Join(home, "cleaned") {
		t.Fatalf("output dir not expanded: %q", cfg.Clean.OutputDir)
	}
	if cfg.Clean.Workers != 4 || !cfg.Decode.XMPProperties {
		t.Fatalf("unexpected values: %+v %+v", cfg.Clean, cfg.Decode)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging not normalized: %+v", cfg.Logging)
	}
	if cfg.History.Enabled || cfg.History.Path != filepath.Join(home, "logs", "history.jsonl") {
		t.Fatalf("unexpected history: %+v", cfg.History)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"workers", "[clean]\nworkers = -1\n", "clean.workers"},
		{"suffix", "[clean]\nsuffix = \"a/b\"\n", "clean.suffix"},
		{"level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"unknown key", "[clean]\nsufix = \"_x\"\n", "parse config"},
		{"syntax", "[clean\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestDefaultRoundTripsThroughTOML(t *testing.T) {
	cfg := config.Default()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, section := range []string{"[clean]", "[decode]", "[logging]", "[history]"} {
		if !strings.Contains(string(data), section) {
			t.Fatalf("marshalled config lacks %s:\n%s", section, data)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
