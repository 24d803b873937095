package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"longimage/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	loaded, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if loaded.Conversion.DPI != 200 {
		t.Fatalf("expected default dpi 200, got %d", loaded.Conversion.DPI)
	}
	if loaded.Conversion.OutputFormat != "png" {
		t.Fatalf("expected default format png, got %q", loaded.Conversion.OutputFormat)
	}
	if loaded.Scheduler.SubmitPolicy != "block" {
		t.Fatalf("expected default submit policy block, got %q", loaded.Scheduler.SubmitPolicy)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[conversion]
dpi = 300
output_format = "JPG"
jpeg_quality = 70

[scheduler]
workers = 2
submit_policy = "REJECT"

[paths]
output_dir = "` + filepath.Join(dir, "out") + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Conversion.OutputFormat != "jpeg" {
		t.Fatalf("expected jpg alias normalized to jpeg, got %q", cfg.Conversion.OutputFormat)
	}
	if cfg.Scheduler.SubmitPolicy != "reject" {
		t.Fatalf("expected lowercased submit policy, got %q", cfg.Scheduler.SubmitPolicy)
	}
	if cfg.Conversion.DPI != 300 || cfg.Conversion.JPEGQuality != 70 {
		t.Fatalf("unexpected conversion settings: %+v", cfg.Conversion)
	}
	if !filepath.IsAbs(cfg.Paths.WorkDir) {
		t.Fatalf("expected expanded work dir, got %q", cfg.Paths.WorkDir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"dpi too low", "[conversion]\ndpi = 50\n", "conversion.dpi"},
		{"dpi too high", "[conversion]\ndpi = 700\n", "conversion.dpi"},
		{"bad format", "[conversion]\noutput_format = \"webp\"\n", "output_format"},
		{"bad quality", "[conversion]\njpeg_quality = 150\n", "jpeg_quality"},
		{"bad policy", "[scheduler]\nsubmit_policy = \"drop\"\n", "submit_policy"},
		{"negative workers", "[scheduler]\nworkers = -1\n", "workers"},
		{"bad log format", "[logging]\nformat = \"yaml\"\n", "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Paths.WorkDir = filepath.Join(dir, "work")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Cache.Enabled = true

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, p := range []string{cfg.Paths.OutputDir, cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.Cache.Dir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", p, err)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[conversion]") {
		t.Fatal("sample config missing conversion section")
	}
}
