package main

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"longimage/internal/config"
	"longimage/internal/job"
	"longimage/internal/testsupport"
)

// writeTestConfig materializes a sandboxed config as a TOML file so
// commands exercise the same load path as real invocations.
func writeTestConfig(t *testing.T, base string) (string, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, cfg
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFixturePNG(t *testing.T, path string) {
	t.Helper()
	testsupport.WritePNG(t, path, 48, 64, color.RGBA{R: 200, G: 100, B: 50, A: 255})
}

func TestConvertCommandImage(t *testing.T) {
	base := t.TempDir()
	configPath, cfg := writeTestConfig(t, base)

	source := filepath.Join(base, "photo.png")
	writeFixturePNG(t, source)

	stdout, _, err := runCLI(t, configPath, "convert", source)
	if err != nil {
		t.Fatalf("convert failed: %v\n%s", err, stdout)
	}

	output := filepath.Join(cfg.Paths.OutputDir, "photo.png")
	info, statErr := os.Stat(output)
	if statErr != nil || info.Size() == 0 {
		t.Fatalf("expected output at %s, err=%v", output, statErr)
	}
	if !strings.Contains(stdout, "photo.png") {
		t.Fatalf("expected per-job output, got:\n%s", stdout)
	}
}

func TestConvertCommandRejectsBadFlags(t *testing.T) {
	base := t.TempDir()
	configPath, _ := writeTestConfig(t, base)

	source := filepath.Join(base, "photo.png")
	writeFixturePNG(t, source)

	cases := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"convert", "--format", "bmp", source}},
		{"dpi too low", []string{"convert", "--dpi", "10", source}},
		{"quality out of range", []string{"convert", "--quality", "150", source}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := runCLI(t, configPath, tc.args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestConvertCommandReportsFailures(t *testing.T) {
	base := t.TempDir()
	configPath, _ := writeTestConfig(t, base)

	source := filepath.Join(base, "notes.xyz")
	if err := os.WriteFile(source, []byte("unknown"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	_, _, err := runCLI(t, configPath, "convert", source)
	if err == nil || !strings.Contains(err.Error(), "1 of 1 conversions failed") {
		t.Fatalf("expected failure summary, got %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	base := t.TempDir()
	configPath, _ := writeTestConfig(t, base)

	binDir := filepath.Join(base, "bin")
	for _, name := range []string{"pdftoppm", "pdfinfo"} {
		testsupport.StubBinary(t, binDir, name, "exit 0")
	}
	t.Setenv("PATH", binDir)

	stdout, _, err := runCLI(t, configPath, "check")
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "pdftoppm") || !strings.Contains(stdout, "soffice") {
		t.Fatalf("expected tool table, got:\n%s", stdout)
	}

	t.Setenv("PATH", base)
	if _, _, err := runCLI(t, configPath, "check"); err == nil {
		t.Fatal("expected missing tool error")
	}
}

func TestCacheStatsCommand(t *testing.T) {
	base := t.TempDir()
	configPath, _ := writeTestConfig(t, base)

	stdout, _, err := runCLI(t, configPath, "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats failed: %v\n%s", err, stdout)
	}
	if !strings.Contains(stdout, "Entries") {
		t.Fatalf("expected stats table, got:\n%s", stdout)
	}
}

func TestRenderTable(t *testing.T) {
	rendered := renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"Entries", "12"},
			{"Disk usage"},
		},
		2,
	)
	if !strings.Contains(rendered, "Metric") || !strings.Contains(rendered, "12") {
		t.Fatalf("unexpected table output:\n%s", rendered)
	}
	for _, line := range strings.Split(rendered, "\n") {
		if strings.Contains(line, "Entries") && !strings.Contains(line, "12 │") {
			t.Fatalf("expected right-aligned value in %q", line)
		}
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output for empty headers")
	}
}

func TestConfigInitCommand(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "nested", "config.toml")

	stdout, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, stdout)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
}

func TestCleanCommand(t *testing.T) {
	base := t.TempDir()
	configPath, cfg := writeTestConfig(t, base)

	stale := filepath.Join(cfg.Paths.WorkDir, "old-job")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir stale: %v", err)
	}

	stdout, _, err := runCLI(t, configPath, "clean", "--max-age", "0")
	if err != nil {
		t.Fatalf("clean failed: %v\n%s", err, stdout)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected stale workspace removed")
	}
}

func TestBuildOptions(t *testing.T) {
	options, err := buildOptions(200, "png", 85, 0, "", 0)
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if options.DPI != 200 || options.Format != job.FormatPNG {
		t.Fatalf("unexpected defaults: %+v", options)
	}

	options, err = buildOptions(200, "png", 85, 300, "jpg", 70)
	if err != nil {
		t.Fatalf("buildOptions with flags: %v", err)
	}
	if options.DPI != 300 || options.Format != job.FormatJPEG || options.JPEGQuality != 70 {
		t.Fatalf("flags not applied: %+v", options)
	}

	if _, err := buildOptions(200, "png", 85, 0, "gif", 0); err == nil {
		t.Fatal("expected format error")
	}
}
