package deps

import (
	"os"
	"path/filepath"
	"testing"

	"longimage/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Path == "" {
		t.Fatal("expected resolved path for available dependency")
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
}

func TestCheckBinariesUnconfigured(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Blank", Command: "   "}})
	if results[0].Available {
		t.Fatal("blank command must be unavailable")
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %s", results[0].Detail)
	}
}

func TestRequirementsAndMissingRequired(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.PdftoppmBinary = "no-such-pdftoppm"
	cfg.Tools.PdfinfoBinary = "no-such-pdfinfo"
	cfg.Tools.SofficeBinary = "no-such-soffice"

	reqs := Requirements(&cfg)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(reqs))
	}

	statuses := CheckBinaries(reqs)
	missing := MissingRequired(statuses)
	if len(missing) != 2 {
		t.Fatalf("expected only the required poppler tools missing, got %v", missing)
	}
	for _, name := range missing {
		if name == "soffice" {
			t.Fatal("optional soffice must not count as required missing")
		}
	}
}
