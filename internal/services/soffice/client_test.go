package soffice_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"longimage/internal/services"
	"longimage/internal/services/soffice"
)

type stubExecutor struct {
	args  []string
	onRun func(outDir string) error
}

func (s *stubExecutor) Run(_ context.Context, binary string, args []string, _, _ func(string)) error {
	s.args = append([]string{binary}, args...)
	outDir := ""
	for i, arg := range args {
		if arg == "--outdir" && i+1 < len(args) {
			outDir = args[i+1]
		}
	}
	if s.onRun != nil {
		return s.onRun(outDir)
	}
	return nil
}

func TestConvertToPDF(t *testing.T) {
	outDir := t.TempDir()
	exec := &stubExecutor{onRun: func(dir string) error {
		return os.WriteFile(filepath.Join(dir, "deck.pdf"), []byte("%PDF-1.4"), 0o644)
	}}
	client, err := soffice.New("soffice", 120, soffice.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	produced, err := client.ConvertToPDF(context.Background(), "/docs/deck.pptx", outDir)
	if err != nil {
		t.Fatalf("ConvertToPDF failed: %v", err)
	}
	if produced != filepath.Join(outDir, "deck.pdf") {
		t.Fatalf("unexpected output path %q", produced)
	}

	want := []string{"soffice", "--headless", "--convert-to", "pdf", "--outdir", outDir, "/docs/deck.pptx"}
	if len(exec.args) != len(want) {
		t.Fatalf("unexpected args: %v", exec.args)
	}
	for i := range want {
		if exec.args[i] != want[i] {
			t.Fatalf("arg %d: got %q, want %q", i, exec.args[i], want[i])
		}
	}
}

func TestConvertToPDFFallsBackToOnlyPDF(t *testing.T) {
	outDir := t.TempDir()
	exec := &stubExecutor{onRun: func(dir string) error {
		return os.WriteFile(filepath.Join(dir, "renamed output.pdf"), []byte("%PDF-1.4"), 0o644)
	}}
	client, err := soffice.New("soffice", 120, soffice.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	produced, err := client.ConvertToPDF(context.Background(), "/docs/deck.pptx", outDir)
	if err != nil {
		t.Fatalf("ConvertToPDF failed: %v", err)
	}
	if filepath.Base(produced) != "renamed output.pdf" {
		t.Fatalf("unexpected output path %q", produced)
	}
}

func TestConvertToPDFNoOutputIsCrash(t *testing.T) {
	client, err := soffice.New("soffice", 120, soffice.WithExecutor(&stubExecutor{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.ConvertToPDF(context.Background(), "/docs/deck.pptx", t.TempDir())
	if !errors.Is(err, services.ErrToolCrashed) {
		t.Fatalf("expected ErrToolCrashed, got %v", err)
	}
}

func TestConvertToPDFPropagatesToolErrors(t *testing.T) {
	exec := &stubExecutor{onRun: func(string) error {
		return fmt.Errorf("%w: soffice exceeded its time budget", services.ErrToolTimeout)
	}}
	client, err := soffice.New("soffice", 120, soffice.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.ConvertToPDF(context.Background(), "/docs/deck.pptx", t.TempDir())
	if !errors.Is(err, services.ErrToolTimeout) {
		t.Fatalf("expected ErrToolTimeout, got %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := soffice.New("   ", 120); err == nil {
		t.Fatal("expected error for empty binary")
	}
}
