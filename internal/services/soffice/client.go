// Package soffice wraps headless LibreOffice for converting office
// documents to intermediate PDFs.
package soffice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"longimage/internal/logging"
	"longimage/internal/services"
	"longimage/internal/services/command"
)

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger for captured tool output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps soffice invocations.
type Client struct {
	binary         string
	convertTimeout time.Duration
	exec           command.Executor
	logger         *slog.Logger
}

// New constructs a LibreOffice client with the conversion timeout in
// seconds.
func New(binary string, convertTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("soffice binary required")
	}
	client := &Client{
		binary:         binary,
		convertTimeout: time.Duration(convertTimeoutSeconds) * time.Second,
		exec:           command.New(),
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ConvertToPDF converts an office document to a PDF in outDir and
// returns the produced file path. soffice names the output after the
// input base name, so the result is discovered rather than predicted;
// an exit status of zero without a PDF on disk counts as a crash.
func (c *Client) ConvertToPDF(ctx context.Context, inputPath, outDir string) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", errors.New("input path required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create conversion directory: %w", err)
	}

	convertCtx := ctx
	if c.convertTimeout > 0 {
		var cancel context.CancelFunc
		convertCtx, cancel = context.WithTimeout(ctx, c.convertTimeout)
		defer cancel()
	}

	args := []string{"--headless", "--convert-to", "pdf", "--outdir", outDir, inputPath}
	err := c.exec.Run(convertCtx, c.binary, args,
		func(line string) {
			c.logger.Debug("soffice stdout", logging.String("line", line))
		},
		func(line string) {
			c.logger.Debug("soffice stderr", logging.String("line", line))
		},
	)
	if err != nil {
		return "", fmt.Errorf("soffice convert: %w", err)
	}

	produced, err := c.findProducedPDF(inputPath, outDir)
	if err != nil {
		return "", err
	}
	return produced, nil
}

// findProducedPDF locates the conversion output. The expected name is
// the input base with a .pdf extension; if soffice renamed it, fall
// back to the only PDF in the directory.
func (c *Client) findProducedPDF(inputPath, outDir string) (string, error) {
	base := filepath.Base(inputPath)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	expected := filepath.Join(outDir, base+".pdf")
	if info, err := os.Stat(expected); err == nil && !info.IsDir() && info.Size() > 0 {
		return expected, nil
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "*.pdf"))
	if err != nil {
		return "", fmt.Errorf("scan conversion output: %w", err)
	}
	if len(matches) == 1 {
		if info, statErr := os.Stat(matches[0]); statErr == nil && info.Size() > 0 {
			return matches[0], nil
		}
	}
	return "", services.Wrap(services.ErrToolCrashed, "convert", "soffice", "conversion produced no PDF", nil)
}
