// Package poppler wraps the Poppler command line tools: pdfinfo for
// probing documents and pdftoppm for rasterizing pages.
package poppler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"longimage/internal/logging"
	"longimage/internal/services"
	"longimage/internal/services/command"
)

// pagePrefix is the pdftoppm output root; produced files look like
// page-01.png, page-02.png and so on.
const pagePrefix = "page"

// watchInterval is how often the rasterizer polls the output directory
// for newly completed pages while pdftoppm runs.
const watchInterval = 250 * time.Millisecond

// Info describes a probed PDF document.
type Info struct {
	Pages     int
	Encrypted bool
}

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

// Client wraps pdfinfo and pdftoppm invocations.
type Client struct {
	pdftoppmBinary string
	pdfinfoBinary  string
	probeTimeout   time.Duration
	renderTimeout  time.Duration
	perPageTimeout time.Duration
	exec           command.Executor
	logger         *slog.Logger
}

// New constructs a Poppler client. Timeouts are in seconds; the render
// budget for a document is renderTimeout plus perPageTimeout per
// expected page.
func New(pdftoppmBinary, pdfinfoBinary string, probeTimeout, renderTimeout, perPageTimeout int, opts ...Option) (*Client, error) {
	pdftoppmBinary = strings.TrimSpace(pdftoppmBinary)
	pdfinfoBinary = strings.TrimSpace(pdfinfoBinary)
	if pdftoppmBinary == "" {
		return nil, errors.New("pdftoppm binary required")
	}
	if pdfinfoBinary == "" {
		return nil, errors.New("pdfinfo binary required")
	}
	client := &Client{
		pdftoppmBinary: pdftoppmBinary,
		pdfinfoBinary:  pdfinfoBinary,
		probeTimeout:   time.Duration(probeTimeout) * time.Second,
		renderTimeout:  time.Duration(renderTimeout) * time.Second,
		perPageTimeout: time.Duration(perPageTimeout) * time.Second,
		exec:           command.New(),
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Probe runs pdfinfo and returns the page count, rejecting encrypted
// and zero-page documents before any rendering starts.
func (c *Client) Probe(ctx context.Context, pdfPath string) (Info, error) {
	probeCtx := ctx
	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}

	var lines []string
	err := c.exec.Run(probeCtx, c.pdfinfoBinary, []string{pdfPath},
		func(line string) { lines = append(lines, line) },
		func(line string) {
			c.logger.Debug("pdfinfo stderr", logging.String("line", line))
		},
	)
	if err != nil {
		return Info{}, fmt.Errorf("pdfinfo probe: %w", err)
	}

	info, err := parseInfo(lines)
	if err != nil {
		return Info{}, err
	}
	if info.Encrypted {
		return info, services.Wrap(services.ErrUnsupportedFormat, "probe", "pdfinfo", "document is encrypted", nil)
	}
	if info.Pages <= 0 {
		return info, services.Wrap(services.ErrUnsupportedFormat, "probe", "pdfinfo", "document has no pages", nil)
	}
	return info, nil
}

// Rasterize runs pdftoppm once for the whole document and returns the
// produced page files ordered by page number. The progress callback is
// invoked as page files appear on disk; pages is the expected count
// from Probe and also scales the time budget.
func (c *Client) Rasterize(ctx context.Context, pdfPath, outDir string, pages, dpi int, format string, progress func(page, total int)) ([]string, error) {
	if pages <= 0 {
		return nil, errors.New("expected page count required")
	}
	ext, flag, err := formatArgs(format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raster directory: %w", err)
	}

	renderCtx := ctx
	if budget := c.renderBudget(pages); budget > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	watchDone := make(chan struct{})
	watcherStopped := make(chan struct{})
	go func() {
		defer close(watcherStopped)
		c.watchPages(watchDone, outDir, ext, pages, progress)
	}()

	args := []string{flag, "-r", strconv.Itoa(dpi), pdfPath, filepath.Join(outDir, pagePrefix)}
	runErr := c.exec.Run(renderCtx, c.pdftoppmBinary, args,
		func(line string) {
			c.logger.Debug("pdftoppm stdout", logging.String("line", line))
		},
		func(line string) {
			c.logger.Debug("pdftoppm stderr", logging.String("line", line))
		},
	)
	close(watchDone)
	<-watcherStopped
	if runErr != nil {
		return nil, fmt.Errorf("pdftoppm render: %w", runErr)
	}

	files, err := CollectPageFiles(outDir, ext)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(len(files), pages)
	}
	return files, nil
}

func (c *Client) renderBudget(pages int) time.Duration {
	return c.renderTimeout + time.Duration(pages)*c.perPageTimeout
}

// watchPages polls the output directory and reports how many page files
// exist so callers see live progress from a single pdftoppm run. The
// last file may still be mid-write, so the count reported here stays one
// short of the expected total; Rasterize reports the final page.
func (c *Client) watchPages(done <-chan struct{}, outDir, ext string, total int, progress func(page, total int)) {
	if progress == nil {
		return
	}
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	reported := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			files, err := CollectPageFiles(outDir, ext)
			if err != nil {
				continue
			}
			count := len(files) - 1
			if count > reported {
				reported = count
				progress(count, total)
			}
		}
	}
}

// CollectPageFiles returns the rasterized page files in outDir ordered
// by their numeric page suffix, never lexically, so page 10 sorts after
// page 9.
func CollectPageFiles(outDir, ext string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("read raster directory: %w", err)
	}

	type numbered struct {
		page int
		path string
	}
	var found []numbered
	suffix := "." + ext
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, pagePrefix+"-") || !strings.HasSuffix(name, suffix) {
			continue
		}
		digits := strings.TrimSuffix(strings.TrimPrefix(name, pagePrefix+"-"), suffix)
		page, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		found = append(found, numbered{page: page, path: filepath.Join(outDir, name)})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].page < found[j].page
	})

	files := make([]string, len(found))
	for i, item := range found {
		files[i] = item.path
	}
	return files, nil
}

func formatArgs(format string) (ext, flag string, err error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "png", "":
		return "png", "-png", nil
	case "jpeg", "jpg":
		return "jpg", "-jpeg", nil
	default:
		return "", "", fmt.Errorf("unsupported raster format %q", format)
	}
}

func parseInfo(lines []string) (Info, error) {
	info := Info{Pages: -1}
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Pages":
			pages, err := strconv.Atoi(value)
			if err != nil {
				return Info{}, services.Wrap(services.ErrUnsupportedFormat, "probe", "pdfinfo", fmt.Sprintf("unreadable page count %q", value), nil)
			}
			info.Pages = pages
		case "Encrypted":
			info.Encrypted = strings.HasPrefix(strings.ToLower(value), "yes")
		}
	}
	if info.Pages < 0 {
		return Info{}, services.Wrap(services.ErrUnsupportedFormat, "probe", "pdfinfo", "page count not reported", nil)
	}
	return info, nil
}
