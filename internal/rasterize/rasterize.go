// Package rasterize turns a source document into an ordered set of page
// images ready for stitching. PDFs go through the Poppler adapter;
// raster images bypass subprocesses entirely.
package rasterize

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"

	"longimage/internal/job"
	"longimage/internal/logging"
	"longimage/internal/services"
	"longimage/internal/services/poppler"
	"longimage/internal/workspace"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// PDFRenderer is the subset of the Poppler client the rasterizer needs.
type PDFRenderer interface {
	Probe(ctx context.Context, pdfPath string) (poppler.Info, error)
	Rasterize(ctx context.Context, pdfPath, outDir string, pages, dpi int, format string, progress func(page, total int)) ([]string, error)
}

// Rasterizer renders source documents into per-page image files.
type Rasterizer struct {
	pdf    PDFRenderer
	logger *slog.Logger
}

// New constructs a Rasterizer on top of a PDF renderer.
func New(pdf PDFRenderer, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Rasterizer{pdf: pdf, logger: logger}
}

// RenderPDF probes the document, rasterizes every page, and returns the
// page results in page order. The produced file count must match the
// probe; a shortfall means a page failed to render and fails the job.
func (r *Rasterizer) RenderPDF(ctx context.Context, pdfPath string, ws *workspace.Workspace, opts job.Options, progress func(page, total int)) ([]job.PageResult, error) {
	opts = opts.Normalized()

	info, err := r.pdf.Probe(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("probed document",
		logging.String("path", pdfPath),
		logging.Int("pages", info.Pages),
	)

	files, err := r.pdf.Rasterize(ctx, pdfPath, ws.PagesDir(), info.Pages, opts.DPI, string(opts.Format), progress)
	if err != nil {
		return nil, err
	}
	if len(files) != info.Pages {
		return nil, services.Wrap(services.ErrCorruptPage, "rasterize", "pdftoppm",
			fmt.Sprintf("expected %d pages, produced %d", info.Pages, len(files)), nil)
	}

	pages := make([]job.PageResult, 0, len(files))
	for index, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: rasterize interrupted", services.ErrCancelled)
		}
		width, height, err := decodeDimensions(file)
		if err != nil {
			return nil, services.Wrap(services.ErrCorruptPage, "rasterize", "decode",
				fmt.Sprintf("page %d unreadable", index+1), err)
		}
		pages = append(pages, job.PageResult{
			Index:     index,
			ImagePath: file,
			Width:     width,
			Height:    height,
		})
	}
	return pages, nil
}

// decodeDimensions reads just the image header for its pixel size.
func decodeDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
