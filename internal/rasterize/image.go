package rasterize

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"longimage/internal/job"
	"longimage/internal/services"
	"longimage/internal/workspace"
)

// assumedImageDPI is the nominal resolution of raster sources. Scaling
// an image to the configured render DPI keeps its physical size
// consistent with PDF pages rendered at the same DPI.
const assumedImageDPI = 96

// RenderImage decodes a raster source directly and scales it to the
// configured DPI, producing a single-page result in the workspace.
func (r *Rasterizer) RenderImage(ctx context.Context, imagePath string, ws *workspace.Workspace, opts job.Options, progress func(page, total int)) ([]job.PageResult, error) {
	opts = opts.Normalized()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: rasterize interrupted", services.ErrCancelled)
	}

	src, err := decodeImage(imagePath)
	if err != nil {
		return nil, services.Wrap(services.ErrCorruptPage, "rasterize", "decode", "image unreadable", err)
	}

	scale := float64(opts.DPI) / assumedImageDPI
	out := src
	if scale != 1 {
		bounds := src.Bounds()
		width := int(math.Round(float64(bounds.Dx()) * scale))
		height := int(math.Round(float64(bounds.Dy()) * scale))
		if width < 1 {
			width = 1
		}
		if height < 1 {
			height = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, xdraw.Over, nil)
		out = scaled
	}

	pagePath := filepath.Join(ws.PagesDir(), "page-1.png")
	if err := writePNG(pagePath, out); err != nil {
		return nil, fmt.Errorf("write scaled image: %w", err)
	}
	if progress != nil {
		progress(1, 1)
	}

	bounds := out.Bounds()
	return []job.PageResult{{
		Index:     0,
		ImagePath: pagePath,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}}, nil
}

func decodeImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return err
	}
	return file.Close()
}
