// Package stitch composes rasterized pages into one tall image and
// encodes it to the requested output format.
package stitch

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"

	"longimage/internal/job"
	"longimage/internal/services"
)

// Encoder size thresholds. Very large canvases trade encoding effort
// for speed, matching how the conversion behaves on big documents.
const (
	fastPNGPixels = int64(50_000_000)
)

// Result describes the stitched output.
type Result struct {
	OutputPath string
	Width      int
	Height     int
	Pixels     int64
	Bytes      int64
}

// Stitch composes the pages top to bottom onto a white canvas as wide
// as the widest page, horizontally centering narrower pages, and
// encodes the result to outPath. The canvas pixel count is checked
// against maxCanvasPixels before any allocation; once composition
// starts the operation runs to completion.
func Stitch(ctx context.Context, pages []job.PageResult, opts job.Options, outPath string, maxCanvasPixels int64) (Result, error) {
	if len(pages) == 0 {
		return Result{}, fmt.Errorf("no pages to stitch")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: stitch not started", services.ErrCancelled)
	}
	opts = opts.Normalized()

	width, height := canvasSize(pages)
	pixels := int64(width) * int64(height)
	if maxCanvasPixels > 0 && pixels > maxCanvasPixels {
		return Result{}, services.Wrap(services.ErrResourceExhausted, "stitch", "canvas",
			fmt.Sprintf("%dx%d canvas (%d pixels) exceeds the %d pixel ceiling", width, height, pixels, maxCanvasPixels), nil)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	offsetY := 0
	for _, page := range pages {
		img, err := decodePage(page.ImagePath)
		if err != nil {
			return Result{}, services.Wrap(services.ErrCorruptPage, "stitch", "decode",
				fmt.Sprintf("page %d unreadable", page.Index+1), err)
		}
		bounds := img.Bounds()
		offsetX := (width - bounds.Dx()) / 2
		target := image.Rect(offsetX, offsetY, offsetX+bounds.Dx(), offsetY+bounds.Dy())
		draw.Draw(canvas, target, img, bounds.Min, draw.Over)
		offsetY += bounds.Dy()
	}

	if err := encode(canvas, opts, pixels, outPath); err != nil {
		return Result{}, err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat stitched output: %w", err)
	}
	return Result{
		OutputPath: outPath,
		Width:      width,
		Height:     height,
		Pixels:     pixels,
		Bytes:      info.Size(),
	}, nil
}

// canvasSize returns the max page width and the exact height sum.
func canvasSize(pages []job.PageResult) (int, int) {
	width, height := 0, 0
	for _, page := range pages {
		if page.Width > width {
			width = page.Width
		}
		height += page.Height
	}
	return width, height
}

func decodePage(path string) (image.Image, error) {
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

func encode(canvas image.Image, opts job.Options, pixels int64, outPath string) error {
	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create stitched output: %w", err)
	}
	defer file.Close()

	switch opts.Format {
	case job.FormatJPEG:
		if err := jpeg.Encode(file, canvas, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if pixels > fastPNGPixels {
			encoder.CompressionLevel = png.BestSpeed
		}
		if err := encoder.Encode(file, canvas); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	}
	return file.Close()
}
