package job

import (
	"fmt"
	"strings"
)

// Format selects the output image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat converts a string into a known Format. The jpg alias maps
// to jpeg.
func ParseFormat(value string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "png":
		return FormatPNG, true
	case "jpeg", "jpg":
		return FormatJPEG, true
	default:
		return "", false
	}
}

// Rendering resolution bounds.
const (
	MinDPI     = 72
	MaxDPI     = 600
	DefaultDPI = 200
)

// DefaultJPEGQuality is applied when a job does not override quality.
const DefaultJPEGQuality = 85

// Options holds the per-job conversion settings. Zero values are filled
// with defaults and out-of-range values clamped by Normalized.
type Options struct {
	DPI         int
	Format      Format
	JPEGQuality int
}

// DefaultOptions returns the options applied to jobs with no overrides.
func DefaultOptions() Options {
	return Options{
		DPI:         DefaultDPI,
		Format:      FormatPNG,
		JPEGQuality: DefaultJPEGQuality,
	}
}

// Normalized returns a copy with defaults filled in and values clamped
// into their valid ranges.
func (o Options) Normalized() Options {
	out := o
	if out.DPI == 0 {
		out.DPI = DefaultDPI
	}
	out.DPI = clamp(out.DPI, MinDPI, MaxDPI)
	if parsed, ok := ParseFormat(string(out.Format)); ok {
		out.Format = parsed
	} else {
		out.Format = FormatPNG
	}
	if out.JPEGQuality == 0 {
		out.JPEGQuality = DefaultJPEGQuality
	}
	out.JPEGQuality = clamp(out.JPEGQuality, 1, 100)
	return out
}

// Canonical renders the options in the stable form mixed into the job
// content hash. Two option sets with the same canonical string always
// produce identical output for the same input bytes, so quality only
// participates when the format actually encodes with it.
func (o Options) Canonical() string {
	n := o.Normalized()
	if n.Format == FormatJPEG {
		return fmt.Sprintf("dpi=%d;format=%s;quality=%d", n.DPI, n.Format, n.JPEGQuality)
	}
	return fmt.Sprintf("dpi=%d;format=%s", n.DPI, n.Format)
}

// Extension returns the output file extension for the selected format,
// without the leading dot.
func (o Options) Extension() string {
	if o.Normalized().Format == FormatJPEG {
		return "jpg"
	}
	return "png"
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
