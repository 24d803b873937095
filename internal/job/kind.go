package job

import (
	"path/filepath"
	"slices"
	"strings"
)

// Kind classifies a source file by the conversion path it takes.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindOffice      Kind = "office"
	KindImage       Kind = "image"
	KindUnsupported Kind = "unsupported"
)

var officeExtensions = map[string]struct{}{
	".doc":  {},
	".docx": {},
	".ppt":  {},
	".pptx": {},
	".csv":  {},
	".xls":  {},
	".xlsx": {},
	".odt":  {},
	".rtf":  {},
	".txt":  {},
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".bmp":  {},
	".gif":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// KindForPath classifies a file by extension. Unknown extensions map to
// KindUnsupported; callers fail such jobs before any subprocess runs.
func KindForPath(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return KindPDF
	case hasExtension(officeExtensions, ext):
		return KindOffice
	case hasExtension(imageExtensions, ext):
		return KindImage
	default:
		return KindUnsupported
	}
}

// OfficeExtensions returns the supported office document extensions,
// without the leading dot, in stable order.
func OfficeExtensions() []string {
	return sortedExtensions(officeExtensions)
}

// ImageExtensions returns the supported raster image extensions, without
// the leading dot, in stable order.
func ImageExtensions() []string {
	return sortedExtensions(imageExtensions)
}

func hasExtension(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}

func sortedExtensions(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for ext := range set {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(out)
	return out
}
