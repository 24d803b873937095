// Package naming derives safe output file names from source paths.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename and
// normalizes the result to NFC so names round-trip across filesystems that
// decompose Unicode (CJK and accented source names in particular).
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	return norm.NFC.String(name)
}

// OutputName returns the output file name for a source path: the sanitized
// source base name with the encoder extension. A source whose base name
// sanitizes to nothing falls back to "output".
func OutputName(sourcePath, extension string) string {
	base := filepath.Base(sourcePath)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = SanitizeFileName(base)
	if base == "" {
		base = "output"
	}
	return fmt.Sprintf("%s.%s", base, extension)
}

// OutputPath joins the output directory with the derived output name.
func OutputPath(outputDir, sourcePath, extension string) string {
	return filepath.Join(outputDir, OutputName(sourcePath, extension))
}
