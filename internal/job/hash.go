package job

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ComputeContentHash hashes the source file bytes together with the
// canonical option string. Two submissions with identical bytes and
// equivalent options share a hash and therefore share one render.
func ComputeContentHash(sourcePath string, options Options) (string, error) {
	file, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open source for hashing: %w", err)
	}
	defer file.Close()

	digest := sha256.New()
	if _, err := io.Copy(digest, file); err != nil {
		return "", fmt.Errorf("hash source %q: %w", sourcePath, err)
	}
	if _, err := io.WriteString(digest, options.Canonical()); err != nil {
		return "", fmt.Errorf("hash options: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
