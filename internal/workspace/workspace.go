// Package workspace manages per-job scratch directories under the
// configured work root. Every job renders and stitches inside its own
// workspace, which is removed on all exit paths.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is a scoped scratch directory for one job.
type Workspace struct {
	root string
}

// Create makes a workspace directory for the given job under workDir,
// with a pages subdirectory for rasterized output.
func Create(workDir, jobID string) (*Workspace, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, fmt.Errorf("work directory not configured")
	}
	root := filepath.Join(workDir, jobID)
	if err := os.MkdirAll(filepath.Join(root, "pages"), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %q: %w", root, err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// PagesDir returns the directory rasterized pages are written to.
func (w *Workspace) PagesDir() string {
	return filepath.Join(w.root, "pages")
}

// StagingPath returns a path inside the workspace for the stitched image
// before it is published to the output directory.
func (w *Workspace) StagingPath(name string) string {
	return filepath.Join(w.root, name)
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if w == nil || w.root == "" {
		return nil
	}
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("remove workspace %q: %w", w.root, err)
	}
	return nil
}
