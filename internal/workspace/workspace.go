package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/result"
)

// Fixed subdirectories of the workspace tree.
const (
	Screenshots = "screenshots"
	HTML        = "html"
	Templates   = "templates"
	PDF         = "pdf"
	Temp        = "temp"
)

// Dirs lists the subdirectories Ensure creates, in creation order.
var Dirs = []string{Screenshots, HTML, Templates, PDF, Temp}

// Workspace is the artifact tree under an explicit absolute root.
type Workspace struct {
	root string
}

// New validates root and returns a Workspace. It does not touch the disk.
func New(root string) (*Workspace, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: workspace root is empty", result.ErrFilesystem)
	}
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("%w: workspace root must be absolute: %s", result.ErrFilesystem, root)
	}
	return &Workspace{root: filepath.Clean(root)}, nil
}

// Root returns the workspace base path.
func (w *Workspace) Root() string { return w.root }

// Dir returns the absolute path of a fixed subdirectory.
func (w *Workspace) Dir(name string) string { return filepath.Join(w.root, name) }

// Ensure creates the tree. Safe to call repeatedly.
func (w *Workspace) Ensure() error {
	for _, d := range Dirs {
		if err := os.MkdirAll(w.Dir(d), 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", result.ErrFilesystem, d, err)
		}
	}
	log.Debug().Str("root", w.root).Msg("workspace ready")
	return nil
}

// Resolve maps name into dir. Absolute names are accepted as long as they stay
// inside the workspace root; relative names are joined onto dir.
func (w *Workspace) Resolve(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty file name", result.ErrUnsupportedInput)
	}
	var p string
	if filepath.IsAbs(name) {
		p = filepath.Clean(name)
	} else {
		p = filepath.Join(w.Dir(dir), name)
	}
	if !w.Contains(p) {
		return "", fmt.Errorf("%w: path outside workspace: %s", result.ErrFilesystem, name)
	}
	return p, nil
}

// Contains reports whether p lies within the workspace root.
func (w *Workspace) Contains(p string) bool {
	rel, err := filepath.Rel(w.root, filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// TempDir returns a fresh directory under temp/ for one conversion.
func (w *Workspace) TempDir(prefix string) (string, error) {
	if err := os.MkdirAll(w.Dir(Temp), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	d, err := os.MkdirTemp(w.Dir(Temp), prefix)
	if err != nil {
		return "", fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	return d, nil
}

// CleanupTemp removes entries under temp/ older than maxAge and returns how
// many were removed.
func (w *Workspace) CleanupTemp(maxAge time.Duration) int {
	entries, err := os.ReadDir(w.Dir(Temp))
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.Dir(Temp), e.Name())); err != nil {
			log.Warn().Err(err).Str("entry", e.Name()).Msg("temp cleanup failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("temp files cleaned")
	}
	return removed
}
