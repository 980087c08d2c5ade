// Package vision prepares screenshots for out-of-band vision analysis by
// the host assistant and stores the HTML replica it returns.
package vision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/imagerender"
	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/workspace"
)

// Preparation is what the user needs to run the vision step.
type Preparation struct {
	ImagePath    string                `json:"image_path"`
	ImageInfo    imagerender.ImageInfo `json:"image_info"`
	OutputPath   string                `json:"output_path"`
	Instructions string                `json:"instructions"`
}

// Processed is a stored HTML replica and its validation report.
type Processed struct {
	HTMLPath   string     `json:"html_path"`
	Validation Validation `json:"validation"`
}

// Replicator owns the html/ side of the workspace.
type Replicator struct {
	ws  *workspace.Workspace
	now func() time.Time
}

// NewReplicator creates a replicator writing into ws's html/ directory.
func NewReplicator(ws *workspace.Workspace) *Replicator {
	return &Replicator{ws: ws, now: time.Now}
}

// Prepare inspects the screenshot and plans where its HTML replica goes.
func (r *Replicator) Prepare(imagePath, outputName string) (*Preparation, error) {
	if imagePath == "" {
		return nil, fmt.Errorf("%w: screenshot path is required", result.ErrUnsupportedInput)
	}
	if _, err := os.Stat(imagePath); err != nil {
		return nil, fmt.Errorf("%w: screenshot not found: %s", result.ErrPrecondition, imagePath)
	}
	info, err := imagerender.Inspect(imagePath)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(strings.TrimSpace(outputName), ".html")
	if name == "" {
		base := filepath.Base(imagePath)
		name = strings.TrimSuffix(base, filepath.Ext(base)) + "_replica"
	}
	out, err := r.ws.Resolve(workspace.HTML, name+".html")
	if err != nil {
		return nil, err
	}

	log.Info().Str("image", filepath.Base(imagePath)).Int("width", info.Width).Int("height", info.Height).Msg("image prepared for analysis")
	return &Preparation{
		ImagePath:    imagePath,
		ImageInfo:    info,
		OutputPath:   out,
		Instructions: Instructions(imagePath, out),
	}, nil
}

// Process cleans html, writes it to html/<outputName>.html and validates it.
// An empty document after cleanup is rejected.
func (r *Replicator) Process(htmlContent, outputName string) (*Processed, error) {
	cleaned := CleanHTML(htmlContent)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: HTML content is empty", result.ErrUnsupportedInput)
	}

	name := strings.TrimSuffix(strings.TrimSpace(outputName), ".html")
	if name == "" {
		name = "claude_replica_" + r.now().Format("20060102_150405")
	}
	out, err := r.ws.Resolve(workspace.HTML, name+".html")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	if err := os.WriteFile(out, []byte(cleaned), 0o644); err != nil {
		return nil, fmt.Errorf("%w: write html: %v", result.ErrFilesystem, err)
	}

	v := ValidateHTML(cleaned)
	ev := log.Info()
	if !v.Valid {
		ev = log.Warn().Strs("issues", v.Issues)
	}
	ev.Str("html", out).Int("length", v.Stats.Length).Bool("valid", v.Valid).Msg("HTML replica saved")

	return &Processed{HTMLPath: out, Validation: v}, nil
}
