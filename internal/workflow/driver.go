package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/docconvert"
	"github.com/local/resumevision/internal/pdfexport"
	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/vision"
	"github.com/local/resumevision/internal/workspace"
)

// Converter renders a document to screenshots.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputName string) (*docconvert.Output, error)
}

// Replicator prepares screenshots and stores returned HTML.
type Replicator interface {
	Prepare(imagePath, outputName string) (*vision.Preparation, error)
	Process(htmlContent, outputName string) (*vision.Processed, error)
}

// Exporter prints HTML to PDF.
type Exporter interface {
	Export(ctx context.Context, htmlPath, outputPath string) (*pdfexport.Export, error)
}

// TemplateSaver stores HTML as a named template.
type TemplateSaver interface {
	Save(htmlPath, name, description string) (string, error)
}

// Components resolves the backing components on demand, so a workflow step
// only constructs what it needs.
type Components struct {
	Converter  func() (Converter, error)
	Replicator func() (Replicator, error)
	Exporter   func() (Exporter, error)
	Templates  func() (TemplateSaver, error)
}

// Started is the outcome of Start.
type Started struct {
	Workflow    *Workflow
	Conversion  *docconvert.Output
	Preparation *vision.Preparation
}

// Driver sequences the tools for named workflows.
type Driver struct {
	store Store
	ws    *workspace.Workspace
	comps Components
	now   func() time.Time

	mu sync.Mutex
}

// NewDriver creates a driver over store. Relative HTML names resolve under
// ws's html/ directory.
func NewDriver(store Store, ws *workspace.Workspace, comps Components) *Driver {
	return &Driver{store: store, ws: ws, comps: comps, now: time.Now}
}

// htmlPath resolves a relative HTML name under html/, matching the exporter.
func (d *Driver) htmlPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) || d.ws == nil {
		return p, nil
	}
	return d.ws.Resolve(workspace.HTML, p)
}

// Store exposes the backing store.
func (d *Driver) Store() Store { return d.store }

// Start converts filePath, prepares the first screenshot for vision
// analysis and records a new workflow. An empty name gets a generated one.
func (d *Driver) Start(ctx context.Context, filePath, name string) (*Started, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name == "" {
		name = DefaultName(d.now())
	}
	now := d.now()
	w := &Workflow{
		Name:      name,
		InputPath: filePath,
		Step:      StepCreated,
		Status:    StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.Save(ctx, w); err != nil {
		return nil, err
	}
	log.Info().Str("workflow", name).Str("input", filePath).Msg("workflow started")

	conv, err := d.comps.Converter()
	if err != nil {
		return nil, d.fail(ctx, w, err)
	}
	out, err := conv.Convert(ctx, filePath, name)
	if err != nil {
		return nil, d.fail(ctx, w, err)
	}
	w.ScreenshotPath = out.Primary()
	w.ScreenshotPaths = out.Paths
	w.Advance(StepScreenshot, d.now())
	if err := d.store.Save(ctx, w); err != nil {
		return nil, err
	}

	rep, err := d.comps.Replicator()
	if err != nil {
		return nil, d.fail(ctx, w, err)
	}
	prep, err := rep.Prepare(w.ScreenshotPath, name)
	if err != nil {
		return nil, d.fail(ctx, w, err)
	}
	w.Advance(StepReadyForVision, d.now())
	if err := d.store.Save(ctx, w); err != nil {
		return nil, err
	}

	return &Started{Workflow: w.Clone(), Conversion: out, Preparation: prep}, nil
}

// RecordHTML stores html for a workflow. With a workflow name the
// workflow's screenshot must exist on disk first; without one the HTML is
// stored standalone.
func (d *Driver) RecordHTML(ctx context.Context, name, htmlContent, outputName string) (*vision.Processed, *Workflow, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var w *Workflow
	if name != "" {
		var err error
		if w, err = d.store.Get(ctx, name); err != nil {
			return nil, nil, err
		}
		if err := requireFile(w.ScreenshotPath, "screenshot"); err != nil {
			return nil, w, err
		}
		if outputName == "" {
			outputName = name
		}
	}

	rep, err := d.comps.Replicator()
	if err != nil {
		return nil, w, d.failIf(ctx, w, err)
	}
	processed, err := rep.Process(htmlContent, outputName)
	if err != nil {
		return nil, w, d.failIf(ctx, w, err)
	}
	if w != nil {
		w.HTMLPath = processed.HTMLPath
		w.Advance(StepHTML, d.now())
		if err := d.store.Save(ctx, w); err != nil {
			return nil, w, err
		}
	}
	return processed, w.Clone(), nil
}

// Export prints the workflow's HTML (or htmlPath when given) to PDF.
func (d *Driver) Export(ctx context.Context, name, htmlPath, outputPath string) (*pdfexport.Export, *Workflow, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var w *Workflow
	if name != "" {
		var err error
		if w, err = d.store.Get(ctx, name); err != nil {
			return nil, nil, err
		}
		if htmlPath == "" {
			htmlPath = w.HTMLPath
		}
		if outputPath == "" {
			outputPath = name + ".pdf"
		}
	}
	if htmlPath == "" {
		return nil, w, fmt.Errorf("%w: no HTML file to export", result.ErrPrecondition)
	}
	htmlPath, err := d.htmlPath(htmlPath)
	if err != nil {
		return nil, w, err
	}
	if w != nil {
		if err := requireFile(htmlPath, "HTML"); err != nil {
			return nil, w, err
		}
	}

	exp, err := d.comps.Exporter()
	if err != nil {
		return nil, w, d.failIf(ctx, w, err)
	}
	out, err := exp.Export(ctx, htmlPath, outputPath)
	if err != nil {
		return nil, w, d.failIf(ctx, w, err)
	}
	if w != nil {
		w.HTMLPath = out.HTMLPath
		w.PDFPath = out.PDFPath
		w.ArtifactURL = out.ArtifactURL
		w.Advance(StepPDF, d.now())
		if err := d.store.Save(ctx, w); err != nil {
			return nil, w, err
		}
	}
	return out, w.Clone(), nil
}

// SaveTemplate stores htmlPath (or the workflow's HTML) as a template.
func (d *Driver) SaveTemplate(ctx context.Context, name, htmlPath, templateName, description string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var w *Workflow
	if name != "" {
		var err error
		if w, err = d.store.Get(ctx, name); err != nil {
			return "", err
		}
		if htmlPath == "" {
			htmlPath = w.HTMLPath
		}
	}
	if htmlPath == "" {
		return "", fmt.Errorf("%w: no HTML file to save", result.ErrPrecondition)
	}
	htmlPath, err := d.htmlPath(htmlPath)
	if err != nil {
		return "", err
	}
	if err := requireFile(htmlPath, "HTML"); err != nil {
		return "", err
	}

	tm, err := d.comps.Templates()
	if err != nil {
		return "", err
	}
	p, err := tm.Save(htmlPath, templateName, description)
	if err != nil {
		return "", err
	}
	if w != nil {
		w.TemplatePath = p
		w.UpdatedAt = d.now()
		if err := d.store.Save(ctx, w); err != nil {
			return "", err
		}
	}
	return p, nil
}

// Status returns a snapshot of the named workflow.
func (d *Driver) Status(ctx context.Context, name string) (*Workflow, error) {
	return d.store.Get(ctx, name)
}

// Names lists known workflows.
func (d *Driver) Names(ctx context.Context) ([]string, error) {
	return d.store.List(ctx)
}

func (d *Driver) fail(ctx context.Context, w *Workflow, err error) error {
	w.Fail(err, d.now())
	if serr := d.store.Save(ctx, w); serr != nil {
		log.Error().Err(serr).Str("workflow", w.Name).Msg("failed to record workflow failure")
	}
	log.Error().Err(err).Str("workflow", w.Name).Str("step", string(w.Step)).Msg("workflow step failed")
	return err
}

func (d *Driver) failIf(ctx context.Context, w *Workflow, err error) error {
	if w == nil {
		return err
	}
	return d.fail(ctx, w, err)
}

func requireFile(path, what string) error {
	if path == "" {
		return fmt.Errorf("%w: workflow has no %s yet", result.ErrPrecondition, what)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s file missing: %s", result.ErrPrecondition, what, path)
		}
		return fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	return nil
}
