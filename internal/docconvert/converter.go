// Package docconvert turns resumes in any supported format into PNG
// screenshots under the workspace screenshots/ directory.
package docconvert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/converter"
	"github.com/local/resumevision/internal/filetype"
	"github.com/local/resumevision/internal/imagerender"
	"github.com/local/resumevision/internal/metrics"
	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/workspace"
)

// Output describes the screenshots produced for one document.
type Output struct {
	Paths     []string       `json:"screenshot_paths"`
	PageCount int            `json:"page_count"`
	Rendered  int            `json:"rendered_pages"`
	Route     filetype.Route `json:"route"`
	Truncated bool           `json:"truncated"`
}

// Primary is the first screenshot, the one the vision step starts from.
func (o *Output) Primary() string {
	if o == nil || len(o.Paths) == 0 {
		return ""
	}
	return o.Paths[0]
}

// Converter routes documents to MuPDF directly (PDF), through LibreOffice
// (office formats) or through the image optimizer (rasters).
type Converter struct {
	ws       *workspace.Workspace
	detector *filetype.Detector
	office   *converter.LibreOffice
	renderer *imagerender.Renderer
	maxPages int
}

// New wires a converter. office may be nil, in which case office formats
// fail with an external tool error.
func New(ws *workspace.Workspace, office *converter.LibreOffice, renderer *imagerender.Renderer, maxPages int) *Converter {
	if renderer == nil {
		renderer = imagerender.New(imagerender.DefaultOptions())
	}
	return &Converter{
		ws:       ws,
		detector: filetype.New(),
		office:   office,
		renderer: renderer,
		maxPages: maxPages,
	}
}

// DefaultName is the screenshot base name used when the caller gives none.
func DefaultName(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_screenshot"
}

// PageFileName names page k of count: "<name>.png" for a single page,
// "<name>_page<k>.png" otherwise.
func PageFileName(name string, page, count int) string {
	if count <= 1 {
		return name + ".png"
	}
	return fmt.Sprintf("%s_page%d.png", name, page)
}

// Convert renders inputPath to PNG screenshots named after outputName.
func (c *Converter) Convert(ctx context.Context, inputPath, outputName string) (out *Output, err error) {
	start := time.Now()
	route := filetype.RouteUnsupported
	defer func() {
		metrics.IncConversion(string(route), metrics.ResultLabel(err == nil))
		if err != nil {
			log.Error().Err(err).Str("input", inputPath).Str("route", string(route)).Msg("document conversion failed")
		}
	}()

	if inputPath == "" || !filepath.IsAbs(inputPath) {
		return nil, fmt.Errorf("%w: file path must be absolute: %q", result.ErrUnsupportedInput, inputPath)
	}
	info, err := c.detector.Detect(inputPath)
	if err != nil {
		return nil, err
	}
	route = info.Route

	name := strings.TrimSpace(outputName)
	if name == "" {
		name = DefaultName(inputPath)
	}
	name = strings.TrimSuffix(name, ".png")
	// validates the name stays inside screenshots/
	if _, err := c.ws.Resolve(workspace.Screenshots, name+".png"); err != nil {
		return nil, err
	}
	pathFor := func(page, count int) string {
		return filepath.Join(c.ws.Dir(workspace.Screenshots), PageFileName(name, page, count))
	}

	log.Info().Str("input", filepath.Base(inputPath)).Str("route", string(route)).Str("name", name).Msg("converting document")

	switch route {
	case filetype.RoutePDF:
		out, err = c.renderPDF(inputPath, pathFor)
	case filetype.RouteOffice:
		out, err = c.convertOffice(ctx, inputPath, pathFor)
	case filetype.RouteImage:
		dst := pathFor(1, 1)
		if err = c.renderer.OptimizeFile(inputPath, dst); err == nil {
			out = &Output{Paths: []string{dst}, PageCount: 1, Rendered: 1}
		}
	default:
		err = fmt.Errorf("%w: %s", result.ErrUnsupportedInput, info.Description)
	}
	if err != nil {
		return nil, err
	}
	out.Route = route

	for _, p := range out.Paths {
		if st, statErr := os.Stat(p); statErr != nil || st.Size() == 0 {
			return nil, fmt.Errorf("%w: screenshot was not written: %s", result.ErrExternalTool, p)
		}
	}

	log.Info().
		Str("input", filepath.Base(inputPath)).
		Int("pages", out.PageCount).
		Int("rendered", out.Rendered).
		Dur("duration", time.Since(start)).
		Msg("document converted")
	return out, nil
}

func (c *Converter) renderPDF(pdfPath string, pathFor func(page, count int) string) (*Output, error) {
	paths, total, err := c.renderer.RenderPDF(pdfPath, c.maxPages, pathFor)
	if err != nil {
		for _, p := range paths {
			if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warn().Err(rmErr).Str("path", p).Msg("failed to remove partial screenshot")
			}
		}
		return nil, err
	}
	return &Output{
		Paths:     paths,
		PageCount: total,
		Rendered:  len(paths),
		Truncated: len(paths) < total,
	}, nil
}

func (c *Converter) convertOffice(ctx context.Context, inputPath string, pathFor func(page, count int) string) (*Output, error) {
	if c.office == nil {
		return nil, fmt.Errorf("%w: LibreOffice converter is not configured", result.ErrExternalTool)
	}
	tmp, err := c.ws.TempDir("convert_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	pdfPath, err := c.office.ConvertToPDF(ctx, inputPath, tmp)
	if err != nil {
		return nil, err
	}
	return c.renderPDF(pdfPath, pathFor)
}
