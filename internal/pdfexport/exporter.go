// Package pdfexport prints HTML resumes to PDF with a fixed page layout.
package pdfexport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/metrics"
	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/workspace"
)

// Renderer turns an HTML file into PDF bytes.
type Renderer interface {
	Name() string
	Render(ctx context.Context, htmlPath string, s Settings) ([]byte, error)
	Close() error
}

// Publisher uploads a finished PDF and returns where it can be fetched.
type Publisher interface {
	Publish(ctx context.Context, localPath, key string) (string, error)
}

// Export describes a written PDF.
type Export struct {
	PDFPath        string  `json:"pdf_path"`
	HTMLPath       string  `json:"html_path"`
	PageCount      int     `json:"page_count"`
	FitsSinglePage bool    `json:"fits_single_page"`
	FileSizeKB     float64 `json:"file_size_kb"`
	Renderer       string  `json:"renderer"`
	Warning        string  `json:"warning,omitempty"`
	ArtifactURL    string  `json:"artifact_url,omitempty"`
}

// Exporter renders with a primary renderer and, when configured, retries
// once with a secondary one.
type Exporter struct {
	ws        *workspace.Workspace
	settings  Settings
	primary   Renderer
	fallback  Renderer
	publisher Publisher
	timeout   time.Duration
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithFallback sets the secondary renderer.
func WithFallback(r Renderer) Option { return func(e *Exporter) { e.fallback = r } }

// WithPublisher uploads every exported PDF.
func WithPublisher(p Publisher) Option { return func(e *Exporter) { e.publisher = p } }

// WithTimeout bounds a single render.
func WithTimeout(d time.Duration) Option { return func(e *Exporter) { e.timeout = d } }

// New creates an exporter. It fails when settings are unusable.
func New(ws *workspace.Workspace, settings Settings, primary Renderer, opts ...Option) (*Exporter, error) {
	if primary == nil {
		return nil, fmt.Errorf("%w: no PDF renderer configured", result.ErrComponentInit)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", result.ErrComponentInit, err)
	}
	e := &Exporter{ws: ws, settings: settings, primary: primary, timeout: 60 * time.Second}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Settings returns the page layout in use.
func (e *Exporter) Settings() Settings { return e.settings }

// OutputPath resolves where the PDF for htmlPath goes: pdf/<stem>.pdf by
// default, relative names under pdf/, ".pdf" appended when missing.
func (e *Exporter) OutputPath(htmlPath, outputPath string) (string, error) {
	name := strings.TrimSpace(outputPath)
	if name == "" {
		base := filepath.Base(htmlPath)
		name = strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return e.ws.Resolve(workspace.PDF, name)
}

// HTMLPath resolves an HTML argument; relative names live under html/.
func (e *Exporter) HTMLPath(htmlPath string) (string, error) {
	if strings.TrimSpace(htmlPath) == "" {
		return "", fmt.Errorf("%w: HTML file path is required", result.ErrUnsupportedInput)
	}
	if !filepath.IsAbs(htmlPath) {
		return e.ws.Resolve(workspace.HTML, htmlPath)
	}
	return filepath.Clean(htmlPath), nil
}

// Export renders htmlPath to outputPath (see OutputPath).
func (e *Exporter) Export(ctx context.Context, htmlPath, outputPath string) (*Export, error) {
	start := time.Now()

	src, err := e.HTMLPath(htmlPath)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML file not found: %s", result.ErrPrecondition, src)
	}
	if st.IsDir() || st.Size() == 0 {
		return nil, fmt.Errorf("%w: HTML file is empty: %s", result.ErrUnsupportedInput, src)
	}
	dst, err := e.OutputPath(src, outputPath)
	if err != nil {
		return nil, err
	}

	data, used, err := e.render(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s produced an empty PDF", result.ErrExternalTool, used)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write PDF: %v", result.ErrFilesystem, err)
	}

	pages, err := api.PageCountFile(dst)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable PDF from %s: %v", result.ErrExternalTool, used, err)
	}
	metrics.ObservePDFPages(pages)

	out := &Export{
		PDFPath:        dst,
		HTMLPath:       src,
		PageCount:      pages,
		FitsSinglePage: pages == 1,
		FileSizeKB:     math.Round(float64(len(data))/1024*10) / 10,
		Renderer:       used,
	}
	if pages > 1 {
		out.Warning = fmt.Sprintf("content overflows a single page: PDF has %d pages; tighten the HTML layout to fit one page", pages)
		log.Warn().Str("pdf", dst).Int("pages", pages).Msg("exported PDF spans multiple pages")
	}

	if e.publisher != nil {
		key := filepath.Base(dst)
		if url, err := e.publisher.Publish(ctx, dst, key); err != nil {
			log.Warn().Err(err).Str("pdf", dst).Msg("artifact upload failed")
			out.Warning = strings.TrimSpace(out.Warning + " artifact upload failed: " + err.Error())
		} else {
			out.ArtifactURL = url
		}
	}

	log.Info().
		Str("html", filepath.Base(src)).
		Str("pdf", dst).
		Int("pages", pages).
		Str("renderer", used).
		Dur("duration", time.Since(start)).
		Msg("PDF exported")
	return out, nil
}

func (e *Exporter) render(ctx context.Context, src string) ([]byte, string, error) {
	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	data, err := e.primary.Render(rctx, src, e.settings)
	cancel()
	if err == nil {
		return data, e.primary.Name(), nil
	}
	if e.fallback == nil || errors.Is(ctx.Err(), context.Canceled) {
		return nil, e.primary.Name(), err
	}

	log.Warn().Err(err).Str("primary", e.primary.Name()).Str("fallback", e.fallback.Name()).Msg("primary renderer failed, trying fallback")
	rctx, cancel = context.WithTimeout(ctx, e.timeout)
	defer cancel()
	data, ferr := e.fallback.Render(rctx, src, e.settings)
	if ferr != nil {
		return nil, e.fallback.Name(), fmt.Errorf("%w (fallback %s: %v)", err, e.fallback.Name(), ferr)
	}
	return data, e.fallback.Name(), nil
}

// Close releases both renderers.
func (e *Exporter) Close() error {
	var errs []error
	if err := e.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.fallback != nil {
		if err := e.fallback.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
