// Package service owns the long-lived state of one server process: config,
// workspace, lazily built components, the workflow store and the optional
// artifact publisher.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/components"
	"github.com/local/resumevision/internal/config"
	"github.com/local/resumevision/internal/converter"
	"github.com/local/resumevision/internal/docconvert"
	"github.com/local/resumevision/internal/imagerender"
	"github.com/local/resumevision/internal/metrics"
	"github.com/local/resumevision/internal/pdfexport"
	"github.com/local/resumevision/internal/statuscheck"
	"github.com/local/resumevision/internal/storage"
	"github.com/local/resumevision/internal/templates"
	"github.com/local/resumevision/internal/vision"
	"github.com/local/resumevision/internal/workflow"
	"github.com/local/resumevision/internal/workspace"
)

// Component names as reported by status queries.
const (
	NameConverter  = "document_converter"
	NameReplicator = "vision_replicator"
	NameExporter   = "pdf_exporter"
	NameTemplates  = "template_manager"
	NameEditor     = "html_editor"
)

// Service is the explicit context every tool handler receives.
type Service struct {
	cfg config.Config
	ws  *workspace.Workspace

	office    *converter.LibreOffice
	publisher *storage.S3Publisher
	store     workflow.Store

	Converter  *components.Lazy[*docconvert.Converter]
	Replicator *components.Lazy[*vision.Replicator]
	Exporter   *components.Lazy[*pdfexport.Exporter]
	Templates  *components.Lazy[*templates.Manager]
	Editor     *components.Lazy[*vision.Editor]

	set     *components.Set
	driver  *workflow.Driver
	metrics *http.Server
}

// New validates the workspace, creates its tree and wires the components.
// Nothing heavyweight (browser, AWS client) is constructed until used,
// except the workflow store and publisher which are selected here.
func New(ctx context.Context, cfg config.Config) (*Service, error) {
	ws, err := workspace.New(cfg.Workspace.Root)
	if err != nil {
		return nil, err
	}
	if err := ws.Ensure(); err != nil {
		return nil, err
	}
	if n := ws.CleanupTemp(cfg.Workspace.TempMaxAge); n > 0 {
		log.Info().Int("removed", n).Msg("stale temp files removed")
	}

	s := &Service{
		cfg:    cfg,
		ws:     ws,
		office: converter.NewLibreOffice(cfg.Converter.LibreOfficeBin, cfg.Converter.Timeout),
	}

	if err := s.openStore(ctx); err != nil {
		return nil, err
	}
	if cfg.Artifacts.Bucket != "" {
		p, err := storage.NewS3Publisher(ctx, cfg.Artifacts.Bucket, cfg.Artifacts.Prefix)
		if err != nil {
			// exports still work locally without the bucket
			log.Warn().Err(err).Str("bucket", cfg.Artifacts.Bucket).Msg("artifact publishing disabled")
		} else {
			s.publisher = p
		}
	}

	s.Converter = components.NewLazy(NameConverter, s.buildConverter)
	s.Replicator = components.NewLazy(NameReplicator, func() (*vision.Replicator, error) {
		return vision.NewReplicator(ws), nil
	})
	s.Exporter = components.NewLazy(NameExporter, s.buildExporter)
	s.Templates = components.NewLazy(NameTemplates, func() (*templates.Manager, error) {
		return templates.NewManager(ws.Dir(workspace.Templates))
	})
	s.Editor = components.NewLazy(NameEditor, func() (*vision.Editor, error) {
		return vision.NewEditor(ws), nil
	})
	s.set = components.NewSet(s.Converter, s.Replicator, s.Exporter, s.Templates, s.Editor)

	s.driver = workflow.NewDriver(s.store, ws, workflow.Components{
		Converter:  func() (workflow.Converter, error) { return s.Converter.Get() },
		Replicator: func() (workflow.Replicator, error) { return s.Replicator.Get() },
		Exporter:   func() (workflow.Exporter, error) { return s.Exporter.Get() },
		Templates:  func() (workflow.TemplateSaver, error) { return s.Templates.Get() },
	})

	metrics.Init()
	if cfg.Server.MetricsAddr != "" {
		s.metrics = metrics.Serve(cfg.Server.MetricsAddr)
	}

	log.Info().
		Str("workspace", ws.Root()).
		Bool("redis", cfg.Store.RedisURL != "").
		Bool("artifacts", s.publisher != nil).
		Msg("service ready")
	return s, nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.cfg.Store.RedisURL == "" {
		s.store = workflow.NewMemoryStore()
		return nil
	}
	rs, err := workflow.NewRedisStore(ctx, s.cfg.Store.RedisURL, s.cfg.Store.KeyNS)
	if err != nil {
		return err
	}
	s.store = rs
	return nil
}

func (s *Service) buildConverter() (*docconvert.Converter, error) {
	r := imagerender.New(imagerender.Options{
		DPI:      s.cfg.Converter.DPI,
		MaxPx:    s.cfg.Converter.MaxImagePx,
		Contrast: s.cfg.Converter.Contrast,
	})
	return docconvert.New(s.ws, s.office, r, s.cfg.Converter.MaxPages), nil
}

// PDFSettings maps the configured page layout onto exporter settings.
func PDFSettings(c config.PDFConfig) pdfexport.Settings {
	return pdfexport.Settings{
		PageWidthIn:     c.PageWidthIn,
		PageHeightIn:    c.PageHeightIn,
		MarginIn:        c.MarginIn,
		Scale:           c.Scale,
		PrintBackground: c.PrintBackground,
	}
}

func (s *Service) buildExporter() (*pdfexport.Exporter, error) {
	c := s.cfg.PDF
	var primary pdfexport.Renderer
	switch c.Renderer {
	case "", "rod":
		primary = pdfexport.NewRodRenderer(pdfexport.RodOptions{
			BrowserBin: c.BrowserBin,
			NoSandbox:  c.NoSandbox,
			Timeout:    c.Timeout,
		})
	case "playwright":
		primary = pdfexport.NewPlaywrightRenderer(c.Timeout)
	default:
		return nil, fmt.Errorf("unknown PDF renderer %q", c.Renderer)
	}

	opts := []pdfexport.Option{pdfexport.WithTimeout(c.Timeout)}
	if c.Fallback == "playwright" && primary.Name() != "playwright" {
		opts = append(opts, pdfexport.WithFallback(pdfexport.NewPlaywrightRenderer(c.Timeout)))
	}
	if s.publisher != nil {
		opts = append(opts, pdfexport.WithPublisher(s.publisher))
	}
	return pdfexport.New(s.ws, PDFSettings(c), primary, opts...)
}

// Config returns the loaded configuration.
func (s *Service) Config() config.Config { return s.cfg }

// Workspace returns the artifact tree.
func (s *Service) Workspace() *workspace.Workspace { return s.ws }

// Workflows returns the workflow driver.
func (s *Service) Workflows() *workflow.Driver { return s.driver }

// ComponentStates reports every component's lifecycle state by name.
func (s *Service) ComponentStates() map[string]components.State { return s.set.States() }

// ClearComponents drops every cached component and returns the names of
// those that were loaded or failed.
func (s *Service) ClearComponents() ([]string, error) {
	var cleared []string
	states := s.set.States()
	for _, name := range s.set.Names() {
		if states[name] != components.NotLoaded {
			cleared = append(cleared, name)
		}
	}
	err := s.set.Close()
	log.Info().Strs("components", cleared).Msg("component cache cleared")
	return cleared, err
}

// Checker builds the environment doctor for this service.
func (s *Service) Checker() *statuscheck.Checker {
	opts := statuscheck.Options{
		Office:      s.office,
		BrowserBin:  s.cfg.PDF.BrowserBin,
		LookBrowser: pdfexport.LookPathChromium,
	}
	if rs, ok := s.store.(*workflow.RedisStore); ok {
		opts.Redis = rs
	}
	if s.publisher != nil {
		opts.S3 = s.publisher
	}
	return statuscheck.New(opts)
}

// Close tears down components, the workflow store and the metrics listener.
func (s *Service) Close() error {
	var errs []error
	if err := s.set.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	log.Info().Msg("service closed")
	return errors.Join(errs...)
}
