package pdfexport

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/result"
)

// RodOptions configures the headless Chromium launched by go-rod.
type RodOptions struct {
	BrowserBin string // empty lets rod find or download Chromium
	NoSandbox  bool
	Timeout    time.Duration
}

// RodRenderer prints pages with headless Chromium over the DevTools
// protocol. The browser is launched on first use and reused.
type RodRenderer struct {
	opts RodOptions

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodRenderer creates a renderer; nothing is launched yet.
func NewRodRenderer(opts RodOptions) *RodRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &RodRenderer{opts: opts}
}

func (r *RodRenderer) Name() string { return "rod" }

// ensureBrowser lazily connects to the browser, relaunching it when the
// cached connection no longer answers. Callers hold r.mu.
func (r *RodRenderer) ensureBrowser() error {
	if r.browser != nil {
		if _, err := (proto.BrowserGetVersion{}).Call(r.browser.Timeout(5 * time.Second)); err == nil {
			return nil
		}
		log.Warn().Msg("chromium connection lost, relaunching")
		r.dropBrowser()
	}

	l := launcher.New()
	if r.opts.BrowserBin != "" {
		l = l.Bin(r.opts.BrowserBin)
	}
	if r.opts.NoSandbox {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: launch chromium: %v", result.ErrExternalTool, err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("%w: connect to chromium: %v", result.ErrExternalTool, err)
	}
	r.launcher = l
	r.browser = b
	log.Info().Str("control_url", u).Msg("chromium launched")
	return nil
}

// Render opens htmlPath in a new tab and prints it to PDF bytes.
func (r *RodRenderer) Render(ctx context.Context, htmlPath string, s Settings) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: fileURL(htmlPath)})
	if err != nil {
		r.dropBrowser()
		return nil, fmt.Errorf("%w: open page: %v", result.ErrExternalTool, err)
	}
	defer page.Close()

	timeout := r.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	page = page.Context(ctx).Timeout(timeout)

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: page load: %v", result.ErrExternalTool, err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:          floatPtr(s.PageWidthIn),
		PaperHeight:         floatPtr(s.PageHeightIn),
		MarginTop:           floatPtr(s.MarginIn),
		MarginBottom:        floatPtr(s.MarginIn),
		MarginLeft:          floatPtr(s.MarginIn),
		MarginRight:         floatPtr(s.MarginIn),
		Scale:               floatPtr(s.Scale),
		PrintBackground:     s.PrintBackground,
		DisplayHeaderFooter: false,
		PreferCSSPageSize:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: print to PDF: %v", result.ErrExternalTool, err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", result.ErrExternalTool, err)
	}
	return data, nil
}

// dropBrowser forgets the cached browser so the next render launches a new
// one. Callers hold r.mu.
func (r *RodRenderer) dropBrowser() {
	if r.browser != nil {
		_ = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
}

// Close shuts the browser down if it was launched.
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
	return err
}

// fileURL turns an absolute path into a file:// URL, escaping characters
// such as '#' and '?' that would otherwise end the path.
func fileURL(p string) string {
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// LookPathChromium reports the Chromium binary rod would use without
// downloading one.
func LookPathChromium(bin string) (string, bool) {
	if bin != "" {
		return bin, true
	}
	return launcher.LookPath()
}
