package pdfexport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/result"
)

// PlaywrightRenderer prints pages through Playwright's Chromium. It is the
// secondary renderer, only used when explicitly configured.
type PlaywrightRenderer struct {
	timeout time.Duration

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewPlaywrightRenderer creates a renderer; the driver starts on first use.
func NewPlaywrightRenderer(timeout time.Duration) *PlaywrightRenderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PlaywrightRenderer{timeout: timeout}
}

func (p *PlaywrightRenderer) Name() string { return "playwright" }

// ensureBrowser installs the driver if needed and launches Chromium.
// Callers hold p.mu.
func (p *PlaywrightRenderer) ensureBrowser() error {
	if p.browser != nil {
		return nil
	}
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return fmt.Errorf("%w: install playwright browsers: %v", result.ErrExternalTool, err)
	}
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("%w: start playwright: %v", result.ErrExternalTool, err)
	}
	browser, err := pw.Chromium.Launch()
	if err != nil {
		pw.Stop()
		return fmt.Errorf("%w: launch browser: %v", result.ErrExternalTool, err)
	}
	p.pw, p.browser = pw, browser
	log.Info().Msg("playwright chromium launched")
	return nil
}

// Render loads htmlPath and prints it with s.
func (p *PlaywrightRenderer) Render(ctx context.Context, htmlPath string, s Settings) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := p.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("%w: create page: %v", result.ErrExternalTool, err)
	}
	defer page.Close()

	timeoutMs := float64(p.timeout.Milliseconds())
	if deadline, ok := ctx.Deadline(); ok {
		timeoutMs = float64(time.Until(deadline).Milliseconds())
		if timeoutMs <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	if _, err := page.Goto("file://"+htmlPath, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   &timeoutMs,
	}); err != nil {
		return nil, fmt.Errorf("%w: load page: %v", result.ErrExternalTool, err)
	}

	width, height, margin := s.inches(s.PageWidthIn), s.inches(s.PageHeightIn), s.inches(s.MarginIn)
	data, err := page.PDF(playwright.PagePdfOptions{
		Width:  &width,
		Height: &height,
		Margin: &playwright.Margin{
			Top:    &margin,
			Right:  &margin,
			Bottom: &margin,
			Left:   &margin,
		},
		PrintBackground:     playwright.Bool(s.PrintBackground),
		Scale:               playwright.Float(s.Scale),
		DisplayHeaderFooter: playwright.Bool(false),
		PreferCSSPageSize:   playwright.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate PDF: %v", result.ErrExternalTool, err)
	}
	return data, nil
}

// Close stops the browser and the Playwright driver.
func (p *PlaywrightRenderer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			firstErr = err
		}
		p.browser = nil
	}
	if p.pw != nil {
		if err := p.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.pw = nil
	}
	return firstErr
}
