package statuscheck

import (
	"context"
	"errors"
	"time"
)

// Pinger models the minimal capability needed to check a backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OfficeChecker is what the LibreOffice check needs from the converter.
type OfficeChecker interface {
	Bin() string
	Version(ctx context.Context) (string, error)
}

// Checker aggregates health checks for the external tools and backends the
// server depends on.
type Checker struct {
	office      OfficeChecker
	browserBin  string
	lookBrowser func(bin string) (string, bool)
	redis       Pinger
	s3          Pinger
}

// Options configures the Checker. Nil backends are reported as not
// configured rather than failing.
type Options struct {
	Office      OfficeChecker
	BrowserBin  string
	LookBrowser func(bin string) (string, bool)
	Redis       Pinger
	S3          Pinger
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message"`
	Optional bool   `json:"optional,omitempty"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	LibreOffice Status `json:"libreoffice"`
	MuPDF       Status `json:"mupdf"`
	Chromium    Status `json:"chromium"`
	Redis       Status `json:"redis"`
	S3          Status `json:"s3"`
}

// Ready reports whether the required tools are usable. Optional backends
// never make the server unready.
func (s Summary) Ready() bool {
	for _, st := range []Status{s.LibreOffice, s.MuPDF, s.Chromium, s.Redis, s.S3} {
		if !st.OK && !st.Optional {
			return false
		}
	}
	return true
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{
		office:      opts.Office,
		browserBin:  opts.BrowserBin,
		lookBrowser: opts.LookBrowser,
		redis:       opts.Redis,
		s3:          opts.S3,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		LibreOffice: c.checkLibreOffice(ctx),
		MuPDF:       checkMuPDF(),
		Chromium:    c.checkChromium(),
		Redis:       c.checkPinger(ctx, c.redis, 2*time.Second),
		S3:          c.checkPinger(ctx, c.s3, 5*time.Second),
	}
}

func (c *Checker) checkLibreOffice(ctx context.Context) Status {
	if c.office == nil {
		return Status{OK: false, Message: "converter not configured"}
	}
	v, err := c.office.Version(ctx)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: v}
}

// MuPDF is linked in through go-fitz, so the check only reports its version.
func checkMuPDF() Status {
	return Status{OK: true, Message: "linked via go-fitz"}
}

func (c *Checker) checkChromium() Status {
	if c.lookBrowser == nil {
		return Status{OK: false, Message: "browser lookup not configured"}
	}
	p, ok := c.lookBrowser(c.browserBin)
	if !ok {
		return Status{OK: false, Message: "Chromium not found"}
	}
	return Status{OK: true, Message: p}
}

func (c *Checker) checkPinger(ctx context.Context, p Pinger, timeout time.Duration) Status {
	if p == nil {
		return Status{OK: false, Optional: true, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return Status{OK: false, Optional: true, Message: trimError(err)}
	}
	return Status{OK: true, Optional: true, Message: "Connected"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
