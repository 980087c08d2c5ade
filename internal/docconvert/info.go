package docconvert

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/filetype"
	"github.com/local/resumevision/internal/result"
)

// previewChars bounds the text preview taken from the first page.
const previewChars = 500

// minTextChars is the non-whitespace character count below which a PDF is
// treated as a scan without a text layer.
const minTextChars = 50

// DocumentInfo summarizes an input document before conversion.
type DocumentInfo struct {
	Filename           string  `json:"filename"`
	SizeBytes          int64   `json:"size_bytes"`
	SizeMB             float64 `json:"size_mb"`
	Extension          string  `json:"extension"`
	Supported          bool    `json:"supported"`
	MIMEType           string  `json:"mime_type,omitempty"`
	Description        string  `json:"description,omitempty"`
	Route              string  `json:"route"`
	Pages              int     `json:"pages,omitempty"`
	HasExtractableText *bool   `json:"has_extractable_text,omitempty"`
	TextPreview        string  `json:"text_preview,omitempty"`
}

// Info inspects path without converting it. Unsupported formats are
// reported in the result rather than as an error; only a missing or
// unreadable file fails.
func (c *Converter) Info(path string) (*DocumentInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", result.ErrNotFound, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", result.ErrUnsupportedInput, path)
	}

	info := &DocumentInfo{
		Filename:  filepath.Base(path),
		SizeBytes: st.Size(),
		SizeMB:    math.Round(float64(st.Size())/(1024*1024)*100) / 100,
		Extension: strings.ToLower(filepath.Ext(path)),
		Route:     string(filetype.RouteUnsupported),
	}

	ft, err := c.detector.Detect(path)
	if ft != nil {
		info.MIMEType = ft.MIMEType
		info.Description = ft.Description
		info.Route = string(ft.Route)
	}
	if err != nil {
		log.Debug().Err(err).Str("file", path).Msg("document not supported")
		return info, nil
	}
	info.Supported = true

	if ft.Route == filetype.RoutePDF {
		if err := inspectPDF(path, info); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("could not inspect PDF")
		}
	}
	return info, nil
}

func inspectPDF(path string, info *DocumentInfo) error {
	doc, err := fitz.New(path)
	if err != nil {
		return err
	}
	defer doc.Close()

	info.Pages = doc.NumPage()
	if info.Pages == 0 {
		return nil
	}
	text, err := doc.Text(0)
	if err != nil {
		return err
	}
	text = strings.Join(strings.Fields(text), " ")
	hasText := len(strings.ReplaceAll(text, " ", "")) >= minTextChars
	info.HasExtractableText = &hasText
	info.TextPreview = truncate(text, previewChars)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
