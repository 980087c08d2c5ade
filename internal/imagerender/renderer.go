package imagerender

import (
	"bufio"
	"fmt"
	"image"
	stddraw "image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/local/resumevision/internal/result"
)

// Options control rasterization and the post-render optimization pass.
type Options struct {
	DPI      int
	MaxPx    int     // longest side after optimization; 0 disables resizing
	Contrast float64 // 1.0 leaves contrast untouched
}

// DefaultOptions matches what vision models read well: 300 DPI render,
// longest side capped at 2048px, slight contrast boost.
func DefaultOptions() Options {
	return Options{DPI: 300, MaxPx: 2048, Contrast: 1.1}
}

// Renderer rasterizes PDF pages with MuPDF and writes optimized PNGs.
type Renderer struct {
	opts Options
}

// New creates a renderer; zero fields fall back to DefaultOptions.
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.DPI <= 0 {
		opts.DPI = def.DPI
	}
	if opts.MaxPx < 0 {
		opts.MaxPx = 0
	}
	if opts.Contrast <= 0 {
		opts.Contrast = def.Contrast
	}
	return &Renderer{opts: opts}
}

// Options returns the effective options.
func (r *Renderer) Options() Options { return r.opts }

// PageCount opens pdfPath with MuPDF and returns its page count.
func PageCount(pdfPath string) (int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to open PDF: %w", result.ErrUnsupportedInput, err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPDF renders up to maxPages pages of pdfPath (all pages when
// maxPages <= 0). pathFor maps a 1-based page number and the number of pages
// being rendered to the PNG destination. Pages are rendered and written one
// at a time. It returns the written paths and the document's total page count.
func (r *Renderer) RenderPDF(pdfPath string, maxPages int, pathFor func(page, count int) string) ([]string, int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to open PDF: %w", result.ErrUnsupportedInput, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total == 0 {
		return nil, 0, fmt.Errorf("%w: PDF has no pages", result.ErrUnsupportedInput)
	}
	count := total
	if maxPages > 0 && count > maxPages {
		count = maxPages
		log.Warn().Int("pages", total).Int("max_pages", maxPages).Str("pdf", pdfPath).Msg("page limit reached, rendering first pages only")
	}

	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		// go-fitz uses 0-based indexing
		img, err := doc.ImageDPI(i, float64(r.opts.DPI))
		if err != nil {
			return paths, total, fmt.Errorf("%w: failed to render page %d: %w", result.ErrExternalTool, i+1, err)
		}
		out := pathFor(i+1, count)
		if err := WritePNG(r.Optimize(img), out); err != nil {
			return paths, total, err
		}
		log.Debug().
			Int("page", i+1).
			Int("width", img.Bounds().Dx()).
			Int("height", img.Bounds().Dy()).
			Int("dpi", r.opts.DPI).
			Str("output", out).
			Msg("rendered page")
		paths = append(paths, out)
	}
	return paths, total, nil
}

// OptimizeFile decodes a raster image, optimizes it and writes it as PNG.
func (r *Renderer) OptimizeFile(src, dst string) error {
	img, _, err := DecodeFile(src)
	if err != nil {
		return err
	}
	return WritePNG(r.Optimize(img), dst)
}

// Optimize flattens img onto white, downsizes it so the longest side is at
// most MaxPx and applies the contrast factor.
func (r *Renderer) Optimize(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	nw, nh := fitWithin(w, h, r.opts.MaxPx)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	stddraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, stddraw.Src)
	if nw == w && nh == h {
		stddraw.Draw(dst, dst.Bounds(), img, b.Min, stddraw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		log.Debug().Int("from_w", w).Int("from_h", h).Int("to_w", nw).Int("to_h", nh).Msg("resized image")
	}

	if r.opts.Contrast != 1.0 {
		adjustContrast(dst, r.opts.Contrast)
	}
	return dst
}

// fitWithin scales (w, h) down, preserving aspect ratio, so neither side
// exceeds limit. It never scales up.
func fitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		nh := int(math.Round(float64(h) * float64(limit) / float64(w)))
		return limit, max(nh, 1)
	}
	nw := int(math.Round(float64(w) * float64(limit) / float64(h)))
	return max(nw, 1), limit
}

// adjustContrast blends every pixel against the mean luminance:
// out = mean + factor*(in-mean).
func adjustContrast(img *image.RGBA, factor float64) {
	pix := img.Pix
	n := len(pix) / 4
	if n == 0 {
		return
	}
	var sum float64
	for i := 0; i < len(pix); i += 4 {
		// ITU-R 601-2 luma
		sum += 0.299*float64(pix[i]) + 0.587*float64(pix[i+1]) + 0.114*float64(pix[i+2])
	}
	mean := math.Floor(sum/float64(n) + 0.5)

	var lut [256]uint8
	for v := 0; v < 256; v++ {
		lut[v] = clamp8(mean + factor*(float64(v)-mean))
	}
	for i := 0; i < len(pix); i += 4 {
		pix[i] = lut[pix[i]]
		pix[i+1] = lut[pix[i+1]]
		pix[i+2] = lut[pix[i+2]]
	}
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

// ImageInfo describes an image file on disk.
type ImageInfo struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Format string  `json:"format"`
	SizeKB float64 `json:"size_kb"`
}

// Inspect reads dimensions and format without decoding the pixels.
func Inspect(path string) (ImageInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("image not found: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: open image: %v", result.ErrFilesystem, err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: read image header %s: %v", result.ErrUnsupportedInput, filepath.Base(path), err)
	}
	return ImageInfo{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		SizeKB: math.Round(float64(st.Size())/1024*10) / 10,
	}, nil
}

// DecodeFile decodes png, jpeg, gif, bmp and tiff files.
func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: open image: %w", result.ErrUnsupportedInput, err)
	}
	defer f.Close()
	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode image %s: %v", result.ErrUnsupportedInput, filepath.Base(path), err)
	}
	return img, format, nil
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create output directory: %v", result.ErrFilesystem, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", result.ErrFilesystem, filepath.Base(path), err)
	}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", result.ErrFilesystem, filepath.Base(path), err)
	}
	return nil
}
