package imagerender

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/resumevision/internal/pdftest"
	"github.com/local/resumevision/internal/result"
)

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{100, 50, 2048, 100, 50},
		{4096, 2048, 2048, 2048, 1024},
		{2550, 3300, 2048, 1582, 2048},
		{5000, 1, 2048, 2048, 1},
		{3000, 3000, 0, 3000, 3000},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.limit)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestOptimize_Resizes(t *testing.T) {
	r := New(Options{DPI: 300, MaxPx: 2048, Contrast: 1.1})
	out := r.Optimize(image.NewRGBA(image.Rect(0, 0, 3000, 1500)))
	assert.Equal(t, 2048, out.Bounds().Dx())
	assert.Equal(t, 1024, out.Bounds().Dy())
}

func TestOptimize_FlattensTransparency(t *testing.T) {
	r := New(Options{Contrast: 1.0})
	out := r.Optimize(image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(0, 0))
}

func TestAdjustContrast(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{100, 100, 100, 255})
	img.SetRGBA(1, 0, color.RGBA{200, 200, 200, 255})

	adjustContrast(img, 1.1)

	// mean luminance is 150; pixels move away from it by 10%
	assert.Equal(t, uint8(95), img.RGBAAt(0, 0).R)
	assert.Equal(t, uint8(205), img.RGBAAt(1, 0).R)
	assert.Equal(t, uint8(255), img.RGBAAt(1, 0).A)

	flat := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}
	adjustContrast(flat, 1.5)
	assert.Equal(t, uint8(128), flat.Pix[0])
}

func TestOptimizeFile_And_Inspect(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 40, 20))))
	require.NoError(t, f.Close())

	dst := filepath.Join(dir, "out", "shot.png")
	require.NoError(t, New(DefaultOptions()).OptimizeFile(src, dst))

	info, err := Inspect(dst)
	require.NoError(t, err)
	assert.Equal(t, 40, info.Width)
	assert.Equal(t, 20, info.Height)
	assert.Equal(t, "png", info.Format)
}

func TestOptimizeFile_NotAnImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(src, []byte("nope"), 0o644))

	err := New(DefaultOptions()).OptimizeFile(src, filepath.Join(dir, "out.png"))
	require.Error(t, err)
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))
}

func TestRenderPDF(t *testing.T) {
	dir := t.TempDir()
	pdfPath, err := pdftest.Write(dir, "cv.pdf", "page one", "page two", "page three")
	require.NoError(t, err)

	n, err := PageCount(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r := New(Options{DPI: 72, MaxPx: 2048, Contrast: 1.1})
	pathFor := func(page, count int) string {
		return filepath.Join(dir, "shots", fmt.Sprintf("cv_page%d_of_%d.png", page, count))
	}

	paths, total, err := r.RenderPDF(pdfPath, 2, pathFor)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, paths, 2)
	for _, p := range paths {
		info, err := Inspect(p)
		require.NoError(t, err)
		assert.Equal(t, 612, info.Width)
		assert.Equal(t, 792, info.Height)
	}
}
