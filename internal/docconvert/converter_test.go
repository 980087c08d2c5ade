package docconvert

import (
	"archive/zip"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/resumevision/internal/converter"
	"github.com/local/resumevision/internal/imagerender"
	"github.com/local/resumevision/internal/pdftest"
	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/workspace"
)

func newConverter(t *testing.T, office *converter.LibreOffice) (*Converter, *workspace.Workspace) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.Ensure())
	r := imagerender.New(imagerender.Options{DPI: 72, MaxPx: 2048, Contrast: 1.1})
	return New(ws, office, r, 10), ws
}

func TestPageFileName(t *testing.T) {
	assert.Equal(t, "cv_screenshot.png", PageFileName("cv_screenshot", 1, 1))
	assert.Equal(t, "cv_page2.png", PageFileName("cv", 2, 3))
	assert.Equal(t, "resume_screenshot", DefaultName("/in/resume.docx"))
}

func TestConvert_SinglePagePDF(t *testing.T) {
	c, ws := newConverter(t, nil)
	in, err := pdftest.Write(t.TempDir(), "resume.pdf", "Jane Doe")
	require.NoError(t, err)

	out, err := c.Convert(context.Background(), in, "")
	require.NoError(t, err)
	require.Len(t, out.Paths, 1)
	assert.Equal(t, filepath.Join(ws.Dir(workspace.Screenshots), "resume_screenshot.png"), out.Primary())
	assert.Equal(t, 1, out.PageCount)
	assert.False(t, out.Truncated)
}

func TestConvert_MultiPagePDF(t *testing.T) {
	c, ws := newConverter(t, nil)
	in, err := pdftest.Write(t.TempDir(), "resume.pdf", "one", "two", "three")
	require.NoError(t, err)

	out, err := c.Convert(context.Background(), in, "cv")
	require.NoError(t, err)
	require.Len(t, out.Paths, 3)
	for i, p := range out.Paths {
		assert.Equal(t, filepath.Join(ws.Dir(workspace.Screenshots), PageFileName("cv", i+1, 3)), p)
		assert.FileExists(t, p)
	}
}

func TestConvert_PageCap(t *testing.T) {
	c, _ := newConverter(t, nil)
	c.maxPages = 2
	in, err := pdftest.Write(t.TempDir(), "long.pdf", "1", "2", "3", "4")
	require.NoError(t, err)

	out, err := c.Convert(context.Background(), in, "")
	require.NoError(t, err)
	assert.Len(t, out.Paths, 2)
	assert.Equal(t, 4, out.PageCount)
	assert.True(t, out.Truncated)
}

func TestConvert_Idempotent(t *testing.T) {
	c, _ := newConverter(t, nil)
	in, err := pdftest.Write(t.TempDir(), "resume.pdf", "Jane Doe")
	require.NoError(t, err)

	first, err := c.Convert(context.Background(), in, "same")
	require.NoError(t, err)
	a, err := os.ReadFile(first.Primary())
	require.NoError(t, err)

	second, err := c.Convert(context.Background(), in, "same")
	require.NoError(t, err)
	b, err := os.ReadFile(second.Primary())
	require.NoError(t, err)

	assert.Equal(t, first.Paths, second.Paths)
	assert.Equal(t, a, b)
}

func TestConvert_Image(t *testing.T) {
	c, _ := newConverter(t, nil)
	in := filepath.Join(t.TempDir(), "scan.jpg")
	img := image.NewRGBA(image.Rect(0, 0, 3000, 1000))
	img.Set(10, 10, color.Black)
	f, err := os.Create(in)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	out, err := c.Convert(context.Background(), in, "")
	require.NoError(t, err)
	require.Len(t, out.Paths, 1)

	info, err := imagerender.Inspect(out.Primary())
	require.NoError(t, err)
	assert.Equal(t, 2048, info.Width)
	assert.Equal(t, "png", info.Format)
}

func TestConvert_Errors(t *testing.T) {
	c, _ := newConverter(t, nil)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := c.Convert(ctx, "relative/cv.pdf", "")
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))

	_, err = c.Convert(ctx, filepath.Join(dir, "missing.pdf"), "")
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))

	bad := filepath.Join(dir, "data.xyz")
	require.NoError(t, os.WriteFile(bad, []byte("payload"), 0o644))
	_, err = c.Convert(ctx, bad, "")
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))

	in, err := pdftest.Write(dir, "cv.pdf", "x")
	require.NoError(t, err)
	_, err = c.Convert(ctx, in, "../../escape")
	assert.Equal(t, result.KindFilesystem, result.Classify(err))
}

func TestConvert_OfficeWithoutLibreOffice(t *testing.T) {
	c, _ := newConverter(t, converter.NewLibreOffice("resumevision-no-such-office-binary", time.Second))
	in := filepath.Join(t.TempDir(), "cv.txt")
	require.NoError(t, os.WriteFile(in, []byte("Jane Doe"), 0o644))

	_, err := c.Convert(context.Background(), in, "")
	require.Error(t, err)
	assert.Equal(t, result.KindExternalTool, result.Classify(err))
	assert.NotEmpty(t, err.Error())
}

// writeDOCX writes a minimal Word document with one explicit page per entry.
func writeDOCX(t *testing.T, path string, pages ...string) {
	t.Helper()
	var body strings.Builder
	for i, text := range pages {
		if i > 0 {
			body.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
		body.WriteString(`<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`)
	}
	parts := []struct{ name, data string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() +
			`</w:body></w:document>`},
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestConvert_OfficePageCounts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping LibreOffice conversion in short mode")
	}
	if _, err := exec.LookPath("libreoffice"); err != nil {
		t.Skip("libreoffice not installed")
	}
	c, ws := newConverter(t, converter.NewLibreOffice("libreoffice", 2*time.Minute))
	dir := t.TempDir()

	one := filepath.Join(dir, "one.docx")
	writeDOCX(t, one, "Jane Doe, Software Engineer")
	out, err := c.Convert(context.Background(), one, "")
	require.NoError(t, err)
	require.Len(t, out.Paths, 1)
	assert.Equal(t, 1, out.PageCount)
	assert.Equal(t, "one_screenshot.png", filepath.Base(out.Primary()))

	three := filepath.Join(dir, "three.docx")
	writeDOCX(t, three, "Summary", "Experience", "Education")
	out, err = c.Convert(context.Background(), three, "three")
	require.NoError(t, err)
	require.Len(t, out.Paths, 3)
	assert.Equal(t, 3, out.PageCount)
	assert.False(t, out.Truncated)
	for i, p := range out.Paths {
		assert.Equal(t, filepath.Join(ws.Dir(workspace.Screenshots), PageFileName("three", i+1, 3)), p)
		assert.FileExists(t, p)
	}
}

func TestConvert_FailedPageRemovesWrittenPages(t *testing.T) {
	c, ws := newConverter(t, nil)
	in, err := pdftest.Write(t.TempDir(), "resume.pdf", "one", "two", "three")
	require.NoError(t, err)

	shots := ws.Dir(workspace.Screenshots)
	// a directory in place of page 2 makes its write fail
	require.NoError(t, os.Mkdir(filepath.Join(shots, "cv_page2.png"), 0o755))

	_, err = c.Convert(context.Background(), in, "cv")
	require.Error(t, err)
	assert.Equal(t, result.KindFilesystem, result.Classify(err))
	assert.NoFileExists(t, filepath.Join(shots, "cv_page1.png"))
	assert.NoFileExists(t, filepath.Join(shots, "cv_page3.png"))
	assert.DirExists(t, filepath.Join(shots, "cv_page2.png"))
}

func TestInfo(t *testing.T) {
	c, _ := newConverter(t, nil)
	dir := t.TempDir()

	in, err := pdftest.Write(dir, "resume.pdf", "Jane Doe Senior Software Engineer with ten years of experience in Go", "p2")
	require.NoError(t, err)
	info, err := c.Info(in)
	require.NoError(t, err)
	assert.True(t, info.Supported)
	assert.Equal(t, 2, info.Pages)
	assert.Contains(t, info.TextPreview, "Jane Doe")
	require.NotNil(t, info.HasExtractableText)
	assert.True(t, *info.HasExtractableText)

	bad := filepath.Join(dir, "x.xyz")
	require.NoError(t, os.WriteFile(bad, []byte("zz"), 0o644))
	info, err = c.Info(bad)
	require.NoError(t, err)
	assert.False(t, info.Supported)

	_, err = c.Info(filepath.Join(dir, "missing.pdf"))
	assert.Equal(t, result.KindNotFound, result.Classify(err))
}
