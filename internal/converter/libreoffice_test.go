package converter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/resumevision/internal/result"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestExpectedOutputPath(t *testing.T) {
	assert.Equal(t, "/out/cv.pdf", ExpectedOutputPath("/in/cv.docx", "/out"))
	assert.Equal(t, "/out/my.resume.pdf", ExpectedOutputPath("/in/my.resume.odt", "/out"))
}

func TestConvertToPDF_InputValidation(t *testing.T) {
	dir := t.TempDir()
	lo := NewLibreOffice("libreoffice", time.Second)
	ctx := context.Background()

	_, err := lo.ConvertToPDF(ctx, filepath.Join(dir, "missing.docx"), dir)
	require.Error(t, err)
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))

	_, err = lo.ConvertToPDF(ctx, writeFile(t, dir, "empty.docx", ""), dir)
	require.Error(t, err)
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))

	_, err = lo.ConvertToPDF(ctx, writeFile(t, dir, "tool.exe", "MZ"), dir)
	require.Error(t, err)
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))
}

func TestConvertToPDF_MissingBinary(t *testing.T) {
	dir := t.TempDir()
	lo := NewLibreOffice("resumevision-no-such-office-binary", time.Second)
	assert.False(t, lo.IsAvailable())

	_, err := lo.ConvertToPDF(context.Background(), writeFile(t, dir, "cv.txt", "Jane Doe"), dir)
	require.Error(t, err)
	assert.Equal(t, result.KindExternalTool, result.Classify(err))
	assert.NotEmpty(t, err.Error())

	_, err = lo.Version(context.Background())
	assert.Equal(t, result.KindExternalTool, result.Classify(err))
}

func TestConvertToPDF_Text(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping LibreOffice conversion in short mode")
	}
	if _, err := exec.LookPath("libreoffice"); err != nil {
		t.Skip("libreoffice not installed")
	}

	dir := t.TempDir()
	in := writeFile(t, dir, "resume.txt", "Jane Doe\nSoftware Engineer\n")
	lo := NewLibreOffice("libreoffice", 2*time.Minute)

	out, err := lo.ConvertToPDF(context.Background(), in, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "resume.pdf"), out)
	assert.FileExists(t, out)
}
