package pdfexport

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/resumevision/internal/pdftest"
	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/workspace"
)

type fakeRenderer struct {
	name   string
	pages  int
	err    error
	calls  int
	closed bool
	got    Settings
}

func (f *fakeRenderer) Name() string { return f.name }

func (f *fakeRenderer) Render(_ context.Context, _ string, s Settings) ([]byte, error) {
	f.calls++
	f.got = s
	if f.err != nil {
		return nil, f.err
	}
	pages := make([]string, f.pages)
	for i := range pages {
		pages[i] = "resume"
	}
	return pdftest.Build(pages...), nil
}

func (f *fakeRenderer) Close() error { f.closed = true; return nil }

type fakePublisher struct {
	url string
	err error
}

func (p fakePublisher) Publish(_ context.Context, _, key string) (string, error) {
	return p.url + key, p.err
}

func setup(t *testing.T) (*workspace.Workspace, string) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.Ensure())
	htmlPath := filepath.Join(ws.Dir(workspace.HTML), "jane.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte("<!DOCTYPE html><html><body><p>Jane Doe</p></body></html>"), 0o644))
	return ws, htmlPath
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.MarginIn = 5
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.Scale = 3
	assert.Error(t, s.Validate())
}

func TestOutputPath(t *testing.T) {
	ws, htmlPath := setup(t)
	e, err := New(ws, DefaultSettings(), &fakeRenderer{name: "fake", pages: 1})
	require.NoError(t, err)

	p, err := e.OutputPath(htmlPath, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Dir(workspace.PDF), "jane.pdf"), p)

	p, err = e.OutputPath(htmlPath, "final")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Dir(workspace.PDF), "final.pdf"), p)

	_, err = e.OutputPath(htmlPath, "/tmp/elsewhere.pdf")
	assert.Equal(t, result.KindFilesystem, result.Classify(err))
}

func TestExport_SinglePage(t *testing.T) {
	ws, htmlPath := setup(t)
	r := &fakeRenderer{name: "fake", pages: 1}
	e, err := New(ws, DefaultSettings(), r)
	require.NoError(t, err)

	out, err := e.Export(context.Background(), htmlPath, "")
	require.NoError(t, err)
	assert.Equal(t, 1, out.PageCount)
	assert.True(t, out.FitsSinglePage)
	assert.Empty(t, out.Warning)
	assert.Equal(t, "fake", out.Renderer)
	assert.Equal(t, 0.85, r.got.Scale)
	assert.Equal(t, 0.6, r.got.MarginIn)

	st, err := os.Stat(out.PDFPath)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}

func TestExport_MultiPageWarns(t *testing.T) {
	ws, htmlPath := setup(t)
	e, err := New(ws, DefaultSettings(), &fakeRenderer{name: "fake", pages: 2})
	require.NoError(t, err)

	out, err := e.Export(context.Background(), "jane.html", "two")
	require.NoError(t, err)
	assert.Equal(t, htmlPath, out.HTMLPath)
	assert.Equal(t, 2, out.PageCount)
	assert.False(t, out.FitsSinglePage)
	assert.Contains(t, out.Warning, "2 pages")
}

func TestExport_Fallback(t *testing.T) {
	ws, htmlPath := setup(t)
	primary := &fakeRenderer{name: "rod", err: errors.New("chromium crashed")}
	secondary := &fakeRenderer{name: "playwright", pages: 1}
	e, err := New(ws, DefaultSettings(), primary, WithFallback(secondary), WithTimeout(time.Second))
	require.NoError(t, err)

	out, err := e.Export(context.Background(), htmlPath, "")
	require.NoError(t, err)
	assert.Equal(t, "playwright", out.Renderer)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)

	require.NoError(t, e.Close())
	assert.True(t, primary.closed)
	assert.True(t, secondary.closed)
}

func TestExport_Failures(t *testing.T) {
	ws, htmlPath := setup(t)
	boom := &fakeRenderer{name: "rod", err: errors.New("launch chromium: not found")}
	e, err := New(ws, DefaultSettings(), boom)
	require.NoError(t, err)

	_, err = e.Export(context.Background(), htmlPath, "")
	require.Error(t, err)
	assert.NotEmpty(t, err.Error())

	_, err = e.Export(context.Background(), filepath.Join(ws.Root(), "missing.html"), "")
	assert.Equal(t, result.KindPrecondition, result.Classify(err))

	_, err = e.Export(context.Background(), "", "")
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))

	_, err = New(ws, DefaultSettings(), nil)
	assert.Equal(t, result.KindComponentInit, result.Classify(err))
}

func TestExport_Publish(t *testing.T) {
	ws, htmlPath := setup(t)
	e, err := New(ws, DefaultSettings(), &fakeRenderer{name: "fake", pages: 1},
		WithPublisher(fakePublisher{url: "s3://bucket/resumes/"}))
	require.NoError(t, err)
	out, err := e.Export(context.Background(), htmlPath, "")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/resumes/jane.pdf", out.ArtifactURL)

	e, err = New(ws, DefaultSettings(), &fakeRenderer{name: "fake", pages: 1},
		WithPublisher(fakePublisher{err: errors.New("access denied")}))
	require.NoError(t, err)
	out, err = e.Export(context.Background(), htmlPath, "")
	require.NoError(t, err)
	assert.Empty(t, out.ArtifactURL)
	assert.Contains(t, out.Warning, "access denied")
}

func TestRodRenderer_OnePageResume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	bin, ok := LookPathChromium(os.Getenv("ROD_BROWSER_BIN"))
	if !ok {
		t.Skip("chromium not installed")
	}

	ws, htmlPath := setup(t)
	r := NewRodRenderer(RodOptions{BrowserBin: bin, NoSandbox: true, Timeout: time.Minute})
	defer r.Close()
	e, err := New(ws, DefaultSettings(), r)
	require.NoError(t, err)

	out, err := e.Export(context.Background(), htmlPath, "")
	require.NoError(t, err)
	assert.Equal(t, 1, out.PageCount)
	assert.Positive(t, out.FileSizeKB)
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "file:///tmp/cv.html", fileURL("/tmp/cv.html"))
	assert.Equal(t, "file:///tmp/my%20cv%20%231%3F%25.html", fileURL("/tmp/my cv #1?%.html"))

	u, err := url.Parse(fileURL("/tmp/a#b/c?.html"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a#b/c?.html", u.Path)
	assert.Empty(t, u.Fragment)
	assert.Empty(t, u.RawQuery)
}

func TestRodRenderer_DropWithoutBrowser(t *testing.T) {
	r := NewRodRenderer(RodOptions{})
	r.dropBrowser()
	assert.Nil(t, r.browser)
	assert.NoError(t, r.Close())
}

func TestRodRenderer_RelaunchAfterCrash(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	bin, ok := LookPathChromium(os.Getenv("ROD_BROWSER_BIN"))
	if !ok {
		t.Skip("chromium not installed")
	}

	_, htmlPath := setup(t)
	r := NewRodRenderer(RodOptions{BrowserBin: bin, NoSandbox: true, Timeout: time.Minute})
	defer r.Close()

	ctx := context.Background()
	_, err := r.Render(ctx, htmlPath, DefaultSettings())
	require.NoError(t, err)
	first := r.browser

	r.launcher.Kill()
	require.Eventually(t, func() bool {
		_, err := (proto.BrowserGetVersion{}).Call(first.Timeout(time.Second))
		return err != nil
	}, 10*time.Second, 100*time.Millisecond)

	data, err := r.Render(ctx, htmlPath, DefaultSettings())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.NotSame(t, first, r.browser)
}
