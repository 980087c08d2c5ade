package vision

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/workspace"
)

func newEditor(t *testing.T) (*Editor, *workspace.Workspace) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.Ensure())
	e := NewEditor(ws)
	e.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC) }
	return e, ws
}

func TestAnalyze(t *testing.T) {
	a := Analyze(sampleHTML + `<a href="https://example.com">site</a><img src="x.png"><table></table>`)
	assert.Equal(t, []string{"Jane Doe", "Experience"}, a.Sections)
	assert.True(t, a.HasStyling)
	assert.Equal(t, 1, a.Lists)
	assert.Equal(t, 1, a.Links)
	assert.Equal(t, 1, a.Images)
	assert.Equal(t, 1, a.Tables)
	assert.Equal(t, 6, a.WordCount)

	assert.Empty(t, Analyze("").Sections)
}

func TestValidateEdit(t *testing.T) {
	c := ValidateEdit(sampleHTML)
	assert.True(t, c.Valid)
	assert.Empty(t, c.Issues)
	assert.Equal(t, []string{"HTML content seems short"}, c.Warnings)
	assert.Equal(t, 85, c.QualityScore)

	long := strings.Replace(sampleHTML, "<p>Engineer</p>", "<p>"+strings.Repeat("Built distributed systems. ", 50)+"</p>", 1)
	c = ValidateEdit(long)
	assert.Empty(t, c.Warnings)
	assert.Equal(t, 100, c.QualityScore)

	c = ValidateEdit("<p>hi</p>")
	assert.False(t, c.Valid)
	assert.Len(t, c.Issues, 4)
	assert.Len(t, c.Warnings, 3)
	assert.Zero(t, c.QualityScore)
}

func TestPrepareEdit(t *testing.T) {
	e, ws := newEditor(t)
	src := filepath.Join(ws.Dir(workspace.HTML), "jane.html")
	require.NoError(t, os.WriteFile(src, []byte(sampleHTML), 0o644))

	p, err := e.PrepareEdit("jane.html", "Make the name larger", "")
	require.NoError(t, err)
	assert.Equal(t, src, p.OriginalPath)
	assert.Equal(t, filepath.Join(ws.Dir(workspace.HTML), "edited_resume_20240309_140506.html"), p.OutputPath)
	assert.Contains(t, p.Prompt, "Make the name larger")
	assert.Contains(t, p.Prompt, "<h2>Experience</h2>")
	assert.Equal(t, []string{"Jane Doe", "Experience"}, p.Analysis.Sections)

	p, err = e.PrepareEdit(sampleHTML+"<!--"+strings.Repeat("x", 600)+"-->", "Tighten spacing", "tight.html")
	require.NoError(t, err)
	assert.Equal(t, "provided_content", p.OriginalPath)
	assert.Equal(t, "tight.html", filepath.Base(p.OutputPath))
	assert.True(t, strings.HasSuffix(p.Preview, "..."))

	_, err = e.PrepareEdit("missing.html", "x", "")
	assert.Equal(t, result.KindPrecondition, result.Classify(err))

	_, err = e.PrepareEdit(sampleHTML, "  ", "")
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))

	_, err = e.PrepareEdit(sampleHTML, "x", "../../outside")
	assert.Equal(t, result.KindFilesystem, result.Classify(err))
}

func TestPrepareJobOptimization(t *testing.T) {
	e, _ := newEditor(t)
	p, err := e.PrepareJobOptimization(sampleHTML, "Senior Go engineer, Kubernetes", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Instructions, "Optimize this resume for the following job posting:\n\nSenior Go engineer, Kubernetes"))
	assert.Contains(t, p.Instructions, "8. ")
	assert.True(t, strings.HasSuffix(p.Instructions, "improving content relevance and impact."))

	_, err = e.PrepareJobOptimization(sampleHTML, "", "")
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))
}

func TestPrepareRedesign(t *testing.T) {
	e, _ := newEditor(t)
	p, err := e.PrepareRedesign(sampleHTML, "Minimal", "")
	require.NoError(t, err)
	assert.Contains(t, p.Instructions, "minimal and understated")
	assert.Contains(t, p.Instructions, "DESIGN REQUIREMENTS:")

	assert.Equal(t, RedesignInstructions("professional"), RedesignInstructions("baroque"))
	assert.Equal(t, []string{"classic", "creative", "minimal", "modern", "professional", "tech"}, Styles())
	assert.Len(t, EditingTips(), 10)
}

func TestProcessEdited(t *testing.T) {
	e, ws := newEditor(t)
	out, err := e.ProcessEdited("Here you go:\n```html\n"+sampleHTML+"\n```", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Dir(workspace.HTML), "claude_edited_20240309_140506.html"), out.HTMLPath)
	assert.Equal(t, 85, out.Validation.QualityScore)
	assert.Equal(t, 1, out.Analysis.Lists)
	data, err := os.ReadFile(out.HTMLPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))

	_, err = e.ProcessEdited(" ", "x")
	assert.Equal(t, result.KindUnsupportedInput, result.Classify(err))
}
