package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("RESUME_WORKSPACE", "/srv/resume_workspace")

	cfg := FromEnv()

	assert.Equal(t, "/srv/resume_workspace", cfg.Workspace.Root)
	assert.Equal(t, filepath.Join("/srv/resume_workspace", "logs", "resumevision.log"), cfg.Logging.File)
	assert.Equal(t, 8.5, cfg.PDF.PageWidthIn)
	assert.Equal(t, 11.0, cfg.PDF.PageHeightIn)
	assert.Equal(t, 0.6, cfg.PDF.MarginIn)
	assert.Equal(t, 0.85, cfg.PDF.Scale)
	assert.True(t, cfg.PDF.PrintBackground)
	assert.Equal(t, "rod", cfg.PDF.Renderer)
	assert.Equal(t, "none", cfg.PDF.Fallback)
	assert.Equal(t, 300, cfg.Converter.DPI)
	assert.Equal(t, 2048, cfg.Converter.MaxImagePx)
	assert.Equal(t, 30*time.Second, cfg.Converter.Timeout)
	assert.Equal(t, "dev_resumevision", cfg.Axiom.Dataset)
	assert.Empty(t, cfg.Store.RedisURL)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("RESUME_WORKSPACE", "/tmp/ws")
	t.Setenv("PDF_SCALE", "0.9")
	t.Setenv("PDF_FALLBACK", "Playwright")
	t.Setenv("CONVERT_TIMEOUT", "5s")
	t.Setenv("MAX_PAGES", "not-a-number")
	t.Setenv("LOG_FILE", "/var/log/rv.log")

	cfg := FromEnv()

	assert.Equal(t, 0.9, cfg.PDF.Scale)
	assert.Equal(t, "playwright", cfg.PDF.Fallback)
	assert.Equal(t, 5*time.Second, cfg.Converter.Timeout)
	assert.Equal(t, 10, cfg.Converter.MaxPages)
	assert.Equal(t, "/var/log/rv.log", cfg.Logging.File)
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"", "0", "false", "nope"} {
		assert.False(t, parseBool(v), v)
	}
}
