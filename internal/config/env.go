package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// WorkspaceConfig locates the artifact tree and bounds how long temp files live.
type WorkspaceConfig struct {
	Root       string
	TempMaxAge time.Duration
}

// ConverterConfig controls document rasterization.
type ConverterConfig struct {
	LibreOfficeBin string
	Timeout        time.Duration
	DPI            int
	MaxImagePx     int
	Contrast       float64
	MaxPages       int
}

// PDFConfig holds the fixed page layout used for HTML to PDF export.
type PDFConfig struct {
	Renderer        string // "rod"
	Fallback        string // "playwright"|"none"
	BrowserBin      string
	NoSandbox       bool
	Timeout         time.Duration
	PageWidthIn     float64
	PageHeightIn    float64
	MarginIn        float64
	Scale           float64
	PrintBackground bool
}

// StoreConfig selects the workflow state backend.
type StoreConfig struct {
	RedisURL string
	KeyNS    string
}

// ArtifactConfig configures optional S3 publishing of exported PDFs.
type ArtifactConfig struct {
	Bucket string
	Prefix string
}

// ServerConfig describes the MCP server identity and side listeners.
type ServerConfig struct {
	Name        string
	Version     string
	MetricsAddr string
}

// Config is the top-level configuration.
type Config struct {
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Workspace WorkspaceConfig
	Converter ConverterConfig
	PDF       PDFConfig
	Store     StoreConfig
	Artifacts ArtifactConfig
	Server    ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Workspace = WorkspaceConfig{
		Root:       getEnv("RESUME_WORKSPACE", defaultWorkspace()),
		TempMaxAge: parseDuration(getEnv("TEMP_MAX_AGE", "24h"), 24*time.Hour),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", filepath.Join(cfg.Workspace.Root, "logs", "resumevision.log")),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "20"), 20),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "5"), 5),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_resumevision",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Converter = ConverterConfig{
		LibreOfficeBin: getEnv("LIBREOFFICE_BIN", "libreoffice"),
		Timeout:        parseDuration(getEnv("CONVERT_TIMEOUT", "30s"), 30*time.Second),
		DPI:            parseInt(getEnv("RENDER_DPI", "300"), 300),
		MaxImagePx:     parseInt(getEnv("MAX_IMAGE_PX", "2048"), 2048),
		Contrast:       parseFloat(getEnv("IMAGE_CONTRAST", "1.1"), 1.1),
		MaxPages:       parseInt(getEnv("MAX_PAGES", "10"), 10),
	}

	// Page geometry tuned for single-page resumes on US Letter.
	cfg.PDF = PDFConfig{
		Renderer:        strings.ToLower(getEnv("PDF_RENDERER", "rod")),
		Fallback:        strings.ToLower(getEnv("PDF_FALLBACK", "none")),
		BrowserBin:      getEnv("ROD_BROWSER_BIN", ""),
		NoSandbox:       parseBool(getEnv("BROWSER_NO_SANDBOX", noSandboxDefault())),
		Timeout:         parseDuration(getEnv("EXPORT_TIMEOUT", "60s"), 60*time.Second),
		PageWidthIn:     parseFloat(getEnv("PDF_PAGE_WIDTH_IN", "8.5"), 8.5),
		PageHeightIn:    parseFloat(getEnv("PDF_PAGE_HEIGHT_IN", "11"), 11),
		MarginIn:        parseFloat(getEnv("PDF_MARGIN_IN", "0.6"), 0.6),
		Scale:           parseFloat(getEnv("PDF_SCALE", "0.85"), 0.85),
		PrintBackground: parseBool(getEnv("PDF_PRINT_BACKGROUND", "true")),
	}

	cfg.Store = StoreConfig{
		RedisURL: getEnv("REDIS_URL", ""),
		KeyNS:    getEnv("REDIS_KEY_NS", "resumevision"),
	}

	cfg.Artifacts = ArtifactConfig{
		Bucket: getEnv("ARTIFACT_S3_BUCKET", ""),
		Prefix: getEnv("ARTIFACT_S3_PREFIX", "resumes/"),
	}

	cfg.Server = ServerConfig{
		Name:        getEnv("MCP_SERVER_NAME", "resume-vision"),
		Version:     getEnv("MCP_SERVER_VERSION", "1.0.0"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}

// Containers and CI runners usually need Chromium's sandbox disabled.
func noSandboxDefault() string {
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		return "true"
	}
	return "false"
}

func defaultWorkspace() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "resume_workspace")
	}
	return filepath.Join(home, "resume_workspace")
}
