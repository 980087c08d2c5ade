package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/filetype"
	"github.com/local/resumevision/internal/result"
)

// LibreOffice converts office documents to PDF with a headless soffice run.
type LibreOffice struct {
	bin     string
	timeout time.Duration

	versionOnce sync.Once
	version     string
	versionErr  error
}

// NewLibreOffice creates a converter that invokes bin (default "libreoffice").
func NewLibreOffice(bin string, timeout time.Duration) *LibreOffice {
	if bin == "" {
		bin = "libreoffice"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LibreOffice{bin: bin, timeout: timeout}
}

// Bin returns the configured executable.
func (l *LibreOffice) Bin() string { return l.bin }

// IsAvailable reports whether the binary resolves on PATH.
func (l *LibreOffice) IsAvailable() bool {
	_, err := exec.LookPath(l.bin)
	return err == nil
}

// Version runs `<bin> --version` once and caches the answer.
func (l *LibreOffice) Version(ctx context.Context) (string, error) {
	l.versionOnce.Do(func() {
		if _, err := exec.LookPath(l.bin); err != nil {
			l.versionErr = fmt.Errorf("%w: LibreOffice not found in PATH: %w", result.ErrExternalTool, err)
			return
		}
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		out, err := exec.CommandContext(ctx, l.bin, "--version").Output()
		if err != nil {
			l.versionErr = fmt.Errorf("%w: %s --version: %w", result.ErrExternalTool, l.bin, err)
			return
		}
		l.version = strings.TrimSpace(string(out))
		log.Info().Str("version", l.version).Msg("LibreOffice found")
	})
	return l.version, l.versionErr
}

// ConvertToPDF converts inputPath into outDir and returns the produced PDF
// path (<outDir>/<stem>.pdf). Each run uses a throwaway user profile so
// concurrent conversions do not fight over the profile lock.
func (l *LibreOffice) ConvertToPDF(ctx context.Context, inputPath, outDir string) (string, error) {
	start := time.Now()

	if err := validateInput(inputPath); err != nil {
		return "", err
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(inputPath), "."))
	if !slices.Contains(filetype.OfficeExtensions, ext) {
		return "", fmt.Errorf("%w: LibreOffice cannot convert %q files", result.ErrUnsupportedInput, ext)
	}
	if _, err := exec.LookPath(l.bin); err != nil {
		return "", fmt.Errorf("%w: LibreOffice not found in PATH: %w", result.ErrExternalTool, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create output directory: %v", result.ErrFilesystem, err)
	}

	profileDir := filepath.Join(os.TempDir(), fmt.Sprintf("libreoffice_profile_%s", uuid.New().String()))
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create profile directory: %v", result.ErrFilesystem, err)
	}
	defer os.RemoveAll(profileDir)

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		l.bin,
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: conversion timeout after %v: %w", result.ErrExternalTool, l.timeout, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if isPasswordError(msg) {
			return "", fmt.Errorf("%w: document is password protected", result.ErrUnsupportedInput)
		}
		return "", fmt.Errorf("%w: LibreOffice conversion failed: %w (%s)", result.ErrExternalTool, err, msg)
	}

	out := ExpectedOutputPath(inputPath, outDir)
	st, err := os.Stat(out)
	if err != nil || st.Size() == 0 {
		return "", fmt.Errorf("%w: LibreOffice did not produce %s", result.ErrExternalTool, filepath.Base(out))
	}

	log.Info().Str("input", inputPath).Str("output", out).Dur("duration", time.Since(start)).Msg("conversion successful")
	return out, nil
}

// ExpectedOutputPath is where LibreOffice writes the PDF for inputPath.
func ExpectedOutputPath(inputPath, outDir string) string {
	base := filepath.Base(inputPath)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
}

func validateInput(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("%w: file not found: %w", result.ErrUnsupportedInput, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: path is a directory, not a file", result.ErrUnsupportedInput)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: file is empty", result.ErrUnsupportedInput)
	}
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%w: file not readable: %v", result.ErrFilesystem, err)
	}
	f.Close()
	return nil
}

func isPasswordError(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "password") || strings.Contains(m, "encrypted")
}
