package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/resumevision/internal/config"
	logpkg "github.com/local/resumevision/internal/logger"
	"github.com/local/resumevision/internal/mcpserver"
	"github.com/local/resumevision/internal/service"
)

var (
	cfg cfgpkg.Config

	envFile   string
	wsFlag    string
	levelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "resumevision",
	Short: "MCP server that turns resumes into screenshots, HTML replicas and single-page PDFs",
	Long: `resumevision exposes document conversion and PDF export as Model Context Protocol
tools over stdio. Run without a subcommand to start the server.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { logpkg.Close() },
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVarP(&wsFlag, "workspace", "w", "", "workspace root (overrides RESUME_WORKSPACE)")
	rootCmd.PersistentFlags().StringVar(&levelFlag, "log-level", "", "log level (overrides LOG_LEVEL)")
}

func setup(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	cfg = cfgpkg.FromEnv()
	if wsFlag != "" {
		abs, err := filepath.Abs(wsFlag)
		if err != nil {
			return err
		}
		cfg.Workspace.Root = abs
		if os.Getenv("LOG_FILE") == "" {
			cfg.Logging.File = filepath.Join(abs, "logs", "resumevision.log")
		}
	}
	if levelFlag != "" {
		cfg.Logging.Level = levelFlag
	}

	return logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
}

// withService runs fn with a service that is closed afterwards.
func withService(ctx context.Context, fn func(*service.Service) error) error {
	svc, err := service.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("service teardown")
		}
	}()
	return fn(svc)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return withService(ctx, func(svc *service.Service) error {
		err := mcpserver.ServeStdio(ctx, svc)
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("shutdown complete")
			return nil
		}
		return err
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
