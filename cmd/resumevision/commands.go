package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/local/resumevision/internal/service"
	"github.com/local/resumevision/internal/workspace"
)

var (
	convertName  string
	exportOutput string
	cleanupAge   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	RunE:  runServe,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check LibreOffice, MuPDF, Chromium and the optional backends",
	RunE:  runDoctor,
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Render a document to PNG screenshots in the workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var exportCmd = &cobra.Command{
	Use:   "export <html-file>",
	Short: "Print an HTML file to PDF with the configured page layout",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale files from the workspace temp directory",
	RunE:  runCleanup,
}

func init() {
	convertCmd.Flags().StringVarP(&convertName, "name", "n", "", "output base name (default <stem>_screenshot)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "PDF path (default pdf/<stem>.pdf)")
	cleanupCmd.Flags().DurationVar(&cleanupAge, "max-age", 24*time.Hour, "remove temp files older than this")

	rootCmd.AddCommand(serveCmd, doctorCmd, convertCmd, exportCmd, cleanupCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(svc *service.Service) error {
		sum := svc.Checker().Summary(cmd.Context())
		if err := printJSON(sum); err != nil {
			return err
		}
		if !sum.Ready() {
			return fmt.Errorf("environment incomplete")
		}
		return nil
	})
}

func runConvert(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(svc *service.Service) error {
		conv, err := svc.Converter.Get()
		if err != nil {
			return err
		}
		out, err := conv.Convert(cmd.Context(), args[0], convertName)
		if err != nil {
			return err
		}
		return printJSON(out)
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(svc *service.Service) error {
		exp, err := svc.Exporter.Get()
		if err != nil {
			return err
		}
		out, err := exp.Export(cmd.Context(), args[0], exportOutput)
		if err != nil {
			return err
		}
		return printJSON(out)
	})
}

func runCleanup(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(svc *service.Service) error {
		n := svc.Workspace().CleanupTemp(cleanupAge)
		fmt.Fprintf(os.Stdout, "removed %d temp file(s) from %s\n", n, svc.Workspace().Dir(workspace.Temp))
		return nil
	})
}
