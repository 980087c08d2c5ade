// Package mcpserver exposes the resume tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/metrics"
	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/service"
	"github.com/local/resumevision/internal/vision"
)

const (
	VisionPromptURI    = "resume://vision-prompt"
	ReplicatePrompt    = "replicate_resume"
	serverInstructions = "Convert resumes to screenshots, replicate them as HTML with your vision capability, then export single-page PDFs."
)

// New builds an MCP server with every tool, resource and prompt registered.
func New(svc *service.Service) *server.MCPServer {
	cfg := svc.Config().Server
	s := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithInstructions(serverInstructions),
		server.WithLogging(),
		server.WithRecovery(),
	)

	s.AddTools(Tools(svc)...)

	s.AddResource(mcp.NewResource(VisionPromptURI, "Vision analysis prompt",
		mcp.WithResourceDescription("Recommended prompt for replicating a resume screenshot as HTML"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: VisionPromptURI, MIMEType: "text/plain", Text: vision.AnalysisPrompt},
		}, nil
	})

	s.AddPrompt(mcp.NewPrompt(ReplicatePrompt,
		mcp.WithPromptDescription("Replicate a resume screenshot as a single-page HTML document"),
		mcp.WithArgument("screenshot_path", mcp.ArgumentDescription("Screenshot to attach to the request")),
	), replicatePrompt)

	return s
}

func replicatePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	text := vision.AnalysisPrompt
	if p := req.Params.Arguments["screenshot_path"]; p != "" {
		text = fmt.Sprintf("Screenshot: %s\n\n%s", p, text)
	}
	return mcp.NewGetPromptResult(
		"Resume replication",
		[]mcp.PromptMessage{mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text))},
	), nil
}

// ServeStdio runs the server on stdin/stdout until ctx is cancelled or the
// client disconnects.
func ServeStdio(ctx context.Context, svc *service.Service) error {
	s := New(svc)
	log.Info().Str("name", svc.Config().Server.Name).Str("workspace", svc.Workspace().Root()).Msg("MCP server listening on stdio")
	return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
}

// toolFunc is a typed handler; wrap converts its Result to MCP.
type toolFunc func(ctx context.Context, req mcp.CallToolRequest) result.Result

func wrap(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res := fn(ctx, req)
		dur := time.Since(start)
		metrics.ObserveTool(name, metrics.ResultLabel(res.Success), dur)

		ev := log.Info()
		if !res.Success {
			ev = log.Warn().Str("kind", string(res.Error.Kind)).Str("error", res.Error.Message)
		}
		ev.Str("tool", name).Dur("duration", dur).Bool("success", res.Success).Msg("tool call")

		out := mcp.NewToolResultText(res.JSON())
		out.IsError = !res.Success
		return out, nil
	}
}
