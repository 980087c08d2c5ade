package mcpserver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/local/resumevision/internal/filetype"
	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/service"
	"github.com/local/resumevision/internal/templates"
	"github.com/local/resumevision/internal/vision"
	"github.com/local/resumevision/internal/workspace"
)

// Tool names.
const (
	ToolUploadAndScreenshot = "upload_and_screenshot"
	ToolPrepareVision       = "prepare_for_vision_analysis"
	ToolProcessHTML         = "process_claude_html"
	ToolExportPDF           = "export_to_pdf"
	ToolWorkflowStatus      = "get_workflow_status"
	ToolStartWorkflow       = "start_resume_workflow"
	ToolSaveTemplate        = "save_as_template"
	ToolListTemplates       = "list_templates"
	ToolLoadTemplate        = "load_template"
	ToolDeleteTemplate      = "delete_template"
	ToolDuplicateTemplate   = "duplicate_template"
	ToolTemplateInfo        = "get_template_info"
	ToolExportTemplate      = "export_template"
	ToolPrepareEdit         = "prepare_html_edit"
	ToolProcessEdited       = "process_edited_html"
	ToolPrepareJobOptimize  = "prepare_job_optimization"
	ToolPrepareRedesign     = "prepare_layout_redesign"
	ToolDocumentInfo        = "get_document_info"
	ToolClearCache          = "clear_component_cache"
	ToolCheckEnvironment    = "check_environment"
)

type handlers struct {
	svc *service.Service
}

// Tools returns the full tool table bound to svc.
func Tools(svc *service.Service) []server.ServerTool {
	h := &handlers{svc: svc}
	supported := strings.Join(filetype.SupportedExtensions(), ", ")

	return []server.ServerTool{
		{
			Tool: mcp.NewTool(ToolUploadAndScreenshot,
				mcp.WithDescription("Convert a resume ("+supported+") to PNG screenshots, one per page"),
				mcp.WithString("file_path", mcp.Required(), mcp.Description("Absolute path of the document")),
				mcp.WithString("output_name", mcp.Description("Base name for the screenshots (default <stem>_screenshot)")),
			),
			Handler: wrap(ToolUploadAndScreenshot, h.uploadAndScreenshot),
		},
		{
			Tool: mcp.NewTool(ToolPrepareVision,
				mcp.WithDescription("Inspect a screenshot and return instructions for replicating it as HTML"),
				mcp.WithString("screenshot_path", mcp.Required(), mcp.Description("Path of the PNG screenshot")),
				mcp.WithString("output_name", mcp.Description("Name for the HTML replica (default <stem>_replica)")),
			),
			Handler: wrap(ToolPrepareVision, h.prepareVision),
		},
		{
			Tool: mcp.NewTool(ToolProcessHTML,
				mcp.WithDescription("Save HTML generated from a screenshot and validate it"),
				mcp.WithString("html_content", mcp.Required(), mcp.Description("Complete HTML document")),
				mcp.WithString("workflow_name", mcp.Description("Workflow to attach the HTML to")),
				mcp.WithString("output_name", mcp.Description("Name of the HTML file")),
			),
			Handler: wrap(ToolProcessHTML, h.processHTML),
		},
		{
			Tool: mcp.NewTool(ToolExportPDF,
				mcp.WithDescription("Print an HTML file to a US Letter PDF and report whether it fits one page"),
				mcp.WithString("html_file_path", mcp.Required(), mcp.Description("HTML file; relative names resolve under html/")),
				mcp.WithString("output_path", mcp.Description("PDF path; relative names resolve under pdf/")),
				mcp.WithString("workflow_name", mcp.Description("Workflow to record the PDF on")),
			),
			Handler: wrap(ToolExportPDF, h.exportPDF),
		},
		{
			Tool: mcp.NewTool(ToolWorkflowStatus,
				mcp.WithDescription("Show a workflow, or the workspace and component state when no name is given"),
				mcp.WithString("workflow_name", mcp.Description("Workflow name")),
			),
			Handler: wrap(ToolWorkflowStatus, h.workflowStatus),
		},
		{
			Tool: mcp.NewTool(ToolStartWorkflow,
				mcp.WithDescription("Screenshot a resume and prepare it for vision analysis in one step"),
				mcp.WithString("file_path", mcp.Required(), mcp.Description("Absolute path of the document")),
				mcp.WithString("workflow_name", mcp.Description("Workflow name (generated when empty)")),
			),
			Handler: wrap(ToolStartWorkflow, h.startWorkflow),
		},
		{
			Tool: mcp.NewTool(ToolSaveTemplate,
				mcp.WithDescription("Save an HTML resume as a reusable template"),
				mcp.WithString("html_file_path", mcp.Required(), mcp.Description("HTML file to save")),
				mcp.WithString("template_name", mcp.Required(), mcp.Description("Template name")),
				mcp.WithString("description", mcp.Description("Free-form description")),
				mcp.WithString("workflow_name", mcp.Description("Workflow whose HTML to save")),
			),
			Handler: wrap(ToolSaveTemplate, h.saveTemplate),
		},
		{
			Tool: mcp.NewTool(ToolListTemplates,
				mcp.WithDescription("List saved templates, newest first"),
			),
			Handler: wrap(ToolListTemplates, h.listTemplates),
		},
		{
			Tool: mcp.NewTool(ToolLoadTemplate,
				mcp.WithDescription("Return the HTML of a saved template"),
				mcp.WithString("template_name", mcp.Required(), mcp.Description("Template name")),
			),
			Handler: wrap(ToolLoadTemplate, h.loadTemplate),
		},
		{
			Tool: mcp.NewTool(ToolDeleteTemplate,
				mcp.WithDescription("Delete a saved template"),
				mcp.WithString("template_name", mcp.Required(), mcp.Description("Template name")),
			),
			Handler: wrap(ToolDeleteTemplate, h.deleteTemplate),
		},
		{
			Tool: mcp.NewTool(ToolDuplicateTemplate,
				mcp.WithDescription("Copy a saved template under a new name"),
				mcp.WithString("source_name", mcp.Required(), mcp.Description("Template to copy")),
				mcp.WithString("new_name", mcp.Required(), mcp.Description("Name of the copy")),
				mcp.WithString("description", mcp.Description("Description of the copy")),
			),
			Handler: wrap(ToolDuplicateTemplate, h.duplicateTemplate),
		},
		{
			Tool: mcp.NewTool(ToolTemplateInfo,
				mcp.WithDescription("Show a template's metadata and file details"),
				mcp.WithString("template_name", mcp.Required(), mcp.Description("Template name")),
			),
			Handler: wrap(ToolTemplateInfo, h.templateInfo),
		},
		{
			Tool: mcp.NewTool(ToolExportTemplate,
				mcp.WithDescription("Copy a template's HTML into the workspace for editing or export"),
				mcp.WithString("template_name", mcp.Required(), mcp.Description("Template name")),
				mcp.WithString("output_path", mcp.Description("Destination; relative names resolve under html/ (default html/<name>.html)")),
			),
			Handler: wrap(ToolExportTemplate, h.exportTemplate),
		},
		{
			Tool: mcp.NewTool(ToolPrepareEdit,
				mcp.WithDescription("Build an editing prompt for an existing HTML resume"),
				mcp.WithString("html_content_or_path", mcp.Required(), mcp.Description("HTML document, or a .html path; relative names resolve under html/")),
				mcp.WithString("instructions", mcp.Required(), mcp.Description("Changes to make")),
				mcp.WithString("output_name", mcp.Description("Name for the edited HTML (default edited_resume_<timestamp>)")),
			),
			Handler: wrap(ToolPrepareEdit, h.prepareEdit),
		},
		{
			Tool: mcp.NewTool(ToolProcessEdited,
				mcp.WithDescription("Save an edited HTML resume and grade it"),
				mcp.WithString("html_content", mcp.Required(), mcp.Description("Complete edited HTML document")),
				mcp.WithString("output_name", mcp.Description("Name of the HTML file (default claude_edited_<timestamp>)")),
			),
			Handler: wrap(ToolProcessEdited, h.processEdited),
		},
		{
			Tool: mcp.NewTool(ToolPrepareJobOptimize,
				mcp.WithDescription("Build an editing prompt that tailors a resume to a job posting"),
				mcp.WithString("html_content_or_path", mcp.Required(), mcp.Description("HTML document, or a .html path")),
				mcp.WithString("job_description", mcp.Required(), mcp.Description("Text of the job posting")),
				mcp.WithString("output_name", mcp.Description("Name for the optimized HTML")),
			),
			Handler: wrap(ToolPrepareJobOptimize, h.prepareJobOptimization),
		},
		{
			Tool: mcp.NewTool(ToolPrepareRedesign,
				mcp.WithDescription("Build an editing prompt that restyles a resume"),
				mcp.WithString("html_content_or_path", mcp.Required(), mcp.Description("HTML document, or a .html path")),
				mcp.WithString("style", mcp.Description("One of "+strings.Join(vision.Styles(), ", ")+" (default professional)")),
				mcp.WithString("output_name", mcp.Description("Name for the redesigned HTML")),
			),
			Handler: wrap(ToolPrepareRedesign, h.prepareRedesign),
		},
		{
			Tool: mcp.NewTool(ToolDocumentInfo,
				mcp.WithDescription("Describe a document: type, size, page count and a text preview"),
				mcp.WithString("file_path", mcp.Required(), mcp.Description("Absolute path of the document")),
			),
			Handler: wrap(ToolDocumentInfo, h.documentInfo),
		},
		{
			Tool: mcp.NewTool(ToolClearCache,
				mcp.WithDescription("Drop cached components so they are rebuilt on next use"),
			),
			Handler: wrap(ToolClearCache, h.clearCache),
		},
		{
			Tool: mcp.NewTool(ToolCheckEnvironment,
				mcp.WithDescription("Check LibreOffice, MuPDF, Chromium and the optional Redis and S3 backends"),
			),
			Handler: wrap(ToolCheckEnvironment, h.checkEnvironment),
		},
	}
}

func required(req mcp.CallToolRequest, key string) (string, *result.Result) {
	v, err := req.RequireString(key)
	if err != nil || strings.TrimSpace(v) == "" {
		r := result.Failf(result.KindUnsupportedInput, fmt.Sprintf("%s is required", key))
		return "", &r
	}
	return strings.TrimSpace(v), nil
}

func (h *handlers) uploadAndScreenshot(ctx context.Context, req mcp.CallToolRequest) result.Result {
	path, bad := required(req, "file_path")
	if bad != nil {
		return *bad
	}
	conv, err := h.svc.Converter.Get()
	if err != nil {
		return result.Fail(err)
	}
	out, err := conv.Convert(ctx, path, req.GetString("output_name", ""))
	if err != nil {
		return result.Fail(err)
	}
	return result.OK(fmt.Sprintf("Rendered %d of %d page(s)", out.Rendered, out.PageCount), map[string]any{
		"screenshot_path":  out.Primary(),
		"screenshot_paths": out.Paths,
		"page_count":       out.PageCount,
		"rendered_pages":   out.Rendered,
		"truncated":        out.Truncated,
		"route":            out.Route,
		"next_step":        fmt.Sprintf("Call %s with screenshot_path=%s", ToolPrepareVision, out.Primary()),
	})
}

func (h *handlers) prepareVision(ctx context.Context, req mcp.CallToolRequest) result.Result {
	path, bad := required(req, "screenshot_path")
	if bad != nil {
		return *bad
	}
	rep, err := h.svc.Replicator.Get()
	if err != nil {
		return result.Fail(err)
	}
	prep, err := rep.Prepare(path, req.GetString("output_name", ""))
	if err != nil {
		return result.Fail(err)
	}
	return result.OK("Screenshot ready for vision analysis", map[string]any{
		"image_path":   prep.ImagePath,
		"image_info":   prep.ImageInfo,
		"output_path":  prep.OutputPath,
		"instructions": prep.Instructions,
		"next_steps": []string{
			"Attach the screenshot and send the prompt from " + VisionPromptURI,
			fmt.Sprintf("Pass the returned HTML to %s", ToolProcessHTML),
			fmt.Sprintf("Call %s on the saved HTML", ToolExportPDF),
		},
	})
}

func (h *handlers) processHTML(ctx context.Context, req mcp.CallToolRequest) result.Result {
	content, bad := required(req, "html_content")
	if bad != nil {
		return *bad
	}
	processed, w, err := h.svc.Workflows().RecordHTML(ctx,
		req.GetString("workflow_name", ""), content, req.GetString("output_name", ""))
	if err != nil {
		return result.Fail(err)
	}
	data := map[string]any{
		"html_path":  processed.HTMLPath,
		"validation": processed.Validation,
		"next_step":  fmt.Sprintf("Call %s with html_file_path=%s", ToolExportPDF, processed.HTMLPath),
	}
	if w != nil {
		data["workflow"] = w
	}
	msg := "HTML saved"
	if !processed.Validation.Valid {
		msg = "HTML saved with validation issues"
	}
	return result.OK(msg, data)
}

func (h *handlers) exportPDF(ctx context.Context, req mcp.CallToolRequest) result.Result {
	name := req.GetString("workflow_name", "")
	htmlPath := strings.TrimSpace(req.GetString("html_file_path", ""))
	if htmlPath == "" && name == "" {
		return result.Failf(result.KindUnsupportedInput, "html_file_path is required")
	}
	out, w, err := h.svc.Workflows().Export(ctx, name, htmlPath, req.GetString("output_path", ""))
	if err != nil {
		return result.Fail(err)
	}
	data := map[string]any{
		"pdf_path":         out.PDFPath,
		"html_path":        out.HTMLPath,
		"page_count":       out.PageCount,
		"fits_single_page": out.FitsSinglePage,
		"file_size_kb":     out.FileSizeKB,
		"renderer":         out.Renderer,
	}
	if out.Warning != "" {
		data["warning"] = out.Warning
	}
	if out.ArtifactURL != "" {
		data["artifact_url"] = out.ArtifactURL
	}
	if w != nil {
		data["workflow"] = w
	}
	msg := "PDF exported on a single page"
	if !out.FitsSinglePage {
		msg = fmt.Sprintf("PDF exported with %d pages", out.PageCount)
	}
	return result.OK(msg, data)
}

func (h *handlers) workflowStatus(ctx context.Context, req mcp.CallToolRequest) result.Result {
	name := strings.TrimSpace(req.GetString("workflow_name", ""))
	if name != "" {
		w, err := h.svc.Workflows().Status(ctx, name)
		if err != nil {
			return result.Fail(err)
		}
		return result.OK(fmt.Sprintf("Workflow %s is %s", w.Name, w.Status), map[string]any{"workflow": w})
	}

	names, err := h.svc.Workflows().Names(ctx)
	if err != nil {
		return result.Fail(err)
	}
	ws := h.svc.Workspace()
	return result.OK("Workspace status", map[string]any{
		"workspace":  ws.Root(),
		"components": h.svc.ComponentStates(),
		"workflows":  names,
		"directories": map[string]string{
			"screenshots": ws.Dir(workspace.Screenshots),
			"html":        ws.Dir(workspace.HTML),
			"templates":   ws.Dir(workspace.Templates),
			"pdf":         ws.Dir(workspace.PDF),
		},
	})
}

func (h *handlers) startWorkflow(ctx context.Context, req mcp.CallToolRequest) result.Result {
	path, bad := required(req, "file_path")
	if bad != nil {
		return *bad
	}
	started, err := h.svc.Workflows().Start(ctx, path, req.GetString("workflow_name", ""))
	if err != nil {
		return result.Fail(err)
	}
	w := started.Workflow
	return result.OK("Workflow started: "+w.Name, map[string]any{
		"workflow_name":    w.Name,
		"screenshot_path":  w.ScreenshotPath,
		"screenshot_paths": w.ScreenshotPaths,
		"page_count":       started.Conversion.PageCount,
		"output_path":      started.Preparation.OutputPath,
		"instructions":     started.Preparation.Instructions,
		"next_steps": []string{
			"Analyze " + filepath.Base(w.ScreenshotPath) + " with the prompt from " + VisionPromptURI,
			fmt.Sprintf("Call %s with workflow_name=%s and the generated HTML", ToolProcessHTML, w.Name),
			fmt.Sprintf("Call %s with workflow_name=%s", ToolExportPDF, w.Name),
		},
	})
}

func (h *handlers) saveTemplate(ctx context.Context, req mcp.CallToolRequest) result.Result {
	tname, bad := required(req, "template_name")
	if bad != nil {
		return *bad
	}
	name := req.GetString("workflow_name", "")
	htmlPath := strings.TrimSpace(req.GetString("html_file_path", ""))
	if htmlPath == "" && name == "" {
		return result.Failf(result.KindUnsupportedInput, "html_file_path is required")
	}
	p, err := h.svc.Workflows().SaveTemplate(ctx, name, htmlPath, tname, req.GetString("description", ""))
	if err != nil {
		return result.Fail(err)
	}
	return result.OK("Template saved: "+tname, map[string]any{"template_path": p})
}

func (h *handlers) listTemplates(ctx context.Context, req mcp.CallToolRequest) result.Result {
	tm, err := h.svc.Templates.Get()
	if err != nil {
		return result.Fail(err)
	}
	list := tm.List()
	return result.OK(fmt.Sprintf("%d template(s)", len(list)), map[string]any{"templates": list})
}

func (h *handlers) loadTemplate(ctx context.Context, req mcp.CallToolRequest) result.Result {
	tname, bad := required(req, "template_name")
	if bad != nil {
		return *bad
	}
	tm, err := h.svc.Templates.Get()
	if err != nil {
		return result.Fail(err)
	}
	data, p, err := tm.Load(tname)
	if err != nil {
		return result.Fail(err)
	}
	return result.OK("Template loaded: "+tname, map[string]any{
		"html_content":  string(data),
		"template_path": p,
	})
}

func (h *handlers) deleteTemplate(ctx context.Context, req mcp.CallToolRequest) result.Result {
	tname, bad := required(req, "template_name")
	if bad != nil {
		return *bad
	}
	tm, err := h.svc.Templates.Get()
	if err != nil {
		return result.Fail(err)
	}
	if err := tm.Delete(tname); err != nil {
		return result.Fail(err)
	}
	return result.OK("Template deleted: "+tname, map[string]any{"deleted": tname})
}

func (h *handlers) duplicateTemplate(ctx context.Context, req mcp.CallToolRequest) result.Result {
	source, bad := required(req, "source_name")
	if bad != nil {
		return *bad
	}
	newName, bad := required(req, "new_name")
	if bad != nil {
		return *bad
	}
	tm, err := h.svc.Templates.Get()
	if err != nil {
		return result.Fail(err)
	}
	p, err := tm.Duplicate(source, newName, req.GetString("description", ""))
	if err != nil {
		return result.Fail(err)
	}
	return result.OK(fmt.Sprintf("Template %s copied to %s", source, newName), map[string]any{"template_path": p})
}

func (h *handlers) templateInfo(ctx context.Context, req mcp.CallToolRequest) result.Result {
	tname, bad := required(req, "template_name")
	if bad != nil {
		return *bad
	}
	tm, err := h.svc.Templates.Get()
	if err != nil {
		return result.Fail(err)
	}
	info, err := tm.Info(tname)
	if err != nil {
		return result.Fail(err)
	}
	return result.OK("Template: "+info.Name, map[string]any{"template": info})
}

func (h *handlers) exportTemplate(ctx context.Context, req mcp.CallToolRequest) result.Result {
	tname, bad := required(req, "template_name")
	if bad != nil {
		return *bad
	}
	out := strings.TrimSpace(req.GetString("output_path", ""))
	if out == "" {
		out = templates.CleanName(tname) + ".html"
	}
	dst, err := h.svc.Workspace().Resolve(workspace.HTML, out)
	if err != nil {
		return result.Fail(err)
	}
	tm, err := h.svc.Templates.Get()
	if err != nil {
		return result.Fail(err)
	}
	p, err := tm.Export(tname, dst)
	if err != nil {
		return result.Fail(err)
	}
	return result.OK("Template exported: "+tname, map[string]any{
		"html_path": p,
		"next_step": fmt.Sprintf("Call %s with html_file_path=%s", ToolExportPDF, p),
	})
}

func editPlanResult(msg string, plan *vision.EditPlan) result.Result {
	return result.OK(msg, map[string]any{
		"edit": plan,
		"tips": vision.EditingTips(),
		"next_step": fmt.Sprintf("Send editing_prompt to the assistant, then pass the returned HTML to %s with output_name=%s",
			ToolProcessEdited, strings.TrimSuffix(filepath.Base(plan.OutputPath), ".html")),
	})
}

func (h *handlers) prepareEdit(ctx context.Context, req mcp.CallToolRequest) result.Result {
	src, bad := required(req, "html_content_or_path")
	if bad != nil {
		return *bad
	}
	instructions, bad := required(req, "instructions")
	if bad != nil {
		return *bad
	}
	ed, err := h.svc.Editor.Get()
	if err != nil {
		return result.Fail(err)
	}
	plan, err := ed.PrepareEdit(src, instructions, req.GetString("output_name", ""))
	if err != nil {
		return result.Fail(err)
	}
	return editPlanResult("Edit prepared", plan)
}

func (h *handlers) processEdited(ctx context.Context, req mcp.CallToolRequest) result.Result {
	content, bad := required(req, "html_content")
	if bad != nil {
		return *bad
	}
	ed, err := h.svc.Editor.Get()
	if err != nil {
		return result.Fail(err)
	}
	out, err := ed.ProcessEdited(content, req.GetString("output_name", ""))
	if err != nil {
		return result.Fail(err)
	}
	return result.OK(fmt.Sprintf("Edited HTML saved (quality %d/100)", out.Validation.QualityScore), map[string]any{
		"edited_html_path": out.HTMLPath,
		"validation":       out.Validation,
		"analysis":         out.Analysis,
		"next_step":        fmt.Sprintf("Call %s with html_file_path=%s", ToolExportPDF, out.HTMLPath),
	})
}

func (h *handlers) prepareJobOptimization(ctx context.Context, req mcp.CallToolRequest) result.Result {
	src, bad := required(req, "html_content_or_path")
	if bad != nil {
		return *bad
	}
	jd, bad := required(req, "job_description")
	if bad != nil {
		return *bad
	}
	ed, err := h.svc.Editor.Get()
	if err != nil {
		return result.Fail(err)
	}
	plan, err := ed.PrepareJobOptimization(src, jd, req.GetString("output_name", ""))
	if err != nil {
		return result.Fail(err)
	}
	return editPlanResult("Job optimization prepared", plan)
}

func (h *handlers) prepareRedesign(ctx context.Context, req mcp.CallToolRequest) result.Result {
	src, bad := required(req, "html_content_or_path")
	if bad != nil {
		return *bad
	}
	ed, err := h.svc.Editor.Get()
	if err != nil {
		return result.Fail(err)
	}
	plan, err := ed.PrepareRedesign(src, req.GetString("style", ""), req.GetString("output_name", ""))
	if err != nil {
		return result.Fail(err)
	}
	return editPlanResult("Redesign prepared", plan)
}

func (h *handlers) documentInfo(ctx context.Context, req mcp.CallToolRequest) result.Result {
	path, bad := required(req, "file_path")
	if bad != nil {
		return *bad
	}
	conv, err := h.svc.Converter.Get()
	if err != nil {
		return result.Fail(err)
	}
	info, err := conv.Info(path)
	if err != nil {
		return result.Fail(err)
	}
	return result.OK(info.Description, map[string]any{"document": info})
}

func (h *handlers) clearCache(ctx context.Context, req mcp.CallToolRequest) result.Result {
	cleared, err := h.svc.ClearComponents()
	if err != nil {
		return result.Fail(err)
	}
	if cleared == nil {
		cleared = []string{}
	}
	return result.OK(fmt.Sprintf("Cleared %d component(s)", len(cleared)), map[string]any{"cleared_components": cleared})
}

func (h *handlers) checkEnvironment(ctx context.Context, req mcp.CallToolRequest) result.Result {
	sum := h.svc.Checker().Summary(ctx)
	msg := "Environment ready"
	if !sum.Ready() {
		msg = "Environment incomplete"
	}
	return result.OK(msg, map[string]any{
		"ready":  sum.Ready(),
		"checks": sum,
	})
}
