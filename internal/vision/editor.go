package vision

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/workspace"
)

const previewChars = 500

// Analysis counts the structural elements of an HTML resume.
type Analysis struct {
	Length     int      `json:"length"`
	Lines      int      `json:"lines"`
	HasStyling bool     `json:"has_styling"`
	Sections   []string `json:"sections"`
	WordCount  int      `json:"word_count"`
	Images     int      `json:"images"`
	Links      int      `json:"links"`
	Tables     int      `json:"tables"`
	Lists      int      `json:"lists"`
}

// EditCheck grades an edited document. QualityScore runs from 0 to 100.
type EditCheck struct {
	Valid        bool     `json:"valid"`
	Issues       []string `json:"issues"`
	Warnings     []string `json:"warnings"`
	QualityScore int      `json:"quality_score"`
}

// EditPlan is everything the host assistant needs to perform an edit.
type EditPlan struct {
	OriginalPath string   `json:"original_html_path"`
	OutputPath   string   `json:"output_path"`
	Instructions string   `json:"instructions"`
	Prompt       string   `json:"editing_prompt"`
	Analysis     Analysis `json:"html_analysis"`
	Preview      string   `json:"html_preview"`
}

// Edited is a stored edit with its grade.
type Edited struct {
	HTMLPath   string    `json:"edited_html_path"`
	Validation EditCheck `json:"validation"`
	Analysis   Analysis  `json:"analysis"`
}

// Editor plans edits of existing HTML resumes and stores the results in
// the workspace html/ directory.
type Editor struct {
	ws  *workspace.Workspace
	now func() time.Time
}

// NewEditor creates an editor writing into ws's html/ directory.
func NewEditor(ws *workspace.Workspace) *Editor {
	return &Editor{ws: ws, now: time.Now}
}

// PrepareEdit loads the document (inline HTML or a .html path, relative
// names resolving under html/) and builds the editing prompt.
func (e *Editor) PrepareEdit(htmlOrPath, instructions, outputName string) (*EditPlan, error) {
	if strings.TrimSpace(instructions) == "" {
		return nil, fmt.Errorf("%w: editing instructions are required", result.ErrUnsupportedInput)
	}
	content, origin, err := e.source(htmlOrPath)
	if err != nil {
		return nil, err
	}
	out, err := e.output(outputName, "edited_resume_")
	if err != nil {
		return nil, err
	}

	log.Info().Str("source", origin).Str("output", out).Msg("edit prepared")
	return &EditPlan{
		OriginalPath: origin,
		OutputPath:   out,
		Instructions: instructions,
		Prompt:       EditPrompt(instructions, content),
		Analysis:     Analyze(content),
		Preview:      Snippet(content, previewChars),
	}, nil
}

// PrepareJobOptimization plans an edit that tailors the resume to a job
// posting.
func (e *Editor) PrepareJobOptimization(htmlOrPath, jobDescription, outputName string) (*EditPlan, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, fmt.Errorf("%w: job description is required", result.ErrUnsupportedInput)
	}
	return e.PrepareEdit(htmlOrPath, JobOptimizationInstructions(jobDescription), outputName)
}

// PrepareRedesign plans an edit that restyles the resume. Unknown styles
// fall back to the professional guidelines.
func (e *Editor) PrepareRedesign(htmlOrPath, style, outputName string) (*EditPlan, error) {
	return e.PrepareEdit(htmlOrPath, RedesignInstructions(style), outputName)
}

// ProcessEdited cleans the edited document, writes it to
// html/<outputName>.html and grades it.
func (e *Editor) ProcessEdited(htmlContent, outputName string) (*Edited, error) {
	cleaned := CleanHTML(htmlContent)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: HTML content is empty", result.ErrUnsupportedInput)
	}
	out, err := e.output(outputName, "claude_edited_")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	if err := os.WriteFile(out, []byte(cleaned), 0o644); err != nil {
		return nil, fmt.Errorf("%w: write html: %v", result.ErrFilesystem, err)
	}

	check := ValidateEdit(cleaned)
	log.Info().Str("html", out).Int("quality_score", check.QualityScore).Bool("valid", check.Valid).Msg("edited HTML saved")
	return &Edited{HTMLPath: out, Validation: check, Analysis: Analyze(cleaned)}, nil
}

func (e *Editor) source(htmlOrPath string) (content, origin string, err error) {
	s := strings.TrimSpace(htmlOrPath)
	if s == "" {
		return "", "", fmt.Errorf("%w: HTML content or path is required", result.ErrUnsupportedInput)
	}
	if strings.Contains(s, "<") || !strings.HasSuffix(strings.ToLower(s), ".html") {
		return s, "provided_content", nil
	}

	p := s
	if !filepath.IsAbs(p) {
		if p, err = e.ws.Resolve(workspace.HTML, s); err != nil {
			return "", "", err
		}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("%w: HTML file not found: %s", result.ErrPrecondition, p)
		}
		return "", "", fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	return string(data), p, nil
}

func (e *Editor) output(name, prefix string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".html")
	if name == "" {
		name = prefix + e.now().Format("20060102_150405")
	}
	return e.ws.Resolve(workspace.HTML, name+".html")
}

// Analyze outlines content: its section headings, word count and the
// number of images, links, tables and lists.
func Analyze(content string) Analysis {
	lower := strings.ToLower(content)
	a := Analysis{
		Length:     len(content),
		Lines:      strings.Count(content, "\n") + 1,
		HasStyling: strings.Contains(lower, "<style") || strings.Contains(lower, "style="),
		Sections:   []string{},
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return a
	}

	var text strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				if h := collapse(textOf(n)); h != "" {
					a.Sections = append(a.Sections, h)
				}
			case atom.Img:
				a.Images++
			case atom.A:
				a.Links++
			case atom.Table:
				a.Tables++
			case atom.Ul, atom.Ol:
				a.Lists++
			}
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	a.WordCount = len(strings.Fields(text.String()))
	return a
}

// ValidateEdit checks the required document structure and scores the
// edit. Each issue costs 15 points and each warning 5; a short document,
// missing CSS and fewer than two headings cost a further 10 each.
func ValidateEdit(content string) EditCheck {
	c := EditCheck{Valid: true, Issues: []string{}, Warnings: []string{}}
	lower := strings.ToLower(content)
	for _, tag := range requiredMarkers {
		if !strings.Contains(lower, strings.ToLower(tag)) {
			c.Valid = false
			c.Issues = append(c.Issues, "Missing "+tag)
		}
	}

	short := len(content) < minHTMLLength
	unstyled := !strings.Contains(lower, "<style") && !strings.Contains(lower, "style=")
	fewHeadings := len(Analyze(content).Sections) < 2
	penalty := 0
	if short {
		c.Warnings = append(c.Warnings, "HTML content seems short")
		penalty += 10
	}
	if unstyled {
		c.Warnings = append(c.Warnings, "No CSS styling detected")
		penalty += 10
	}
	if fewHeadings {
		c.Warnings = append(c.Warnings, "Few section headings found")
		penalty += 10
	}

	c.QualityScore = max(0, 100-15*len(c.Issues)-5*len(c.Warnings)-penalty)
	return c
}

// EditPrompt wraps instructions and the current document into a request
// for the host assistant.
func EditPrompt(instructions, content string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert HTML resume editor. Apply the requested changes to the resume below and return the complete updated document.\n\n")
	sb.WriteString("EDITING INSTRUCTIONS:\n")
	sb.WriteString(instructions)
	sb.WriteString("\n\nEDITING GUIDELINES:\n")
	for i, g := range editingGuidelines {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, g)
	}
	sb.WriteString("\nCURRENT HTML RESUME:\n")
	sb.WriteString(content)
	sb.WriteString("\n\nReturn ONLY the complete edited HTML document, with no explanations or markdown.")
	return sb.String()
}

var editingGuidelines = []string{
	"Keep the document a complete, valid HTML5 page",
	"Preserve all content that the instructions do not ask you to change",
	"Keep styling inline or in a <style> block, never in external files",
	"Keep the layout printable on a single US Letter page",
	"Use semantic elements and a clear heading hierarchy",
	"Keep the tone professional and the wording concise",
	"Do not invent experience, dates or qualifications",
}

var optimizationTasks = []string{
	"Surface the skills and keywords the posting asks for where the experience supports them",
	"Rewrite the summary to target this role",
	"Reorder bullet points so the most relevant achievements come first",
	"Quantify achievements with numbers where the content allows",
	"Start bullet points with strong action verbs",
	"Trim or shorten content unrelated to the role",
	"Match the posting's terminology for tools and responsibilities",
	"Keep every statement truthful to the original resume",
}

// JobOptimizationInstructions builds the editing instructions for
// tailoring a resume to jobDescription.
func JobOptimizationInstructions(jobDescription string) string {
	var sb strings.Builder
	sb.WriteString("Optimize this resume for the following job posting:\n\n")
	sb.WriteString(strings.TrimSpace(jobDescription))
	sb.WriteString("\n\nOPTIMIZATION TASKS:\n")
	for i, t := range optimizationTasks {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
	}
	sb.WriteString("\nKeep the original formatting and styling intact while improving content relevance and impact.")
	return sb.String()
}

type designStyle struct {
	description string
	guidelines  []string
}

const defaultStyle = "professional"

var designStyles = map[string]designStyle{
	"modern": {"clean and contemporary with bold accents", []string{
		"Sans-serif typography with a strong size contrast between headings and body",
		"One accent color used for headings and dividers",
		"Generous white space and a two-column header",
	}},
	"classic": {"traditional and conservative", []string{
		"Serif typography in black on white",
		"Single-column layout with ruled section dividers",
		"Centered name and contact block",
	}},
	"creative": {"distinctive and visually expressive", []string{
		"A colored sidebar for contact details and skills",
		"Expressive heading font paired with a readable body font",
		"Visual skill indicators that still print cleanly",
	}},
	"minimal": {"minimal and understated", []string{
		"A single typeface in two weights",
		"No borders or backgrounds, structure from spacing only",
		"Muted gray for dates and secondary details",
	}},
	"professional": {"professional and modern", []string{
		"Clean sans-serif typography with clear section headings",
		"Subtle navy or charcoal accents",
		"Consistent spacing and aligned dates",
	}},
	"tech": {"technical and structured", []string{
		"Monospace accents for skills and tools",
		"A compact skills grid near the top",
		"Links to repositories and portfolios styled as code",
	}},
}

var designRequirements = []string{
	"Keep every piece of content from the current resume",
	"Fit the result on a single US Letter page",
	"Use inline CSS or a <style> block only",
	"Use web-safe fonts",
	"Keep contrast high enough for print and screen reading",
	"Keep a clear visual hierarchy for name, sections and entries",
	"Use semantic HTML elements",
	"Keep it appropriate for job applications",
}

// Styles lists the redesign styles PrepareRedesign knows about.
func Styles() []string {
	out := make([]string, 0, len(designStyles))
	for k := range designStyles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RedesignInstructions builds the editing instructions for restyling a
// resume in style.
func RedesignInstructions(style string) string {
	key := strings.ToLower(strings.TrimSpace(style))
	ds, ok := designStyles[key]
	if !ok {
		ds = designStyles[defaultStyle]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Redesign this resume with a %s layout.\n\nSTYLE GUIDELINES:\n", ds.description)
	for _, g := range ds.guidelines {
		sb.WriteString("- " + g + "\n")
	}
	sb.WriteString("\nDESIGN REQUIREMENTS:\n")
	for i, r := range designRequirements {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// EditingTips are general advice returned alongside editing plans.
func EditingTips() []string {
	return []string{
		"Always preserve original content when redesigning",
		"Use inline CSS for maximum compatibility",
		"Ensure mobile responsiveness with proper viewport settings",
		"Keep professional appearance for job applications",
		"Use semantic HTML elements for better structure",
		"Optimize for both screen viewing and printing",
		"Test accessibility with proper heading hierarchy",
		"Include relevant keywords naturally in content",
		"Quantify achievements with numbers when possible",
		"Use action verbs to describe experiences",
	}
}
