package vision

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minHTMLLength is the size below which a replica is flagged as suspiciously short.
const minHTMLLength = 1000

// requiredMarkers must all appear for a document to be considered valid.
var requiredMarkers = []string{"<!DOCTYPE", "<html", "<head", "<body"}

// Validation reports structural problems with a submitted HTML document.
type Validation struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
	Stats  Stats    `json:"stats"`
}

// Stats are cheap measurements of an HTML document.
type Stats struct {
	Length     int  `json:"length"`
	Lines      int  `json:"lines"`
	HasCSS     bool `json:"has_css"`
	HasContent bool `json:"has_content"`
	WordCount  int  `json:"word_count"`
	Headings   int  `json:"headings"`
}

// CleanHTML extracts the HTML document from a chat reply: it strips markdown
// code fences and any prose before the doctype or <html> tag.
func CleanHTML(content string) string {
	if i := strings.Index(content, "```html"); i >= 0 {
		start := i + len("```html")
		if end := strings.Index(content[start:], "```"); end >= 0 {
			content = content[start : start+end]
		} else {
			content = content[start:]
		}
	} else if strings.Contains(content, "```") && strings.Contains(content, "<html") {
		start := strings.Index(content, "```") + 3
		if end := strings.LastIndex(content, "```"); end > start {
			content = content[start:end]
		}
	}

	content = strings.TrimSpace(content)
	lower := strings.ToLower(content)
	if !strings.HasPrefix(lower, "<!doctype") && !strings.HasPrefix(lower, "<html") {
		at := strings.Index(lower, "<!doctype")
		if at < 0 {
			at = strings.Index(lower, "<html")
		}
		if at > 0 {
			content = content[at:]
		}
	}
	return content
}

// ValidateHTML checks required structure and gathers stats. Missing
// structural markers invalidate the document; short documents and
// documents without CSS only add issues.
func ValidateHTML(content string) Validation {
	v := Validation{Valid: true, Issues: []string{}}
	lower := strings.ToLower(content)
	for _, tag := range requiredMarkers {
		if !strings.Contains(lower, strings.ToLower(tag)) {
			v.Valid = false
			v.Issues = append(v.Issues, "Missing "+tag)
		}
	}

	s := Structure(content)
	v.Stats = Stats{
		Length:     len(content),
		Lines:      strings.Count(content, "\n"),
		HasCSS:     strings.Contains(lower, "<style") || strings.Contains(lower, "style="),
		HasContent: len(strings.TrimSpace(content)) > minHTMLLength,
		WordCount:  len(strings.Fields(content)),
		Headings:   len(s.Headings),
	}
	if v.Stats.Length < minHTMLLength {
		v.Issues = append(v.Issues, "HTML content seems too short")
	}
	if !v.Stats.HasCSS {
		v.Issues = append(v.Issues, "No CSS styling detected")
	}
	return v
}

// ContentStructure is an outline of the visible content of a document.
type ContentStructure struct {
	Title      string   `json:"title"`
	Headings   []string `json:"headings"`
	Paragraphs int      `json:"paragraphs"`
	Lists      int      `json:"lists"`
	Tables     int      `json:"tables"`
	Sections   int      `json:"sections"`
	WordCount  int      `json:"word_count"`
	Text       string   `json:"text"`
}

// Structure parses content and outlines it. The parser is lenient, so
// malformed markup still yields a best-effort outline.
func Structure(content string) ContentStructure {
	cs := ContentStructure{Headings: []string{}}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return cs
	}

	var text strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				if n.DataAtom == atom.Head {
					if t := findTitle(n); t != "" {
						cs.Title = t
					}
				}
				return
			case atom.H1, atom.H2, atom.H3, atom.H4:
				if h := collapse(textOf(n)); h != "" {
					cs.Headings = append(cs.Headings, h)
				}
			case atom.P:
				cs.Paragraphs++
			case atom.Ul, atom.Ol:
				cs.Lists++
			case atom.Table:
				cs.Tables++
			case atom.Section, atom.Div:
				cs.Sections++
			}
		}
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
			text.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	body := collapse(text.String())
	cs.WordCount = len(strings.Fields(body))
	cs.Text = body
	return cs
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return collapse(textOf(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }

// Snippet returns the first n runes of s followed by "..." when truncated.
func Snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
