package vision

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AnalysisPrompt is the recommended request to send with a resume screenshot.
const AnalysisPrompt = `Please analyze this resume screenshot and create a pixel-perfect HTML replica that matches:

EXACT REQUIREMENTS:
- Match every visual element: fonts, sizes, spacing, colors, alignment
- Preserve exact layout structure and positioning
- Include all text content word-for-word
- Replicate formatting: bold, italics, bullet points, tables
- Match margins, padding, line heights precisely
- Use modern HTML5 and inline CSS for exact styling

OUTPUT FORMAT:
Generate a complete, valid HTML document with:
- <!DOCTYPE html> declaration
- Full HTML structure (<html>, <head>, <body>)
- Inline CSS for exact styling (no external files)
- Professional fonts and spacing
- Print-optimized CSS sized for a single US Letter page

STYLING GUIDELINES:
- Use web-safe fonts that match the original
- Precise margins and padding measurements
- Exact color values for text and backgrounds
- Professional spacing between sections
- Clean, semantic HTML structure

Return ONLY the complete HTML document: no explanations, no markdown, just pure HTML that replicates the original document.`

// Instructions tells the user how to move from a screenshot to saved HTML.
func Instructions(imagePath, outputPath string) string {
	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	var sb strings.Builder
	sb.WriteString("READY FOR VISION ANALYSIS\n\n")
	fmt.Fprintf(&sb, "Screenshot prepared: %s\n", filepath.Base(imagePath))
	fmt.Fprintf(&sb, "Location: %s\n", imagePath)
	fmt.Fprintf(&sb, "Will save to: %s\n\n", outputPath)
	sb.WriteString("NEXT STEPS:\n")
	sb.WriteString("1. Attach the screenshot to this conversation\n")
	sb.WriteString("2. Ask for a pixel-perfect HTML replica of the resume (see the replicate_resume prompt)\n")
	sb.WriteString("3. Copy the complete HTML document from the reply\n")
	fmt.Fprintf(&sb, "4. Call process_claude_html with html_content=\"<html>...\" output_name=%q\n", stem)
	return sb.String()
}
