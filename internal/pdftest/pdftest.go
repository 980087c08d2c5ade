// Package pdftest builds small, well-formed PDF files for tests that need
// real documents to rasterize, count or inspect.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Letter page size in points.
const (
	PageWidth  = 612
	PageHeight = 792
)

// Build returns a PDF with one page per entry in pages. Each page shows its
// text in Helvetica; newlines start a new line.
func Build(pages ...string) []byte {
	if len(pages) == 0 {
		pages = []string{""}
	}

	var objs []string
	// 1: catalog, 2: page tree, 3: font, then page/content pairs.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, text := range pages {
		stream := contentStream(text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
				PageWidth, PageHeight, 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// Write builds a PDF into dir/name and returns the path.
func Write(dir, name string, pages ...string) (string, error) {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Build(pages...), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func contentStream(text string) string {
	var sb strings.Builder
	sb.WriteString("BT /F1 14 Tf 72 720 Td 18 TL")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			sb.WriteString(" T*")
		}
		fmt.Fprintf(&sb, " (%s) Tj", escape(line))
	}
	sb.WriteString(" ET")
	return sb.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
