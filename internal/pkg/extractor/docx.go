package extractor

import (
	"bytes"
	"strings"

	"github.com/unidoc/unioffice/document"
)

// DOCX reads body paragraphs followed by table cells.
type DOCX struct{}

func (d *DOCX) Extract(content []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	defer doc.Close()

	var lines []string
	for _, p := range doc.Paragraphs() {
		if line := paragraphText(p); line != "" {
			lines = append(lines, line)
		}
	}

	for _, table := range doc.Tables() {
		for _, row := range table.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				var parts []string
				for _, p := range cell.Paragraphs() {
					if t := paragraphText(p); t != "" {
						parts = append(parts, t)
					}
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			if line := strings.TrimSpace(strings.Join(cells, " | ")); line != "" && line != "|" {
				lines = append(lines, line)
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}

func paragraphText(p document.Paragraph) string {
	var b strings.Builder
	for _, r := range p.Runs() {
		b.WriteString(r.Text())
	}
	return strings.TrimSpace(b.String())
}
