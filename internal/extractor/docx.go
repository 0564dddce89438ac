package extractor

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/document"
	"github.com/fumiama/go-docx"
)

// DOCXExtractor handles .docx files. Legacy .doc files share the same
// route and degrade to OCR when the parser rejects them.
type DOCXExtractor struct{}

func (p *DOCXExtractor) Extract(r io.Reader, filename string) (*document.RawDocument, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "tenderdoc-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	out := &document.RawDocument{
		Kind:       document.KindDOCX,
		SourceName: filename,
		FileSize:   size,
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		// Legacy .doc or a corrupt container: route to OCR instead of
		// failing the run.
		out.NeedsOCR = true
		return out, nil
	}

	var buf strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(it)
			if text == "" {
				continue
			}
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(text)
		case *docx.Table:
			rows := docxTableRows(it)
			if len(rows) == 0 {
				continue
			}
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			for i, row := range rows {
				if i > 0 {
					buf.WriteString("\n")
				}
				buf.WriteString(strings.Join(row, "\t"))
			}
		}
	}

	out.Text = CleanText(buf.String())
	return out, nil
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func docxTableRows(table *docx.Table) [][]string {
	var rows [][]string
	for _, tr := range table.TableRows {
		var cells []string
		for _, tc := range tr.TableCells {
			var cell strings.Builder
			for _, para := range tc.Paragraphs {
				if cell.Len() > 0 {
					cell.WriteString(" ")
				}
				cell.WriteString(docxParagraphText(para))
			}
			cells = append(cells, strings.TrimSpace(cell.String()))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}
