package extractor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFExtractor handles PDF files. It tries the Go library first, then
// falls back to pdftotext if available. Even when native extraction
// succeeds, the text-quality heuristic can route the document to OCR:
// native extraction silently corrupts tabular layouts in scanned or
// column-heavy tender documents, and the heuristic is the only defense.
type PDFExtractor struct {
	FallbackPdftotext bool

	// OCR-routing cutoffs, zero means the package defaults.
	QualityCutoff      int
	QualityTableCutoff int
}

func (p *PDFExtractor) Extract(r io.Reader, filename string) (*document.RawDocument, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "tenderdoc-pdf-*.pdf")
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
	tmp.Close()

	doc := &document.RawDocument{
		Kind:       document.KindPDF,
		SourceName: filename,
		FileSize:   size,
	}

	text, pages, err := extractPDFText(tmpPath)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
		if err == nil {
			pages = pagesFromText(text)
		}
	}
	if err != nil {
		// Parse failure degrades to OCR rather than failing the run.
		doc.NeedsOCR = true
		return doc, nil
	}

	doc.Text = CleanText(text)
	doc.Pages = pages

	q := AssessTextQuality(doc.Text, size)
	doc.Quality = &q
	doc.NeedsOCR = RouteToOCR(q, p.QualityCutoff, p.QualityTableCutoff)

	return doc, nil
}

func extractPDFText(path string) (string, []document.Page, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	var buf strings.Builder
	var pages []document.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
		pages = append(pages, document.Page{Number: i, Text: text})
	}
	return buf.String(), pages, nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func pagesFromText(text string) []document.Page {
	var pages []document.Page
	for i, p := range strings.Split(text, "\f") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, document.Page{Number: i + 1, Text: p})
	}
	return pages
}
