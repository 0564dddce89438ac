package extractor

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/document"
)

// Extractor converts raw document bytes into a RawDocument.
type Extractor interface {
	Extract(r io.Reader, filename string) (*document.RawDocument, error)
}

// ErrZIPArchive is returned when a ZIP bundle reaches the extractor
// directly. Archives must be pre-expanded by the caller.
var ErrZIPArchive = fmt.Errorf("zip archives must be expanded before analysis")

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".xlsx": true,
	".xls":  true,
	".txt":  true,
	".csv":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// Options carries the caller-tunable extraction thresholds.
type Options struct {
	QualityCutoff      int // PDF text-quality floor before OCR routing
	QualityTableCutoff int // stricter floor when table structure is present
}

// ForFile returns the appropriate extractor for a filename.
func ForFile(filename string, opts Options) (Extractor, error) {
	switch KindForFile(filename) {
	case document.KindPDF:
		return &PDFExtractor{
			FallbackPdftotext:  true,
			QualityCutoff:      opts.QualityCutoff,
			QualityTableCutoff: opts.QualityTableCutoff,
		}, nil
	case document.KindDOCX:
		return &DOCXExtractor{}, nil
	case document.KindXLSX:
		return &SheetExtractor{}, nil
	case document.KindText:
		return &TextExtractor{}, nil
	case document.KindCSV:
		return &CSVExtractor{}, nil
	case document.KindMarkdown:
		return &MarkdownExtractor{}, nil
	case document.KindHTML:
		return &HTMLExtractor{}, nil
	case document.KindImage:
		return &ImageExtractor{}, nil
	case document.KindZIP:
		return nil, ErrZIPArchive
	}
	return nil, fmt.Errorf("unsupported file extension: %s", strings.ToLower(filepath.Ext(filename)))
}

// KindForFile maps a filename extension to a document kind.
// Returns "" for unsupported extensions.
func KindForFile(filename string) document.Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return document.KindPDF
	case ".docx", ".doc":
		return document.KindDOCX
	case ".xlsx", ".xls":
		return document.KindXLSX
	case ".txt":
		return document.KindText
	case ".csv":
		return document.KindCSV
	case ".md", ".markdown":
		return document.KindMarkdown
	case ".html", ".htm":
		return document.KindHTML
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return document.KindImage
	case ".zip":
		return document.KindZIP
	}
	return ""
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// SniffKind inspects leading bytes and reports the detected container
// format. Filenames are not trusted alone: the extension's kind and the
// sniffed kind must agree before dispatch.
func SniffKind(head []byte) document.Kind {
	switch {
	case bytes.HasPrefix(head, []byte("%PDF")):
		return document.KindPDF
	case bytes.HasPrefix(head, []byte{0x50, 0x4B, 0x03, 0x04}):
		// DOCX, XLSX and plain ZIP all share the ZIP container.
		return document.KindZIP
	case bytes.HasPrefix(head, []byte{0x89, 'P', 'N', 'G'}),
		bytes.HasPrefix(head, []byte{0xFF, 0xD8, 0xFF}),
		bytes.HasPrefix(head, []byte("GIF8")),
		bytes.HasPrefix(head, []byte("RIFF")):
		return document.KindImage
	case bytes.HasPrefix(head, []byte{0xD0, 0xCF, 0x11, 0xE0}):
		// OLE2 compound file: legacy .doc / .xls.
		return document.KindDOCX
	}
	return document.KindText
}

// VerifyKind checks that the content-sniffed kind is compatible with the
// kind implied by the filename extension.
func VerifyKind(head []byte, filename string) error {
	extKind := KindForFile(filename)
	sniffed := SniffKind(head)

	switch extKind {
	case document.KindPDF, document.KindImage:
		if sniffed != extKind {
			return fmt.Errorf("content of %s does not match its %s extension", filename, extKind)
		}
	case document.KindDOCX, document.KindXLSX:
		// Modern office files are ZIP containers, legacy ones OLE2.
		if sniffed != document.KindZIP && sniffed != document.KindDOCX {
			return fmt.Errorf("content of %s does not match its %s extension", filename, extKind)
		}
	case document.KindZIP:
		return ErrZIPArchive
	}
	return nil
}

// Extract is the main entry point: it sniffs content, verifies it against
// the filename, and runs the matching extractor.
func Extract(r io.Reader, filename string, opts Options) (*document.RawDocument, error) {
	head := make([]byte, 8)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read header: %w", err)
	}
	head = head[:n]

	if err := VerifyKind(head, filename); err != nil {
		return nil, err
	}

	ex, err := ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	return ex.Extract(io.MultiReader(bytes.NewReader(head), r), filename)
}

// CleanText normalizes page-separator artifacts so that structure offsets
// and chunk offsets agree on one canonical text.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")
	return text
}
