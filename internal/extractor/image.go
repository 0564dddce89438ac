package extractor

import (
	"io"

	"github.com/cbayrak/tenderdoc/internal/document"
)

// ImageExtractor handles standalone page images. There is no text layer
// to extract; the document is flagged for OCR and the raw bytes are left
// on disk for the OCR stage by the caller.
type ImageExtractor struct{}

func (p *ImageExtractor) Extract(r io.Reader, filename string) (*document.RawDocument, error) {
	size, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, err
	}
	return &document.RawDocument{
		Kind:       document.KindImage,
		SourceName: filename,
		FileSize:   size,
		NeedsOCR:   true,
	}, nil
}
