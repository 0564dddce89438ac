package extractor

import (
	"bufio"
	"io"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/document"
)

// TextExtractor handles plain text files.
type TextExtractor struct{}

func (p *TextExtractor) Extract(r io.Reader, filename string) (*document.RawDocument, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var buf strings.Builder
	for scanner.Scan() {
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &document.RawDocument{
		Kind:       document.KindText,
		SourceName: filename,
		Text:       CleanText(buf.String()),
	}, nil
}
