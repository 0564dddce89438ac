package chunker

import (
	"regexp"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/document"
)

var sheetMarkerRe = regexp.MustCompile(`^\[Sayfa: (.+)\]$`)

// ChunkSheets chunks spreadsheet text row-wise. Boundaries fall only at
// row breaks and never across a sheet marker, so every batch holds whole
// rows of a single sheet. Column headers travel in the chunk's Heading
// metadata instead of being re-inlined, keeping the chunk contents an
// exact tiling of the input text.
func (c *Chunker) ChunkSheets(text string, sheets []document.Sheet) []document.Chunk {
	if text == "" {
		return nil
	}

	headers := make(map[string][]string, len(sheets))
	for _, s := range sheets {
		headers[s.Name] = s.Headers
	}

	maxChars := int(float64(c.cfg.MaxTokens) * c.cfg.CharsPerToken)

	type sheetSpan struct {
		span
		sheet string
	}
	var spans []sheetSpan

	currentSheet := ""
	if len(sheets) == 1 {
		// CSV input has no sheet markers.
		currentSheet = sheets[0].Name
	}
	bufStart := 0
	bufSheet := currentSheet

	flush := func(at int) {
		if at > bufStart {
			spans = append(spans, sheetSpan{span{bufStart, at}, bufSheet})
			bufStart = at
		}
		bufSheet = currentSheet
	}

	for _, ln := range splitLines(text) {
		lineText := strings.TrimSpace(text[ln.start:ln.end])
		if m := sheetMarkerRe.FindStringSubmatch(lineText); m != nil {
			flush(ln.start)
			currentSheet = m[1]
			bufSheet = currentSheet
		} else if ln.end-bufStart > maxChars && ln.start > bufStart {
			flush(ln.start)
		}
	}
	flush(len(text))

	chunks := make([]document.Chunk, 0, len(spans))
	for i, s := range spans {
		content := text[s.start:s.end]
		pos := "middle"
		if i == 0 {
			pos = "start"
		}
		if i == len(spans)-1 {
			pos = "end"
		}
		heading := s.sheet
		if h := headers[s.sheet]; len(h) > 0 {
			heading = s.sheet + " | " + strings.Join(h, "\t")
		}
		chunks = append(chunks, document.Chunk{
			Index:         i,
			Content:       content,
			Kind:          document.ChunkTable,
			TokenEstimate: EstimateTokens(content, c.cfg.CharsPerToken),
			StartOffset:   s.start,
			EndOffset:     s.end,
			ContentHash:   ContentHashHex(content),
			Heading:       heading,
			Position:      pos,
			Sheet:         s.sheet,
		})
	}
	return chunks
}
