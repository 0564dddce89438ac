package chunker

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cbayrak/tenderdoc/internal/document"
	"github.com/cbayrak/tenderdoc/internal/structure"
)

// Config controls chunking behavior. The defaults are tuned for tender
// documents where tables carry the highest-value data.
type Config struct {
	MaxTokens         int     // hard chunk budget in tokens
	MinTokens         int     // floor below which a chunk merges into a neighbor
	CharsPerToken     float64 // Turkish text averages ~1.5 chars per token
	MinHeadingContent int     // chars that must follow a heading in its chunk
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:         6000,
		MinTokens:         500,
		CharsPerToken:     1.5,
		MinHeadingContent: 200,
	}
}

// Chunker splits cleaned text into bounded segments without ever cutting
// through a protected table, splitting a list run, or stranding a
// heading from its content.
// Chunks tile the input exactly: the concatenation of all chunk contents
// reproduces the cleaned text byte for byte, so character conservation
// holds by construction.
type Chunker struct {
	cfg Config
}

func New(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 6000
	}
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = 500
	}
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = 1.5
	}
	if cfg.MinHeadingContent <= 0 {
		cfg.MinHeadingContent = 200
	}
	return &Chunker{cfg: cfg}
}

// span is a half-open [start, end) byte range into the text.
type span struct {
	start, end int
}

// Chunk performs the single left-to-right scan plus the small-chunk
// merge pass. The same input and structure info always yield identical
// boundaries.
func (c *Chunker) Chunk(text string, info structure.Info) []document.Chunk {
	if text == "" {
		return nil
	}

	maxChars := int(float64(c.cfg.MaxTokens) * c.cfg.CharsPerToken)
	halfBudget := maxChars / 2

	lines := splitLines(text)
	headingAt := make(map[int]bool, len(info.Headings))
	for _, h := range info.Headings {
		headingAt[h.Offset] = true
	}

	var spans []span
	bufStart := 0
	lastHeading := -1      // offset of the most recent heading in the buffer
	lastParaBoundary := -1 // offset of the most recent paragraph start
	inTable := false
	prevBlank := true

	flush := func(at int) {
		if at > bufStart {
			spans = append(spans, span{bufStart, at})
			bufStart = at
			lastParaBoundary = -1
			if lastHeading < at {
				lastHeading = -1
			}
		}
	}

	// canSplit reports whether a boundary at the given offset would
	// violate a structural invariant. Protecting structure outranks
	// size uniformity: when it says no, the buffer overgrows.
	canSplit := func(at int) bool {
		if info.TableAt(at) != nil {
			return false
		}
		if info.ListAt(at) != nil {
			return false
		}
		if lastHeading >= bufStart && at-lastHeading < c.cfg.MinHeadingContent {
			return false
		}
		return true
	}

	for _, ln := range lines {
		blank := ln.blank
		tableLine := info.TableAt(ln.start+1) != nil ||
			(ln.end > ln.start && info.TableAt(ln.end-1) != nil)

		if prevBlank && !blank {
			lastParaBoundary = ln.start
		}

		// Table run ended: close the chunk so the table stays whole.
		if inTable && !tableLine && !blank {
			flush(ln.start)
		}

		// Heading with a heavy buffer starts a fresh chunk.
		if headingAt[ln.start] && ln.start-bufStart >= halfBudget && canSplit(ln.start) {
			flush(ln.start)
		}

		// Budget overflow: prefer the last paragraph boundary past the
		// half-budget mark, fall back to the current line, defer when
		// inside a protected region.
		if ln.end-bufStart > maxChars {
			switch {
			case lastParaBoundary > bufStart+halfBudget && canSplit(lastParaBoundary):
				flush(lastParaBoundary)
			case ln.start > bufStart && canSplit(ln.start):
				flush(ln.start)
			}
		}

		if headingAt[ln.start] {
			lastHeading = ln.start
		}
		if !blank {
			inTable = tableLine
		}
		prevBlank = blank
	}
	flush(len(text))

	spans = c.mergeSmall(spans, text, info)
	return c.build(spans, text, info)
}

// mergeSmall folds undersized spans into a neighbor: into the previous
// span when that span is a table (an undersized trailer after a table is
// almost always its footnote), otherwise into the successor, and into
// the predecessor for a trailing span.
func (c *Chunker) mergeSmall(spans []span, text string, info structure.Info) []span {
	minChars := int(float64(c.cfg.MinTokens) * c.cfg.CharsPerToken)

	var out []span
	for _, s := range spans {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			prevSmall := prev.end-prev.start < minChars
			curSmall := s.end-s.start < minChars
			prevTable := spanKind(*prev, text, info) == document.ChunkTable
			if prevSmall || (curSmall && prevTable) {
				prev.end = s.end
				continue
			}
		}
		out = append(out, s)
	}
	// A small trailing span merges backward.
	if n := len(out); n >= 2 && out[n-1].end-out[n-1].start < minChars {
		out[n-2].end = out[n-1].end
		out = out[:n-1]
	}
	return out
}

func (c *Chunker) build(spans []span, text string, info structure.Info) []document.Chunk {
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
		chunks = append(chunks, document.Chunk{
			Index:         i,
			Content:       content,
			Kind:          spanKind(s, text, info),
			TokenEstimate: EstimateTokens(content, c.cfg.CharsPerToken),
			StartOffset:   s.start,
			EndOffset:     s.end,
			ContentHash:   ContentHashHex(content),
			Heading:       info.HeadingForOffset(s.start),
			Position:      pos,
		})
	}
	return chunks
}

// spanKind classifies a span by how much of it protected tables cover.
func spanKind(s span, text string, info structure.Info) document.ChunkKind {
	covered := 0
	for _, t := range info.Tables {
		if !t.Protected {
			continue
		}
		start, end := t.StartOffset, t.EndOffset
		if start < s.start {
			start = s.start
		}
		if end > s.end {
			end = s.end
		}
		if end > start {
			covered += end - start
		}
	}
	size := s.end - s.start
	switch {
	case size == 0 || covered == 0:
		return document.ChunkText
	case float64(covered)/float64(size) > 0.6:
		return document.ChunkTable
	default:
		return document.ChunkMixed
	}
}

type line struct {
	start, end int // [start, end) excluding the newline
	blank      bool
}

func splitLines(text string) []line {
	var lines []line
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			blank := true
			for j := start; j < i; j++ {
				if text[j] != ' ' && text[j] != '\t' && text[j] != '\r' {
					blank = false
					break
				}
			}
			lines = append(lines, line{start: start, end: i, blank: blank})
			start = i + 1
		}
	}
	return lines
}

// ContentHashHex returns the sha256 hex digest of chunk content, used
// for downstream traceability checks.
func ContentHashHex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
