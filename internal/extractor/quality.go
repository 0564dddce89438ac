package extractor

import (
	"regexp"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/document"
)

// Quality cutoffs below which native PDF text is routed to OCR. Tuned on
// real tender documents; overridable via config at the pipeline layer.
const (
	DefaultQualityCutoff      = 60
	DefaultQualityTableCutoff = 80
)

// RouteToOCR decides whether natively extracted text is trustworthy or
// the page images must go through OCR. Table-bearing documents get the
// stricter cutoff. Zero cutoffs fall back to the defaults.
func RouteToOCR(q document.TextQuality, cutoff, tableCutoff int) bool {
	if cutoff <= 0 {
		cutoff = DefaultQualityCutoff
	}
	if tableCutoff <= 0 {
		tableCutoff = DefaultQualityTableCutoff
	}
	return q.Score < cutoff || (q.HasTableStructure && q.Score < tableCutoff)
}

// mergedColumnRe matches alphabetic-digit-alphabetic runs with no
// whitespace, e.g. "pirinc150gram" where table columns were glued
// together by the text layer.
var mergedColumnRe = regexp.MustCompile(`[a-z]{3,}\d{2,}[a-z]{2,}`)

// AssessTextQuality scores natively extracted PDF text on a 0-100 scale.
// It never fails: a degenerate result just scores low.
func AssessTextQuality(text string, fileSize int64) document.TextQuality {
	q := document.TextQuality{Score: 100}

	if fileSize > 0 {
		q.CharDensity = float64(len(text)) / (float64(fileSize) / 1024.0)
	}
	// A big file with almost no text layer is a scanned document.
	if q.CharDensity < 10 && fileSize > 100*1024 {
		q.Score = 0
		q.Issues = append(q.Issues, "almost no extractable text, likely scanned")
		return q
	}

	lower := strings.ToLower(text)
	if merged := mergedColumnRe.FindAllString(lower, -1); len(merged) > 5 {
		q.Score -= 30
		q.HasTableStructure = true
		q.Issues = append(q.Issues, "merged table columns detected")
	}

	lines := strings.Split(text, "\n")
	var nonEmpty, short, long int
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		nonEmpty++
		if len(t) < 10 {
			short++
		}
		if len(t) > 200 {
			long++
		}
	}
	if nonEmpty > 0 {
		if float64(short)/float64(nonEmpty) > 0.3 {
			q.Score -= 20
			q.Issues = append(q.Issues, "fragmented lines")
		}
		if float64(long)/float64(nonEmpty) > 0.2 {
			q.Score -= 20
			q.Issues = append(q.Issues, "merged lines")
		}
	}

	// Dense numeric content suggests tables, where extraction errors
	// are costliest.
	var digits int
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if len(text) > 0 && float64(digits)/float64(len(text)) > 0.15 {
		q.HasTableStructure = true
		if q.Score < 80 {
			q.Score -= 20
			q.Issues = append(q.Issues, "dense numeric content with layout issues")
		}
	}

	if q.Score < 0 {
		q.Score = 0
	}
	return q
}
