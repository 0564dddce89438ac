package analyzer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Completion services wrap JSON in markdown fences, emit bare numeric
// ranges ("gramaj": 55-60), leave trailing commas, or get cut off
// mid-object. RecoverJSON walks a fixed ladder of repairs and returns
// the first candidate that parses; it fails only when nothing survives.
func RecoverJSON(raw string) (json.RawMessage, error) {
	s := stripCodeBlock(raw)

	candidates := []string{s}

	if ex := extractJSONBody(s); ex != "" && ex != s {
		candidates = append(candidates, ex)
	}

	base := extractJSONBody(s)
	if base == "" {
		base = s
	}
	repaired := quoteNumericRanges(base)
	repaired = stripTrailingCommas(repaired)
	repaired = normalizeQuotes(repaired)
	candidates = append(candidates, repaired, repairTruncated(repaired))

	for _, cand := range candidates {
		cand = strings.TrimSpace(cand)
		if cand == "" {
			continue
		}
		if json.Valid([]byte(cand)) {
			return json.RawMessage(cand), nil
		}
	}
	return nil, fmt.Errorf("no recovery step produced valid json (raw: %s)", truncate(raw, 200))
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// extractJSONBody pulls the first balanced {...} or [...] out of
// surrounding prose.
func extractJSONBody(s string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			close = '}'
			if open == '[' {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == open:
			depth++
		case !inString && c == close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// Unbalanced: return the tail for the truncation repair step.
	return s[start:]
}

var numericRangeRe = regexp.MustCompile(`:\s*(\d+\s*-\s*\d+)\s*([,}\]])`)

// quoteNumericRanges fixes unquoted ranges like "kalori": 550-600.
func quoteNumericRanges(s string) string {
	return numericRangeRe.ReplaceAllString(s, `: "$1"$2`)
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

var (
	singleQuoteKeyRe   = regexp.MustCompile(`'([^'\n]*)'\s*:`)
	singleQuoteValueRe = regexp.MustCompile(`:\s*'([^'\n]*)'`)
)

func normalizeQuotes(s string) string {
	s = singleQuoteKeyRe.ReplaceAllString(s, `"$1":`)
	return singleQuoteValueRe.ReplaceAllString(s, `: "$1"`)
}

// repairTruncated closes an unterminated string and balances brackets
// for a response cut off by the output limit.
func repairTruncated(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	inString := false
	escaped := false
	var stack []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && (c == '{' || c == '['):
			stack = append(stack, c)
		case !inString && (c == '}' || c == ']'):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	// Drop a dangling comma or colon left at the cut.
	out := strings.TrimRight(b.String(), ", \n\t")
	if strings.HasSuffix(out, ":") {
		out += " null"
	}
	b.Reset()
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
