package structure

import (
	"regexp"
	"strconv"
	"strings"
)

// ResolvedReference is a cross-reference matched against the detected
// headings. Resolution is independent of the analyzer and purely
// rule-based.
type ResolvedReference struct {
	Reference
	Resolved   bool
	Target     string  // matched heading text
	MatchType  string  // "exact", "child", "parent"
	Confidence float64 // 1.0 exact, 0.8 child, 0.6 parent
	Preview    string  // content excerpt following the matched heading
	// Suggestions lists nearby heading numbers when nothing matched.
	Suggestions []string
}

var headingNumberRe = regexp.MustCompile(`\d+(\.\d+)*`)

// ResolveReferences matches every detected reference against the heading
// list. A reference to "Madde 5" resolves exactly to the "MADDE 5"
// heading, to a child like "5.2" with lower confidence, or to a parent
// when the reference itself targets a subsection.
func ResolveReferences(refs []Reference, headings []Heading, text string) []ResolvedReference {
	out := make([]ResolvedReference, 0, len(refs))
	for _, ref := range refs {
		resolved := ResolvedReference{Reference: ref}

		var exact, child, parent *Heading
		for i := range headings {
			h := &headings[i]
			if ref.Kind != "" && h.Type != ref.Kind && h.Type != "numbered" {
				continue
			}
			num := headingNumber(*h)
			if num == "" {
				continue
			}
			switch {
			case num == ref.TargetNumber:
				if exact == nil {
					exact = h
				}
			case strings.HasPrefix(num, ref.TargetNumber+"."):
				if child == nil {
					child = h
				}
			case strings.Contains(ref.TargetNumber, ".") &&
				num == ref.TargetNumber[:strings.Index(ref.TargetNumber, ".")]:
				if parent == nil {
					parent = h
				}
			}
		}

		switch {
		case exact != nil:
			resolved.Resolved = true
			resolved.Target = exact.Text
			resolved.MatchType = "exact"
			resolved.Confidence = 1.0
			resolved.Preview = headingPreview(*exact, text)
		case child != nil:
			resolved.Resolved = true
			resolved.Target = child.Text
			resolved.MatchType = "child"
			resolved.Confidence = 0.8
			resolved.Preview = headingPreview(*child, text)
		case parent != nil:
			resolved.Resolved = true
			resolved.Target = parent.Text
			resolved.MatchType = "parent"
			resolved.Confidence = 0.6
			resolved.Preview = headingPreview(*parent, text)
		default:
			resolved.Suggestions = similarHeadings(ref.TargetNumber, headings)
		}
		out = append(out, resolved)
	}
	return out
}

// headingNumber pulls the section number out of a heading, e.g.
// "MADDE 5" -> "5", "5.2. Teminatlar" -> "5.2".
func headingNumber(h Heading) string {
	return headingNumberRe.FindString(h.Text)
}

// headingPreview returns up to 200 chars of whitespace-collapsed content
// following the heading line.
func headingPreview(h Heading, text string) string {
	start := h.Offset
	if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
		start += nl + 1
	} else {
		return ""
	}
	end := start + 500
	if end > len(text) {
		end = len(text)
	}
	preview := strings.Join(strings.Fields(text[start:end]), " ")
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return preview
}

// similarHeadings suggests headings whose top-level number is within 2
// of an unresolved target.
func similarHeadings(target string, headings []Heading) []string {
	base := target
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	want, err := strconv.Atoi(base)
	if err != nil {
		return nil
	}
	var out []string
	for _, h := range headings {
		num := headingNumber(h)
		if num == "" {
			continue
		}
		top := num
		if i := strings.Index(top, "."); i >= 0 {
			top = top[:i]
		}
		n, err := strconv.Atoi(top)
		if err != nil {
			continue
		}
		if n != want && n >= want-2 && n <= want+2 {
			out = append(out, h.Text)
		}
	}
	return out
}
