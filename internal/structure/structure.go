package structure

import (
	"regexp"
	"strings"
)

// Info is the rule-based structural map of a document's cleaned text.
// Offsets index into that text. Regions are hints for the chunker:
// false negatives degrade chunk quality, never correctness.
type Info struct {
	Headings   []Heading
	Tables     []Table
	Lists      []List
	Footnotes  []Footnote
	References []Reference
}

// Heading is a detected section heading.
type Heading struct {
	Text   string
	Level  int
	Type   string // "madde", "bolum", "numbered", "roman", "markdown", "caps"
	Line   int
	Offset int
}

// Table is a run of consecutive table-like lines. Protected tables must
// not be split by the chunker.
type Table struct {
	StartLine   int
	EndLine     int // inclusive
	StartOffset int
	EndOffset   int    // exclusive
	Format      string // "pipe", "tab", "csv", "fixed"
	RowCount    int
	Protected   bool
}

// List is a run of consecutive bullet or lettered list items.
type List struct {
	StartLine int
	EndLine   int
	Items     []string
	Offset    int
	EndOffset int // exclusive
}

// Footnote is a footnote or note marker line.
type Footnote struct {
	Marker string
	Text   string
	Line   int
	Offset int
}

// Reference is a cross-reference mention in running text,
// e.g. "Madde 5'e bakiniz".
type Reference struct {
	FullMatch    string
	TargetNumber string
	Kind         string // "madde", "bolum", "ek"
	Line         int
	Offset       int
}

type headingPattern struct {
	re    *regexp.Regexp
	level int
	typ   string
}

// Heading battery for Turkish tender documents. Order matters: the first
// match wins.
var headingPatterns = []headingPattern{
	{regexp.MustCompile(`^MADDE\s+\d+`), 1, "madde"},
	{regexp.MustCompile(`^(BÖLÜM|BOLUM|KISIM)\s+[\dIVX]+`), 1, "bolum"},
	{regexp.MustCompile(`^(EK|Ek)\s*[-:]\s*\d+`), 1, "ek"},
	// Level 0 entries derive their level from the marker itself.
	{regexp.MustCompile(`^#{1,6}\s+\S`), 0, "markdown"},
	{regexp.MustCompile(`^\d+(\.\d+)*[\.\)]\s+\S`), 0, "numbered"},
	{regexp.MustCompile(`^[IVXLC]+[\.\)]\s+\S`), 1, "roman"},
}

var capsLineRe = regexp.MustCompile(`^[A-ZÇĞİÖŞÜ][A-ZÇĞİÖŞÜ0-9\s\.,\-:()]+$`)

var referencePatterns = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`(?i)madde\s+(\d+)(?:'[ae])?\s*(?:ye|ya)?\s*(?:bak[ıi]n[ıi]z|g[öo]re|uyar[ıi]nca)`), "madde"},
	{regexp.MustCompile(`(?i)(\d+)\s*\.\s*maddey?e?\s*(?:bak[ıi]n[ıi]z|g[öo]re|uyar[ıi]nca)`), "madde"},
	{regexp.MustCompile(`(?i)bkz\.?\s*(?:madde\s*)?(\d+(?:\.\d+)*)`), "madde"},
	{regexp.MustCompile(`(?i)EK\s*[-:]\s*(\d+)`), "ek"},
	{regexp.MustCompile(`(?i)b[öo]l[üu]m\s+(\d+)(?:'[ae])?\s*(?:bak[ıi]n[ıi]z|g[öo]re|uyar[ıi]nca)`), "bolum"},
}

var footnoteRe = regexp.MustCompile(`^(\(\*+\)|\*+\s|Not\s*:|Dipnot\s*:?)`)

var listItemRe = regexp.MustCompile(`^(\s*)([-*•]|[a-zçğöşü]\)|\d+\))\s+\S`)

// Detect runs the full rule battery over cleaned text. It is a pure
// function with no external calls.
func Detect(text string) Info {
	var info Info
	lines := strings.Split(text, "\n")

	offset := 0
	var table *Table
	var list *List
	for i, line := range lines {
		lineLen := len(line)
		trimmed := strings.TrimSpace(line)

		if format, ok := analyzeTableLine(trimmed); ok {
			if table != nil && table.Format == format {
				table.EndLine = i
				table.EndOffset = offset + lineLen
				table.RowCount++
			} else {
				flushTable(&info, table)
				table = &Table{
					StartLine:   i,
					EndLine:     i,
					StartOffset: offset,
					EndOffset:   offset + lineLen,
					Format:      format,
					RowCount:    1,
				}
			}
		} else if trimmed != "" {
			flushTable(&info, table)
			table = nil
		}

		if m := listItemRe.FindStringSubmatch(line); m != nil {
			if list == nil {
				list = &List{StartLine: i, Offset: offset}
			}
			list.EndLine = i
			list.EndOffset = offset + lineLen
			list.Items = append(list.Items, trimmed)
		} else if trimmed != "" && list != nil {
			if len(list.Items) >= 2 {
				info.Lists = append(info.Lists, *list)
			}
			list = nil
		}

		if h, ok := detectHeading(trimmed); ok {
			h.Line = i
			h.Offset = offset
			info.Headings = append(info.Headings, h)
		}

		if m := footnoteRe.FindString(trimmed); m != "" {
			info.Footnotes = append(info.Footnotes, Footnote{
				Marker: strings.TrimSpace(m),
				Text:   trimmed,
				Line:   i,
				Offset: offset,
			})
		}

		for _, rp := range referencePatterns {
			for _, loc := range rp.re.FindAllStringSubmatchIndex(line, -1) {
				info.References = append(info.References, Reference{
					FullMatch:    line[loc[0]:loc[1]],
					TargetNumber: line[loc[2]:loc[3]],
					Kind:         rp.kind,
					Line:         i,
					Offset:       offset + loc[0],
				})
			}
		}

		offset += lineLen + 1 // newline
	}
	flushTable(&info, table)
	if list != nil && len(list.Items) >= 2 {
		info.Lists = append(info.Lists, *list)
	}

	return info
}

func flushTable(info *Info, t *Table) {
	// A single table-like line is noise; two or more corroborate.
	if t == nil || t.RowCount < 2 {
		return
	}
	t.Protected = true
	info.Tables = append(info.Tables, *t)
}

func detectHeading(line string) (Heading, bool) {
	if line == "" || len(line) > 120 {
		return Heading{}, false
	}
	for _, p := range headingPatterns {
		if !p.re.MatchString(line) {
			continue
		}
		h := Heading{Text: line, Level: p.level, Type: p.typ}
		switch p.typ {
		case "markdown":
			h.Level = len(line) - len(strings.TrimLeft(line, "#"))
		case "numbered":
			num := strings.TrimRight(strings.SplitN(line, " ", 2)[0], ".)")
			h.Level = strings.Count(num, ".") + 1
			// "2025." style year lines are not headings.
			if h.Level == 1 && len(num) > 3 {
				return Heading{}, false
			}
		}
		return h, true
	}
	// All-caps short lines are headings only with corroboration: at
	// least two words and no trailing sentence punctuation.
	if len(line) <= 60 && capsLineRe.MatchString(line) &&
		len(strings.Fields(line)) >= 2 && !strings.HasSuffix(line, ".") {
		return Heading{Text: line, Level: 2, Type: "caps"}, true
	}
	return Heading{}, false
}

// analyzeTableLine classifies a line as a table row by delimiter density.
// Fixed-width columns additionally require numeric corroboration, since
// prose with stray double spaces is common.
func analyzeTableLine(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	if strings.Count(line, "|") > 2 {
		return "pipe", true
	}
	if strings.Count(line, "\t") > 2 {
		return "tab", true
	}
	if strings.Count(line, ",") > 3 && countNumericTokens(line) >= 2 {
		return "csv", true
	}
	if len(multiSpaceRe.FindAllString(line, -1)) >= 3 && countNumericTokens(line) >= 2 {
		return "fixed", true
	}
	return "", false
}

func countNumericTokens(line string) int {
	n := 0
	for _, f := range strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '|' || r == ';'
	}) {
		if numericTokenRe.MatchString(f) {
			n++
		}
	}
	return n
}

var (
	numericTokenRe = regexp.MustCompile(`^\d+([.,]\d+)*%?$`)
	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
)

// HeadingForOffset returns the nearest heading at or before the given
// offset, used to attach context to chunks.
func (s Info) HeadingForOffset(offset int) string {
	best := ""
	for _, h := range s.Headings {
		if h.Offset <= offset {
			best = h.Text
		} else {
			break
		}
	}
	return best
}

// ListAt reports whether the given offset falls strictly inside a
// detected list region. Unlike tables this is a soft hint: the chunker
// avoids splitting lists but nothing downstream depends on it.
func (s Info) ListAt(offset int) *List {
	for i := range s.Lists {
		l := &s.Lists[i]
		if offset > l.Offset && offset < l.EndOffset {
			return l
		}
	}
	return nil
}

// TableAt reports whether the given offset falls strictly inside a
// protected table region.
func (s Info) TableAt(offset int) *Table {
	for i := range s.Tables {
		t := &s.Tables[i]
		if t.Protected && offset > t.StartOffset && offset < t.EndOffset {
			return t
		}
	}
	return nil
}
