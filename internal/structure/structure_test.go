package structure

import (
	"strings"
	"testing"
)

func TestDetect_MaddeHeadings(t *testing.T) {
	text := "MADDE 1 Taraflar\nIdare ve yuklenici.\n\nMADDE 2 Sozlesmenin Konusu\nYemek hizmeti alimi."
	info := Detect(text)

	if len(info.Headings) != 2 {
		t.Fatalf("expected 2 headings, got %d: %+v", len(info.Headings), info.Headings)
	}
	if info.Headings[0].Type != "madde" || info.Headings[0].Offset != 0 {
		t.Errorf("unexpected first heading: %+v", info.Headings[0])
	}
	if info.Headings[1].Text != "MADDE 2 Sozlesmenin Konusu" {
		t.Errorf("unexpected second heading: %q", info.Headings[1].Text)
	}
}

func TestDetect_NumberedAndMarkdownHeadings(t *testing.T) {
	text := "1. Genel Hukumler\nicerik\n1.2. Teminatlar\nicerik\n## Tarihler\nicerik"
	info := Detect(text)

	if len(info.Headings) != 3 {
		t.Fatalf("expected 3 headings, got %d: %+v", len(info.Headings), info.Headings)
	}
	if info.Headings[0].Level != 1 {
		t.Errorf("'1.' heading level = %d, want 1", info.Headings[0].Level)
	}
	if info.Headings[1].Level != 2 {
		t.Errorf("'1.2.' heading level = %d, want 2", info.Headings[1].Level)
	}
	if info.Headings[2].Type != "markdown" || info.Headings[2].Level != 2 {
		t.Errorf("markdown heading: %+v", info.Headings[2])
	}
}

func TestDetect_TableRegion(t *testing.T) {
	text := strings.Join([]string{
		"Gramaj listesi asagidadir.",
		"Kalem\tGramaj\tBirim\tFiyat",
		"Pirinc\t150\tgram\t2,50",
		"Tavuk\t200\tgram\t5,75",
		"Listeyi kontrol ediniz.",
	}, "\n")
	info := Detect(text)

	if len(info.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(info.Tables))
	}
	tbl := info.Tables[0]
	if tbl.RowCount != 3 || tbl.Format != "tab" {
		t.Errorf("unexpected table: %+v", tbl)
	}
	if !tbl.Protected {
		t.Error("multi-row table must be protected")
	}
	if got := text[tbl.StartOffset:tbl.EndOffset]; !strings.HasPrefix(got, "Kalem\t") || !strings.HasSuffix(got, "5,75") {
		t.Errorf("table offsets select %q", got)
	}
}

func TestDetect_SingleTableLineIgnored(t *testing.T) {
	// One delimiter-dense line without corroboration is noise.
	info := Detect("once metin\na|b|c|d\nsonra metin")
	if len(info.Tables) != 0 {
		t.Errorf("expected no tables, got %+v", info.Tables)
	}
}

func TestDetect_FixedWidthNeedsNumbers(t *testing.T) {
	prose := "bu  bir  deneme  cumlesi\nbu  da  bir  digeri"
	if info := Detect(prose); len(info.Tables) != 0 {
		t.Errorf("prose with double spaces flagged as table: %+v", info.Tables)
	}
	table := "Pirinc  150  gram  2,50\nTavuk   200  gram  5,75"
	if info := Detect(table); len(info.Tables) != 1 {
		t.Errorf("numeric fixed-width rows not detected: %+v", Detect(table).Tables)
	}
}

func TestDetect_FootnotesAndLists(t *testing.T) {
	text := strings.Join([]string{
		"Menu kalemleri:",
		"- corba",
		"- ana yemek",
		"- tatli",
		"(*) Gramajlar cig agirliktir.",
		"Not: Ramazan ayinda menu degisir.",
	}, "\n")
	info := Detect(text)

	if len(info.Lists) != 1 || len(info.Lists[0].Items) != 3 {
		t.Fatalf("unexpected lists: %+v", info.Lists)
	}
	if len(info.Footnotes) != 2 {
		t.Fatalf("expected 2 footnotes, got %+v", info.Footnotes)
	}
	if info.Footnotes[0].Marker != "(*)" {
		t.Errorf("first footnote marker = %q", info.Footnotes[0].Marker)
	}
}

func TestDetect_References(t *testing.T) {
	text := "Teminat kosullari icin Madde 5'e bakiniz.\nOdeme 12. maddeye gore yapilir.\nDetaylar EK-3 icinde."
	info := Detect(text)

	if len(info.References) != 3 {
		t.Fatalf("expected 3 references, got %+v", info.References)
	}
	targets := map[string]string{}
	for _, r := range info.References {
		targets[r.TargetNumber] = r.Kind
	}
	if targets["5"] != "madde" || targets["12"] != "madde" || targets["3"] != "ek" {
		t.Errorf("unexpected reference targets: %v", targets)
	}
}

func TestHeadingForOffset(t *testing.T) {
	text := "MADDE 1 Taraflar\nbirinci icerik\nMADDE 2 Konu\nikinci icerik"
	info := Detect(text)

	if h := info.HeadingForOffset(20); h != "MADDE 1 Taraflar" {
		t.Errorf("offset 20 heading = %q", h)
	}
	if h := info.HeadingForOffset(len(text) - 1); h != "MADDE 2 Konu" {
		t.Errorf("tail heading = %q", h)
	}
}

func TestTableAt(t *testing.T) {
	text := "giris\nA\tB\tC\tD\n1\t2\t3\t4\ncikis"
	info := Detect(text)
	if len(info.Tables) != 1 {
		t.Fatalf("expected 1 table, got %+v", info.Tables)
	}
	tbl := info.Tables[0]
	if info.TableAt(tbl.StartOffset+3) == nil {
		t.Error("offset inside table not reported")
	}
	if info.TableAt(tbl.StartOffset) != nil {
		t.Error("table start boundary should not count as inside")
	}
	if info.TableAt(2) != nil {
		t.Error("offset before table reported as inside")
	}
}

func TestResolveReferences_Exact(t *testing.T) {
	text := "MADDE 4 Odeme\nodeme kosullari\nMADDE 5 Teminatlar\nGecici teminat teklif bedelinin yuzde ucudur.\nTeminat icin Madde 5'e bakiniz."
	info := Detect(text)

	resolved := ResolveReferences(info.References, info.Headings, text)
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved reference, got %+v", resolved)
	}
	r := resolved[0]
	if !r.Resolved || r.MatchType != "exact" || r.Confidence != 1.0 {
		t.Errorf("unexpected resolution: %+v", r)
	}
	if r.Target != "MADDE 5 Teminatlar" {
		t.Errorf("target = %q", r.Target)
	}
	if !strings.Contains(r.Preview, "Gecici teminat") {
		t.Errorf("preview should quote heading content, got %q", r.Preview)
	}
}

func TestResolveReferences_ChildMatch(t *testing.T) {
	headings := []Heading{
		{Text: "5.1. Gecici Teminat", Type: "numbered", Level: 2},
		{Text: "6. Odeme", Type: "numbered", Level: 1},
	}
	refs := []Reference{{FullMatch: "Madde 5'e bakiniz", TargetNumber: "5", Kind: "madde"}}

	resolved := ResolveReferences(refs, headings, "")
	if !resolved[0].Resolved || resolved[0].MatchType != "child" || resolved[0].Confidence != 0.8 {
		t.Errorf("unexpected resolution: %+v", resolved[0])
	}
}

func TestResolveReferences_UnresolvedSuggestions(t *testing.T) {
	headings := []Heading{
		{Text: "MADDE 7 Cezalar", Type: "madde", Level: 1},
		{Text: "MADDE 12 Devir", Type: "madde", Level: 1},
	}
	refs := []Reference{{FullMatch: "Madde 8'e bakiniz", TargetNumber: "8", Kind: "madde"}}

	resolved := ResolveReferences(refs, headings, "")
	r := resolved[0]
	if r.Resolved {
		t.Fatalf("reference should stay unresolved: %+v", r)
	}
	if len(r.Suggestions) != 1 || r.Suggestions[0] != "MADDE 7 Cezalar" {
		t.Errorf("suggestions = %v", r.Suggestions)
	}
}
