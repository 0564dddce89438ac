package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cbayrak/tenderdoc/internal/document"
	"github.com/cbayrak/tenderdoc/internal/structure"
)

// smallConfig keeps test fixtures readable.
func smallConfig() Config {
	return Config{
		MaxTokens:         100, // 150-char budget at 1.5 chars/token
		MinTokens:         20,  // 30-char floor
		CharsPerToken:     1.5,
		MinHeadingContent: 40,
	}
}

func repeatPara(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func buildDoc(paras ...string) string {
	return strings.Join(paras, "\n\n")
}

func checkConservation(t *testing.T, text string, chunks []document.Chunk) {
	t.Helper()
	total := 0
	for _, ch := range chunks {
		total += len(ch.Content)
	}
	diff := total - len(text)
	if diff < 0 {
		diff = -diff
	}
	if diff > 10 {
		t.Errorf("character conservation violated: chunks %d vs text %d", total, len(text))
	}
}

func checkOrdering(t *testing.T, chunks []document.Chunk) {
	t.Helper()
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if i > 0 && chunks[i-1].EndOffset > ch.StartOffset {
			t.Errorf("chunk %d starts at %d before previous end %d", i, ch.StartOffset, chunks[i-1].EndOffset)
		}
	}
}

func TestChunk_CharacterConservation(t *testing.T) {
	text := buildDoc(
		repeatPara("yemek", 20),
		repeatPara("hizmet", 25),
		repeatPara("teminat", 30),
		repeatPara("sozlesme", 20),
	)
	info := structure.Detect(text)
	chunks := New(smallConfig()).Chunk(text, info)

	if len(chunks) < 2 {
		t.Fatalf("fixture should produce multiple chunks, got %d", len(chunks))
	}
	checkConservation(t, text, chunks)
	checkOrdering(t, chunks)

	// Chunks tile the text exactly, so rebuilding it is lossless.
	var rebuilt strings.Builder
	for _, ch := range chunks {
		rebuilt.WriteString(ch.Content)
	}
	if rebuilt.String() != text {
		t.Error("concatenated chunks do not reproduce the input")
	}
}

func TestChunk_TableAtomicity(t *testing.T) {
	var rows []string
	for i := 0; i < 12; i++ {
		rows = append(rows, fmt.Sprintf("Kalem%d\t%d\tgram\t%d,50", i, 100+i, i))
	}
	text := buildDoc(
		repeatPara("giris", 22),
		strings.Join(rows, "\n"),
		repeatPara("devam", 22),
	)
	info := structure.Detect(text)
	if len(info.Tables) != 1 {
		t.Fatalf("fixture table not detected: %+v", info.Tables)
	}
	tbl := info.Tables[0]

	chunks := New(smallConfig()).Chunk(text, info)
	checkConservation(t, text, chunks)
	for _, ch := range chunks {
		for _, boundary := range []int{ch.StartOffset, ch.EndOffset} {
			if boundary > tbl.StartOffset && boundary < tbl.EndOffset {
				t.Errorf("chunk boundary %d falls inside protected table [%d,%d)",
					boundary, tbl.StartOffset, tbl.EndOffset)
			}
		}
	}
}

func TestChunk_TableCrossingBudgetIsNotSplit(t *testing.T) {
	// The table begins just before the chunk budget line; the chunk must
	// overgrow past the budget rather than cut the table.
	cfg := smallConfig()
	maxChars := int(float64(cfg.MaxTokens) * cfg.CharsPerToken)

	prefix := repeatPara("hazirlik", 15) // just under the budget
	var rows []string
	for i := 0; i < 10; i++ {
		rows = append(rows, fmt.Sprintf("Urun%d\t%d\tadet\t%d,00", i, i, i))
	}
	text := prefix + "\n" + strings.Join(rows, "\n")
	info := structure.Detect(text)
	if len(info.Tables) != 1 {
		t.Fatalf("fixture table not detected: %+v", info.Tables)
	}
	tbl := info.Tables[0]

	chunks := New(cfg).Chunk(text, info)
	checkConservation(t, text, chunks)

	var holder *document.Chunk
	for i := range chunks {
		if chunks[i].StartOffset <= tbl.StartOffset && chunks[i].EndOffset >= tbl.EndOffset {
			holder = &chunks[i]
			break
		}
	}
	if holder == nil {
		t.Fatal("no single chunk holds the whole table")
	}
	if len(holder.Content) <= maxChars {
		t.Errorf("expected the table-holding chunk to exceed the %d-char budget, got %d",
			maxChars, len(holder.Content))
	}
}

func TestChunk_ListKeptWhole(t *testing.T) {
	var items []string
	for i := 0; i < 12; i++ {
		items = append(items, fmt.Sprintf("- malzeme kalemi no %02d", i))
	}
	text := buildDoc(
		repeatPara("hazirlik", 15),
		strings.Join(items, "\n"),
	)
	info := structure.Detect(text)
	if len(info.Lists) != 1 {
		t.Fatalf("fixture list not detected: %+v", info.Lists)
	}
	lst := info.Lists[0]

	chunks := New(smallConfig()).Chunk(text, info)
	checkConservation(t, text, chunks)
	for _, ch := range chunks[1:] {
		if ch.StartOffset > lst.Offset && ch.StartOffset < lst.EndOffset {
			t.Errorf("chunk boundary %d falls inside list [%d,%d)",
				ch.StartOffset, lst.Offset, lst.EndOffset)
		}
	}
}

func TestChunk_HeadingKeepsMinimumContent(t *testing.T) {
	cfg := smallConfig()
	text := buildDoc(
		repeatPara("onsoz", 28),
		"MADDE 1 Teminatlar\n"+repeatPara("teminat", 30),
	)
	info := structure.Detect(text)
	chunks := New(cfg).Chunk(text, info)
	checkConservation(t, text, chunks)

	// The heading must not sit at the very end of a chunk with its
	// content split away into the next one.
	for _, ch := range chunks {
		idx := strings.Index(ch.Content, "MADDE 1 Teminatlar")
		if idx < 0 {
			continue
		}
		after := len(ch.Content) - (idx + len("MADDE 1 Teminatlar"))
		if after < cfg.MinHeadingContent {
			t.Errorf("heading followed by only %d chars in its chunk", after)
		}
	}
}

func TestChunk_SmallChunksMerged(t *testing.T) {
	cfg := smallConfig()
	minChars := int(float64(cfg.MinTokens) * cfg.CharsPerToken)
	text := buildDoc(
		repeatPara("birinci", 25),
		"kisa",
		repeatPara("ikinci", 25),
		"son",
	)
	info := structure.Detect(text)
	chunks := New(cfg).Chunk(text, info)
	checkConservation(t, text, chunks)

	for i, ch := range chunks {
		if len(chunks) > 1 && len(ch.Content) < minChars {
			t.Errorf("chunk %d is undersized after merge pass: %d chars", i, len(ch.Content))
		}
	}
}

func TestChunk_Idempotence(t *testing.T) {
	text := buildDoc(
		repeatPara("yemek", 30),
		"MADDE 5 Odeme\n"+repeatPara("odeme", 25),
		"A\tB\tC\tD\n1\t2\t3\t4\n5\t6\t7\t8",
		repeatPara("kapanis", 30),
	)
	info := structure.Detect(text)
	c := New(smallConfig())

	first := c.Chunk(text, info)
	second := c.Chunk(text, info)
	if len(first) != len(second) {
		t.Fatalf("runs disagree on chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].StartOffset != second[i].StartOffset ||
			first[i].EndOffset != second[i].EndOffset ||
			first[i].ContentHash != second[i].ContentHash {
			t.Errorf("chunk %d differs between identical runs", i)
		}
	}
}

func TestChunk_Positions(t *testing.T) {
	text := buildDoc(
		repeatPara("bas", 40),
		repeatPara("orta", 40),
		repeatPara("son", 40),
	)
	chunks := New(smallConfig()).Chunk(text, structure.Detect(text))
	if len(chunks) < 3 {
		t.Fatalf("need at least 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Position != "start" {
		t.Errorf("first position = %q", chunks[0].Position)
	}
	if chunks[len(chunks)-1].Position != "end" {
		t.Errorf("last position = %q", chunks[len(chunks)-1].Position)
	}
	for _, ch := range chunks[1 : len(chunks)-1] {
		if ch.Position != "middle" {
			t.Errorf("chunk %d position = %q", ch.Index, ch.Position)
		}
	}
}

func TestChunk_HeadingContext(t *testing.T) {
	text := "MADDE 1 Genel\n" + repeatPara("genel", 40) +
		"\n\nMADDE 2 Cezalar\n" + repeatPara("ceza", 40)
	info := structure.Detect(text)
	chunks := New(smallConfig()).Chunk(text, info)

	last := chunks[len(chunks)-1]
	if last.Heading != "MADDE 2 Cezalar" {
		t.Errorf("last chunk heading = %q", last.Heading)
	}
}

func TestChunkSheets(t *testing.T) {
	var b strings.Builder
	b.WriteString("[Sayfa: Gramaj]\n")
	b.WriteString("Kalem\tMiktar\n")
	for i := 0; i < 30; i++ {
		b.WriteString(fmt.Sprintf("kalem-%02d\t%d\n", i, 100+i))
	}
	b.WriteString("[Sayfa: Personel]\nUnvan\tSayi\nasci\t4\ngarson\t6")
	text := b.String()

	sheets := []document.Sheet{
		{Name: "Gramaj", Headers: []string{"Kalem", "Miktar"}},
		{Name: "Personel", Headers: []string{"Unvan", "Sayi"}},
	}
	chunks := New(smallConfig()).ChunkSheets(text, sheets)

	checkConservation(t, text, chunks)
	checkOrdering(t, chunks)

	bySheet := map[string]int{}
	for _, ch := range chunks {
		if ch.Kind != document.ChunkTable {
			t.Errorf("sheet chunk %d kind = %q", ch.Index, ch.Kind)
		}
		bySheet[ch.Sheet]++
	}
	if bySheet["Gramaj"] < 2 {
		t.Errorf("expected Gramaj sheet to split into batches, got %d", bySheet["Gramaj"])
	}
	if bySheet["Personel"] != 1 {
		t.Errorf("expected a single Personel batch, got %d", bySheet["Personel"])
	}

	// Headers travel in the chunk heading metadata for every batch.
	for _, ch := range chunks {
		if ch.Sheet == "Gramaj" && !strings.Contains(ch.Heading, "Kalem\tMiktar") {
			t.Errorf("batch heading missing column headers: %q", ch.Heading)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("", 1.5); got != 0 {
		t.Errorf("empty text = %d tokens", got)
	}
	if got := EstimateTokens(strings.Repeat("a", 150), 1.5); got != 100 {
		t.Errorf("150 chars = %d tokens, want 100", got)
	}
	if got := EstimateTokens("ab", 1.5); got < 1 {
		t.Errorf("tiny text = %d tokens", got)
	}
}
