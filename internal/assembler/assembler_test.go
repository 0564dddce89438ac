package assembler

import (
	"strings"
	"testing"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
	"github.com/cbayrak/tenderdoc/internal/conflict"
)

func TestAssemble_DeduplicatesEquivalentFindings(t *testing.T) {
	analyses := []analyzer.ChunkAnalysis{
		{ChunkIndex: 0, Data: analyzer.ExtractedData{Dates: []analyzer.Finding{
			{Type: "ihale_tarihi", Value: "01.03.2024", Confidence: 0.7, SourceChunk: 0},
		}}},
		{ChunkIndex: 1, Data: analyzer.ExtractedData{Dates: []analyzer.Finding{
			{Type: "ihale_tarihi", Value: "01/03/2024", Confidence: 0.9, SourceChunk: 1},
		}}},
	}
	res := Assemble(analyses, nil)
	if len(res.Data.Dates) != 1 {
		t.Fatalf("dates = %d, want equivalent formats collapsed", len(res.Data.Dates))
	}
	if res.Data.Dates[0].Confidence != 0.9 {
		t.Errorf("kept confidence = %v, want the higher duplicate", res.Data.Dates[0].Confidence)
	}
}

func TestAssemble_PlaceholdersDropped(t *testing.T) {
	analyses := []analyzer.ChunkAnalysis{
		{ChunkIndex: 0, Data: analyzer.ExtractedData{Amounts: []analyzer.Finding{
			{Type: "yaklasik_maliyet", Value: "Belirtilmemis", Confidence: 0.9},
			{Type: "birim_fiyat", Value: "45,00 TL", Confidence: 0.8},
		}}},
	}
	res := Assemble(analyses, nil)
	if len(res.Data.Amounts) != 1 || res.Data.Amounts[0].Type != "birim_fiyat" {
		t.Fatalf("amounts = %+v", res.Data.Amounts)
	}
}

func TestAssemble_PenaltyDedupeKeysOnRateAndPeriod(t *testing.T) {
	analyses := []analyzer.ChunkAnalysis{
		{ChunkIndex: 0, Data: analyzer.ExtractedData{Penalties: []analyzer.Penalty{
			{Type: "gecikme", Rate: "%0,5", Period: "gunluk", Confidence: 0.7},
		}}},
		{ChunkIndex: 1, Data: analyzer.ExtractedData{Penalties: []analyzer.Penalty{
			{Type: "gecikme", Rate: "%0.5", Period: "gunluk", Confidence: 0.9},
			{Type: "gecikme", Rate: "%0,5", Period: "aylik", Confidence: 0.6},
		}}},
	}
	res := Assemble(analyses, nil)
	if len(res.Data.Penalties) != 2 {
		t.Fatalf("penalties = %+v, want rate dedupe within same period only", res.Data.Penalties)
	}
	if res.Data.Penalties[0].Confidence != 0.9 {
		t.Errorf("kept confidence = %v", res.Data.Penalties[0].Confidence)
	}
}

func TestAssemble_CriticalFieldsFirstNonPlaceholder(t *testing.T) {
	analyses := []analyzer.ChunkAnalysis{
		{ChunkIndex: 2, Data: analyzer.ExtractedData{Critical: map[string]map[string]string{
			"iletisim": {"telefon": "0312 111 22 33"},
		}}},
		{ChunkIndex: 0, Data: analyzer.ExtractedData{Critical: map[string]map[string]string{
			"iletisim":         {"telefon": "Belirtilmemis"},
			"teminat_oranlari": {"gecici": "%3"},
		}}},
		{ChunkIndex: 1, Data: analyzer.ExtractedData{Critical: map[string]map[string]string{
			"iletisim": {"telefon": "0212 999 88 77"},
		}}},
	}
	res := Assemble(analyses, nil)
	if got := res.CriticalFields["iletisim"]["telefon"]; got != "0212 999 88 77" {
		t.Errorf("telefon = %q, want earliest real value in chunk order", got)
	}
	if got := res.CriticalFields["teminat_oranlari"]["gecici"]; got != "%3" {
		t.Errorf("gecici = %q", got)
	}
}

func TestAssemble_SynthesisOnlyValuesAreViolations(t *testing.T) {
	analyses := []analyzer.ChunkAnalysis{
		{ChunkIndex: 0, Data: analyzer.ExtractedData{Dates: []analyzer.Finding{
			{Type: "baslangic", Value: "01.01.2024", Confidence: 0.9},
		}}},
	}
	syn := &analyzer.Synthesis{
		Summary: "Yemek hizmeti alimi.",
		ExtractedData: analyzer.ExtractedData{Dates: []analyzer.Finding{
			{Type: "baslangic", Value: "01.01.2024"},
			{Type: "bitis", Value: "31.12.2024"},
		}},
	}
	res := Assemble(analyses, syn)
	if res.Summary != "Yemek hizmeti alimi." {
		t.Errorf("summary = %q", res.Summary)
	}
	if len(res.Violations) != 1 || !strings.Contains(res.Violations[0], "31.12.2024") {
		t.Fatalf("violations = %v, want the invented end date flagged", res.Violations)
	}
	if len(res.Data.Dates) != 1 {
		t.Errorf("invented value must not enter the data: %+v", res.Data.Dates)
	}
}

func TestAssemble_ContainedSynthesisValueIsNotAViolation(t *testing.T) {
	analyses := []analyzer.ChunkAnalysis{
		{ChunkIndex: 0, Data: analyzer.ExtractedData{Amounts: []analyzer.Finding{
			{Type: "yaklasik_maliyet", Value: "1.250.000 TL", Confidence: 0.9},
		}}},
	}
	syn := &analyzer.Synthesis{
		ExtractedData: analyzer.ExtractedData{Amounts: []analyzer.Finding{
			// Synthesis often drops the currency suffix; that is the
			// same value, not new information.
			{Type: "yaklasik_maliyet", Value: "1.250.000"},
			// The reverse direction traces too.
			{Type: "gecici_teminat", Value: "%3"},
		}},
	}
	analyses[0].Data.Amounts = append(analyses[0].Data.Amounts,
		analyzer.Finding{Type: "gecici_teminat", Value: "3", Confidence: 0.7})
	res := Assemble(analyses, syn)
	if len(res.Violations) != 0 {
		t.Fatalf("violations = %v, want contained values accepted", res.Violations)
	}
}

func TestApplyResolutions_KeepsChosenValue(t *testing.T) {
	res := &Result{Data: analyzer.ExtractedData{Dates: []analyzer.Finding{
		{Type: "baslangic", Value: "01.01.2024", Confidence: 0.9, SourceChunk: 0},
		{Type: "baslangic", Value: "15.01.2024", Confidence: 0.5, SourceChunk: 3},
		{Type: "bitis", Value: "31.12.2024", Confidence: 0.8, SourceChunk: 4},
	}}}
	ApplyResolutions(res, []conflict.Resolution{{
		Field:       "dates.baslangic",
		Strategy:    conflict.StrategyHighestConfidence,
		ChosenValue: "01.01.2024",
	}})
	if len(res.Data.Dates) != 2 {
		t.Fatalf("dates = %+v", res.Data.Dates)
	}
	for _, f := range res.Data.Dates {
		if f.Type == "baslangic" && f.Value != "01.01.2024" {
			t.Errorf("losing value survived the patch: %+v", f)
		}
	}
}

func TestApplyResolutions_ManualReviewUntouched(t *testing.T) {
	res := &Result{Data: analyzer.ExtractedData{Dates: []analyzer.Finding{
		{Type: "baslangic", Value: "01.01.2024", Confidence: 0.9},
		{Type: "baslangic", Value: "15.01.2024", Confidence: 0.85},
	}}}
	ApplyResolutions(res, []conflict.Resolution{{
		Field:        "dates.baslangic",
		ManualReview: true,
	}})
	if len(res.Data.Dates) != 2 {
		t.Fatalf("manual-review conflict must keep both values: %+v", res.Data.Dates)
	}
}

func TestIsPlaceholder(t *testing.T) {
	for _, v := range []string{"", "-", "Belirtilmemis", "  yok  ", "N/A"} {
		if !IsPlaceholder(v) {
			t.Errorf("IsPlaceholder(%q) = false", v)
		}
	}
	if IsPlaceholder("0312 111 22 33") {
		t.Error("real value treated as placeholder")
	}
}
