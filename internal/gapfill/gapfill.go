// Package gapfill re-queries the model for critical fields the main
// pass left empty. Only a fixed whitelist of fields is eligible, and a
// field already carrying a real value is never queried again.
package gapfill

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
	"github.com/cbayrak/tenderdoc/internal/assembler"
	"github.com/cbayrak/tenderdoc/internal/document"
)

// fieldKeywords steers candidate chunk selection per critical field.
var fieldKeywords = map[string][]string{
	"iletisim":         {"iletisim", "telefon", "e-posta", "eposta", "email", "adres", "irtibat"},
	"teminat_oranlari": {"teminat", "gecici", "kesin"},
	"servis_saatleri":  {"servis", "saat", "ogun", "kahvalti", "ogle", "aksam", "dagitim"},
	"mali_kriterler":   {"mali", "bilanco", "ciro", "is hacmi", "yeterlik", "banka"},
	"tahmini_bedel":    {"bedel", "maliyet", "yaklasik", "tutar", "tahmini"},
}

const maxChunksPerField = 3

// FillResult records one gap-fill attempt.
type FillResult struct {
	Field       string `json:"field"`
	Filled      bool   `json:"filled"`
	SourceChunk int    `json:"source_chunk_id,omitempty"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
}

type Filler struct {
	client analyzer.Client
	model  string
	log    *slog.Logger
}

func New(client analyzer.Client, model string, log *slog.Logger) *Filler {
	return &Filler{
		client: client,
		model:  model,
		log:    log.With("component", "gapfill"),
	}
}

// Fill attempts to recover missing critical fields in place on res.
// Field query errors degrade to an unfilled record; they never fail the
// document.
func (f *Filler) Fill(ctx context.Context, res *assembler.Result, chunks []document.Chunk) []FillResult {
	var results []FillResult
	for _, field := range assembler.CriticalFields {
		if hasRealValue(res.CriticalFields[field]) {
			continue
		}
		results = append(results, f.fillField(ctx, field, res, chunks))
	}
	return results
}

func hasRealValue(sub map[string]string) bool {
	for _, v := range sub {
		if !assembler.IsPlaceholder(v) {
			return true
		}
	}
	return false
}

func (f *Filler) fillField(ctx context.Context, field string, res *assembler.Result, chunks []document.Chunk) FillResult {
	fr := FillResult{Field: field}
	for _, ch := range candidateChunks(field, chunks) {
		fr.Attempts++
		resp, err := f.client.Complete(ctx, analyzer.CompletionRequest{
			Model:     f.model,
			Prompt:    analyzer.FieldPrompt(field, ch.Content),
			MaxTokens: 1024,
		})
		if err != nil {
			fr.Error = err.Error()
			f.log.Warn("gap fill query failed", "field", field, "chunk", ch.Index, "error", err)
			continue
		}
		values, err := parseFieldResponse(resp.Text)
		if err != nil {
			f.log.Warn("gap fill response unparsable", "field", field, "chunk", ch.Index, "error", err)
			continue
		}
		if !hasRealValue(values) {
			continue
		}

		if res.CriticalFields == nil {
			res.CriticalFields = make(map[string]map[string]string)
		}
		if res.CriticalFields[field] == nil {
			res.CriticalFields[field] = make(map[string]string)
		}
		for k, v := range values {
			if !assembler.IsPlaceholder(v) {
				res.CriticalFields[field][k] = v
			}
		}
		fr.Filled = true
		fr.SourceChunk = ch.Index
		fr.Error = ""
		f.log.Info("gap filled", "field", field, "chunk", ch.Index, "attempts", fr.Attempts)
		return fr
	}
	return fr
}

// candidateChunks ranks chunks by keyword hits in heading and content.
// When nothing matches, the first chunks are tried; contact and price
// details usually sit near the top of tender documents.
func candidateChunks(field string, chunks []document.Chunk) []document.Chunk {
	type scored struct {
		chunk document.Chunk
		score int
	}
	var ranked []scored
	for _, ch := range chunks {
		text := strings.ToLower(ch.Heading + "\n" + ch.Content)
		score := 0
		for _, kw := range fieldKeywords[field] {
			score += strings.Count(text, kw)
		}
		if score > 0 {
			ranked = append(ranked, scored{ch, score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) == 0 {
		if len(chunks) > maxChunksPerField {
			return chunks[:maxChunksPerField]
		}
		return chunks
	}
	if len(ranked) > maxChunksPerField {
		ranked = ranked[:maxChunksPerField]
	}
	out := make([]document.Chunk, len(ranked))
	for i, s := range ranked {
		out[i] = s.chunk
	}
	return out
}

func parseFieldResponse(text string) (map[string]string, error) {
	raw, err := analyzer.RecoverJSON(text)
	if err != nil {
		return nil, err
	}
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}
