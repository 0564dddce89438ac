package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cbayrak/tenderdoc/internal/document"
)

// TruncationMarker is appended when stage-2 input hits the size cap.
const TruncationMarker = "\n\n[... girdi siniri asildi, kalan parca sonuclari kesildi ...]"

// Config controls the two-stage analysis.
type Config struct {
	FastModel       string // stage 1
	DefaultModel    string // stage 2 and single-stage
	BatchSize       int    // concurrent stage-1 requests per batch
	Stage2MaxInput  int    // stage-2 prompt cap in chars
	MicroExtraction bool   // one stage-1 pass per field category
}

// Analyzer runs stage-1 extraction over chunks in fixed-size concurrent
// batches and synthesizes the per-chunk results in stage 2. Stage 2
// never sees raw chunk text, only already-extracted summaries.
type Analyzer struct {
	client Client
	cfg    Config
	log    *slog.Logger
	stats  *Stats
}

func New(client Client, cfg Config, log *slog.Logger) *Analyzer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if cfg.Stage2MaxInput <= 0 {
		cfg.Stage2MaxInput = 100000
	}
	return &Analyzer{
		client: client,
		cfg:    cfg,
		log:    log.With("component", "analyzer"),
		stats:  NewStats(time.Hour),
	}
}

// Stats exposes the rolling call statistics.
func (a *Analyzer) Stats() *Stats {
	return a.stats
}

// Analyze runs the full analysis. Documents of two chunks or fewer skip
// stage 1 and synthesize directly from raw content.
func (a *Analyzer) Analyze(ctx context.Context, chunks []document.Chunk) (*Result, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to analyze")
	}
	if len(chunks) <= 2 {
		return a.singleStage(ctx, chunks)
	}

	var analyses []ChunkAnalysis
	if a.cfg.MicroExtraction {
		analyses = a.microExtract(ctx, chunks)
	} else {
		analyses = a.runStage1(ctx, chunks, KindGeneral)
	}

	var usage Usage
	for _, ca := range analyses {
		usage.Add(ca.Usage)
	}

	synth, truncated, synthUsage, err := a.synthesize(ctx, analyses)
	if err != nil {
		// No fallback exists once stage 1 succeeded: synthesis failure
		// fails the pipeline.
		return nil, fmt.Errorf("stage-2 synthesis: %w", err)
	}
	usage.Add(synthUsage)

	return &Result{
		Method:    "two-stage",
		Analyses:  analyses,
		Synthesis: synth,
		Truncated: truncated,
		Usage:     usage,
	}, nil
}

// runStage1 dispatches one extraction pass in batches. Batch N+1 does
// not start until batch N is fully collected, bounding concurrency
// against the rate-limited upstream. Results land at disjoint indices
// of a pre-sized slice, so no locking is needed.
func (a *Analyzer) runStage1(ctx context.Context, chunks []document.Chunk, kind string) []ChunkAnalysis {
	results := make([]ChunkAnalysis, len(chunks))
	for start := 0; start < len(chunks); start += a.cfg.BatchSize {
		end := start + a.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = a.analyzeChunk(ctx, chunks[i], kind)
			}(i)
		}
		wg.Wait()
	}
	return results
}

// microExtract repeats stage 1 once per field category and merges the
// per-chunk results across categories by chunk index.
func (a *Analyzer) microExtract(ctx context.Context, chunks []document.Chunk) []ChunkAnalysis {
	merged := make([]ChunkAnalysis, len(chunks))
	for i, ch := range chunks {
		merged[i] = ChunkAnalysis{
			ChunkIndex:     ch.Index,
			Kind:           "micro",
			RawContentHash: ch.ContentHash,
		}
	}

	for _, kind := range MicroExtractionKinds {
		pass := a.runStage1(ctx, chunks, kind)
		for i, ca := range pass {
			merged[i].DurationMs += ca.DurationMs
			merged[i].Usage.Add(ca.Usage)
			if ca.JSONValid {
				merged[i].JSONValid = true
				mergeData(&merged[i].Data, ca.Data)
			} else if ca.Error != "" {
				if merged[i].Error != "" {
					merged[i].Error += "; "
				}
				merged[i].Error += kind + ": " + ca.Error
			}
		}
	}
	return merged
}

func (a *Analyzer) analyzeChunk(ctx context.Context, ch document.Chunk, kind string) ChunkAnalysis {
	started := time.Now()
	ca := ChunkAnalysis{
		ChunkIndex:     ch.Index,
		Kind:           kind,
		RawContentHash: ch.ContentHash,
	}

	resp, err := a.client.Complete(ctx, CompletionRequest{
		Model:  a.cfg.FastModel,
		System: stage1System,
		Prompt: stage1Prompt(kind, ch.Heading, ch.Content),
	})
	ca.DurationMs = time.Since(started).Milliseconds()
	a.stats.Record(ca.DurationMs, Usage{resp.InputTokens, resp.OutputTokens})

	if err != nil {
		// A failed request degrades to an error record, never aborts.
		a.log.Warn("stage-1 request failed", "chunk", ch.Index, "kind", kind, "error", err)
		ca.Error = err.Error()
		return ca
	}
	ca.Usage = Usage{resp.InputTokens, resp.OutputTokens}

	raw, err := RecoverJSON(resp.Text)
	if err != nil {
		a.log.Warn("stage-1 response unparseable", "chunk", ch.Index, "kind", kind)
		ca.Error = ParseError
		return ca
	}
	var data ExtractedData
	if err := json.Unmarshal(raw, &data); err != nil {
		ca.Error = ParseError
		return ca
	}
	ca.JSONValid = true
	stampSource(&data, ch)
	ca.Data = data
	return ca
}

// synthesize concatenates the per-chunk extraction summaries under a
// hard input cap and issues the single stage-2 request.
func (a *Analyzer) synthesize(ctx context.Context, analyses []ChunkAnalysis) (Synthesis, bool, Usage, error) {
	var b strings.Builder
	truncated := false
	for _, ca := range analyses {
		if !ca.JSONValid || ca.Data.Empty() {
			continue
		}
		entry, err := json.Marshal(struct {
			Chunk int           `json:"chunk"`
			Data  ExtractedData `json:"data"`
		}{ca.ChunkIndex, ca.Data})
		if err != nil {
			continue
		}
		if b.Len()+len(entry)+1 > a.cfg.Stage2MaxInput {
			truncated = true
			b.WriteString(TruncationMarker)
			break
		}
		b.Write(entry)
		b.WriteByte('\n')
	}

	started := time.Now()
	resp, err := a.client.Complete(ctx, CompletionRequest{
		Model:     a.cfg.DefaultModel,
		System:    stage2System,
		Prompt:    stage2Prompt(b.String()),
		MaxTokens: 8192,
	})
	a.stats.Record(time.Since(started).Milliseconds(), Usage{resp.InputTokens, resp.OutputTokens})
	if err != nil {
		return Synthesis{}, truncated, Usage{}, err
	}
	usage := Usage{resp.InputTokens, resp.OutputTokens}

	raw, err := RecoverJSON(resp.Text)
	if err != nil {
		return Synthesis{}, truncated, usage, fmt.Errorf("unparseable synthesis: %w", err)
	}
	var synth Synthesis
	if err := json.Unmarshal(raw, &synth); err != nil {
		return Synthesis{}, truncated, usage, fmt.Errorf("decode synthesis: %w", err)
	}
	return synth, truncated, usage, nil
}

// singleStage synthesizes directly from raw content in one call.
func (a *Analyzer) singleStage(ctx context.Context, chunks []document.Chunk) (*Result, error) {
	var b strings.Builder
	for _, ch := range chunks {
		b.WriteString(ch.Content)
	}

	started := time.Now()
	resp, err := a.client.Complete(ctx, CompletionRequest{
		Model:     a.cfg.DefaultModel,
		System:    stage1System,
		Prompt:    singleStagePrompt(b.String()),
		MaxTokens: 8192,
	})
	a.stats.Record(time.Since(started).Milliseconds(), Usage{resp.InputTokens, resp.OutputTokens})
	if err != nil {
		return nil, fmt.Errorf("single-stage analysis: %w", err)
	}
	usage := Usage{resp.InputTokens, resp.OutputTokens}

	raw, err := RecoverJSON(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("unparseable single-stage response: %w", err)
	}
	var synth Synthesis
	if err := json.Unmarshal(raw, &synth); err != nil {
		return nil, fmt.Errorf("decode single-stage response: %w", err)
	}
	stampSource(&synth.ExtractedData, chunks[0])

	return &Result{
		Method:    "single-stage",
		Synthesis: synth,
		Usage:     usage,
	}, nil
}

// stampSource back-references every finding to its chunk and defaults
// the source type from the chunk kind.
func stampSource(data *ExtractedData, ch document.Chunk) {
	defaultType := "paragraf"
	if ch.Kind == document.ChunkTable {
		defaultType = "tablo"
	}
	stamp := func(fs []Finding) {
		for i := range fs {
			fs[i].SourceChunk = ch.Index
			if fs[i].SourceType == "" {
				fs[i].SourceType = defaultType
			}
		}
	}
	stamp(data.Dates)
	stamp(data.Amounts)
	stamp(data.Menus.Meals)
	stamp(data.Menus.Gramaj)
	stamp(data.Menus.ServiceTimes)
	stamp(data.Personnel.Staff)
	stamp(data.Personnel.Qualifications)
	for i := range data.Penalties {
		data.Penalties[i].SourceChunk = ch.Index
	}
}

// mergeData unions a category pass into the combined per-chunk record.
func mergeData(dst *ExtractedData, src ExtractedData) {
	dst.Dates = append(dst.Dates, src.Dates...)
	dst.Amounts = append(dst.Amounts, src.Amounts...)
	dst.Penalties = append(dst.Penalties, src.Penalties...)
	dst.Menus.Meals = append(dst.Menus.Meals, src.Menus.Meals...)
	dst.Menus.Gramaj = append(dst.Menus.Gramaj, src.Menus.Gramaj...)
	dst.Menus.ServiceTimes = append(dst.Menus.ServiceTimes, src.Menus.ServiceTimes...)
	dst.Personnel.Staff = append(dst.Personnel.Staff, src.Personnel.Staff...)
	dst.Personnel.Qualifications = append(dst.Personnel.Qualifications, src.Personnel.Qualifications...)
	if len(src.Critical) > 0 && dst.Critical == nil {
		dst.Critical = map[string]map[string]string{}
	}
	for field, vals := range src.Critical {
		if _, ok := dst.Critical[field]; !ok {
			dst.Critical[field] = vals
		}
	}
}
