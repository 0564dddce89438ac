package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
	"github.com/cbayrak/tenderdoc/internal/assembler"
	"github.com/cbayrak/tenderdoc/internal/chunker"
	"github.com/cbayrak/tenderdoc/internal/config"
	"github.com/cbayrak/tenderdoc/internal/conflict"
	"github.com/cbayrak/tenderdoc/internal/document"
	"github.com/cbayrak/tenderdoc/internal/extractor"
	"github.com/cbayrak/tenderdoc/internal/gapfill"
	"github.com/cbayrak/tenderdoc/internal/ocr"
	"github.com/cbayrak/tenderdoc/internal/structure"
	"github.com/cbayrak/tenderdoc/internal/validator"
)

// Runner executes the full analysis pipeline for one document.
type Runner struct {
	cfg      config.Config
	analyzer *analyzer.Analyzer
	ocr      *ocr.Processor
	gap      *gapfill.Filler
	log      *slog.Logger
}

func NewRunner(cfg config.Config, client analyzer.Client, ocrProc *ocr.Processor, log *slog.Logger) *Runner {
	an := analyzer.New(client, analyzer.Config{
		FastModel:       cfg.FastModel,
		DefaultModel:    cfg.DefaultModel,
		BatchSize:       cfg.AnalyzeBatchSize,
		Stage2MaxInput:  cfg.Stage2MaxInputLen,
		MicroExtraction: true,
	}, log)
	return &Runner{
		cfg:      cfg,
		analyzer: an,
		ocr:      ocrProc,
		gap:      gapfill.New(client, cfg.DefaultModel, log),
		log:      log.With("component", "pipeline"),
	}
}

// AnalyzerStats exposes rolling LLM latency and token counters.
func (r *Runner) AnalyzerStats() *analyzer.Stats {
	return r.analyzer.Stats()
}

// Run takes raw file bytes through extraction, chunking, analysis and
// validation. Failures return a FinalOutput carrying the document ID
// and a structured error alongside the Go error.
func (r *Runner) Run(ctx context.Context, filename string, data []byte, job *Job) (*FinalOutput, error) {
	started := time.Now()
	out := &FinalOutput{
		DocumentID: uuid.NewString(),
		Meta: Meta{
			PipelineVersion: Version,
			FileInfo: FileInfo{
				Name:      filepath.Base(filename),
				SizeBytes: int64(len(data)),
			},
		},
	}
	fail := func(stage string, err error) (*FinalOutput, error) {
		out.Error = &ErrorInfo{Stage: stage, Message: err.Error()}
		out.Meta.Stats.DurationMs = time.Since(started).Milliseconds()
		return out, fmt.Errorf("%s: %w", stage, err)
	}

	// Extraction. ZIP archives must be expanded into individual jobs
	// before reaching the runner.
	job.SetStatus(StatusExtracting, "metin cikarma")
	doc, err := extractor.Extract(bytes.NewReader(data), filename, extractor.Options{
		QualityCutoff:      r.cfg.QualityCutoff,
		QualityTableCutoff: r.cfg.QualityTableCutoff,
	})
	if err != nil {
		return fail("extract", err)
	}
	out.Meta.FileInfo.Kind = string(doc.Kind)
	if doc.Quality != nil {
		out.Meta.FileInfo.QualityScore = doc.Quality.Score
	}

	text := doc.Text
	if doc.NeedsOCR {
		job.SetStatus(StatusOCR, "optik karakter tanima")
		text, err = r.runOCR(ctx, doc, data, out)
		if err != nil {
			return fail("ocr", err)
		}
	}
	if strings.TrimSpace(text) == "" {
		return fail("extract", errors.New("belgeden metin cikarilamadi"))
	}

	// Structure and chunking.
	job.SetStatus(StatusChunking, "yapi analizi ve parcalama")
	info := structure.Detect(text)
	chunks := r.chunk(text, doc, info)
	job.SetTotalChunks(len(chunks))
	r.log.Info("document chunked",
		"file", out.Meta.FileInfo.Name,
		"chunks", len(chunks),
		"headings", len(info.Headings),
		"tables", len(info.Tables))

	// Analysis, with retry on transient API failures.
	job.SetStatus(StatusAnalyzing, "icerik analizi")
	res, err := r.analyzeWithRetry(ctx, chunks, job)
	if err != nil {
		return fail("analyze", err)
	}
	job.SetChunksAnalyzed(len(res.Analyses))

	refs := structure.ResolveReferences(info.References, info.Headings, text)
	conflicts := conflict.Detect(res.Analyses)
	resolutions := conflict.Resolve(conflicts)
	if len(conflicts) > 0 {
		r.log.Info("conflicts detected", "summary", conflict.Summary(conflicts, resolutions))
	}

	var assembled *assembler.Result
	if res.Method == "single-stage" {
		assembled = assembler.AssembleSingle(&res.Synthesis)
	} else {
		assembled = assembler.Assemble(res.Analyses, &res.Synthesis)
	}
	assembler.ApplyResolutions(assembled, resolutions)

	job.SetStatus(StatusGapFilling, "eksik alan tamamlama")
	gapFills := r.gap.Fill(ctx, assembled, chunks)

	job.SetStatus(StatusValidating, "dogrulama")
	report := validator.Validate(validator.Input{
		Text:        text,
		Chunks:      chunks,
		Structure:   &info,
		Analyses:    res.Analyses,
		Assembled:   assembled,
		Conflicts:   conflicts,
		Resolutions: resolutions,
		Limits: validator.Limits{
			CharTolerance:     r.cfg.CharTolerance,
			MinHeadingContent: r.cfg.MinHeadingContent,
			CriticalWeight:    r.cfg.CriticalWeight,
			ImportantWeight:   r.cfg.ImportantWeight,
			OptionalWeight:    r.cfg.OptionalWeight,
			MinQualityScore:   r.cfg.MinQualityScore,
		},
	})

	out.Success = true
	out.Analysis = Analysis{
		Summary:        assembled.Summary,
		Data:           assembled.Data,
		CriticalFields: assembled.CriticalFields,
		Method:         res.Method,
		GapFills:       gapFills,
		Violations:     assembled.Violations,
	}
	out.Validation = report
	out.Conflicts = pairConflicts(conflicts, resolutions)
	out.References = refs
	out.Meta.Stats.Chunks = len(chunks)
	out.Meta.Stats.Analyzed = len(res.Analyses)
	out.Meta.Stats.ParseErrors = countParseErrors(res.Analyses)
	out.Meta.Stats.Stage2Truncated = res.Truncated
	out.Meta.Stats.InputTokens = res.Usage.InputTokens
	out.Meta.Stats.OutputTokens = res.Usage.OutputTokens
	out.Meta.Stats.DurationMs = time.Since(started).Milliseconds()
	report.SchemaErrors = validator.CheckSchema(out)
	if len(report.SchemaErrors) > 0 {
		report.Valid = false
		r.log.Error("final output failed schema validation", "errors", report.SchemaErrors)
	}
	return out, nil
}

// runOCR recovers text for scanned PDFs and standalone images.
func (r *Runner) runOCR(ctx context.Context, doc *document.RawDocument, data []byte, out *FinalOutput) (string, error) {
	if r.ocr == nil {
		return "", errors.New("belge taranmis ancak OCR yapilandirilmamis")
	}
	var (
		res *ocr.Result
		err error
	)
	switch doc.Kind {
	case document.KindImage:
		res, err = r.ocr.ProcessImage(ctx, bytes.NewReader(data), filepath.Ext(doc.SourceName))
	default:
		res, err = r.ocr.ProcessPDF(ctx, bytes.NewReader(data))
	}
	if err != nil {
		return "", err
	}
	out.Meta.FileInfo.OCRUsed = true
	out.Meta.Stats.OCRPages = len(res.Pages)
	out.Meta.Stats.OCRFailed = res.Failed
	if res.Succeeded == 0 {
		return "", fmt.Errorf("hicbir sayfa okunamadi (%d sayfa)", len(res.Pages))
	}
	return extractor.CleanText(res.Text), nil
}

// chunk picks the sheet-aware path for tabular sources.
func (r *Runner) chunk(text string, doc *document.RawDocument, info structure.Info) []document.Chunk {
	c := chunker.New(chunker.Config{
		MaxTokens:         r.cfg.MaxTokensPerChunk,
		MinTokens:         r.cfg.MinTokensPerChunk,
		CharsPerToken:     r.cfg.CharsPerToken,
		MinHeadingContent: r.cfg.MinHeadingContent,
	})
	if len(doc.Sheets) > 0 {
		return c.ChunkSheets(text, doc.Sheets)
	}
	return c.Chunk(text, info)
}

func (r *Runner) analyzeWithRetry(ctx context.Context, chunks []document.Chunk, job *Job) (*analyzer.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			d := Backoff(attempt - 1)
			r.log.Warn("analysis retry", "attempt", attempt, "backoff", d, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d):
			}
		}
		res, err := r.analyzer.Analyze(ctx, chunks)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
		job.AddError(fmt.Sprintf("analiz denemesi %d basarisiz: %v", attempt+1, err))
	}
	return nil, lastErr
}

func pairConflicts(conflicts []conflict.Conflict, resolutions []conflict.Resolution) []ConflictRecord {
	byField := make(map[string]*conflict.Resolution, len(resolutions))
	for i := range resolutions {
		byField[resolutions[i].Field] = &resolutions[i]
	}
	records := make([]ConflictRecord, 0, len(conflicts))
	for _, c := range conflicts {
		records = append(records, ConflictRecord{
			Conflict:   c,
			Resolution: byField[c.Field],
		})
	}
	return records
}

func countParseErrors(analyses []analyzer.ChunkAnalysis) int {
	n := 0
	for _, ca := range analyses {
		if ca.Error == analyzer.ParseError {
			n++
		}
	}
	return n
}
