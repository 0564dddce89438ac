package pipeline

import (
	"github.com/cbayrak/tenderdoc/internal/analyzer"
	"github.com/cbayrak/tenderdoc/internal/conflict"
	"github.com/cbayrak/tenderdoc/internal/gapfill"
	"github.com/cbayrak/tenderdoc/internal/structure"
	"github.com/cbayrak/tenderdoc/internal/validator"
)

// Version is stamped into every output's meta block.
const Version = "2.0.0"

// FinalOutput is the wire shape returned for one analyzed document.
type FinalOutput struct {
	DocumentID string                        `json:"document_id"`
	Success    bool                          `json:"success"`
	Analysis   Analysis                      `json:"analysis"`
	Validation *validator.Report             `json:"validation"`
	Conflicts  []ConflictRecord              `json:"conflicts"`
	References []structure.ResolvedReference `json:"references"`
	Meta       Meta                          `json:"meta"`
	Error      *ErrorInfo                    `json:"error,omitempty"`
}

// Analysis is the assembled extraction plus provenance of how it was
// produced.
type Analysis struct {
	Summary        string                       `json:"ozet"`
	Data           analyzer.ExtractedData       `json:"data"`
	CriticalFields map[string]map[string]string `json:"critical_fields"`
	Method         string                       `json:"method"`
	GapFills       []gapfill.FillResult         `json:"gap_fills,omitempty"`
	Violations     []string                     `json:"violations,omitempty"`
}

// ConflictRecord pairs a detected conflict with its resolution, if one
// was reached.
type ConflictRecord struct {
	conflict.Conflict
	Resolution *conflict.Resolution `json:"resolution,omitempty"`
}

type Meta struct {
	PipelineVersion string   `json:"pipeline_version"`
	FileInfo        FileInfo `json:"file_info"`
	Stats           Stats    `json:"stats"`
}

type FileInfo struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	SizeBytes    int64  `json:"size_bytes"`
	OCRUsed      bool   `json:"ocr_used"`
	QualityScore int    `json:"quality_score,omitempty"`
}

type Stats struct {
	Chunks          int   `json:"chunks"`
	Analyzed        int   `json:"analyzed"`
	ParseErrors     int   `json:"parse_errors"`
	OCRPages        int   `json:"ocr_pages,omitempty"`
	OCRFailed       int   `json:"ocr_failed,omitempty"`
	Stage2Truncated bool  `json:"stage2_truncated,omitempty"`
	InputTokens     int   `json:"input_tokens"`
	OutputTokens    int   `json:"output_tokens"`
	DurationMs      int64 `json:"duration_ms"`
}

// ErrorInfo is the structured failure object. The document ID stays
// attached so a failed file in a batch can still be traced.
type ErrorInfo struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}
