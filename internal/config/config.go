package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for tenderdoc.
//
// The pipeline constants (chunk budgets, quality cutoffs, completeness
// weights, tolerances) are tuned values carried over from production;
// they live here as overridable settings rather than hard-coded in the
// components that consume them.
type Config struct {
	Port string

	// Auth
	APIKey string

	// Anthropic completion service
	AnthropicAPIKey string
	FastModel       string // stage-1 per-chunk extraction
	DefaultModel    string // stage-2 synthesis, OCR vision

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Analyzer
	AnalyzeBatchSize  int // concurrent stage-1 requests per batch
	Stage2MaxInputLen int // stage-2 prompt cap in characters

	// Chunker
	MaxTokensPerChunk int
	MinTokensPerChunk int
	CharsPerToken     float64 // Turkish text runs ~1.5 chars/token
	MinHeadingContent int     // chars of content that must stay with a heading

	// PDF text-quality gate
	QualityCutoff      int // below this, route to OCR
	QualityTableCutoff int // below this with table structure, route to OCR

	// OCR
	OCRParallelPages int
	OCRMaxRetries    int
	OCRBackoffBase   time.Duration
	OCRRenderDPI     int

	// Validator
	CharTolerance   int // allowed char drift between input and assembled output
	CriticalWeight  float64
	ImportantWeight float64
	OptionalWeight  float64
	MinQualityScore float64

	// Job state
	JobTTL time.Duration
}

// Load reads configuration from the environment with viper defaults.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("TENDERDOC")
	v.AutomaticEnv()

	v.SetDefault("port", "8090")
	v.SetDefault("api_key", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("fast_model", "claude-3-5-haiku-20241022")
	v.SetDefault("default_model", "claude-sonnet-4-5-20250929")

	v.SetDefault("worker_count", 2)
	v.SetDefault("max_queue_size", 50)
	v.SetDefault("max_upload_bytes", int64(52428800)) // 50MB

	v.SetDefault("analyze_batch_size", 4)
	v.SetDefault("stage2_max_input_len", 100000)

	v.SetDefault("max_tokens_per_chunk", 6000)
	v.SetDefault("min_tokens_per_chunk", 500)
	v.SetDefault("chars_per_token", 1.5)
	v.SetDefault("min_heading_content", 200)

	v.SetDefault("quality_cutoff", 60)
	v.SetDefault("quality_table_cutoff", 80)

	v.SetDefault("ocr_parallel_pages", 4)
	v.SetDefault("ocr_max_retries", 3)
	v.SetDefault("ocr_backoff_base", 2*time.Second)
	v.SetDefault("ocr_render_dpi", 150)

	v.SetDefault("char_tolerance", 10)
	v.SetDefault("critical_weight", 0.5)
	v.SetDefault("important_weight", 0.35)
	v.SetDefault("optional_weight", 0.15)
	v.SetDefault("min_quality_score", 0.5)

	v.SetDefault("job_ttl", time.Hour)

	return Config{
		Port:            v.GetString("port"),
		APIKey:          v.GetString("api_key"),
		AnthropicAPIKey: v.GetString("anthropic_api_key"),
		FastModel:       v.GetString("fast_model"),
		DefaultModel:    v.GetString("default_model"),

		WorkerCount:    v.GetInt("worker_count"),
		MaxQueueSize:   v.GetInt("max_queue_size"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),

		AnalyzeBatchSize:  v.GetInt("analyze_batch_size"),
		Stage2MaxInputLen: v.GetInt("stage2_max_input_len"),

		MaxTokensPerChunk: v.GetInt("max_tokens_per_chunk"),
		MinTokensPerChunk: v.GetInt("min_tokens_per_chunk"),
		CharsPerToken:     v.GetFloat64("chars_per_token"),
		MinHeadingContent: v.GetInt("min_heading_content"),

		QualityCutoff:      v.GetInt("quality_cutoff"),
		QualityTableCutoff: v.GetInt("quality_table_cutoff"),

		OCRParallelPages: v.GetInt("ocr_parallel_pages"),
		OCRMaxRetries:    v.GetInt("ocr_max_retries"),
		OCRBackoffBase:   v.GetDuration("ocr_backoff_base"),
		OCRRenderDPI:     v.GetInt("ocr_render_dpi"),

		CharTolerance:   v.GetInt("char_tolerance"),
		CriticalWeight:  v.GetFloat64("critical_weight"),
		ImportantWeight: v.GetFloat64("important_weight"),
		OptionalWeight:  v.GetFloat64("optional_weight"),
		MinQualityScore: v.GetFloat64("min_quality_score"),

		JobTTL: v.GetDuration("job_ttl"),
	}
}

// Validate checks required settings.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("TENDERDOC_API_KEY is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("TENDERDOC_ANTHROPIC_API_KEY is required")
	}
	if c.AnalyzeBatchSize <= 0 {
		return fmt.Errorf("analyze batch size must be positive, got %d", c.AnalyzeBatchSize)
	}
	if c.MaxTokensPerChunk <= c.MinTokensPerChunk {
		return fmt.Errorf("max tokens per chunk (%d) must exceed min (%d)", c.MaxTokensPerChunk, c.MinTokensPerChunk)
	}
	return nil
}
