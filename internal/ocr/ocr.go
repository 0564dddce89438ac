// Package ocr recovers text from scanned or image-only documents. Each
// page runs through an explicit state machine: pending, then up to
// MaxRetries attempts on the primary engine, then a single fallback
// attempt, ending in succeeded or failed. A page failing never aborts
// the document.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
)

// Page states.
const (
	StatePending            = "pending"
	StateAttempting         = "attempting"
	StateFallbackAttempting = "fallback_attempting"
	StateSucceeded          = "succeeded"
	StateFailed             = "failed"
)

// PageResult is the terminal record for one page.
type PageResult struct {
	Page     int    `json:"page"`
	State    string `json:"state"`
	Engine   string `json:"engine,omitempty"`
	Attempts int    `json:"attempts"`
	Text     string `json:"-"`
	Error    string `json:"error,omitempty"`
}

// Result is the document-level outcome.
type Result struct {
	Text      string       `json:"-"`
	Pages     []PageResult `json:"pages"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

type Config struct {
	ParallelPages int
	MaxRetries    int
	BackoffBase   time.Duration
	RenderDPI     int
}

func DefaultConfig() Config {
	return Config{
		ParallelPages: 4,
		MaxRetries:    3,
		BackoffBase:   2 * time.Second,
		RenderDPI:     150,
	}
}

// Processor drives OCR over a document's pages.
type Processor struct {
	primary  Engine
	fallback Engine
	cfg      Config
	log      *slog.Logger

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a processor. fallback may be nil when no local engine is
// installed; pages then fail after the primary attempts run out.
func New(primary, fallback Engine, cfg Config, log *slog.Logger) *Processor {
	if cfg.ParallelPages <= 0 {
		cfg.ParallelPages = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 150
	}
	return &Processor{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		log:      log.With("component", "ocr"),
		sleep:    sleepCtx,
	}
}

// ProcessPDF renders the PDF to page images and recognizes each page.
// Temporary files are removed before return, on error paths too.
func (p *Processor) ProcessPDF(ctx context.Context, r io.Reader) (*Result, error) {
	dir, err := os.MkdirTemp("", "tenderdoc-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "input.pdf")
	f, err := os.Create(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("create temp pdf: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp pdf: %w", err)
	}

	images, err := renderPDF(ctx, pdfPath, dir, p.cfg.RenderDPI)
	if err != nil {
		return nil, fmt.Errorf("render pdf pages: %w", err)
	}
	p.log.Info("pdf rendered for ocr", "pages", len(images), "dpi", p.cfg.RenderDPI)
	return p.processImages(ctx, images), nil
}

// ProcessImage recognizes a single standalone image document.
func (p *Processor) ProcessImage(ctx context.Context, r io.Reader, ext string) (*Result, error) {
	dir, err := os.MkdirTemp("", "tenderdoc-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "image"+ext)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp image: %w", err)
	}
	return p.processImages(ctx, []string{path}), nil
}

// processImages fans pages out in fixed-width batches. Results land in
// pre-sized slots, so page order is preserved regardless of completion
// order.
func (p *Processor) processImages(ctx context.Context, images []string) *Result {
	results := make([]PageResult, len(images))
	for i := range results {
		results[i] = PageResult{Page: i + 1, State: StatePending}
	}

	for start := 0; start < len(images); start += p.cfg.ParallelPages {
		end := min(start+p.cfg.ParallelPages, len(images))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = p.recognizePage(ctx, i+1, images[i])
			}(i)
		}
		wg.Wait()
	}

	res := &Result{Pages: results}
	var parts []string
	for _, pr := range results {
		if pr.State == StateSucceeded {
			res.Succeeded++
			parts = append(parts, pr.Text)
		} else {
			res.Failed++
		}
	}
	res.Text = strings.Join(parts, "\n\f\n")
	p.log.Info("ocr finished", "succeeded", res.Succeeded, "failed", res.Failed)
	return res
}

// recognizePage walks one page through the state machine.
func (p *Processor) recognizePage(ctx context.Context, page int, imagePath string) PageResult {
	pr := PageResult{Page: page, State: StateAttempting}
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		pr.Attempts = attempt
		text, err := p.primary.RecognizePage(ctx, imagePath)
		if err == nil {
			pr.State = StateSucceeded
			pr.Engine = p.primary.Name()
			pr.Text = text
			return pr
		}
		lastErr = err
		p.log.Warn("ocr attempt failed",
			"page", page, "attempt", attempt, "engine", p.primary.Name(), "error", err)

		var retryErr *analyzer.RetryableError
		if !errors.As(err, &retryErr) {
			break
		}
		if attempt < p.cfg.MaxRetries {
			if serr := p.sleep(ctx, p.cfg.BackoffBase<<uint(attempt-1)); serr != nil {
				pr.State = StateFailed
				pr.Error = serr.Error()
				return pr
			}
		}
	}

	if p.fallback != nil {
		pr.State = StateFallbackAttempting
		pr.Attempts++
		text, err := p.fallback.RecognizePage(ctx, imagePath)
		if err == nil {
			pr.State = StateSucceeded
			pr.Engine = p.fallback.Name()
			pr.Text = text
			return pr
		}
		lastErr = fmt.Errorf("%v; fallback: %v", lastErr, err)
		p.log.Warn("ocr fallback failed", "page", page, "engine", p.fallback.Name(), "error", err)
	}

	pr.State = StateFailed
	if lastErr != nil {
		pr.Error = lastErr.Error()
	}
	return pr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
