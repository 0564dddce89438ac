package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
)

type fakeEngine struct {
	mu        sync.Mutex
	name      string
	calls     []string
	recognize func(imagePath string, call int) (string, error)
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) RecognizePage(_ context.Context, imagePath string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, imagePath)
	n := len(f.calls)
	f.mu.Unlock()
	return f.recognize(imagePath, n)
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestProcessor(primary, fallback Engine) *Processor {
	p := New(primary, fallback, Config{
		ParallelPages: 2,
		MaxRetries:    3,
		BackoffBase:   2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func pagePaths(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join("pages", fmt.Sprintf("page-%d.jpg", i+1))
	}
	return paths
}

func TestRecognize_PrimarySucceeds(t *testing.T) {
	primary := &fakeEngine{name: "vision", recognize: func(path string, _ int) (string, error) {
		return "metin " + path, nil
	}}
	fallback := &fakeEngine{name: "tesseract", recognize: func(string, int) (string, error) {
		t.Error("fallback must not run when primary succeeds")
		return "", nil
	}}

	res := newTestProcessor(primary, fallback).processImages(context.Background(), pagePaths(3))
	if res.Succeeded != 3 || res.Failed != 0 {
		t.Fatalf("succeeded=%d failed=%d", res.Succeeded, res.Failed)
	}
	for i, pr := range res.Pages {
		if pr.Page != i+1 {
			t.Errorf("page %d out of order: %d", i, pr.Page)
		}
		if pr.State != StateSucceeded || pr.Engine != "vision" || pr.Attempts != 1 {
			t.Errorf("page %d: %+v", i+1, pr)
		}
	}
}

func TestRecognize_RetriesThenFallback(t *testing.T) {
	primary := &fakeEngine{name: "vision", recognize: func(string, int) (string, error) {
		return "", &analyzer.RetryableError{StatusCode: 529, Message: "overloaded"}
	}}
	fallback := &fakeEngine{name: "tesseract", recognize: func(string, int) (string, error) {
		return "yerel motor metni", nil
	}}

	res := newTestProcessor(primary, fallback).processImages(context.Background(), pagePaths(1))
	if primary.callCount() != 3 {
		t.Errorf("primary attempts = %d, want 3 before fallback", primary.callCount())
	}
	if fallback.callCount() != 1 {
		t.Errorf("fallback attempts = %d, want exactly one", fallback.callCount())
	}
	pr := res.Pages[0]
	if pr.State != StateSucceeded || pr.Engine != "tesseract" {
		t.Fatalf("page = %+v", pr)
	}
	if pr.Attempts != 4 {
		t.Errorf("attempts = %d, want 3 primary + 1 fallback", pr.Attempts)
	}
	if res.Text != "yerel motor metni" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestRecognize_NonRetryableSkipsRemainingAttempts(t *testing.T) {
	primary := &fakeEngine{name: "vision", recognize: func(string, int) (string, error) {
		return "", errors.New("api status 400: bad image")
	}}
	fallback := &fakeEngine{name: "tesseract", recognize: func(string, int) (string, error) {
		return "kurtarilan", nil
	}}

	res := newTestProcessor(primary, fallback).processImages(context.Background(), pagePaths(1))
	if primary.callCount() != 1 {
		t.Errorf("primary attempts = %d, non-retryable error must not be retried", primary.callCount())
	}
	if res.Pages[0].State != StateSucceeded {
		t.Fatalf("page = %+v", res.Pages[0])
	}
}

func TestRecognize_PageFailureDoesNotAbortDocument(t *testing.T) {
	primary := &fakeEngine{name: "vision", recognize: func(path string, _ int) (string, error) {
		if path == filepath.Join("pages", "page-2.jpg") {
			return "", errors.New("unreadable page")
		}
		return "sayfa " + path, nil
	}}
	fallback := &fakeEngine{name: "tesseract", recognize: func(string, int) (string, error) {
		return "", errors.New("no text found")
	}}

	res := newTestProcessor(primary, fallback).processImages(context.Background(), pagePaths(3))
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d", res.Succeeded, res.Failed)
	}
	bad := res.Pages[1]
	if bad.State != StateFailed {
		t.Errorf("page 2 state = %q", bad.State)
	}
	if bad.Error == "" {
		t.Error("failed page must carry its error")
	}
	if res.Pages[0].State != StateSucceeded || res.Pages[2].State != StateSucceeded {
		t.Error("other pages must still succeed")
	}
}

func TestRecognize_NoFallbackConfigured(t *testing.T) {
	primary := &fakeEngine{name: "vision", recognize: func(string, int) (string, error) {
		return "", &analyzer.RetryableError{StatusCode: 500}
	}}

	res := newTestProcessor(primary, nil).processImages(context.Background(), pagePaths(1))
	if res.Pages[0].State != StateFailed {
		t.Fatalf("page = %+v", res.Pages[0])
	}
	if res.Pages[0].Attempts != 3 {
		t.Errorf("attempts = %d", res.Pages[0].Attempts)
	}
}

func TestRecognize_BackoffDoubles(t *testing.T) {
	var delays []time.Duration
	primary := &fakeEngine{name: "vision", recognize: func(string, int) (string, error) {
		return "", &analyzer.RetryableError{StatusCode: 529}
	}}
	p := New(primary, nil, Config{ParallelPages: 1, MaxRetries: 3, BackoffBase: 2 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	p.processImages(context.Background(), pagePaths(1))
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v", delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestPageNumberSort(t *testing.T) {
	if n := pageNumber("/tmp/x/page-12.jpg"); n != 12 {
		t.Errorf("pageNumber = %d", n)
	}
	if n := pageNumber("/tmp/x/page-2.jpg"); n != 2 {
		t.Errorf("pageNumber = %d", n)
	}
}
