package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
	"github.com/cbayrak/tenderdoc/internal/config"
	"github.com/cbayrak/tenderdoc/internal/validator"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   []analyzer.CompletionRequest
	respond func(req analyzer.CompletionRequest) (string, error)
}

func (f *fakeClient) Complete(_ context.Context, req analyzer.CompletionRequest) (analyzer.CompletionResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	text, err := f.respond(req)
	if err != nil {
		return analyzer.CompletionResponse{}, err
	}
	return analyzer.CompletionResponse{Text: text, InputTokens: 100, OutputTokens: 50}, nil
}

func testConfig() config.Config {
	return config.Config{
		FastModel:         "fast-model",
		DefaultModel:      "default-model",
		AnalyzeBatchSize:  4,
		Stage2MaxInputLen: 100000,
		MaxTokensPerChunk: 6000,
		MinTokensPerChunk: 500,
		CharsPerToken:     1.5,
		MinHeadingContent: 200,
		WorkerCount:       1,
		MaxQueueSize:      4,
		JobTTL:            time.Hour,
	}
}

const fullResponse = `{
  "ozet": "Ogrenci yurdu icin bir yillik yemek hizmeti alimi ihalesi.",
  "dates": [
    {"type": "ihale_tarihi", "value": "01.03.2024", "confidence": 0.9, "context": "ihale ilani"},
    {"type": "baslangic", "value": "01.04.2024", "confidence": 0.9, "context": "sozlesme"},
    {"type": "bitis", "value": "31.03.2025", "confidence": 0.8, "context": "sozlesme"},
    {"type": "son_basvuru", "value": "20.02.2024", "confidence": 0.8, "context": "ilan"}
  ],
  "amounts": [
    {"type": "yaklasik_maliyet", "value": "1.250.000 TL", "confidence": 0.9, "context": "idari sartname"},
    {"type": "birim_fiyat", "value": "45,00 TL", "confidence": 0.8, "context": "birim fiyat cetveli"},
    {"type": "gecici_teminat", "value": "%3", "confidence": 0.8, "context": "teminat"},
    {"type": "kesin_teminat", "value": "%6", "confidence": 0.8, "context": "teminat"}
  ],
  "penalties": [
    {"type": "gecikme", "rate": "%0,5", "period": "gunluk", "confidence": 0.8, "context": "cezalar"}
  ],
  "menus": {
    "meals": [{"type": "ogun", "value": "ogle yemegi", "confidence": 0.9, "context": "menu"}],
    "gramaj": [{"type": "pirinc", "value": "250g", "confidence": 0.9, "context": "gramaj"}],
    "service_times": [{"type": "ogle", "value": "12:00-13:30", "confidence": 0.9, "context": "servis"}]
  },
  "personnel": {
    "staff": [{"type": "asci", "value": "2 asci", "confidence": 0.8, "context": "personel"}],
    "qualifications": [{"type": "belge", "value": "usta belgesi", "confidence": 0.8, "context": "personel"}]
  },
  "critical_fields": {
    "iletisim": {"telefon": "0312 111 22 33"},
    "teminat_oranlari": {"gecici": "%3", "kesin": "%6"},
    "servis_saatleri": {"ogle": "12:00-13:30"},
    "mali_kriterler": {"ciro_sarti": "son yil cirosunun %25'i"},
    "tahmini_bedel": {"tutar": "1.250.000 TL", "para_birimi": "TL"}
  }
}`

func TestRun_SmallTextDocument(t *testing.T) {
	client := &fakeClient{respond: func(req analyzer.CompletionRequest) (string, error) {
		return fullResponse, nil
	}}
	r := NewRunner(testConfig(), client, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := &Job{ID: "j1", Filename: "sartname.txt"}

	data := []byte("MADDE 1. Isin konusu yemek hizmeti alimidir.\nIhale tarihi 01.03.2024 olarak belirlenmistir.\n")
	out, err := r.Run(context.Background(), "sartname.txt", data, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Success {
		t.Fatalf("output = %+v", out)
	}
	if out.DocumentID == "" {
		t.Error("document id missing")
	}
	if len(client.calls) != 1 {
		t.Fatalf("calls = %d, tiny document must use one pass", len(client.calls))
	}
	if client.calls[0].Model != "default-model" {
		t.Errorf("model = %q", client.calls[0].Model)
	}
	if out.Analysis.Method != "single-stage" {
		t.Errorf("method = %q", out.Analysis.Method)
	}
	if out.Analysis.Summary == "" {
		t.Error("summary missing")
	}
	if got := out.Analysis.CriticalFields["iletisim"]["telefon"]; got != "0312 111 22 33" {
		t.Errorf("telefon = %q", got)
	}
	if out.Validation == nil || !out.Validation.Valid {
		t.Fatalf("validation = %+v", out.Validation)
	}
	if len(out.Validation.SchemaErrors) > 0 {
		t.Errorf("schema errors = %v", out.Validation.SchemaErrors)
	}
	if out.Meta.PipelineVersion != Version {
		t.Errorf("version = %q", out.Meta.PipelineVersion)
	}
	if out.Meta.Stats.InputTokens == 0 {
		t.Error("token usage not reported")
	}
	if job.Status != StatusValidating {
		t.Errorf("job status = %q", job.Status)
	}
}

func TestRun_ZIPIsRejected(t *testing.T) {
	client := &fakeClient{respond: func(analyzer.CompletionRequest) (string, error) {
		t.Error("no model calls expected")
		return "", nil
	}}
	r := NewRunner(testConfig(), client, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := &Job{ID: "j2", Filename: "belgeler.zip"}

	zipBytes := append([]byte("PK\x03\x04"), make([]byte, 32)...)
	out, err := r.Run(context.Background(), "belgeler.zip", zipBytes, job)
	if err == nil {
		t.Fatal("ZIP must be rejected at the runner")
	}
	if out.Error == nil || out.Error.Stage != "extract" {
		t.Fatalf("error info = %+v", out.Error)
	}
	if out.DocumentID == "" {
		t.Error("failures must still carry a document id")
	}
}

func TestRun_EmptyDocumentFails(t *testing.T) {
	client := &fakeClient{respond: func(analyzer.CompletionRequest) (string, error) {
		t.Error("no model calls expected")
		return "", nil
	}}
	r := NewRunner(testConfig(), client, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := &Job{ID: "j3", Filename: "bos.txt"}

	_, err := r.Run(context.Background(), "bos.txt", []byte("   \n  "), job)
	if err == nil {
		t.Fatal("empty document must fail")
	}
	if !strings.Contains(err.Error(), "extract") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_AnalysisRetriesOnTransientError(t *testing.T) {
	attempts := 0
	client := &fakeClient{respond: func(req analyzer.CompletionRequest) (string, error) {
		attempts++
		if attempts == 1 {
			return "", &analyzer.RetryableError{StatusCode: 529, Message: "overloaded"}
		}
		return fullResponse, nil
	}}
	r := NewRunner(testConfig(), client, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := &Job{ID: "j4", Filename: "sartname.txt"}

	out, err := r.Run(context.Background(), "sartname.txt", []byte("Ihale dokumani metni."), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d", attempts)
	}
	if !out.Success {
		t.Fatalf("output = %+v", out)
	}
	snap := job.Snapshot()
	if len(snap.Progress.Errors) == 0 {
		t.Error("retried attempt must be recorded on the job")
	}
}

func TestValidationOutputMatchesSchema(t *testing.T) {
	out := &FinalOutput{
		DocumentID: "doc-1",
		Success:    true,
		Analysis: Analysis{
			Summary:        "ozet",
			CriticalFields: map[string]map[string]string{},
			Method:         "two-stage",
		},
		Validation: &validator.Report{Valid: true, CompletenessScore: 1, QualityScore: 1, Checks: []validator.Check{}},
		Meta: Meta{
			PipelineVersion: Version,
			FileInfo:        FileInfo{Name: "a.pdf", Kind: "pdf"},
		},
	}
	if errs := validator.CheckSchema(out); errs != nil {
		t.Fatalf("schema errors = %v", errs)
	}
}
