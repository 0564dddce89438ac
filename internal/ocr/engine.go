package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
)

// Engine turns one page image into text.
type Engine interface {
	Name() string
	RecognizePage(ctx context.Context, imagePath string) (string, error)
}

const visionSystem = `Sen bir OCR motorusun. Goruntudeki TUM metni oldugu gibi, satir yapisini koruyarak cikar. Tablolari satir satir, hucre degerlerini sekme ile ayirarak yaz. Yorum ekleme, sadece goruntudeki metni dondur. Goruntu bos ya da okunamaz ise sadece [BOS SAYFA] yaz.`

// VisionEngine reads pages with the Anthropic vision API.
type VisionEngine struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewVisionEngine(apiKey, model string) *VisionEngine {
	return &VisionEngine{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.anthropic.com/v1/messages",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (e *VisionEngine) Name() string { return "vision" }

func (e *VisionEngine) RecognizePage(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read page image: %w", err)
	}

	mediaType := "image/jpeg"
	if strings.HasSuffix(strings.ToLower(imagePath), ".png") {
		mediaType = "image/png"
	}

	body := map[string]any{
		"model":      e.model,
		"max_tokens": 8192,
		"system":     visionSystem,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{
					"type": "image",
					"source": map[string]any{
						"type":       "base64",
						"media_type": mediaType,
						"data":       base64.StdEncoding.EncodeToString(data),
					},
				},
				{"type": "text", "text": "Bu sayfadaki tum metni cikar."},
			},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", &analyzer.RetryableError{Message: fmt.Sprintf("vision request: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read vision response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &analyzer.RetryableError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}
	var sb strings.Builder
	for _, c := range parsed.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "[BOS SAYFA]" {
		return "", nil
	}
	return text, nil
}

// TesseractEngine shells out to a locally installed tesseract binary.
// Used as the fallback when the vision API is unavailable.
type TesseractEngine struct {
	lang string
}

func NewTesseractEngine(lang string) *TesseractEngine {
	if lang == "" {
		lang = "tur"
	}
	return &TesseractEngine{lang: lang}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Available() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

func (e *TesseractEngine) RecognizePage(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", imagePath, "stdout", "-l", e.lang)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(out.String()), nil
}
