package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cbayrak/tenderdoc/internal/analyzer"
	"github.com/cbayrak/tenderdoc/internal/api"
	"github.com/cbayrak/tenderdoc/internal/config"
	"github.com/cbayrak/tenderdoc/internal/ocr"
	"github.com/cbayrak/tenderdoc/internal/pipeline"
)

func main() {
	// Local development convenience, missing file is fine.
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	client := analyzer.NewAnthropicClient(cfg.AnthropicAPIKey)

	vision := ocr.NewVisionEngine(cfg.AnthropicAPIKey, cfg.DefaultModel)
	var fallback ocr.Engine
	if tess := ocr.NewTesseractEngine("tur"); tess.Available() {
		fallback = tess
	} else {
		log.Warn("tesseract not found, OCR runs without a local fallback engine")
	}
	ocrProc := ocr.New(vision, fallback, ocr.Config{
		ParallelPages: cfg.OCRParallelPages,
		MaxRetries:    cfg.OCRMaxRetries,
		BackoffBase:   cfg.OCRBackoffBase,
		RenderDPI:     cfg.OCRRenderDPI,
	}, log)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, client, ocrProc, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		client.Close()
	}()

	log.Info("starting tenderdoc", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
