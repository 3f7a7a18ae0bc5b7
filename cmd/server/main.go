package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgallion1/parsemed/internal/api"
	"github.com/dgallion1/parsemed/internal/blob"
	"github.com/dgallion1/parsemed/internal/chunker"
	"github.com/dgallion1/parsemed/internal/config"
	"github.com/dgallion1/parsemed/internal/extract"
	"github.com/dgallion1/parsemed/internal/pipeline"
	"github.com/dgallion1/parsemed/internal/sections"
	"github.com/dgallion1/parsemed/internal/store"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize collaborators.
	seg, err := sections.FromFile(cfg.HeadingsFile)
	if err != nil {
		log.Error("load headings", "file", cfg.HeadingsFile, "error", err)
		os.Exit(1)
	}
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		log.Error("init blob storage", "backend", cfg.BlobBackend, "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Error("create database directory", "error", err)
		os.Exit(1)
	}
	records, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("open record store", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}

	base, closeLLM := newCompleter(cfg)
	stats := extract.NewLLMStats(time.Hour)
	llm := extract.NewLimited(base, extract.LimitOptions{
		TokensPerSecond: cfg.LLMTokensPerSecond,
		BurstTokens:     cfg.LLMBurstTokens,
		MaxRetries:      extract.MaxRetries,
	}, stats, log.With("component", "llm"))

	// Initialize pipeline.
	chunkCfg := chunker.Config{ChunkSize: cfg.DefaultChunkSize, ChunkOverlap: cfg.DefaultChunkOverlap}
	ex := pipeline.NewExtractor(llm, chunkCfg, cfg.MaxConcurrentExtract, log)
	saver := pipeline.NewSaver(blobs, records, log)
	orch := pipeline.NewOrchestrator(cfg, ex, saver, records, seg, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(api.Deps{
		Orchestrator: orch,
		Extractor:    ex,
		Saver:        saver,
		Records:      records,
		Segmenter:    seg,
		Stats:        stats,
	}, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
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

		closeLLM()
		records.Close()
	}()

	log.Info("starting parsemed",
		"port", cfg.Port,
		"provider", cfg.LLMProvider,
		"model", llm.Model(),
		"blob_backend", cfg.BlobBackend,
		"headings", len(seg.Vocabulary()),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "s3":
		return blob.NewS3Store(ctx, blob.S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
	case "dir":
		return blob.NewDirStore(cfg.BlobDir)
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
}

func newCompleter(cfg config.Config) (extract.Completer, func()) {
	if cfg.LLMProvider == "anthropic" {
		c := extract.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMMaxTokens)
		return c, c.Close
	}
	c := extract.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMMaxTokens, cfg.LLMTemperature)
	return c, func() {}
}
