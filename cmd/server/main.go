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

	"github.com/tbeckett/courserag/internal/api"
	"github.com/tbeckett/courserag/internal/config"
	"github.com/tbeckett/courserag/internal/embed"
	"github.com/tbeckett/courserag/internal/generate"
	"github.com/tbeckett/courserag/internal/ingest"
	"github.com/tbeckett/courserag/internal/rag"
	"github.com/tbeckett/courserag/internal/retrieve"
	"github.com/tbeckett/courserag/internal/userstore"
	"github.com/tbeckett/courserag/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Vector store.
	store := vectorstore.NewClient(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.QdrantCollection,
		cfg.UpsertBatchSize, cfg.RequestTimeout, log)

	// Embedder: Cohere when a key is configured, otherwise the
	// deterministic fallback (keyword retrieval instead of vector search).
	var embedder embed.Embedder
	var cohere *embed.CohereClient
	if cfg.CohereAPIKey != "" {
		cohere = embed.NewCohereClient(cfg.CohereAPIKey, cfg.CohereModel, cfg.EmbedDimension, cfg.RequestTimeout)
		embedder = cohere
		log.Info("using cohere embeddings", "model", cfg.CohereModel, "dimension", cfg.EmbedDimension)
	} else {
		embedder = embed.NewDeterministic(cfg.EmbedDimension)
		log.Warn("COHERE_API_KEY not set, using deterministic embeddings with keyword retrieval")
	}

	// Generator: optional; without it /api/rag serves retrieval-only
	// fallback responses.
	llmStats := generate.NewLLMStats(time.Hour)
	var generator rag.Generator
	var openrouter *generate.OpenRouterClient
	if cfg.OpenRouterAPIKey != "" {
		openrouter = generate.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL, llmStats)
		generator = openrouter
		log.Info("using openrouter generation", "model", cfg.OpenRouterModel)
	} else {
		log.Warn("OPENROUTER_API_KEY not set, serving retrieval-only responses")
	}

	users := userstore.New(ctx, cfg.MongoURL, cfg.MongoDatabase, log)

	retriever := retrieve.New(embedder, store, 0, log)
	orchestrator := rag.New(retriever, generator, cfg.TopK, cfg.MaxContextChars, log)
	pipeline := ingest.NewPipeline(embedder, store, ingest.Options{
		ContentDir:     cfg.ContentDir,
		MaxChunkLength: cfg.MaxChunkLength,
		EmbedBatchSize: cfg.EmbedBatchSize,
		FetchDelay:     cfg.FetchDelay,
	}, log)
	jobs := ingest.NewJobStore(cfg.JobTTL)

	srv := api.NewServer(ctx, orchestrator, retriever, pipeline, jobs, users,
		llmStats, cfg.OpenRouterModel, log, cfg)

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

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if cohere != nil {
			cohere.Close()
		}
		if openrouter != nil {
			openrouter.Close()
		}
		store.Close()
		if err := users.Close(shutdownCtx); err != nil {
			log.Warn("mongodb disconnect failed", "error", err)
		}
	}()

	log.Info("starting courserag", "port", cfg.Port, "collection", cfg.QdrantCollection)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
