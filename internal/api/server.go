// Package api exposes the RAG pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tbeckett/courserag/internal/config"
	"github.com/tbeckett/courserag/internal/generate"
	"github.com/tbeckett/courserag/internal/ingest"
	"github.com/tbeckett/courserag/internal/rag"
	"github.com/tbeckett/courserag/internal/retrieve"
	"github.com/tbeckett/courserag/internal/userstore"
)

// Answerer runs the full retrieve-then-generate flow.
type Answerer interface {
	Answer(ctx context.Context, query string) (rag.Answer, error)
}

// DocRetriever serves the raw retrieval endpoint.
type DocRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) []retrieve.Result
}

// Ingestor runs content indexing in the background.
type Ingestor interface {
	IngestLocal(ctx context.Context) (ingest.Result, error)
	IngestSitemap(ctx context.Context, sitemapURL string, maxURLs int) (ingest.Result, error)
}

// Server is the HTTP API server.
type Server struct {
	router    chi.Router
	answerer  Answerer
	retriever DocRetriever
	ingestor  Ingestor
	jobs      *ingest.JobStore
	users     *userstore.Store
	llmStats  *generate.LLMStats
	llmModel  string

	// baseCtx outlives individual requests so background indexing can
	// finish after the triggering request returns.
	baseCtx  context.Context
	indexing atomic.Bool

	log *slog.Logger
	cfg config.Config
}

// NewServer creates and configures the HTTP server. baseCtx bounds
// background indexing runs; cancel it on shutdown.
func NewServer(baseCtx context.Context, answerer Answerer, retriever DocRetriever, ingestor Ingestor, jobs *ingest.JobStore, users *userstore.Store, llmStats *generate.LLMStats, llmModel string, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		answerer:  answerer,
		retriever: retriever,
		ingestor:  ingestor,
		jobs:      jobs,
		users:     users,
		llmStats:  llmStats,
		llmModel:  llmModel,
		baseCtx:   baseCtx,
		log:       log,
		cfg:       cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/api/health", s.handleHealth)

	r.Post("/api/rag", s.handleRAG)
	r.Post("/api/retrieve", s.handleRetrieve)

	r.Post("/api/index-content", s.handleIndexContent)
	r.Get("/api/index-content/{jobID}/status", s.handleIndexStatus)
	r.Get("/api/stats/llm", s.handleLLMStats)

	r.Post("/api/analytics", s.handleAnalytics)
	r.Post("/api/feedback", s.handleFeedback)

	r.Route("/api/user", func(r chi.Router) {
		r.Get("/{userId}", s.handleGetUser)
		r.Put("/profile", s.handleUpdateProfile)
		r.Post("/background", s.handleSaveBackground)
		r.Get("/preferences/{contentId}", s.handleGetContentPreferences)
		r.Post("/preferences", s.handleSaveContentPreferences)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func respondJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	respondJSON(w, code, map[string]string{"error": msg})
}

// jsonErrorDetails adds the underlying error to the body in dev mode.
func (s *Server) jsonErrorDetails(w http.ResponseWriter, msg string, err error, code int) {
	body := map[string]any{"error": msg}
	if s.cfg.DevMode && err != nil {
		body["details"] = err.Error()
	}
	respondJSON(w, code, body)
}
