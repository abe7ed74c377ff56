package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tbeckett/courserag/internal/ingest"
)

type indexRequest struct {
	Source     string `json:"source"` // "local" (default) or "sitemap"
	SitemapURL string `json:"sitemap_url"`
	MaxURLs    int    `json:"max_urls"`
}

// handleIndexContent starts a background indexing run and replies
// immediately with a job id to poll. Only one run at a time.
func (s *Server) handleIndexContent(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	// An empty body means a local content-directory run; anything else
	// must parse.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	mode := "local"
	if req.Source == "sitemap" || req.SitemapURL != "" {
		mode = "sitemap"
	}
	if mode == "sitemap" && req.SitemapURL == "" {
		req.SitemapURL = s.cfg.SitemapURL
	}
	if mode == "sitemap" && req.SitemapURL == "" {
		jsonError(w, "Sitemap URL is required", http.StatusBadRequest)
		return
	}
	if req.MaxURLs <= 0 {
		req.MaxURLs = s.cfg.MaxURLs
	}

	if !s.indexing.CompareAndSwap(false, true) {
		jsonError(w, "Indexing already in progress", http.StatusConflict)
		return
	}
	job := ingest.NewJob(uuid.NewString(), mode)
	s.jobs.Put(job)
	s.jobs.Cleanup()

	go s.runIndexing(job, req)

	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "Indexing started",
		"status":   "processing",
		"job_id":   job.ID,
		"poll_url": fmt.Sprintf("/api/index-content/%s/status", job.ID),
	})
}

func (s *Server) runIndexing(job *ingest.Job, req indexRequest) {
	defer s.indexing.Store(false)

	job.SetRunning()
	s.log.Info("indexing started", "job_id", job.ID, "mode", job.Mode)

	var res ingest.Result
	var err error
	if job.Mode == "sitemap" {
		res, err = s.ingestor.IngestSitemap(s.baseCtx, req.SitemapURL, req.MaxURLs)
	} else {
		res, err = s.ingestor.IngestLocal(s.baseCtx)
	}

	if err != nil {
		s.log.Error("indexing failed", "job_id", job.ID, "error", err)
		job.Fail(res, err.Error())
		return
	}
	s.log.Info("indexing completed",
		"job_id", job.ID,
		"documents", res.DocumentsProcessed,
		"chunks", res.ChunksIndexed,
	)
	job.Complete(res)
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.jobs.Get(jobID)
	if job == nil {
		jsonError(w, "Job not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}
