package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tbeckett/courserag/internal/rag"
	"github.com/tbeckett/courserag/internal/retrieve"
)

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Query is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "Query is required", http.StatusBadRequest)
		return
	}

	answer, err := s.answerer.Answer(r.Context(), req.Query)
	if errors.Is(err, rag.ErrEmptyQuery) {
		jsonError(w, "Query is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error("rag request failed", "error", err)
		s.jsonErrorDetails(w, "Internal server error during RAG processing", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Query is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "Query is required", http.StatusBadRequest)
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	results := s.retriever.Retrieve(r.Context(), req.Query, topK)
	if results == nil {
		results = []retrieve.Result{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"results":        results,
		"query":          req.Query,
		"retrievedCount": len(results),
	})
}
