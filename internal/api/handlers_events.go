package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
		jsonError(w, "Event type is required", http.StatusBadRequest)
		return
	}

	if err := s.users.RecordAnalytics(r.Context(), req.Event, req.Data); err != nil {
		s.log.Error("analytics insert failed", "event", req.Event, "error", err)
		jsonError(w, "Failed to record analytics", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "Analytics recorded"})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID   string `json:"messageId"`
		Feedback    string `json:"feedback"`
		MessageText string `json:"messageText"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MessageID == "" || req.Feedback == "" {
		jsonError(w, "Message ID and feedback are required", http.StatusBadRequest)
		return
	}

	if err := s.users.RecordFeedback(r.Context(), req.MessageID, req.Feedback, req.MessageText); err != nil {
		s.log.Error("feedback insert failed", "message_id", req.MessageID, "error", err)
		jsonError(w, "Failed to record feedback", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "Feedback recorded"})
}
