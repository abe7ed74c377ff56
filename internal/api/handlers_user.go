package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tbeckett/courserag/internal/userstore"
)

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if !s.users.Available() {
		respondJSON(w, http.StatusOK, userstore.MockProfile(userID))
		return
	}

	profile, err := s.users.GetProfile(r.Context(), userID)
	if errors.Is(err, userstore.ErrNotFound) {
		jsonError(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get user failed", "user_id", userID, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string         `json:"userId"`
		Preferences map[string]any `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !s.users.Available() {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"message":     "Profile updated successfully (mock mode)",
			"preferences": req.Preferences,
		})
		return
	}

	err := s.users.UpdatePreferences(r.Context(), req.UserID, req.Preferences)
	if errors.Is(err, userstore.ErrNotFound) {
		jsonError(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("update profile failed", "user_id", req.UserID, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Profile updated successfully",
		"preferences": req.Preferences,
	})
}

func (s *Server) handleSaveBackground(w http.ResponseWriter, r *http.Request) {
	var bg userstore.Background
	if err := json.NewDecoder(r.Body).Decode(&bg); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !s.users.Available() {
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Background information saved successfully (mock mode)",
		})
		return
	}

	err := s.users.SaveBackground(r.Context(), bg)
	if errors.Is(err, userstore.ErrNotFound) {
		jsonError(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("save background failed", "user_id", bg.UserID, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Background information saved successfully",
	})
}

func (s *Server) handleGetContentPreferences(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentId")

	if !s.users.Available() {
		respondJSON(w, http.StatusOK, userstore.DefaultContentPreferences())
		return
	}

	prefs, err := s.users.GetContentPreferences(r.Context(), contentID)
	if err != nil {
		s.log.Error("get preferences failed", "content_id", contentID, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleSaveContentPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentID   string                       `json:"contentId"`
		Preferences userstore.ContentPreferences `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	message := fmt.Sprintf("Preferences saved for content %s", req.ContentID)
	if !s.users.Available() {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"message":     message + " (mock mode)",
			"contentId":   req.ContentID,
			"preferences": req.Preferences,
		})
		return
	}

	if err := s.users.SaveContentPreferences(r.Context(), req.ContentID, req.Preferences); err != nil {
		s.log.Error("save preferences failed", "content_id", req.ContentID, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     message,
		"contentId":   req.ContentID,
		"preferences": req.Preferences,
	})
}
