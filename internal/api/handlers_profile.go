package api

import (
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/lettuce/party-app/internal/profile"
)

// UpsertProfile creates or updates the authenticated user's profile.
func (h *Handler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "email and display_name are required")
		return
	}

	p := &profile.Profile{
		ID:          userID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	}
	if err := h.profiles.Upsert(r.Context(), p); err != nil {
		log.Printf("[api] upsert profile user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":           p.ID,
		"email":        p.Email,
		"display_name": p.DisplayName,
		"avatar_url":   p.AvatarURL,
	})
}

// GetInterests returns the authenticated user's interest tags.
func (h *Handler) GetInterests(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	interests, err := h.profiles.Interests(r.Context(), userID)
	if err != nil {
		log.Printf("[api] interests user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load interests")
		return
	}
	if interests == nil {
		interests = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"interests": interests})
}

// SetInterests replaces the authenticated user's interest tags.
func (h *Handler) SetInterests(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req struct {
		Interests []string `json:"interests"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.profiles.SetInterests(r.Context(), userID, req.Interests); err != nil {
		log.Printf("[api] set interests user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to save interests")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddInterest adds a single interest tag for the authenticated user.
func (h *Handler) AddInterest(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req struct {
		Interest string `json:"interest"`
	}
	if err := decodeBody(r, &req); err != nil || req.Interest == "" {
		writeError(w, http.StatusBadRequest, "interest is required")
		return
	}

	if err := h.profiles.AddInterest(r.Context(), userID, req.Interest); err != nil {
		log.Printf("[api] add interest user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to add interest")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveInterest removes a single interest tag for the authenticated user.
// The interest arrives URL-encoded in the path.
func (h *Handler) RemoveInterest(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	interest, err := url.PathUnescape(chi.URLParam(r, "interest"))
	if err != nil || interest == "" {
		writeError(w, http.StatusBadRequest, "interest is required")
		return
	}

	if err := h.profiles.RemoveInterest(r.Context(), userID, interest); err != nil {
		log.Printf("[api] remove interest user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to remove interest")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
