package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lettuce/party-app/internal/messaging"
	"github.com/lettuce/party-app/internal/social"
)

// socialResponse is the JSON shape of a social platform link.
type socialResponse struct {
	ID         string `json:"id"`
	Platform   string `json:"platform"`
	Username   string `json:"username"`
	ProfileURL string `json:"profile_url,omitempty"`
	IsVisible  bool   `json:"is_visible"`
}

func toSocialResponse(p social.Platform) socialResponse {
	return socialResponse{
		ID:         p.ID,
		Platform:   p.Platform,
		Username:   p.Username,
		ProfileURL: p.ProfileURL,
		IsVisible:  p.IsVisible,
	}
}

// ListSocials returns all of the authenticated user's social links,
// including hidden ones. Only the owner sees hidden links.
func (h *Handler) ListSocials(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	platforms, err := h.socials.ListForUser(r.Context(), userID)
	if err != nil {
		log.Printf("[api] list socials user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load socials")
		return
	}

	out := make([]socialResponse, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, toSocialResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"socials": out})
}

// AddSocial links a new social platform for the authenticated user. New
// links start hidden; visibility is an explicit opt-in.
func (h *Handler) AddSocial(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req struct {
		Platform   string `json:"platform"`
		Username   string `json:"username"`
		ProfileURL string `json:"profile_url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Platform == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "platform and username are required")
		return
	}

	p, err := h.socials.Add(r.Context(), userID, req.Platform, req.Username, req.ProfileURL)
	if err != nil {
		log.Printf("[api] add social user=%s platform=%s: %v", userID, req.Platform, err)
		writeError(w, http.StatusBadRequest, "failed to add social link")
		return
	}

	writeJSON(w, http.StatusCreated, toSocialResponse(*p))
}

// RemoveSocial unlinks a social platform for the authenticated user.
func (h *Handler) RemoveSocial(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	platformID := chi.URLParam(r, "platformID")

	if err := h.socials.Remove(r.Context(), userID, platformID); err != nil {
		log.Printf("[api] remove social user=%s id=%s: %v", userID, platformID, err)
		writeError(w, http.StatusInternalServerError, "failed to remove social link")
		return
	}

	h.publishSocialChange(r, userID)
	w.WriteHeader(http.StatusNoContent)
}

// SetSocialVisibility toggles whether a social link is shared with fellow
// event attendees.
func (h *Handler) SetSocialVisibility(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	platformID := chi.URLParam(r, "platformID")

	var req struct {
		IsVisible bool `json:"is_visible"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.socials.SetVisibility(r.Context(), userID, platformID, req.IsVisible); err != nil {
		log.Printf("[api] set visibility user=%s id=%s: %v", userID, platformID, err)
		writeError(w, http.StatusInternalServerError, "failed to update visibility")
		return
	}

	h.publishSocialChange(r, userID)
	w.WriteHeader(http.StatusNoContent)
}

// publishSocialChange notifies every event the user attends that their
// shared socials changed. Subscribers re-fetch via the attendees endpoint.
// Best-effort.
func (h *Handler) publishSocialChange(r *http.Request, userID string) {
	if h.pub == nil {
		return
	}

	eventIDs, err := h.events.UserEventIDs(r.Context(), userID)
	if err != nil {
		log.Printf("[api] user events for social change user=%s: %v", userID, err)
		return
	}

	data, err := json.Marshal(messaging.SocialChange{
		UserID: userID,
		Ts:     time.Now().Unix(),
	})
	if err != nil {
		log.Printf("[api] marshal social change: %v", err)
		return
	}

	for _, eventID := range eventIDs {
		if err := h.pub.PublishSocialChange(eventID, data); err != nil {
			log.Printf("[api] publish social change event=%s: %v", eventID, err)
		}
	}
}
