package api

import (
	"net/http"
	"strconv"

	"github.com/lettuce/party-app/internal/recommend"
)

// maxRecommendationLimit caps the client-supplied limit parameter.
const maxRecommendationLimit = 50

// parseLimit reads the optional "limit" query parameter. Zero means "use the
// engine default".
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0
	}
	if n > maxRecommendationLimit {
		return maxRecommendationLimit
	}
	return n
}

// RecommendEvents returns events ranked by interest overlap for the
// authenticated user. The engine is best-effort: backend trouble yields an
// empty list, never an error status.
func (h *Handler) RecommendEvents(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	recs := h.engine.RecommendEvents(r.Context(), userID, parseLimit(r))
	if recs == nil {
		recs = []recommend.RecommendedEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": recs})
}

// RecommendPeople returns other attendees ranked by shared interests and
// mutual events for the authenticated user.
func (h *Handler) RecommendPeople(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	recs := h.engine.RecommendPeople(r.Context(), userID, parseLimit(r))
	if recs == nil {
		recs = []recommend.RecommendedPerson{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"people": recs})
}
