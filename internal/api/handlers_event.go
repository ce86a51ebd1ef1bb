package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lettuce/party-app/internal/event"
	"github.com/lettuce/party-app/internal/messaging"
	"github.com/lettuce/party-app/internal/ratelimit"
)

// eventResponse is the JSON shape of an event on the wire.
type eventResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Interests     []string   `json:"interests"`
	PartyCode     string     `json:"party_code"`
	CreatedBy     string     `json:"created_by"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	MaxAttendees  int        `json:"max_attendees"`
	Tier          string     `json:"tier"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	AttendeeCount int        `json:"attendee_count"`
}

func toEventResponse(ev *event.Event, attendeeCount int) eventResponse {
	interests := ev.Interests
	if interests == nil {
		interests = []string{}
	}
	return eventResponse{
		ID:            ev.ID,
		Name:          ev.Name,
		Description:   ev.Description,
		Interests:     interests,
		PartyCode:     ev.PartyCode,
		CreatedBy:     ev.CreatedBy,
		StartTime:     ev.StartTime,
		EndTime:       ev.EndTime,
		MaxAttendees:  ev.MaxAttendees,
		Tier:          string(ev.Tier),
		IsActive:      ev.IsActive,
		CreatedAt:     ev.CreatedAt,
		AttendeeCount: attendeeCount,
	}
}

// CreateEvent creates a new event with a generated party code. The creator
// is joined automatically as its first attendee.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req struct {
		Name        string     `json:"name"`
		Description string     `json:"description"`
		Interests   []string   `json:"interests"`
		StartTime   time.Time  `json:"start_time"`
		EndTime     *time.Time `json:"end_time"`
		Tier        string     `json:"tier"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.StartTime.IsZero() {
		writeError(w, http.StatusBadRequest, "start_time is required")
		return
	}
	tier := event.Tier(req.Tier)
	if req.Tier == "" {
		tier = event.TierFree
	}
	if !tier.Valid() {
		writeError(w, http.StatusBadRequest, "invalid tier")
		return
	}

	ev, err := h.events.Create(r.Context(), userID, req.Name, req.Description, req.Interests, req.StartTime, req.EndTime, tier)
	if err != nil {
		log.Printf("[api] create event user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(ev, 1))
}

// GetEvent returns a single event by ID.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	ev, err := h.events.GetByID(r.Context(), eventID)
	if err != nil {
		log.Printf("[api] get event %s: %v", eventID, err)
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	if ev == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	count, err := h.events.AttendeeCount(r.Context(), ev.ID)
	if err != nil {
		log.Printf("[api] attendee count %s: %v", ev.ID, err)
	}
	writeJSON(w, http.StatusOK, toEventResponse(ev, count))
}

// JoinEvent joins the authenticated user to an active event by its party
// code. Joining an event the user already attends succeeds idempotently.
func (h *Handler) JoinEvent(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	// Per-user join throttle on top of the per-IP route limit.
	if h.limiter != nil {
		allowed, _ := h.limiter.Allow(r.Context(), userID, ratelimit.RuleJoin)
		if !allowed {
			writeError(w, http.StatusTooManyRequests, "too many join attempts")
			return
		}
	}

	var req struct {
		PartyCode string `json:"party_code"`
	}
	if err := decodeBody(r, &req); err != nil || req.PartyCode == "" {
		writeError(w, http.StatusBadRequest, "party_code is required")
		return
	}

	ev, err := h.events.Join(r.Context(), req.PartyCode, userID)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrNotFound):
			writeError(w, http.StatusNotFound, "no active event with that party code")
		case errors.Is(err, event.ErrFull):
			writeError(w, http.StatusConflict, "event is at full capacity")
		default:
			log.Printf("[api] join code=%s user=%s: %v", req.PartyCode, userID, err)
			writeError(w, http.StatusInternalServerError, "failed to join event")
		}
		return
	}

	h.publishAttendeeChange(ev.ID, userID, "join")

	count, err := h.events.AttendeeCount(r.Context(), ev.ID)
	if err != nil {
		log.Printf("[api] attendee count %s: %v", ev.ID, err)
	}
	writeJSON(w, http.StatusOK, toEventResponse(ev, count))
}

// LeaveEvent removes the authenticated user from an event's attendee list.
func (h *Handler) LeaveEvent(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	eventID := chi.URLParam(r, "id")

	if err := h.events.Leave(r.Context(), eventID, userID); err != nil {
		log.Printf("[api] leave event=%s user=%s: %v", eventID, userID, err)
		writeError(w, http.StatusInternalServerError, "failed to leave event")
		return
	}

	h.publishAttendeeChange(eventID, userID, "leave")
	w.WriteHeader(http.StatusNoContent)
}

// DeactivateEvent marks an event inactive. Only the creator may do this.
func (h *Handler) DeactivateEvent(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	eventID := chi.URLParam(r, "id")

	ev, err := h.events.GetByID(r.Context(), eventID)
	if err != nil {
		log.Printf("[api] get event %s: %v", eventID, err)
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	if ev == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if ev.CreatedBy != userID {
		writeError(w, http.StatusForbidden, "only the creator can deactivate an event")
		return
	}

	if err := h.events.Deactivate(r.Context(), eventID); err != nil {
		log.Printf("[api] deactivate event=%s: %v", eventID, err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// attendeeResponse is one attendee row with presence and visible socials.
type attendeeResponse struct {
	UserID      string           `json:"user_id"`
	DisplayName string           `json:"display_name"`
	AvatarURL   string           `json:"avatar_url,omitempty"`
	JoinedAt    time.Time        `json:"joined_at"`
	IsOnline    bool             `json:"is_online"`
	Socials     []socialResponse `json:"socials"`
}

// EventAttendees returns the attendee list for an event, annotated with each
// attendee's online state and the social links they chose to share.
func (h *Handler) EventAttendees(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	ev, err := h.events.GetByID(r.Context(), eventID)
	if err != nil {
		log.Printf("[api] get event %s: %v", eventID, err)
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	if ev == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	attendees, err := h.events.Attendees(r.Context(), eventID)
	if err != nil {
		log.Printf("[api] attendees event=%s: %v", eventID, err)
		writeError(w, http.StatusInternalServerError, "failed to load attendees")
		return
	}

	userIDs := make([]string, len(attendees))
	for i, a := range attendees {
		userIDs[i] = a.UserID
	}

	// Presence and socials are best-effort annotations: a Redis or query
	// failure degrades the response rather than failing it.
	online := make(map[string]bool)
	if h.presence != nil {
		ids, err := h.presence.OnlineIDs(r.Context(), eventID)
		if err != nil {
			log.Printf("[api] online ids event=%s: %v", eventID, err)
		}
		for _, id := range ids {
			online[id] = true
		}
	}

	visible, err := h.socials.VisibleForUsers(r.Context(), userIDs)
	if err != nil {
		log.Printf("[api] visible socials event=%s: %v", eventID, err)
	}

	out := make([]attendeeResponse, 0, len(attendees))
	for _, a := range attendees {
		socials := make([]socialResponse, 0, len(visible[a.UserID]))
		for _, p := range visible[a.UserID] {
			socials = append(socials, toSocialResponse(p))
		}
		out = append(out, attendeeResponse{
			UserID:      a.UserID,
			DisplayName: a.DisplayName,
			AvatarURL:   a.AvatarURL,
			JoinedAt:    a.JoinedAt,
			IsOnline:    online[a.UserID],
			Socials:     socials,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"attendees": out})
}

// publishAttendeeChange notifies gateway subscribers that the attendee list
// of an event changed. Best-effort.
func (h *Handler) publishAttendeeChange(eventID, userID, action string) {
	if h.pub == nil {
		return
	}
	data, err := json.Marshal(messaging.AttendeeChange{
		EventID: eventID,
		UserID:  userID,
		Action:  action,
		Ts:      time.Now().Unix(),
	})
	if err != nil {
		log.Printf("[api] marshal attendee change: %v", err)
		return
	}
	if err := h.pub.PublishAttendeeChange(eventID, data); err != nil {
		log.Printf("[api] publish attendee change event=%s: %v", eventID, err)
	}
}
