// Package api implements the REST surface of the party app: event creation
// and party-code joins, interest management, social platform links, and the
// recommendation endpoints. Handlers depend on small store interfaces so
// tests can swap in fakes without a database.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/lettuce/party-app/internal/event"
	"github.com/lettuce/party-app/internal/profile"
	"github.com/lettuce/party-app/internal/ratelimit"
	"github.com/lettuce/party-app/internal/recommend"
	"github.com/lettuce/party-app/internal/social"
)

// ProfileStore is the profile and interest persistence surface used by handlers.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
	Upsert(ctx context.Context, p *profile.Profile) error
	Interests(ctx context.Context, userID string) ([]string, error)
	SetInterests(ctx context.Context, userID string, interests []string) error
	AddInterest(ctx context.Context, userID, interest string) error
	RemoveInterest(ctx context.Context, userID, interest string) error
}

// EventStore is the event and attendance persistence surface used by handlers.
type EventStore interface {
	Create(ctx context.Context, createdBy, name, description string, interests []string, startTime time.Time, endTime *time.Time, tier event.Tier) (*event.Event, error)
	GetByID(ctx context.Context, eventID string) (*event.Event, error)
	AttendeeCount(ctx context.Context, eventID string) (int, error)
	Attendees(ctx context.Context, eventID string) ([]event.Attendee, error)
	Join(ctx context.Context, partyCode, userID string) (*event.Event, error)
	Leave(ctx context.Context, eventID, userID string) error
	Deactivate(ctx context.Context, eventID string) error
	UserEventIDs(ctx context.Context, userID string) ([]string, error)
}

// SocialStore is the social platform link persistence surface used by handlers.
type SocialStore interface {
	Add(ctx context.Context, userID, platform, username, profileURL string) (*social.Platform, error)
	Remove(ctx context.Context, userID, platformID string) error
	SetVisibility(ctx context.Context, userID, platformID string, visible bool) error
	ListForUser(ctx context.Context, userID string) ([]social.Platform, error)
	VisibleForUsers(ctx context.Context, userIDs []string) (map[string][]social.Platform, error)
}

// PresenceReader reports who is online at an event. Implemented by the
// Redis presence store; nil-safe in handlers for deployments without Redis.
type PresenceReader interface {
	OnlineIDs(ctx context.Context, eventID string) ([]string, error)
	OnlineCount(ctx context.Context, eventID string) (int, error)
}

// Recommender computes event and people recommendations. Implemented by
// recommend.Engine.
type Recommender interface {
	RecommendEvents(ctx context.Context, userID string, limit int) []recommend.RecommendedEvent
	RecommendPeople(ctx context.Context, userID string, limit int) []recommend.RecommendedPerson
}

// Publisher fans realtime change notifications out to gateway subscribers.
// Implemented by messaging.NATSClient; nil disables publishing.
type Publisher interface {
	PublishAttendeeChange(eventID string, data []byte) error
	PublishSocialChange(eventID string, data []byte) error
}

// Limiter throttles per-identity request rates. Implemented by
// ratelimit.Limiter; nil disables throttling.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// Handler bundles the dependencies behind every API endpoint.
type Handler struct {
	profiles ProfileStore
	events   EventStore
	socials  SocialStore
	presence PresenceReader
	engine   Recommender
	pub      Publisher
	limiter  Limiter
}

// NewHandler wires the API handlers to their backing stores. presence, pub
// and limiter may be nil.
func NewHandler(profiles ProfileStore, events EventStore, socials SocialStore, presence PresenceReader, engine Recommender, pub Publisher, limiter Limiter) *Handler {
	return &Handler{
		profiles: profiles,
		events:   events,
		socials:  socials,
		presence: presence,
		engine:   engine,
		pub:      pub,
		limiter:  limiter,
	}
}

// userIDHeader carries the authenticated user's ID, set by the auth proxy in
// front of this service.
const userIDHeader = "X-User-ID"

// requestUser extracts the authenticated user ID from the request. An empty
// return means the caller is unauthenticated.
func requestUser(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON serializes v to the response with the given status code. Encoding
// failures are logged; the status line has already been sent at that point.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

// writeError sends a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
