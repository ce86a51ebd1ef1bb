package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lettuce/party-app/internal/event"
	"github.com/lettuce/party-app/internal/profile"
	"github.com/lettuce/party-app/internal/ratelimit"
	"github.com/lettuce/party-app/internal/recommend"
	"github.com/lettuce/party-app/internal/social"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeProfiles struct {
	interests map[string][]string
	upserted  []*profile.Profile
}

func (f *fakeProfiles) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	return nil, nil
}

func (f *fakeProfiles) Upsert(ctx context.Context, p *profile.Profile) error {
	f.upserted = append(f.upserted, p)
	return nil
}

func (f *fakeProfiles) Interests(ctx context.Context, userID string) ([]string, error) {
	return f.interests[userID], nil
}

func (f *fakeProfiles) SetInterests(ctx context.Context, userID string, interests []string) error {
	if f.interests == nil {
		f.interests = make(map[string][]string)
	}
	f.interests[userID] = interests
	return nil
}

func (f *fakeProfiles) AddInterest(ctx context.Context, userID, interest string) error {
	if f.interests == nil {
		f.interests = make(map[string][]string)
	}
	f.interests[userID] = append(f.interests[userID], interest)
	return nil
}

func (f *fakeProfiles) RemoveInterest(ctx context.Context, userID, interest string) error {
	return nil
}

type fakeEvents struct {
	byID      map[string]*event.Event
	byCode    map[string]*event.Event
	attendees map[string][]event.Attendee
	userEvts  map[string][]string
	joinErr   error
	created   []*event.Event
}

func (f *fakeEvents) Create(ctx context.Context, createdBy, name, description string, interests []string, startTime time.Time, endTime *time.Time, tier event.Tier) (*event.Event, error) {
	ev := &event.Event{
		ID:           "ev-" + name,
		CreatedBy:    createdBy,
		Name:         name,
		PartyCode:    "ABC123",
		Description:  description,
		Interests:    interests,
		StartTime:    startTime,
		EndTime:      endTime,
		MaxAttendees: tier.Capacity(),
		Tier:         tier,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	f.created = append(f.created, ev)
	return ev, nil
}

func (f *fakeEvents) GetByID(ctx context.Context, eventID string) (*event.Event, error) {
	return f.byID[eventID], nil
}

func (f *fakeEvents) AttendeeCount(ctx context.Context, eventID string) (int, error) {
	return len(f.attendees[eventID]), nil
}

func (f *fakeEvents) Attendees(ctx context.Context, eventID string) ([]event.Attendee, error) {
	return f.attendees[eventID], nil
}

func (f *fakeEvents) Join(ctx context.Context, partyCode, userID string) (*event.Event, error) {
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	ev, ok := f.byCode[strings.ToUpper(partyCode)]
	if !ok {
		return nil, event.ErrNotFound
	}
	return ev, nil
}

func (f *fakeEvents) Leave(ctx context.Context, eventID, userID string) error { return nil }

func (f *fakeEvents) Deactivate(ctx context.Context, eventID string) error {
	if ev, ok := f.byID[eventID]; ok {
		ev.IsActive = false
	}
	return nil
}

func (f *fakeEvents) UserEventIDs(ctx context.Context, userID string) ([]string, error) {
	return f.userEvts[userID], nil
}

type fakeSocials struct {
	visible map[string][]social.Platform
}

func (f *fakeSocials) Add(ctx context.Context, userID, platform, username, profileURL string) (*social.Platform, error) {
	return &social.Platform{
		ID:       "sp-1",
		UserID:   userID,
		Platform: platform,
		Username: username,
	}, nil
}

func (f *fakeSocials) Remove(ctx context.Context, userID, platformID string) error { return nil }

func (f *fakeSocials) SetVisibility(ctx context.Context, userID, platformID string, visible bool) error {
	return nil
}

func (f *fakeSocials) ListForUser(ctx context.Context, userID string) ([]social.Platform, error) {
	return nil, nil
}

func (f *fakeSocials) VisibleForUsers(ctx context.Context, userIDs []string) (map[string][]social.Platform, error) {
	return f.visible, nil
}

type fakePresence struct {
	online map[string][]string
}

func (f *fakePresence) OnlineIDs(ctx context.Context, eventID string) ([]string, error) {
	return f.online[eventID], nil
}

func (f *fakePresence) OnlineCount(ctx context.Context, eventID string) (int, error) {
	return len(f.online[eventID]), nil
}

type fakeEngine struct {
	events []recommend.RecommendedEvent
	people []recommend.RecommendedPerson
}

func (f *fakeEngine) RecommendEvents(ctx context.Context, userID string, limit int) []recommend.RecommendedEvent {
	return f.events
}

func (f *fakeEngine) RecommendPeople(ctx context.Context, userID string, limit int) []recommend.RecommendedPerson {
	return f.people
}

type published struct {
	eventID string
	data    []byte
}

type fakePublisher struct {
	attendee []published
	socials  []published
}

func (f *fakePublisher) PublishAttendeeChange(eventID string, data []byte) error {
	f.attendee = append(f.attendee, published{eventID, data})
	return nil
}

func (f *fakePublisher) PublishSocialChange(eventID string, data []byte) error {
	f.socials = append(f.socials, published{eventID, data})
	return nil
}

type fakeLimiter struct {
	deny map[string]bool // rule key prefix -> deny
}

func (f *fakeLimiter) Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error) {
	return !f.deny[rule.Key], nil
}

// ---------------------------------------------------------------------------
// Test setup
// ---------------------------------------------------------------------------

type env struct {
	profiles *fakeProfiles
	events   *fakeEvents
	socials  *fakeSocials
	presence *fakePresence
	engine   *fakeEngine
	pub      *fakePublisher
	limiter  *fakeLimiter
	router   http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		profiles: &fakeProfiles{interests: make(map[string][]string)},
		events: &fakeEvents{
			byID:      make(map[string]*event.Event),
			byCode:    make(map[string]*event.Event),
			attendees: make(map[string][]event.Attendee),
			userEvts:  make(map[string][]string),
		},
		socials:  &fakeSocials{visible: make(map[string][]social.Platform)},
		presence: &fakePresence{online: make(map[string][]string)},
		engine:   &fakeEngine{},
		pub:      &fakePublisher{},
		limiter:  &fakeLimiter{deny: make(map[string]bool)},
	}
	h := NewHandler(e.profiles, e.events, e.socials, e.presence, e.engine, e.pub, e.limiter)
	e.router = NewRouter(h)
	return e
}

func (e *env) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func testEvent(id, code, creator string) *event.Event {
	return &event.Event{
		ID:           id,
		CreatedBy:    creator,
		Name:         "Test Party",
		PartyCode:    code,
		Interests:    []string{"music"},
		StartTime:    time.Now().Add(time.Hour),
		MaxAttendees: 100,
		Tier:         event.TierFree,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateEvent(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, "POST", "/api/v1/events", "u-1",
		`{"name":"Rooftop Party","interests":["Music","dj"],"start_time":"2026-10-01T20:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp eventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.PartyCode == "" {
		t.Error("expected a party code")
	}
	if resp.Tier != "free" {
		t.Errorf("expected default tier free, got %q", resp.Tier)
	}
	if resp.AttendeeCount != 1 {
		t.Errorf("expected creator counted as first attendee, got %d", resp.AttendeeCount)
	}
}

func TestCreateEvent_Validation(t *testing.T) {
	e := newEnv(t)

	cases := []struct {
		name string
		user string
		body string
		want int
	}{
		{"missing user", "", `{"name":"x","start_time":"2026-10-01T20:00:00Z"}`, http.StatusUnauthorized},
		{"missing name", "u-1", `{"start_time":"2026-10-01T20:00:00Z"}`, http.StatusBadRequest},
		{"missing start", "u-1", `{"name":"x"}`, http.StatusBadRequest},
		{"bad tier", "u-1", `{"name":"x","start_time":"2026-10-01T20:00:00Z","tier":"platinum"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, "POST", "/api/v1/events", tc.user, tc.body)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestJoinEvent(t *testing.T) {
	e := newEnv(t)
	ev := testEvent("ev-1", "PARTY1", "u-creator")
	e.events.byCode["PARTY1"] = ev

	w := e.do(t, "POST", "/api/v1/events/join", "u-2", `{"party_code":"PARTY1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(e.pub.attendee) != 1 {
		t.Fatalf("expected 1 attendee change published, got %d", len(e.pub.attendee))
	}
	if e.pub.attendee[0].eventID != "ev-1" {
		t.Errorf("published to wrong event: %s", e.pub.attendee[0].eventID)
	}

	var change struct {
		Action string `json:"action"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(e.pub.attendee[0].data, &change); err != nil {
		t.Fatalf("invalid published payload: %v", err)
	}
	if change.Action != "join" || change.UserID != "u-2" {
		t.Errorf("unexpected payload: %+v", change)
	}
}

func TestJoinEvent_UnknownCode(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, "POST", "/api/v1/events/join", "u-2", `{"party_code":"NOPE99"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestJoinEvent_Full(t *testing.T) {
	e := newEnv(t)
	e.events.joinErr = event.ErrFull

	w := e.do(t, "POST", "/api/v1/events/join", "u-2", `{"party_code":"PARTY1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestJoinEvent_RateLimited(t *testing.T) {
	e := newEnv(t)
	e.limiter.deny[ratelimit.RuleJoin.Key] = true

	w := e.do(t, "POST", "/api/v1/events/join", "u-2", `{"party_code":"PARTY1"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestAPIRateLimit(t *testing.T) {
	e := newEnv(t)
	e.limiter.deny[ratelimit.RuleAPI.Key] = true

	w := e.do(t, "GET", "/api/v1/recommendations/events", "u-1", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestDeactivateEvent_CreatorOnly(t *testing.T) {
	e := newEnv(t)
	e.events.byID["ev-1"] = testEvent("ev-1", "PARTY1", "u-creator")

	w := e.do(t, "DELETE", "/api/v1/events/ev-1", "u-other", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	w = e.do(t, "DELETE", "/api/v1/events/ev-1", "u-creator", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if e.events.byID["ev-1"].IsActive {
		t.Error("event should be inactive")
	}
}

func TestEventAttendees(t *testing.T) {
	e := newEnv(t)
	e.events.byID["ev-1"] = testEvent("ev-1", "PARTY1", "u-creator")
	e.events.attendees["ev-1"] = []event.Attendee{
		{UserID: "u-1", DisplayName: "Alice"},
		{UserID: "u-2", DisplayName: "Bob"},
	}
	e.presence.online["ev-1"] = []string{"u-1"}
	e.socials.visible["u-2"] = []social.Platform{
		{ID: "sp-1", Platform: "github", Username: "bob", IsVisible: true},
	}

	w := e.do(t, "GET", "/api/v1/events/ev-1/attendees", "u-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Attendees []attendeeResponse `json:"attendees"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Attendees) != 2 {
		t.Fatalf("expected 2 attendees, got %d", len(resp.Attendees))
	}
	if !resp.Attendees[0].IsOnline {
		t.Error("expected u-1 online")
	}
	if resp.Attendees[1].IsOnline {
		t.Error("expected u-2 offline")
	}
	if len(resp.Attendees[1].Socials) != 1 || resp.Attendees[1].Socials[0].Platform != "github" {
		t.Errorf("expected u-2's visible github link, got %+v", resp.Attendees[1].Socials)
	}
	// Hidden socials never leak into the attendee list.
	if len(resp.Attendees[0].Socials) != 0 {
		t.Errorf("expected no socials for u-1, got %+v", resp.Attendees[0].Socials)
	}
}

func TestRecommendations_EmptyNotNull(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, "GET", "/api/v1/recommendations/events", "u-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"events":[]`) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}

	w = e.do(t, "GET", "/api/v1/recommendations/people", "u-1", "")
	if !strings.Contains(w.Body.String(), `"people":[]`) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

func TestRecommendations_RequireUser(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, "GET", "/api/v1/recommendations/events", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSocialVisibility_PublishesToAttendedEvents(t *testing.T) {
	e := newEnv(t)
	e.events.userEvts["u-1"] = []string{"ev-1", "ev-2"}

	w := e.do(t, "PUT", "/api/v1/me/socials/sp-1/visibility", "u-1", `{"is_visible":true}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	if len(e.pub.socials) != 2 {
		t.Fatalf("expected change published to both events, got %d", len(e.pub.socials))
	}
}

func TestSetInterests(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, "PUT", "/api/v1/me/interests", "u-1", `{"interests":["music","hiking"]}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = e.do(t, "GET", "/api/v1/me/interests", "u-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Interests []string `json:"interests"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Interests) != 2 {
		t.Errorf("expected 2 interests, got %v", resp.Interests)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
