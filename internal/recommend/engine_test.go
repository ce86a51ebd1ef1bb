package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeDirectory is an in-memory Directory for engine tests. Per-method error
// injection simulates backend failures; errInterestsFor fails only the lookup
// for a specific user so mid-scan failures can be exercised too.
type fakeDirectory struct {
	interests map[string][]string
	eventIDs  map[string][]string
	active    []Event
	recent    []Event
	counts    map[string]int
	profiles  []Profile

	errInterests    error
	errInterestsFor string
	errEventIDs     error
	errActive       error
	errRecent       error
	errCount        error
	errProfiles     error
}

func (d *fakeDirectory) UserInterests(ctx context.Context, userID string) ([]string, error) {
	if d.errInterests != nil {
		return nil, d.errInterests
	}
	if d.errInterestsFor != "" && userID == d.errInterestsFor {
		return nil, fmt.Errorf("interests for %s unavailable", userID)
	}
	return d.interests[userID], nil
}

func (d *fakeDirectory) UserEventIDs(ctx context.Context, userID string) ([]string, error) {
	if d.errEventIDs != nil {
		return nil, d.errEventIDs
	}
	return d.eventIDs[userID], nil
}

func (d *fakeDirectory) ActiveEvents(ctx context.Context) ([]Event, error) {
	if d.errActive != nil {
		return nil, d.errActive
	}
	return d.active, nil
}

func (d *fakeDirectory) RecentActiveEvents(ctx context.Context, limit int) ([]Event, error) {
	if d.errRecent != nil {
		return nil, d.errRecent
	}
	if len(d.recent) > limit {
		return d.recent[:limit], nil
	}
	return d.recent, nil
}

func (d *fakeDirectory) AttendeeCount(ctx context.Context, eventID string) (int, error) {
	if d.errCount != nil {
		return 0, d.errCount
	}
	return d.counts[eventID], nil
}

func (d *fakeDirectory) OtherProfiles(ctx context.Context, excludingUserID string) ([]Profile, error) {
	if d.errProfiles != nil {
		return nil, d.errProfiles
	}
	out := make([]Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		if p.ID != excludingUserID {
			out = append(out, p)
		}
	}
	return out, nil
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		interests: make(map[string][]string),
		eventIDs:  make(map[string][]string),
		counts:    make(map[string]int),
	}
}

func testEvent(id string, interests ...string) Event {
	return Event{
		ID:        id,
		Name:      "event " + id,
		Interests: interests,
		StartTime: time.Now().Add(24 * time.Hour),
		Tier:      "free",
	}
}

func newTestEngine(dir Directory) *Engine {
	return NewEngine(dir, EngineConfig{DefaultLimit: 10, FetchWorkers: 4})
}

// ---------- RecommendEvents tests ----------

func TestRecommendEvents_ScoresByInterestOverlap(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music", "hiking", "photography", "cooking"}
	dir.active = []Event{
		testEvent("ev-low", "music"),
		testEvent("ev-high", "music", "hiking", "photography"),
		testEvent("ev-none", "finance"),
	}

	recs := newTestEngine(dir).RecommendEvents(context.Background(), "alice", 10)
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}

	if recs[0].ID != "ev-high" {
		t.Errorf("expected ev-high first, got %s", recs[0].ID)
	}
	if recs[0].MatchScore != 0.75 {
		t.Errorf("expected score 0.75 for 3/4 overlap, got %v", recs[0].MatchScore)
	}
	if recs[1].ID != "ev-low" {
		t.Errorf("expected ev-low second, got %s", recs[1].ID)
	}
	if recs[1].MatchScore != 0.25 {
		t.Errorf("expected score 0.25 for 1/4 overlap, got %v", recs[1].MatchScore)
	}
	if recs[2].MatchScore != 0 {
		t.Errorf("expected score 0 for no overlap, got %v", recs[2].MatchScore)
	}
}

func TestRecommendEvents_ExcludesAttendedEvents(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.eventIDs["alice"] = []string{"ev-attended"}
	dir.active = []Event{
		testEvent("ev-attended", "music"),
		testEvent("ev-other", "music"),
	}

	recs := newTestEngine(dir).RecommendEvents(context.Background(), "alice", 10)
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].ID != "ev-other" {
		t.Errorf("attended event should be excluded, got %s", recs[0].ID)
	}
}

func TestRecommendEvents_CaseInsensitiveMatching(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music", "hiking"}
	dir.active = []Event{testEvent("ev-1", "Music", "HIKING", "cooking")}

	recs := newTestEngine(dir).RecommendEvents(context.Background(), "alice", 10)
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].MatchScore != 1.0 {
		t.Errorf("expected score 1.0, got %v", recs[0].MatchScore)
	}
	// Matching interests keep the event's own casing.
	want := []string{"Music", "HIKING"}
	if len(recs[0].MatchingInterests) != len(want) {
		t.Fatalf("expected %v, got %v", want, recs[0].MatchingInterests)
	}
	for i, tag := range want {
		if recs[0].MatchingInterests[i] != tag {
			t.Errorf("matching interest %d: expected %q, got %q", i, tag, recs[0].MatchingInterests[i])
		}
	}
}

func TestRecommendEvents_TieBrokenByAttendeeCount(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.active = []Event{
		testEvent("ev-quiet", "music"),
		testEvent("ev-busy", "music"),
	}
	dir.counts["ev-quiet"] = 2
	dir.counts["ev-busy"] = 40

	recs := newTestEngine(dir).RecommendEvents(context.Background(), "alice", 10)
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].ID != "ev-busy" {
		t.Errorf("equal-score tie should prefer larger event, got %s first", recs[0].ID)
	}
	if recs[0].AttendeeCount != 40 {
		t.Errorf("expected attendee count 40, got %d", recs[0].AttendeeCount)
	}
}

func TestRecommendEvents_RespectsLimit(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	for i := 0; i < 8; i++ {
		dir.active = append(dir.active, testEvent(fmt.Sprintf("ev-%d", i), "music"))
	}

	recs := newTestEngine(dir).RecommendEvents(context.Background(), "alice", 3)
	if len(recs) != 3 {
		t.Errorf("expected limit of 3 to apply, got %d", len(recs))
	}
}

func TestRecommendEvents_DefaultLimitWhenZero(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	for i := 0; i < 15; i++ {
		dir.active = append(dir.active, testEvent(fmt.Sprintf("ev-%d", i), "music"))
	}

	engine := NewEngine(dir, EngineConfig{DefaultLimit: 10, FetchWorkers: 4})
	recs := engine.RecommendEvents(context.Background(), "alice", 0)
	if len(recs) != 10 {
		t.Errorf("expected default limit of 10, got %d", len(recs))
	}
}

func TestRecommendEvents_NoInterestsFallsBackToRecent(t *testing.T) {
	dir := newFakeDirectory()
	dir.recent = []Event{
		testEvent("ev-newest", "music"),
		testEvent("ev-older", "hiking"),
	}
	dir.counts["ev-newest"] = 5
	// An unrelated active list that must be ignored on the fallback path.
	dir.active = []Event{testEvent("ev-should-not-appear", "cooking")}

	recs := newTestEngine(dir).RecommendEvents(context.Background(), "alice", 10)
	if len(recs) != 2 {
		t.Fatalf("expected 2 fallback recommendations, got %d", len(recs))
	}

	// Fallback preserves recency order and scores everything 0.
	if recs[0].ID != "ev-newest" || recs[1].ID != "ev-older" {
		t.Errorf("expected recency order [ev-newest ev-older], got [%s %s]", recs[0].ID, recs[1].ID)
	}
	for _, rec := range recs {
		if rec.MatchScore != 0 {
			t.Errorf("fallback event %s: expected score 0, got %v", rec.ID, rec.MatchScore)
		}
		if rec.MatchingInterests == nil || len(rec.MatchingInterests) != 0 {
			t.Errorf("fallback event %s: expected empty matching interests, got %v", rec.ID, rec.MatchingInterests)
		}
	}
	if recs[0].AttendeeCount != 5 {
		t.Errorf("fallback should attach attendee counts, got %d", recs[0].AttendeeCount)
	}
}

func TestRecommendEvents_DirectoryFailureReturnsNil(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.active = []Event{testEvent("ev-1", "music")}
	dir.errActive = errors.New("connection refused")

	recs := newTestEngine(dir).RecommendEvents(context.Background(), "alice", 10)
	if recs != nil {
		t.Errorf("expected nil on backend failure, got %v", recs)
	}
}

func TestRecommendEvents_AttendeeCountFailureReturnsNil(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.active = []Event{testEvent("ev-1", "music")}
	dir.errCount = errors.New("connection refused")

	recs := newTestEngine(dir).RecommendEvents(context.Background(), "alice", 10)
	if recs != nil {
		t.Errorf("expected nil when a per-event fetch fails, got %v", recs)
	}
}

// ---------- RecommendPeople tests ----------

func TestRecommendPeople_WeightedScore(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music", "hiking"}
	dir.eventIDs["alice"] = []string{"ev-1", "ev-2"}
	dir.profiles = []Profile{
		{ID: "alice", DisplayName: "Alice"},
		{ID: "bob", DisplayName: "Bob"},
	}
	// Bob shares one of alice's two interests and one of her two events:
	// 0.6*(1/2) + 0.4*(1/2) = 0.5.
	dir.interests["bob"] = []string{"music", "finance"}
	dir.eventIDs["bob"] = []string{"ev-1", "ev-9"}

	recs := newTestEngine(dir).RecommendPeople(context.Background(), "alice", 10)
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].ID != "bob" {
		t.Errorf("expected bob, got %s", recs[0].ID)
	}
	if recs[0].MatchScore != 0.5 {
		t.Errorf("expected score 0.5, got %v", recs[0].MatchScore)
	}
	if len(recs[0].MatchingInterests) != 1 || recs[0].MatchingInterests[0] != "music" {
		t.Errorf("expected matching interests [music], got %v", recs[0].MatchingInterests)
	}
	if len(recs[0].MutualEvents) != 1 || recs[0].MutualEvents[0] != "ev-1" {
		t.Errorf("expected mutual events [ev-1], got %v", recs[0].MutualEvents)
	}
}

func TestRecommendPeople_ExcludesSelf(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.profiles = []Profile{{ID: "alice", DisplayName: "Alice"}}

	recs := newTestEngine(dir).RecommendPeople(context.Background(), "alice", 10)
	if len(recs) != 0 {
		t.Errorf("expected no recommendations with only self registered, got %d", len(recs))
	}
}

func TestRecommendPeople_FiltersZeroScores(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.eventIDs["alice"] = []string{"ev-1"}
	dir.profiles = []Profile{
		{ID: "bob", DisplayName: "Bob"},
		{ID: "carol", DisplayName: "Carol"},
	}
	dir.interests["bob"] = []string{"music"}
	// Carol has nothing in common: no shared interests, no shared events.
	dir.interests["carol"] = []string{"finance"}
	dir.eventIDs["carol"] = []string{"ev-9"}

	recs := newTestEngine(dir).RecommendPeople(context.Background(), "alice", 10)
	if len(recs) != 1 {
		t.Fatalf("expected zero-score candidates filtered, got %d results", len(recs))
	}
	if recs[0].ID != "bob" {
		t.Errorf("expected bob, got %s", recs[0].ID)
	}
}

func TestRecommendPeople_SharedEventOnlyStillScores(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.eventIDs["alice"] = []string{"ev-1"}
	dir.profiles = []Profile{{ID: "bob", DisplayName: "Bob"}}
	dir.interests["bob"] = []string{"finance"}
	dir.eventIDs["bob"] = []string{"ev-1"}

	recs := newTestEngine(dir).RecommendPeople(context.Background(), "alice", 10)
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	// 0.6*0 + 0.4*(1/1) = 0.4.
	if recs[0].MatchScore != 0.4 {
		t.Errorf("expected score 0.4 from shared event alone, got %v", recs[0].MatchScore)
	}
}

func TestRecommendPeople_TieBrokenByID(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.profiles = []Profile{
		{ID: "zoe", DisplayName: "Zoe"},
		{ID: "bob", DisplayName: "Bob"},
	}
	dir.interests["zoe"] = []string{"music"}
	dir.interests["bob"] = []string{"music"}

	recs := newTestEngine(dir).RecommendPeople(context.Background(), "alice", 10)
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].ID != "bob" || recs[1].ID != "zoe" {
		t.Errorf("equal-score tie should order by ID, got [%s %s]", recs[0].ID, recs[1].ID)
	}
}

func TestRecommendPeople_SortsByScoreDescending(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music", "hiking"}
	dir.profiles = []Profile{
		{ID: "bob", DisplayName: "Bob"},
		{ID: "carol", DisplayName: "Carol"},
	}
	dir.interests["bob"] = []string{"music"}
	dir.interests["carol"] = []string{"music", "hiking"}

	recs := newTestEngine(dir).RecommendPeople(context.Background(), "alice", 10)
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].ID != "carol" {
		t.Errorf("expected carol (higher overlap) first, got %s", recs[0].ID)
	}
	if recs[0].MatchScore <= recs[1].MatchScore {
		t.Errorf("scores not descending: %v then %v", recs[0].MatchScore, recs[1].MatchScore)
	}
}

func TestRecommendPeople_RespectsLimit(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("user-%d", i)
		dir.profiles = append(dir.profiles, Profile{ID: id, DisplayName: id})
		dir.interests[id] = []string{"music"}
	}

	recs := newTestEngine(dir).RecommendPeople(context.Background(), "alice", 2)
	if len(recs) != 2 {
		t.Errorf("expected limit of 2 to apply, got %d", len(recs))
	}
}

func TestRecommendPeople_DirectoryFailureReturnsNil(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.errProfiles = errors.New("connection refused")

	recs := newTestEngine(dir).RecommendPeople(context.Background(), "alice", 10)
	if recs != nil {
		t.Errorf("expected nil on backend failure, got %v", recs)
	}
}

func TestRecommendPeople_CandidateFetchFailureReturnsNil(t *testing.T) {
	dir := newFakeDirectory()
	dir.interests["alice"] = []string{"music"}
	dir.profiles = []Profile{
		{ID: "bob", DisplayName: "Bob"},
		{ID: "carol", DisplayName: "Carol"},
	}
	dir.interests["bob"] = []string{"music"}
	dir.interests["carol"] = []string{"music"}
	dir.errInterestsFor = "carol"

	recs := newTestEngine(dir).RecommendPeople(context.Background(), "alice", 10)
	if recs != nil {
		t.Errorf("expected nil when one candidate fetch fails, got %v", recs)
	}
}
