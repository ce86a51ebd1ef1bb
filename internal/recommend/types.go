package recommend

import (
	"context"
	"time"
)

// Event is the read-only event snapshot the engine scores. Interests carry
// whatever casing they were stored with; comparison is case-insensitive.
type Event struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Interests    []string  `json:"interests"`
	StartTime    time.Time `json:"start_time"`
	MaxAttendees int       `json:"max_attendees"`
	Tier         string    `json:"tier"`
	PartyCode    string    `json:"party_code"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the read-only user snapshot used when recommending people.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// RecommendedEvent is an event annotated with its computed match score,
// the interests that produced the score, and a live attendee count.
type RecommendedEvent struct {
	Event
	MatchScore        float64  `json:"match_score"`
	MatchingInterests []string `json:"matching_interests"`
	AttendeeCount     int      `json:"attendee_count"`
}

// RecommendedPerson is a profile annotated with its computed match score,
// the overlapping interests, and the events both users attend.
type RecommendedPerson struct {
	Profile
	Interests         []string `json:"interests"`
	MatchScore        float64  `json:"match_score"`
	MatchingInterests []string `json:"matching_interests"`
	MutualEvents      []string `json:"mutual_events"`
}

// Directory is the data-access collaborator the engine reads from. All
// methods are snapshot reads; the engine never writes. Implementations are
// expected to return nil slices (not errors) for unknown users.
type Directory interface {
	// UserInterests returns the user's interest tags, lowercase-normalized
	// at write time by the profile store.
	UserInterests(ctx context.Context, userID string) ([]string, error)

	// UserEventIDs returns the IDs of events the user attends.
	UserEventIDs(ctx context.Context, userID string) ([]string, error)

	// ActiveEvents returns all events currently marked active.
	ActiveEvents(ctx context.Context) ([]Event, error)

	// RecentActiveEvents returns up to limit active events ordered by
	// creation time, newest first.
	RecentActiveEvents(ctx context.Context, limit int) ([]Event, error)

	// AttendeeCount returns the current number of attendees for an event.
	AttendeeCount(ctx context.Context, eventID string) (int, error)

	// OtherProfiles returns every profile except the given user's.
	OtherProfiles(ctx context.Context, excludingUserID string) ([]Profile, error)
}
