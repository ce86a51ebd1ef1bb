// Package event provides PostgreSQL-backed storage for events and their
// attendance relation. Events are joined via short party codes; capacity is
// derived from the event's pricing tier at creation time.
package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Tier is an event's pricing tier. It determines the attendee capacity.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// UnlimitedAttendees is the max_attendees sentinel for effectively
// unlimited capacity (enterprise tier).
const UnlimitedAttendees = 999999

// Capacity returns the attendee limit for the tier.
func (t Tier) Capacity() int {
	switch t {
	case TierBasic:
		return 200
	case TierPro:
		return 1000
	case TierEnterprise:
		return UnlimitedAttendees
	default:
		return 100
	}
}

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return true
	}
	return false
}

// Sentinel errors surfaced to the API layer for precise status mapping.
var (
	ErrNotFound = errors.New("event: not found")
	ErrFull     = errors.New("event: at full capacity")
)

// Event is a stored event row.
type Event struct {
	ID           string
	CreatedBy    string
	Name         string
	PartyCode    string
	Description  string
	Interests    []string
	StartTime    time.Time
	EndTime      *time.Time
	MaxAttendees int
	Tier         Tier
	IsActive     bool
	CreatedAt    time.Time
}

// Attendee is an attendance row joined with the attendee's profile.
type Attendee struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	JoinedAt    time.Time
}

// Store manages events and attendance in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an event store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const eventColumns = `
	id, created_by, name, party_code, COALESCE(description, ''), interests,
	start_time, end_time, max_attendees, tier, is_active, created_at`

// createAttempts bounds party-code collision retries on Create.
const createAttempts = 5

// Create inserts a new event with a freshly generated party code and joins
// the creator as its first attendee. Capacity comes from the tier. The
// populated event (ID, code, timestamps) is returned.
func (s *Store) Create(ctx context.Context, createdBy, name, description string, interests []string, startTime time.Time, endTime *time.Time, tier Tier) (*Event, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("event: invalid tier %q", tier)
	}

	normalized := make([]string, 0, len(interests))
	for _, tag := range interests {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			normalized = append(normalized, tag)
		}
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := NewPartyCode()
		if err != nil {
			return nil, err
		}

		ev, err := s.insert(ctx, createdBy, name, description, normalized, startTime, endTime, tier, code)
		if err == nil {
			return ev, nil
		}
		if isUniqueViolation(err) {
			continue // party code collision, roll a new one
		}
		return nil, err
	}
	return nil, fmt.Errorf("event: party code generation exhausted after %d attempts", createAttempts)
}

func (s *Store) insert(ctx context.Context, createdBy, name, description string, interests []string, startTime time.Time, endTime *time.Time, tier Tier, code string) (*Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("event: begin create: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO events (id, created_by, name, party_code, description, interests,
		                    start_time, end_time, max_attendees, tier)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
		RETURNING created_at`

	ev := &Event{
		ID:           uuid.New().String(),
		CreatedBy:    createdBy,
		Name:         name,
		PartyCode:    code,
		Description:  description,
		Interests:    interests,
		StartTime:    startTime,
		EndTime:      endTime,
		MaxAttendees: tier.Capacity(),
		Tier:         tier,
		IsActive:     true,
	}

	err = tx.QueryRowContext(ctx, query,
		ev.ID, ev.CreatedBy, ev.Name, ev.PartyCode, ev.Description,
		pq.Array(ev.Interests), ev.StartTime, ev.EndTime, ev.MaxAttendees, string(ev.Tier),
	).Scan(&ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("event: insert: %w", err)
	}

	// The creator attends their own event.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO event_attendees (event_id, user_id) VALUES ($1, $2)`,
		ev.ID, createdBy,
	); err != nil {
		return nil, fmt.Errorf("event: join creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("event: commit create: %w", err)
	}
	return ev, nil
}

// GetByID retrieves an event by ID. Returns nil if not found.
func (s *Store) GetByID(ctx context.Context, eventID string) (*Event, error) {
	query := `SELECT` + eventColumns + ` FROM events WHERE id = $1`
	return s.one(ctx, query, eventID)
}

// GetByPartyCode retrieves an active event by its join code. The code is
// uppercased before lookup so user input is case-insensitive. Returns nil if
// no active event carries the code.
func (s *Store) GetByPartyCode(ctx context.Context, code string) (*Event, error) {
	query := `SELECT` + eventColumns + ` FROM events WHERE party_code = $1 AND is_active = TRUE`
	return s.one(ctx, query, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *Store) one(ctx context.Context, query string, arg any) (*Event, error) {
	var ev Event
	var tier string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&ev.ID, &ev.CreatedBy, &ev.Name, &ev.PartyCode, &ev.Description,
		pq.Array(&ev.Interests), &ev.StartTime, &ev.EndTime, &ev.MaxAttendees,
		&tier, &ev.IsActive, &ev.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("event: query one: %w", err)
	}
	ev.Tier = Tier(tier)
	return &ev, nil
}

// ActiveEvents returns all active events.
func (s *Store) ActiveEvents(ctx context.Context) ([]Event, error) {
	query := `SELECT` + eventColumns + ` FROM events WHERE is_active = TRUE ORDER BY created_at DESC`
	return s.many(ctx, query)
}

// RecentActiveEvents returns up to limit active events, newest first.
func (s *Store) RecentActiveEvents(ctx context.Context, limit int) ([]Event, error) {
	query := `SELECT` + eventColumns + ` FROM events WHERE is_active = TRUE ORDER BY created_at DESC LIMIT $1`
	return s.many(ctx, query, limit)
}

func (s *Store) many(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("event: query: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var tier string
		if err := rows.Scan(
			&ev.ID, &ev.CreatedBy, &ev.Name, &ev.PartyCode, &ev.Description,
			pq.Array(&ev.Interests), &ev.StartTime, &ev.EndTime, &ev.MaxAttendees,
			&tier, &ev.IsActive, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("event: scan: %w", err)
		}
		ev.Tier = Tier(tier)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event: rows: %w", err)
	}
	return events, nil
}

// AttendeeCount returns the number of attendees for an event.
func (s *Store) AttendeeCount(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_attendees WHERE event_id = $1`, eventID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("event: attendee count: %w", err)
	}
	return count, nil
}

// Attendees returns the attendees of an event with their profile fields,
// ordered by join time.
func (s *Store) Attendees(ctx context.Context, eventID string) ([]Attendee, error) {
	const query = `
		SELECT a.user_id, p.display_name, COALESCE(p.avatar_url, ''), a.joined_at
		FROM event_attendees a
		JOIN profiles p ON p.id = a.user_id
		WHERE a.event_id = $1
		ORDER BY a.joined_at`

	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("event: attendees: %w", err)
	}
	defer rows.Close()

	var attendees []Attendee
	for rows.Next() {
		var a Attendee
		if err := rows.Scan(&a.UserID, &a.DisplayName, &a.AvatarURL, &a.JoinedAt); err != nil {
			return nil, fmt.Errorf("event: scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event: attendee rows: %w", err)
	}
	return attendees, nil
}

// IsAttending reports whether the user attends the event.
func (s *Store) IsAttending(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_attendees WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("event: is attending: %w", err)
	}
	return exists, nil
}

// Join adds the user to an event identified by party code, enforcing the
// capacity limit. Joining an event the user already attends is a no-op.
// Returns the joined event, ErrNotFound if no active event has the code, or
// ErrFull when the event is at capacity.
func (s *Store) Join(ctx context.Context, partyCode, userID string) (*Event, error) {
	ev, err := s.GetByPartyCode(ctx, partyCode)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrNotFound
	}

	attending, err := s.IsAttending(ctx, ev.ID, userID)
	if err != nil {
		return nil, err
	}
	if attending {
		return ev, nil
	}

	count, err := s.AttendeeCount(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	if count >= ev.MaxAttendees {
		return nil, ErrFull
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO event_attendees (event_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (event_id, user_id) DO NOTHING`,
		ev.ID, userID,
	); err != nil {
		return nil, fmt.Errorf("event: join: %w", err)
	}
	return ev, nil
}

// Leave removes the user's attendance from an event.
func (s *Store) Leave(ctx context.Context, eventID, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM event_attendees WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	); err != nil {
		return fmt.Errorf("event: leave: %w", err)
	}
	return nil
}

// Deactivate marks an event inactive. Inactive events stop appearing in
// party-code lookups and recommendations.
func (s *Store) Deactivate(ctx context.Context, eventID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE events SET is_active = FALSE WHERE id = $1`, eventID,
	); err != nil {
		return fmt.Errorf("event: deactivate: %w", err)
	}
	return nil
}

// UserEventIDs returns the IDs of events the user attends, sorted for
// deterministic output.
func (s *Store) UserEventIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `
		SELECT event_id FROM event_attendees WHERE user_id = $1 ORDER BY event_id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("event: user events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("event: scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event: user event rows: %w", err)
	}
	return ids, nil
}

// isUniqueViolation reports whether the error wraps a Postgres unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
