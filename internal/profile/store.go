// Package profile provides PostgreSQL-backed storage for user profiles and
// their interest tags. Interests are lowercase-normalized at write time so
// that matching elsewhere can compare them directly; casing supplied by the
// user is not preserved.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Profile represents a registered user.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store manages profiles and user interests in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a profile store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get retrieves a profile by ID. Returns nil if not found.
func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	const query = `
		SELECT id, email, display_name, COALESCE(avatar_url, ''), created_at, updated_at
		FROM profiles
		WHERE id = $1`

	var p Profile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get %s: %w", userID, err)
	}
	return &p, nil
}

// Upsert inserts a profile or updates its mutable fields if it already exists.
func (s *Store) Upsert(ctx context.Context, p *Profile) error {
	const query = `
		INSERT INTO profiles (id, email, display_name, avatar_url)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    display_name = EXCLUDED.display_name,
		    avatar_url = EXCLUDED.avatar_url,
		    updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, p.ID, p.Email, p.DisplayName, p.AvatarURL)
	if err != nil {
		return fmt.Errorf("profile: upsert %s: %w", p.ID, err)
	}
	return nil
}

// Others returns every profile except the given user's, ordered by ID for
// deterministic iteration.
func (s *Store) Others(ctx context.Context, excludingUserID string) ([]Profile, error) {
	const query = `
		SELECT id, email, display_name, COALESCE(avatar_url, ''), created_at, updated_at
		FROM profiles
		WHERE id <> $1
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, excludingUserID)
	if err != nil {
		return nil, fmt.Errorf("profile: list others: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("profile: scan: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile: rows: %w", err)
	}
	return profiles, nil
}

// Interests returns the user's interest tags (lowercase), sorted
// alphabetically. An unknown user yields an empty slice, not an error.
func (s *Store) Interests(ctx context.Context, userID string) ([]string, error) {
	const query = `
		SELECT interest
		FROM user_interests
		WHERE user_id = $1
		ORDER BY interest`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("profile: interests for %s: %w", userID, err)
	}
	defer rows.Close()

	var interests []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("profile: scan interest: %w", err)
		}
		interests = append(interests, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile: interest rows: %w", err)
	}
	return interests, nil
}

// SetInterests replaces the user's interest set. Tags are lowercased and
// deduplicated; empty tags are dropped.
func (s *Store) SetInterests(ctx context.Context, userID string, interests []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("profile: begin set interests: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_interests WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("profile: clear interests: %w", err)
	}

	seen := make(map[string]struct{}, len(interests))
	for _, tag := range interests {
		tag = normalizeInterest(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_interests (user_id, interest) VALUES ($1, $2)`,
			userID, tag,
		); err != nil {
			return fmt.Errorf("profile: insert interest %q: %w", tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("profile: commit interests: %w", err)
	}
	return nil
}

// AddInterest adds a single interest tag for the user. Adding an existing
// tag is a no-op.
func (s *Store) AddInterest(ctx context.Context, userID, interest string) error {
	tag := normalizeInterest(interest)
	if tag == "" {
		return fmt.Errorf("profile: empty interest")
	}

	const query = `
		INSERT INTO user_interests (user_id, interest)
		VALUES ($1, $2)
		ON CONFLICT (user_id, interest) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, userID, tag); err != nil {
		return fmt.Errorf("profile: add interest %q: %w", tag, err)
	}
	return nil
}

// RemoveInterest removes a single interest tag for the user.
func (s *Store) RemoveInterest(ctx context.Context, userID, interest string) error {
	const query = `DELETE FROM user_interests WHERE user_id = $1 AND interest = $2`

	if _, err := s.db.ExecContext(ctx, query, userID, normalizeInterest(interest)); err != nil {
		return fmt.Errorf("profile: remove interest: %w", err)
	}
	return nil
}

// normalizeInterest lowercases and trims an interest tag.
func normalizeInterest(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
