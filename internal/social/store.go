// Package social provides PostgreSQL-backed storage for linked social-media
// profiles. Attendees selectively expose platforms to other attendees via
// the per-row visibility flag; only visible rows are ever returned to
// anyone other than the owner.
package social

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// validPlatforms matches the CHECK constraint on the social_platforms table.
var validPlatforms = map[string]bool{
	"linkedin":  true,
	"instagram": true,
	"x":         true,
	"tiktok":    true,
	"github":    true,
	"youtube":   true,
}

// Platform is a linked social-media profile for a user.
type Platform struct {
	ID         string
	UserID     string
	Platform   string
	Username   string
	ProfileURL string
	IsVisible  bool
	CreatedAt  time.Time
}

// Store manages social platform links in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a social store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Add links a platform profile to a user. Defaults to hidden; the owner
// toggles visibility explicitly. The platform name is validated against the
// allowed set before insertion.
func (s *Store) Add(ctx context.Context, userID, platform, username, profileURL string) (*Platform, error) {
	if !validPlatforms[platform] {
		return nil, fmt.Errorf("social: invalid platform %q", platform)
	}

	p := &Platform{
		ID:         uuid.New().String(),
		UserID:     userID,
		Platform:   platform,
		Username:   username,
		ProfileURL: profileURL,
		IsVisible:  false,
	}

	const query = `
		INSERT INTO social_platforms (id, user_id, platform, username, profile_url, is_visible)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.Platform, p.Username, p.ProfileURL, p.IsVisible,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("social: insert: %w", err)
	}
	return p, nil
}

// Remove deletes a platform link. Scoped by owner so users cannot remove
// each other's links.
func (s *Store) Remove(ctx context.Context, userID, platformID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM social_platforms WHERE id = $1 AND user_id = $2`,
		platformID, userID,
	); err != nil {
		return fmt.Errorf("social: remove: %w", err)
	}
	return nil
}

// SetVisibility toggles whether a platform link is exposed to other
// attendees. Scoped by owner.
func (s *Store) SetVisibility(ctx context.Context, userID, platformID string, visible bool) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE social_platforms SET is_visible = $3 WHERE id = $1 AND user_id = $2`,
		platformID, userID, visible,
	); err != nil {
		return fmt.Errorf("social: set visibility: %w", err)
	}
	return nil
}

// ListForUser returns all of a user's own platform links, visible or not.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]Platform, error) {
	const query = `
		SELECT id, user_id, platform, username, profile_url, is_visible, created_at
		FROM social_platforms
		WHERE user_id = $1
		ORDER BY platform`

	return s.list(ctx, query, userID)
}

// VisibleForUsers returns the visible platform links for a set of users,
// keyed by user ID. This is what attendees of an event see about each other.
func (s *Store) VisibleForUsers(ctx context.Context, userIDs []string) (map[string][]Platform, error) {
	if len(userIDs) == 0 {
		return map[string][]Platform{}, nil
	}

	const query = `
		SELECT id, user_id, platform, username, profile_url, is_visible, created_at
		FROM social_platforms
		WHERE user_id = ANY($1) AND is_visible = TRUE
		ORDER BY user_id, platform`

	platforms, err := s.list(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}

	byUser := make(map[string][]Platform, len(userIDs))
	for _, p := range platforms {
		byUser[p.UserID] = append(byUser[p.UserID], p)
	}
	return byUser, nil
}

func (s *Store) list(ctx context.Context, query string, arg any) ([]Platform, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("social: query: %w", err)
	}
	defer rows.Close()

	var platforms []Platform
	for rows.Next() {
		var p Platform
		if err := rows.Scan(&p.ID, &p.UserID, &p.Platform, &p.Username, &p.ProfileURL, &p.IsVisible, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("social: scan: %w", err)
		}
		platforms = append(platforms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("social: rows: %w", err)
	}
	return platforms, nil
}
