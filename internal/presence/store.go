// Package presence provides Redis-backed presence tracking for event
// attendees and session state for gateway connections.
//
// Per-event presence lives in a sorted set:
//
//	Key:    presence:<event_id>
//	Member: <user_id>
//	Score:  last_seen unix timestamp
//
// An attendee counts as online while their last heartbeat is within
// OnlineWindow. The set carries a TTL refreshed on every heartbeat so
// abandoned events expire on their own.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// PresencePrefix is the Redis key prefix for per-event presence sets.
	PresencePrefix = "presence:"

	// SessionPrefix is the Redis key prefix for gateway session hashes.
	SessionPrefix = "session:"

	// OnlineWindow is how recent a heartbeat must be for an attendee to
	// count as online. Clients heartbeat every 15s, so one missed beat
	// still reads as online.
	OnlineWindow = 35 * time.Second

	// PresenceTTL is the time-to-live for per-event presence sets.
	PresenceTTL = 2 * time.Hour

	// SessionTTL is the time-to-live for gateway session hashes.
	SessionTTL = 1 * time.Hour
)

// Session is a gateway connection's state stored in Redis.
type Session struct {
	ID         string `redis:"id"`
	UserID     string `redis:"user_id"`  // empty until the client says hello
	EventID    string `redis:"event_id"` // empty until the client joins a room
	Server     string `redis:"server"`   // which gateway instance
	CreatedAt  int64  `redis:"created_at"`
	LastActive int64  `redis:"last_active"`
}

// Store manages presence and gateway session state in Redis.
type Store struct {
	client     *redis.Client
	serverName string
}

// NewStore connects to Redis and returns a ready presence store. serverName
// identifies this gateway instance in session records.
func NewStore(redisAddr, serverName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName}, nil
}

// NewStoreWithClient wraps an existing Redis client. Used by services that
// share one connection across stores, and by tests.
func NewStoreWithClient(client *redis.Client, serverName string) *Store {
	return &Store{client: client, serverName: serverName}
}

// ---------------------------------------------------------------------------
// Per-event presence
// ---------------------------------------------------------------------------

// Heartbeat records the user as online in the event, refreshing both the
// last-seen score and the set TTL.
func (s *Store) Heartbeat(ctx context.Context, eventID, userID string) error {
	key := PresencePrefix + eventID

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(time.Now().Unix()), Member: userID})
	pipe.Expire(ctx, key, PresenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: heartbeat event=%s user=%s: %w", eventID, userID, err)
	}
	return nil
}

// MarkOffline takes the user offline immediately while keeping an
// approximately current last-seen: the score is pushed back past the online
// window instead of being deleted.
func (s *Store) MarkOffline(ctx context.Context, eventID, userID string) error {
	key := PresencePrefix + eventID
	score := float64(time.Now().Add(-OnlineWindow - time.Second).Unix())

	if err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: userID}).Err(); err != nil {
		return fmt.Errorf("presence: mark offline event=%s user=%s: %w", eventID, userID, err)
	}
	return nil
}

// OnlineCount returns how many attendees of the event are currently online.
func (s *Store) OnlineCount(ctx context.Context, eventID string) (int, error) {
	key := PresencePrefix + eventID
	min := strconv.FormatInt(time.Now().Add(-OnlineWindow).Unix(), 10)

	count, err := s.client.ZCount(ctx, key, min, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("presence: online count event=%s: %w", eventID, err)
	}
	return int(count), nil
}

// OnlineIDs returns the user IDs currently online in the event.
func (s *Store) OnlineIDs(ctx context.Context, eventID string) ([]string, error) {
	key := PresencePrefix + eventID
	min := strconv.FormatInt(time.Now().Add(-OnlineWindow).Unix(), 10)

	ids, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: online ids event=%s: %w", eventID, err)
	}
	return ids, nil
}

// LastSeen returns when the user last heartbeat in the event, or the zero
// time if they never have.
func (s *Store) LastSeen(ctx context.Context, eventID, userID string) (time.Time, error) {
	key := PresencePrefix + eventID

	score, err := s.client.ZScore(ctx, key, userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("presence: last seen event=%s user=%s: %w", eventID, userID, err)
	}
	return time.Unix(int64(score), 0), nil
}

// ---------------------------------------------------------------------------
// Gateway sessions
// ---------------------------------------------------------------------------

// CreateSession stores a new gateway session with a 1h TTL.
func (s *Store) CreateSession(ctx context.Context, sessionID string) error {
	key := SessionPrefix + sessionID
	now := time.Now().Unix()

	session := map[string]interface{}{
		"id":          sessionID,
		"user_id":     "",
		"event_id":    "",
		"server":      s.serverName,
		"created_at":  now,
		"last_active": now,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, session)
	pipe.Expire(ctx, key, SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetSession retrieves a gateway session. Returns nil if not found.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	key := SessionPrefix + sessionID
	var session Session
	if err := s.client.HGetAll(ctx, key).Scan(&session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, nil // not found
	}
	return &session, nil
}

// BindSession associates a session with the authenticated user and, once
// they join a room, the event. Empty values clear the binding.
func (s *Store) BindSession(ctx context.Context, sessionID, userID, eventID string) error {
	key := SessionPrefix + sessionID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "user_id", userID, "event_id", eventID, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// TouchSession refreshes the session's activity timestamp and TTL.
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	key := SessionPrefix + sessionID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteSession removes a gateway session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, SessionPrefix+sessionID).Err()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
