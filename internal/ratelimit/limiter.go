// Package ratelimit provides Redis-backed request throttling using INCR +
// EXPIRE fixed-window counters. Each throttled action (REST call, party-code
// join attempt, gateway connect) has its own Rule with per-identity counters.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is one throttling policy: a Redis key prefix, the request budget, and
// the window the budget covers.
type Rule struct {
	Key    string        // Redis key prefix, e.g. "rl:join:"
	Limit  int           // max count in the window
	Window time.Duration // window duration
}

// Throttling rules applied across PartyLink services.
var (
	// RuleAPI allows 60 REST requests per minute per client IP.
	RuleAPI = Rule{Key: "rl:api:", Limit: 60, Window: 1 * time.Minute}

	// RuleJoin allows 10 party-code join attempts per minute per user.
	// Codes are short, so unthrottled joins would let callers enumerate them.
	RuleJoin = Rule{Key: "rl:join:", Limit: 10, Window: 1 * time.Minute}

	// RuleConnect allows 5 WebSocket connections per minute per IP.
	RuleConnect = Rule{Key: "rl:conn:", Limit: 5, Window: 1 * time.Minute}
)

// Limiter checks request budgets against Redis.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow counts one request for the identifier under the rule and reports
// whether it fits the budget. The counter's expiry is set on first increment,
// which defines the window boundary.
//
// Redis failures fail open: a cache outage must not lock users out, so the
// request is allowed and the error returned for the caller's logs.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[ratelimit] redis INCR error key=%s: %v (failing open)", key, err)
		return true, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			log.Printf("[ratelimit] redis EXPIRE error key=%s: %v (failing open)", key, err)
			// Without a TTL the counter would throttle the identifier
			// forever. Best effort: remove it.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}

// Remaining reports how many requests the identifier has left in the current
// window, clamped at zero. A missing counter means the full budget; so does a
// Redis failure (fail open), with the error returned alongside.
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	key := rule.Key + identifier

	count, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return rule.Limit, nil
	}
	if err != nil {
		log.Printf("[ratelimit] redis GET error key=%s: %v (failing open)", key, err)
		return rule.Limit, err
	}

	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
