// Package recommend implements the interest-based recommendation engine.
// It scores candidate events and people for a requesting user from a
// snapshot of profile, interest, and attendance data read through the
// injected Directory, and returns ranked, truncated result lists.
//
// Recommendations are best-effort: the two public entry points never fail.
// Any Directory error degrades the whole call to an empty result so a bad
// read can never break the surrounding page.
package recommend

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/lettuce/party-app/internal/metrics"
)

// Score weights for person matching. Interest overlap dominates; shared
// event history refines. Fixed constants, not user-configurable.
const (
	personInterestWeight = 0.6
	personEventWeight    = 0.4
)

// EngineConfig holds tunable parameters for the recommendation engine.
type EngineConfig struct {
	DefaultLimit int // result count when the caller passes limit <= 0
	FetchWorkers int // max concurrent per-candidate Directory fetches
}

// DefaultEngineConfig returns sensible production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit: 10,
		FetchWorkers: 16,
	}
}

// Engine computes event and person recommendations. It is stateless across
// calls and safe for concurrent use; every call re-reads current state from
// the Directory.
type Engine struct {
	dir    Directory
	config EngineConfig
}

// NewEngine creates an Engine reading from the given Directory.
func NewEngine(dir Directory, config EngineConfig) *Engine {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultEngineConfig().DefaultLimit
	}
	if config.FetchWorkers <= 0 {
		config.FetchWorkers = DefaultEngineConfig().FetchWorkers
	}
	return &Engine{dir: dir, config: config}
}

// RecommendEvents returns up to limit active events the user does not yet
// attend, ordered by descending match score (ties broken by descending
// attendee count). Users with no interests get the most recently created
// active events instead, each scored 0.
//
// Directory failures are swallowed: the call logs, records a degraded
// outcome, and returns nil. Callers cannot distinguish "no matches" from
// "fetch failed" here; that distinction lives in the logs and metrics.
func (e *Engine) RecommendEvents(ctx context.Context, userID string, limit int) []RecommendedEvent {
	start := time.Now()

	recs, err := e.recommendEvents(ctx, userID, limit)
	metrics.RecommendationLatency.WithLabelValues("events").Observe(time.Since(start).Seconds())
	if err != nil {
		log.Printf("[recommend] events for user=%s: %v (returning none)", userID, err)
		metrics.RecommendationRequests.WithLabelValues("events", "degraded").Inc()
		return nil
	}

	metrics.RecommendationRequests.WithLabelValues("events", outcome(len(recs))).Inc()
	return recs
}

// RecommendPeople returns up to limit other users ranked by combined
// interest and shared-event overlap. Candidates with a zero score are
// excluded entirely, even when that leaves fewer than limit results.
//
// Failure semantics match RecommendEvents: any Directory error yields nil.
func (e *Engine) RecommendPeople(ctx context.Context, userID string, limit int) []RecommendedPerson {
	start := time.Now()

	recs, err := e.recommendPeople(ctx, userID, limit)
	metrics.RecommendationLatency.WithLabelValues("people").Observe(time.Since(start).Seconds())
	if err != nil {
		log.Printf("[recommend] people for user=%s: %v (returning none)", userID, err)
		metrics.RecommendationRequests.WithLabelValues("people", "degraded").Inc()
		return nil
	}

	metrics.RecommendationRequests.WithLabelValues("people", outcome(len(recs))).Inc()
	return recs
}

func outcome(n int) string {
	if n == 0 {
		return "empty"
	}
	return "ok"
}

// recommendEvents is the fallible implementation behind RecommendEvents.
func (e *Engine) recommendEvents(ctx context.Context, userID string, limit int) ([]RecommendedEvent, error) {
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}

	interests, err := e.dir.UserInterests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommend: user interests: %w", err)
	}

	// Users with no interests get plain recency: the fetch order is already
	// the ranking, so only the attendee counts need attaching.
	if len(interests) == 0 {
		return e.recentEvents(ctx, limit)
	}

	attendedIDs, err := e.dir.UserEventIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommend: attended events: %w", err)
	}
	attended := stringSet(attendedIDs)

	events, err := e.dir.ActiveEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("recommend: active events: %w", err)
	}

	candidates := make([]Event, 0, len(events))
	for _, ev := range events {
		if _, ok := attended[ev.ID]; ok {
			continue
		}
		candidates = append(candidates, ev)
	}
	metrics.CandidatePoolSize.WithLabelValues("events").Observe(float64(len(candidates)))

	recs := make([]RecommendedEvent, len(candidates))
	err = e.forEach(len(candidates), func(i int) error {
		ev := candidates[i]
		count, err := e.dir.AttendeeCount(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("recommend: attendee count for event=%s: %w", ev.ID, err)
		}

		matching := MatchingInterests(ev.Interests, interests)
		recs[i] = RecommendedEvent{
			Event:             ev,
			MatchScore:        float64(len(matching)) / float64(max(len(interests), 1)),
			MatchingInterests: matching,
			AttendeeCount:     count,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].MatchScore != recs[j].MatchScore {
			return recs[i].MatchScore > recs[j].MatchScore
		}
		return recs[i].AttendeeCount > recs[j].AttendeeCount
	})

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// recentEvents implements the empty-interest fallback: the most recently
// created active events, scored 0 with live attendee counts attached.
func (e *Engine) recentEvents(ctx context.Context, limit int) ([]RecommendedEvent, error) {
	events, err := e.dir.RecentActiveEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recommend: recent events: %w", err)
	}

	recs := make([]RecommendedEvent, len(events))
	err = e.forEach(len(events), func(i int) error {
		count, err := e.dir.AttendeeCount(ctx, events[i].ID)
		if err != nil {
			return fmt.Errorf("recommend: attendee count for event=%s: %w", events[i].ID, err)
		}
		recs[i] = RecommendedEvent{
			Event:             events[i],
			MatchScore:        0,
			MatchingInterests: []string{},
			AttendeeCount:     count,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// recommendPeople is the fallible implementation behind RecommendPeople.
func (e *Engine) recommendPeople(ctx context.Context, userID string, limit int) ([]RecommendedPerson, error) {
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}

	interests, err := e.dir.UserInterests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommend: user interests: %w", err)
	}

	ownEventIDs, err := e.dir.UserEventIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommend: attended events: %w", err)
	}
	ownEvents := stringSet(ownEventIDs)

	profiles, err := e.dir.OtherProfiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommend: other profiles: %w", err)
	}
	metrics.CandidatePoolSize.WithLabelValues("people").Observe(float64(len(profiles)))

	scored := make([]RecommendedPerson, len(profiles))
	err = e.forEach(len(profiles), func(i int) error {
		p := profiles[i]

		theirInterests, err := e.dir.UserInterests(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("recommend: interests for user=%s: %w", p.ID, err)
		}
		theirEventIDs, err := e.dir.UserEventIDs(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("recommend: events for user=%s: %w", p.ID, err)
		}

		matching := MatchingInterests(theirInterests, interests)

		mutual := make([]string, 0, len(theirEventIDs))
		for _, id := range theirEventIDs {
			if _, ok := ownEvents[id]; ok {
				mutual = append(mutual, id)
			}
		}

		interestScore := float64(len(matching)) / float64(max(len(interests), 1))
		eventScore := float64(len(mutual)) / float64(max(len(ownEventIDs), 1))

		scored[i] = RecommendedPerson{
			Profile:           p,
			Interests:         theirInterests,
			MatchScore:        personInterestWeight*interestScore + personEventWeight*eventScore,
			MatchingInterests: matching,
			MutualEvents:      mutual,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Strict zero-score filter: nothing in common means no recommendation,
	// even if that leaves the result short of the limit.
	recs := make([]RecommendedPerson, 0, len(scored))
	for _, rec := range scored {
		if rec.MatchScore > 0 {
			recs = append(recs, rec)
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].MatchScore != recs[j].MatchScore {
			return recs[i].MatchScore > recs[j].MatchScore
		}
		return recs[i].ID < recs[j].ID
	})

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// forEach runs fn(i) for i in [0, n) on a bounded pool of goroutines and
// waits for all of them. The first error wins; remaining work still runs to
// completion but its results are discarded by the caller. A cancelled
// context surfaces as an error so outstanding fetches abort with it.
func (e *Engine) forEach(n int, fn func(i int) error) error {
	sem := make(chan struct{}, e.config.FetchWorkers)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{} // Acquire semaphore slot.

		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore slot.

			if err := fn(i); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	return firstErr
}
