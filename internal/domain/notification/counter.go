package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// UnreadStore is the slice of Repository the counter needs.
type UnreadStore interface {
	CountUnread(ctx context.Context, userID string) (int64, error)
}

type counterEntry struct {
	count     int64
	fetchedAt time.Time
	// observed is the last value handed to an Observe caller, used to gate
	// user-facing alerts on an actual increase.
	observed    int64
	hasObserved bool
}

// Counter caches per-user unread counts. A cached value expires after the
// poll interval, so the displayed count converges with the store within one
// interval even if every realtime invalidation is lost. Invalidate drops the
// cache entry; the next Get recomputes (last write wins by recomputation).
type Counter struct {
	store        UnreadStore
	pollInterval time.Duration
	log          zerolog.Logger

	mu      sync.Mutex
	entries map[string]*counterEntry
	now     func() time.Time
}

func NewCounter(store UnreadStore, pollInterval time.Duration, log zerolog.Logger) *Counter {
	return &Counter{
		store:        store,
		pollInterval: pollInterval,
		log:          log.With().Str("component", "unread-counter").Logger(),
		entries:      make(map[string]*counterEntry),
		now:          time.Now,
	}
}

// Get returns the user's unread count, recomputing from the store when the
// cached value is missing or stale.
func (c *Counter) Get(ctx context.Context, userID string) (int64, error) {
	c.mu.Lock()
	entry, ok := c.entries[userID]
	if ok && c.now().Sub(entry.fetchedAt) < c.pollInterval {
		count := entry.count
		c.mu.Unlock()
		return count, nil
	}
	c.mu.Unlock()

	count, err := c.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok = c.entries[userID]
	if !ok {
		entry = &counterEntry{}
		c.entries[userID] = entry
	}
	entry.count = count
	entry.fetchedAt = c.now()
	return count, nil
}

// Invalidate drops the cached value so the next Get recomputes. Called on
// local send/read actions and on realtime notification events.
func (c *Counter) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[userID]; ok {
		entry.fetchedAt = time.Time{}
	}
}

// Observe returns the current count and whether it increased since the last
// Observe call for this user. Alert paths key off the increase, not off raw
// delivery events, so a push and a realtime event for the same notification
// produce at most one alert.
func (c *Counter) Observe(ctx context.Context, userID string) (int64, bool, error) {
	count, err := c.Get(ctx, userID)
	if err != nil {
		return 0, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entries[userID]
	if entry == nil {
		// Forget raced the Get above; start a fresh entry.
		entry = &counterEntry{count: count, fetchedAt: c.now()}
		c.entries[userID] = entry
	}
	increased := entry.hasObserved && count > entry.observed
	if !entry.hasObserved {
		// First observation establishes the baseline without alerting.
		increased = false
	}
	entry.observed = count
	entry.hasObserved = true
	return count, increased, nil
}

// Forget removes all cached state for the user, for sign-out.
func (c *Counter) Forget(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}
