package notification

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingStore struct {
	count int64
	calls int
}

func (s *countingStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	s.calls++
	return s.count, nil
}

func TestCounterCachesWithinPollInterval(t *testing.T) {
	store := &countingStore{count: 4}
	counter := NewCounter(store, 30*time.Second, zerolog.Nop())

	for i := 0; i < 3; i++ {
		count, err := counter.Get(context.Background(), "bob")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if count != 4 {
			t.Fatalf("got count %d, want 4", count)
		}
	}
	if store.calls != 1 {
		t.Errorf("store queried %d times, want 1", store.calls)
	}
}

func TestCounterRecomputesWhenStale(t *testing.T) {
	store := &countingStore{count: 4}
	counter := NewCounter(store, 30*time.Second, zerolog.Nop())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	counter.now = func() time.Time { return now }

	if _, err := counter.Get(context.Background(), "bob"); err != nil {
		t.Fatalf("get: %v", err)
	}

	// Even with every realtime invalidation lost, the count converges within
	// one poll interval.
	store.count = 7
	now = now.Add(31 * time.Second)

	count, err := counter.Get(context.Background(), "bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if count != 7 {
		t.Errorf("got count %d, want 7 after expiry", count)
	}
	if store.calls != 2 {
		t.Errorf("store queried %d times, want 2", store.calls)
	}
}

func TestCounterInvalidateForcesRecompute(t *testing.T) {
	store := &countingStore{count: 4}
	counter := NewCounter(store, time.Hour, zerolog.Nop())

	if _, err := counter.Get(context.Background(), "bob"); err != nil {
		t.Fatalf("get: %v", err)
	}

	store.count = 5
	counter.Invalidate("bob")

	count, err := counter.Get(context.Background(), "bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if count != 5 {
		t.Errorf("got count %d, want 5 after invalidation", count)
	}
}

func TestCounterObserveAlertsOnlyOnIncrease(t *testing.T) {
	store := &countingStore{count: 2}
	counter := NewCounter(store, time.Hour, zerolog.Nop())
	ctx := context.Background()

	// First observation baselines without alerting, whatever the count.
	if _, increased, _ := counter.Observe(ctx, "bob"); increased {
		t.Error("first observation must not alert")
	}

	store.count = 3
	counter.Invalidate("bob")
	if _, increased, _ := counter.Observe(ctx, "bob"); !increased {
		t.Error("increase should alert")
	}

	// Same count again: a second delivery path for the same notification.
	if _, increased, _ := counter.Observe(ctx, "bob"); increased {
		t.Error("unchanged count must not alert twice")
	}

	store.count = 1
	counter.Invalidate("bob")
	if _, increased, _ := counter.Observe(ctx, "bob"); increased {
		t.Error("decrease must not alert")
	}
}

func TestCounterForgetResetsBaseline(t *testing.T) {
	store := &countingStore{count: 2}
	counter := NewCounter(store, time.Hour, zerolog.Nop())
	ctx := context.Background()

	counter.Observe(ctx, "bob")
	counter.Forget("bob")

	store.count = 9
	if _, increased, _ := counter.Observe(ctx, "bob"); increased {
		t.Error("observation after forget must rebaseline without alerting")
	}
}
