package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/domain/notification"
	"github.com/servemehq/chat-api/internal/infrastructure/metrics"
)

var (
	ErrInvalidScope  = errors.New("subscription scope has empty participants")
	ErrEngineClosed  = errors.New("sync engine is closed")
	ErrSubscribeBus  = errors.New("change feed subscription failed")
	ErrSnapshotLoad  = errors.New("snapshot load failed")
	errAlreadyClosed = errors.New("subscription already closed")
)

const eventBuffer = 64

// Snapshots loads the authoritative ordered state for a scope, used on
// subscribe and again after every detected reconnect.
type Snapshots interface {
	Load(ctx context.Context, scope Scope) ([]Item, error)
}

// Subscription is one live feed handle. Events carries only events that
// changed the merged list; Snapshot returns the current ordered state.
type Subscription struct {
	scope  Scope
	events chan Event

	mu     gosync.Mutex
	feed   *Feed
	busSub BusSubscription
	closed bool
}

// Events streams post-merge events. The channel closes on Unsubscribe.
func (s *Subscription) Events() <-chan Event { return s.events }

// Scope returns the scope this subscription covers.
func (s *Subscription) Scope() Scope { return s.scope }

// Snapshot returns a copy of the merged ordered list.
func (s *Subscription) Snapshot() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed.Items()
}

func (s *Subscription) deliver(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	applied := s.feed.Apply(e.Op, Item{ID: e.ID, CreatedAt: e.CreatedAt, Payload: e.Payload})
	if !applied {
		metrics.RecordFeedEvent("duplicate")
		return
	}
	metrics.RecordFeedEvent("applied")
	select {
	case s.events <- e:
	default:
		// A stalled consumer must not block the bus callback; the consumer
		// still converges through Snapshot.
	}
}

func (s *Subscription) resync(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.feed.Replace(items)
	select {
	case s.events <- Event{Op: OpResync}:
	default:
	}
}

func (s *Subscription) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errAlreadyClosed
	}
	s.closed = true
	busSub := s.busSub
	close(s.events)
	s.mu.Unlock()

	if busSub != nil {
		return busSub.Unsubscribe()
	}
	return nil
}

// Engine owns every live subscription. It merges change-feed events into
// per-scope feeds, invalidates unread counts on notification traffic and
// replaces feeds with fresh snapshots after the bus reports a reconnect.
type Engine struct {
	bus       Bus
	snapshots Snapshots
	counter   *notification.Counter
	log       zerolog.Logger

	mu     gosync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewEngine(bus Bus, snapshots Snapshots, counter *notification.Counter, log zerolog.Logger) *Engine {
	e := &Engine{
		bus:       bus,
		snapshots: snapshots,
		counter:   counter,
		log:       log.With().Str("component", "sync-engine").Logger(),
		subs:      make(map[*Subscription]struct{}),
	}
	bus.OnStatusChange(e.onStatus)
	return e
}

// Subscribe opens one live feed for the scope: a snapshot load followed by
// merged change-feed delivery. The caller must Unsubscribe when the view
// unmounts or the user signs out; leaked handles keep delivering.
func (e *Engine) Subscribe(ctx context.Context, scope Scope) (*Subscription, error) {
	if !ValidTopic(scope.Topic()) {
		return nil, ErrInvalidScope
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.mu.Unlock()

	items, err := e.snapshots.Load(ctx, scope)
	if err != nil {
		return nil, errors.Join(ErrSnapshotLoad, err)
	}

	sub := &Subscription{
		scope:  scope,
		events: make(chan Event, eventBuffer),
		feed:   NewFeed(),
	}
	sub.feed.Replace(items)

	busSub, err := e.bus.Subscribe(scope.Topic(), func(event Event) {
		if ns, ok := scope.(NotificationScope); ok {
			e.counter.Invalidate(ns.UserID)
		}
		sub.deliver(event)
	})
	if err != nil {
		return nil, errors.Join(ErrSubscribeBus, err)
	}
	sub.mu.Lock()
	sub.busSub = busSub
	sub.mu.Unlock()

	// Re-check under the registration lock: Close may have run while the
	// snapshot loaded, and a subscription registered after that would leak a
	// live bus handler on a dead engine.
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		if err := sub.close(); err != nil && !errors.Is(err, errAlreadyClosed) {
			e.log.Warn().Err(err).Msg("bus unsubscribe failed")
		}
		return nil, ErrEngineClosed
	}
	e.subs[sub] = struct{}{}
	e.mu.Unlock()
	metrics.ActiveSubscriptions.WithLabelValues(scope.Label()).Inc()

	e.log.Debug().Str("topic", scope.Topic()).Msg("subscription opened")
	return sub, nil
}

// Unsubscribe tears the subscription down synchronously: after it returns no
// further events are delivered, even ones already in flight on the bus.
// Unsubscribing twice is a no-op.
func (e *Engine) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	if err := sub.close(); err != nil {
		if !errors.Is(err, errAlreadyClosed) {
			e.log.Warn().Err(err).Msg("bus unsubscribe failed")
		}
		if errors.Is(err, errAlreadyClosed) {
			return
		}
	}

	e.mu.Lock()
	delete(e.subs, sub)
	e.mu.Unlock()
	metrics.ActiveSubscriptions.WithLabelValues(sub.scope.Label()).Dec()
	e.log.Debug().Str("topic", sub.scope.Topic()).Msg("subscription closed")
}

// Close tears down every open subscription, for shutdown.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	subs := make([]*Subscription, 0, len(e.subs))
	for sub := range e.subs {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		e.Unsubscribe(sub)
	}
}

// onStatus reacts to transport transitions. Events emitted during a gap are
// lost, so a reconnect forces a full snapshot reload per subscription rather
// than trusting a diff.
func (e *Engine) onStatus(status Status) {
	if status != StatusReconnected {
		if status == StatusDisconnected {
			e.log.Warn().Msg("change feed disconnected")
		}
		return
	}

	e.mu.Lock()
	subs := make([]*Subscription, 0, len(e.subs))
	for sub := range e.subs {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	e.log.Info().Int("subscriptions", len(subs)).Msg("change feed reconnected, resyncing")
	for _, sub := range subs {
		go e.resyncOne(sub)
	}
}

func (e *Engine) resyncOne(sub *Subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	items, err := e.snapshots.Load(ctx, sub.scope)
	if err != nil {
		e.log.Error().Err(err).Str("topic", sub.scope.Topic()).Msg("resync snapshot failed")
		return
	}
	sub.resync(items)
}
