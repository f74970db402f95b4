package changefeed

import (
	"context"
	gosync "sync"

	"github.com/servemehq/chat-api/internal/domain/sync"
)

// MemoryBus is an in-process change feed for single-node deployments and
// tests. Delivery is synchronous: Publish returns after every subscriber
// handler has run.
type MemoryBus struct {
	mu       gosync.RWMutex
	subs     map[string]map[*memorySubscription]struct{}
	statusFn []func(sync.Status)
}

type memorySubscription struct {
	bus     *MemoryBus
	topic   string
	handler func(sync.Event)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*memorySubscription]struct{})}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, event sync.Event) error {
	b.mu.RLock()
	targets := make([]*memorySubscription, 0, len(b.subs[topic]))
	for sub := range b.subs[topic] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub.handler(event)
	}
	return nil
}

func (b *MemoryBus) Subscribe(topic string, handler func(sync.Event)) (sync.BusSubscription, error) {
	sub := &memorySubscription{bus: b, topic: topic, handler: handler}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBus) OnStatusChange(fn func(sync.Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusFn = append(b.statusFn, fn)
}

// EmitStatus fans a transport status transition out to registered callbacks.
// The in-process transport never drops on its own; tests use this to simulate
// disconnect/reconnect cycles.
func (b *MemoryBus) EmitStatus(status sync.Status) {
	b.mu.RLock()
	fns := make([]func(sync.Status), len(b.statusFn))
	copy(fns, b.statusFn)
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(status)
	}
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if set, ok := s.bus.subs[s.topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.bus.subs, s.topic)
		}
	}
	return nil
}
