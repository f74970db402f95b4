package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/servemehq/chat-api/internal/domain/sync"
)

func TestMemoryBusDeliversToTopicSubscribers(t *testing.T) {
	bus := NewMemoryBus()

	var gotA, gotB []string
	if _, err := bus.Subscribe("chat.messages.a.b", func(e sync.Event) {
		gotA = append(gotA, e.ID)
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := bus.Subscribe("chat.notifications.bob", func(e sync.Event) {
		gotB = append(gotB, e.ID)
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	event := sync.Event{ID: "m1", Kind: sync.KindMessage, Op: sync.OpInsert, CreatedAt: time.Now()}
	if err := bus.Publish(context.Background(), "chat.messages.a.b", event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(gotA) != 1 || gotA[0] != "m1" {
		t.Errorf("conversation subscriber got %v, want [m1]", gotA)
	}
	if len(gotB) != 0 {
		t.Errorf("notification subscriber got %v, want none", gotB)
	}
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewMemoryBus()

	var got int
	sub, err := bus.Subscribe("chat.messages.a.b", func(sync.Event) { got++ })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	bus.Publish(context.Background(), "chat.messages.a.b", sync.Event{ID: "m1"})
	if got != 0 {
		t.Errorf("handler called %d times after unsubscribe", got)
	}
}

func TestMemoryBusEmitStatusFansOut(t *testing.T) {
	bus := NewMemoryBus()

	var seen []sync.Status
	bus.OnStatusChange(func(s sync.Status) { seen = append(seen, s) })
	bus.OnStatusChange(func(s sync.Status) { seen = append(seen, s) })

	bus.EmitStatus(sync.StatusReconnected)
	if len(seen) != 2 {
		t.Fatalf("got %d callbacks, want 2", len(seen))
	}
	for _, s := range seen {
		if s != sync.StatusReconnected {
			t.Errorf("got status %s, want reconnected", s)
		}
	}
}
