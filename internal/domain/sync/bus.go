package sync

import "context"

// Status reflects the transport connection state as seen by the bus.
type Status int

const (
	StatusConnected Status = iota
	StatusDisconnected
	StatusReconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusReconnected:
		return "reconnected"
	default:
		return "unknown"
	}
}

// BusSubscription is a handle to one topic subscription.
type BusSubscription interface {
	Unsubscribe() error
}

// Bus is the store's subscribe-on-change primitive: publish delivers an event
// to every current subscriber of the topic. The bus is responsible for
// reconnecting its transport; it reports transitions through the status
// callback so the engine can resynchronize after a gap.
type Bus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(topic string, handler func(Event)) (BusSubscription, error)
	OnStatusChange(fn func(Status))
}
