package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/domain/sync"
)

// NATSBus is the multi-node change feed. Core NATS delivery is fire-and-forget
// per subscriber; events emitted while a node is disconnected are lost, which
// is acceptable because the engine resyncs from a full snapshot on reconnect.
type NATSBus struct {
	nc  *nats.Conn
	log zerolog.Logger

	mu       gosync.Mutex
	statusFn []func(sync.Status)
}

func NewNATSBus(url string, log zerolog.Logger) (*NATSBus, error) {
	bus := &NATSBus{log: log.With().Str("component", "nats-bus").Logger()}

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			bus.log.Warn().Err(err).Msg("nats disconnected")
			bus.emit(sync.StatusDisconnected)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			bus.log.Info().Msg("nats reconnected")
			bus.emit(sync.StatusReconnected)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			bus.log.Info().Msg("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	bus.nc = nc
	return bus, nil
}

func (b *NATSBus) Publish(ctx context.Context, topic string, event sync.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := b.nc.Publish(topic, data); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (b *NATSBus) Subscribe(topic string, handler func(sync.Event)) (sync.BusSubscription, error) {
	sub, err := b.nc.Subscribe(topic, func(msg *nats.Msg) {
		var event sync.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.log.Error().Err(err).Str("topic", msg.Subject).Msg("malformed change event dropped")
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return &natsSubscription{sub: sub}, nil
}

func (b *NATSBus) OnStatusChange(fn func(sync.Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusFn = append(b.statusFn, fn)
}

// Close drains the connection so in-flight handlers finish.
func (b *NATSBus) Close() {
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.log.Warn().Err(err).Msg("nats drain failed")
		}
	}
}

func (b *NATSBus) emit(status sync.Status) {
	b.mu.Lock()
	fns := make([]func(sync.Status), len(b.statusFn))
	copy(fns, b.statusFn)
	b.mu.Unlock()
	for _, fn := range fns {
		fn(status)
	}
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
