package sync

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/domain/message"
	"github.com/servemehq/chat-api/internal/domain/notification"
)

// Broadcaster translates domain change announcements into change-feed events.
// Publish failures are logged and swallowed: the row is already durable and
// subscribers converge on the next snapshot or poll.
type Broadcaster struct {
	bus Bus
	log zerolog.Logger
}

func NewBroadcaster(bus Bus, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{bus: bus, log: log.With().Str("component", "broadcaster").Logger()}
}

func (b *Broadcaster) MessageCreated(ctx context.Context, msg *message.Message) {
	b.publishMessage(ctx, msg, OpInsert)
}

func (b *Broadcaster) MessageRead(ctx context.Context, msg *message.Message) {
	b.publishMessage(ctx, msg, OpUpdate)
}

func (b *Broadcaster) NotificationCreated(ctx context.Context, n *notification.Notification) {
	b.publishNotification(ctx, n, OpInsert)
}

func (b *Broadcaster) NotificationRead(ctx context.Context, n *notification.Notification) {
	b.publishNotification(ctx, n, OpUpdate)
}

func (b *Broadcaster) publishMessage(ctx context.Context, msg *message.Message, op Op) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.log.Error().Err(err).Str("message_id", msg.ID).Msg("encode message event")
		return
	}
	scope := ConversationScope{UserA: msg.SenderID, UserB: msg.ReceiverID}
	event := Event{
		ID:        msg.ID,
		Kind:      KindMessage,
		Op:        op,
		CreatedAt: msg.CreatedAt,
		Payload:   payload,
	}
	if err := b.bus.Publish(ctx, scope.Topic(), event); err != nil {
		b.log.Warn().Err(err).Str("topic", scope.Topic()).Str("message_id", msg.ID).Msg("publish message event failed")
	}
}

func (b *Broadcaster) publishNotification(ctx context.Context, n *notification.Notification, op Op) {
	payload, err := json.Marshal(n)
	if err != nil {
		b.log.Error().Err(err).Str("notification_id", n.ID).Msg("encode notification event")
		return
	}
	scope := NotificationScope{UserID: n.UserID}
	event := Event{
		ID:        n.ID,
		Kind:      KindNotification,
		Op:        op,
		CreatedAt: n.CreatedAt,
		Payload:   payload,
	}
	if err := b.bus.Publish(ctx, scope.Topic(), event); err != nil {
		b.log.Warn().Err(err).Str("topic", scope.Topic()).Str("notification_id", n.ID).Msg("publish notification event failed")
	}
}
