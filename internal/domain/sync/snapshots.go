package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/servemehq/chat-api/internal/domain/message"
	"github.com/servemehq/chat-api/internal/domain/notification"
)

// StoreSnapshots loads scope snapshots from the message and notification
// repositories. The repositories return rows already in feed order.
type StoreSnapshots struct {
	messages      message.Repository
	notifications notification.Repository
}

func NewStoreSnapshots(messages message.Repository, notifications notification.Repository) *StoreSnapshots {
	return &StoreSnapshots{messages: messages, notifications: notifications}
}

func (s *StoreSnapshots) Load(ctx context.Context, scope Scope) ([]Item, error) {
	switch sc := scope.(type) {
	case ConversationScope:
		msgs, err := s.messages.ListBetween(ctx, sc.UserA, sc.UserB)
		if err != nil {
			return nil, fmt.Errorf("load conversation snapshot: %w", err)
		}
		items := make([]Item, 0, len(msgs))
		for i := range msgs {
			payload, err := json.Marshal(&msgs[i])
			if err != nil {
				return nil, fmt.Errorf("encode message %s: %w", msgs[i].ID, err)
			}
			items = append(items, Item{ID: msgs[i].ID, CreatedAt: msgs[i].CreatedAt, Payload: payload})
		}
		return items, nil

	case NotificationScope:
		rows, err := s.notifications.ListByUser(ctx, sc.UserID)
		if err != nil {
			return nil, fmt.Errorf("load notification snapshot: %w", err)
		}
		items := make([]Item, 0, len(rows))
		for i := range rows {
			payload, err := json.Marshal(&rows[i])
			if err != nil {
				return nil, fmt.Errorf("encode notification %s: %w", rows[i].ID, err)
			}
			items = append(items, Item{ID: rows[i].ID, CreatedAt: rows[i].CreatedAt, Payload: payload})
		}
		return items, nil

	default:
		return nil, fmt.Errorf("unsupported scope %T", scope)
	}
}
