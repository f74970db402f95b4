package handlers

import (
	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/config"
	"github.com/servemehq/chat-api/internal/domain/message"
	"github.com/servemehq/chat-api/internal/domain/notification"
	"github.com/servemehq/chat-api/internal/domain/push"
	"github.com/servemehq/chat-api/internal/domain/sync"
)

// Provider wires HTTP handlers.
type Provider struct {
	Message      *MessageHandler
	Notification *NotificationHandler
	Push         *PushHandler
	WS           *WSHandler
}

func NewProvider(
	cfg *config.Config,
	messageService *message.Service,
	notificationService *notification.Service,
	pushService *push.Service,
	engine *sync.Engine,
	counter *notification.Counter,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Message:      NewMessageHandler(cfg, messageService, log),
		Notification: NewNotificationHandler(notificationService, log),
		Push:         NewPushHandler(pushService, log),
		WS:           NewWSHandler(cfg, engine, counter, log),
	}
}
