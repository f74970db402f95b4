package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/servemehq/chat-api/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(provider *handlers.Provider) *Routes {
	return &Routes{handlers: provider}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(router gin.IRouter) {
	group := router.Group("/v1")

	group.POST("/messages", r.handlers.Message.Send)
	group.POST("/messages/:id/read", r.handlers.Message.MarkRead)
	group.GET("/conversations", r.handlers.Message.ListInbox)
	group.GET("/conversations/:peer_id/messages", r.handlers.Message.ListConversation)

	group.GET("/notifications", r.handlers.Notification.List)
	group.POST("/notifications/:id/read", r.handlers.Notification.MarkRead)
	group.GET("/notifications/unread-count", r.handlers.Notification.UnreadCount)

	group.POST("/push/registrations", r.handlers.Push.Register)
	group.GET("/push/registrations", r.handlers.Push.List)

	group.GET("/ws", r.handlers.WS.Stream)
}
