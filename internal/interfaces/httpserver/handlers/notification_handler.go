package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	domain "github.com/servemehq/chat-api/internal/domain/notification"
	"github.com/servemehq/chat-api/internal/infrastructure/auth"
)

// NotificationHandler exposes the notification inbox endpoints.
type NotificationHandler struct {
	service *domain.Service
	log     zerolog.Logger
}

func NewNotificationHandler(service *domain.Service, log zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     log.With().Str("component", "notification-handler").Logger(),
	}
}

// List godoc
// @Summary      List notifications
// @Description  Returns the caller's notifications, newest first.
// @Tags         notifications
// @Produce      json
// @Success      200  {array}  domain.Notification
// @Security     ApiKeyAuth
// @Router       /v1/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown caller identity"})
		return
	}

	rows, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("list notifications failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// MarkRead godoc
// @Summary      Mark a notification read
// @Description  Marks one notification read. Repeats are successful no-ops.
// @Tags         notifications
// @Produce      json
// @Param        id  path  string  true  "Notification id"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown caller identity"})
		return
	}

	err := h.service.MarkRead(c.Request.Context(), c.Param("id"), userID)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
	default:
		h.log.Error().Err(err).Str("user_id", userID).Msg("mark notification read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification read"})
	}
}

type unreadCountResponse struct {
	Count int64 `json:"count"`
}

// UnreadCount godoc
// @Summary      Unread notification count
// @Description  Returns the caller's unread notification count.
// @Tags         notifications
// @Produce      json
// @Success      200  {object}  unreadCountResponse
// @Security     ApiKeyAuth
// @Router       /v1/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown caller identity"})
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("unread count failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread notifications"})
		return
	}
	c.JSON(http.StatusOK, unreadCountResponse{Count: count})
}
