package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/config"
	domain "github.com/servemehq/chat-api/internal/domain/message"
	"github.com/servemehq/chat-api/internal/infrastructure/auth"
)

// MessageHandler exposes messaging endpoints.
type MessageHandler struct {
	cfg     *config.Config
	service *domain.Service
	log     zerolog.Logger
}

func NewMessageHandler(cfg *config.Config, service *domain.Service, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		cfg:     cfg,
		service: service,
		log:     log.With().Str("component", "message-handler").Logger(),
	}
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id" form:"receiver_id" binding:"required"`
	Content    string `json:"content" form:"content"`
}

// Send godoc
// @Summary      Send a message
// @Description  Sends a text and/or media message to another user. Use multipart/form-data to attach a file.
// @Tags         messages
// @Accept       json
// @Accept       mpfd
// @Produce      json
// @Param        receiver_id  formData  string  true   "Receiver user id"
// @Param        content      formData  string  false  "Text content"
// @Param        attachment   formData  file    false  "Media attachment"
// @Success      201  {object}  domain.Message
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /v1/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown caller identity"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sendReq := domain.SendRequest{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		attachment, err := h.readAttachment(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sendReq.Attachment = attachment
	}

	msg, err := h.service.Send(c.Request.Context(), sendReq)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error().Err(err).Str("sender_id", userID).Msg("send failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// ListInbox godoc
// @Summary      List conversations
// @Description  Returns the caller's conversations with the latest message each, most recently active first.
// @Tags         messages
// @Produce      json
// @Success      200  {array}  domain.ConversationSummary
// @Security     ApiKeyAuth
// @Router       /v1/conversations [get]
func (h *MessageHandler) ListInbox(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown caller identity"})
		return
	}

	summaries, err := h.service.ListInbox(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("list inbox failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// ListConversation godoc
// @Summary      List conversation messages
// @Description  Returns the full message history with the given peer, oldest first.
// @Tags         messages
// @Produce      json
// @Param        peer_id  path  string  true  "Peer user id"
// @Success      200  {array}  domain.Message
// @Security     ApiKeyAuth
// @Router       /v1/conversations/{peer_id}/messages [get]
func (h *MessageHandler) ListConversation(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown caller identity"})
		return
	}

	msgs, err := h.service.ListConversation(c.Request.Context(), userID, c.Param("peer_id"))
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("list conversation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// MarkRead godoc
// @Summary      Mark a message read
// @Description  Records the read_at transition. Only the receiver may mark a message read; repeats are no-ops.
// @Tags         messages
// @Produce      json
// @Param        id  path  string  true  "Message id"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /v1/messages/{id}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
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
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, domain.ErrNotReceiver):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the receiver can mark a message read"})
	default:
		h.log.Error().Err(err).Str("user_id", userID).Msg("mark read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark message read"})
	}
}

func (h *MessageHandler) readAttachment(c *gin.Context) (*domain.Attachment, error) {
	fileHeader, err := c.FormFile("attachment")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	if fileHeader.Size > h.cfg.MaxAttachmentBytes {
		return nil, domain.ErrAttachmentTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxAttachmentBytes+1))
	if err != nil {
		return nil, err
	}
	return &domain.Attachment{Filename: fileHeader.Filename, Data: data}, nil
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrEmptyMessage) ||
		errors.Is(err, domain.ErrAttachmentTooLarge) ||
		errors.Is(err, domain.ErrEmptyAttachment) ||
		errors.Is(err, domain.ErrMissingParticipant) ||
		errors.Is(err, domain.ErrSelfConversation)
}
