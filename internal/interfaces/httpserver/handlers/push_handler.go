package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	domain "github.com/servemehq/chat-api/internal/domain/push"
	"github.com/servemehq/chat-api/internal/infrastructure/auth"
)

// PushHandler exposes push registration endpoints. The device runs the
// platform-facing half (permission prompt, agent install, token subscribe)
// and reports the outcome; the handler adapts that report into the state
// machine's platform interface.
type PushHandler struct {
	service *domain.Service
	log     zerolog.Logger
}

func NewPushHandler(service *domain.Service, log zerolog.Logger) *PushHandler {
	return &PushHandler{
		service: service,
		log:     log.With().Str("component", "push-handler").Logger(),
	}
}

type registerPushRequest struct {
	Permission         string          `json:"permission" binding:"required,oneof=undetermined granted denied"`
	AgentReady         bool            `json:"agent_ready"`
	AgentUpdateWaiting bool            `json:"agent_update_waiting"`
	Token              string          `json:"token"`
	Platform           string          `json:"platform"`
	Subscription       json.RawMessage `json:"subscription"`
}

type registerPushResponse struct {
	State          domain.State `json:"state"`
	ReloadRequired bool         `json:"reload_required,omitempty"`
}

// Register godoc
// @Summary      Register for push delivery
// @Description  Reports the device's permission/agent/token status and drives the registration state machine. Safe to call on every app start.
// @Tags         push
// @Accept       json
// @Produce      json
// @Param        request  body      registerPushRequest  true  "Device push status"
// @Success      200      {object}  registerPushResponse
// @Failure      400      {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /v1/push/registrations [post]
func (h *PushHandler) Register(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown caller identity"})
		return
	}

	var req registerPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platform := &devicePlatform{report: req}
	resp := registerPushResponse{}

	if req.AgentUpdateWaiting {
		reload, err := h.service.HandleAgentUpdate(c.Request.Context(), userID, platform)
		if err == nil {
			resp.ReloadRequired = reload
		}
	}

	state, err := h.service.EnsureRegistered(c.Request.Context(), userID, platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp.State = state
	c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary      List push registrations
// @Description  Returns the caller's persisted delivery registrations.
// @Tags         push
// @Produce      json
// @Success      200  {array}  domain.Registration
// @Security     ApiKeyAuth
// @Router       /v1/push/registrations [get]
func (h *PushHandler) List(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown caller identity"})
		return
	}

	regs, err := h.service.Registrations(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("list push registrations failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list registrations"})
		return
	}
	c.JSON(http.StatusOK, regs)
}

// devicePlatform adapts one device status report into the state machine's
// platform interface. The device has already done the interactive work, so
// every call resolves from the report instead of blocking on the platform.
type devicePlatform struct {
	report registerPushRequest
}

func (p *devicePlatform) Permission(ctx context.Context) (domain.Permission, error) {
	return domain.Permission(p.report.Permission), nil
}

func (p *devicePlatform) RequestPermission(ctx context.Context) (domain.Permission, error) {
	// The prompt already ran on the device; the report is the answer.
	return domain.Permission(p.report.Permission), nil
}

func (p *devicePlatform) RegisterAgent(ctx context.Context) error {
	return nil
}

func (p *devicePlatform) WaitReady(ctx context.Context) error {
	if !p.report.AgentReady {
		return errors.New("delivery agent not ready")
	}
	return nil
}

func (p *devicePlatform) Subscribe(ctx context.Context) (*domain.Token, error) {
	if p.report.Token == "" {
		return nil, errors.New("device reported no delivery token")
	}
	platform := p.report.Platform
	if platform == "" {
		platform = "web"
	}
	return &domain.Token{
		Value:        p.report.Token,
		Platform:     platform,
		Subscription: p.report.Subscription,
	}, nil
}

func (p *devicePlatform) ActivateWaiting(ctx context.Context) error {
	return nil
}
