package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/config"
	"github.com/servemehq/chat-api/internal/domain/notification"
	"github.com/servemehq/chat-api/internal/domain/sync"
	"github.com/servemehq/chat-api/internal/infrastructure/auth"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Frame kinds sent to the client. A snapshot frame carries the full ordered
// list (on connect and after every resync); an event frame carries one merged
// change; an unread frame carries the counter with the alert gate applied.
type wsFrame struct {
	Type     string      `json:"type"`
	Event    *sync.Event `json:"event,omitempty"`
	Snapshot []sync.Item `json:"snapshot,omitempty"`
	Count    int64       `json:"count,omitempty"`
	Alert    bool        `json:"alert,omitempty"`
}

// WSHandler streams sync-engine feeds over a websocket.
type WSHandler struct {
	cfg     *config.Config
	engine  *sync.Engine
	counter *notification.Counter
	log     zerolog.Logger
}

func NewWSHandler(cfg *config.Config, engine *sync.Engine, counter *notification.Counter, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		cfg:     cfg,
		engine:  engine,
		counter: counter,
		log:     log.With().Str("component", "ws-handler").Logger(),
	}
}

// Stream godoc
// @Summary      Live feed stream
// @Description  Upgrades to a websocket delivering a snapshot frame followed by merged change events. scope=conversation streams one conversation (peer_id required); scope=notifications streams the caller's notification feed plus counter-gated unread alerts.
// @Tags         sync
// @Param        scope    query  string  true   "conversation or notifications"
// @Param        peer_id  query  string  false  "Peer user id for conversation scope"
// @Success      101
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /v1/ws [get]
func (h *WSHandler) Stream(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown caller identity"})
		return
	}

	var scope sync.Scope
	switch c.Query("scope") {
	case "conversation":
		peerID := c.Query("peer_id")
		if peerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "peer_id is required for conversation scope"})
			return
		}
		scope = sync.ConversationScope{UserA: userID, UserB: peerID}
	case "notifications":
		scope = sync.NotificationScope{UserID: userID}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be conversation or notifications"})
		return
	}

	sub, err := h.engine.Subscribe(c.Request.Context(), scope)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("subscribe failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open subscription"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.engine.Unsubscribe(sub)
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	defer h.engine.Unsubscribe(sub)
	defer conn.Close()

	go readPump(conn, cancel)

	h.writePump(ctx, conn, sub, userID, scope)
}

// writePump owns all writes to the connection. Every outbound frame leaves
// from this goroutine.
func (h *WSHandler) writePump(ctx context.Context, conn *websocket.Conn, sub *sync.Subscription, userID string, scope sync.Scope) {
	if !h.writeFrame(conn, wsFrame{Type: "snapshot", Snapshot: sub.Snapshot()}) {
		return
	}

	_, isNotificationScope := scope.(sync.NotificationScope)
	var pollCh <-chan time.Time
	if isNotificationScope {
		// Baseline the observation so the first poll never alerts for
		// notifications that predate the connection.
		if _, _, err := h.counter.Observe(ctx, userID); err != nil {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("unread baseline failed")
		}
		ticker := time.NewTicker(h.cfg.UnreadPollInterval)
		defer ticker.Stop()
		pollCh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, open := <-sub.Events():
			if !open {
				return
			}
			if event.Op == sync.OpResync {
				if !h.writeFrame(conn, wsFrame{Type: "snapshot", Snapshot: sub.Snapshot()}) {
					return
				}
			} else if !h.writeFrame(conn, wsFrame{Type: "event", Event: &event}) {
				return
			}
			if isNotificationScope && !h.sendUnread(ctx, conn, userID) {
				return
			}

		case <-pollCh:
			// Poll fallback: converges the count within one interval even if
			// every realtime invalidation was lost.
			if !h.sendUnread(ctx, conn, userID) {
				return
			}
		}
	}
}

// sendUnread emits the unread count. Alert is set only when the count
// actually increased since the last observation, so a push delivery and a
// realtime event for the same notification never double-alert.
func (h *WSHandler) sendUnread(ctx context.Context, conn *websocket.Conn, userID string) bool {
	count, increased, err := h.counter.Observe(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("unread observe failed")
		return true
	}
	return h.writeFrame(conn, wsFrame{Type: "unread", Count: count, Alert: increased})
}

func (h *WSHandler) writeFrame(conn *websocket.Conn, frame wsFrame) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(frame); err != nil {
		return false
	}
	return true
}

// readPump drains inbound frames so close and pong control messages are
// processed, cancelling the write side when the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
