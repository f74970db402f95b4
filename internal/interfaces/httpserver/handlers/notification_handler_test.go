package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/domain/notification"
	"github.com/servemehq/chat-api/internal/infrastructure/auth"
)

type stubNotificationRepo struct {
	readIDs map[string]bool
}

func (s *stubNotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	return nil
}

func (s *stubNotificationRepo) ListByUser(ctx context.Context, userID string) ([]notification.Notification, error) {
	return []notification.Notification{}, nil
}

func (s *stubNotificationRepo) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	read, ok := s.readIDs[id]
	if !ok {
		return false, notification.ErrNotFound
	}
	if read {
		return false, nil
	}
	s.readIDs[id] = true
	return true, nil
}

func (s *stubNotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (s *stubNotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type stubNotificationEvents struct{}

func (stubNotificationEvents) NotificationCreated(ctx context.Context, n *notification.Notification) {
}
func (stubNotificationEvents) NotificationRead(ctx context.Context, n *notification.Notification) {}

func notificationTestRouter(repo *stubNotificationRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	counter := notification.NewCounter(repo, time.Hour, zerolog.Nop())
	svc := notification.NewService(repo, stubNotificationEvents{}, counter, 24*time.Hour, zerolog.Nop())
	handler := NewNotificationHandler(svc, zerolog.Nop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(auth.UserIDKey, "bob")
	})
	router.POST("/v1/notifications/:id/read", handler.MarkRead)
	return router
}

func TestNotificationMarkReadStatuses(t *testing.T) {
	repo := &stubNotificationRepo{readIDs: map[string]bool{"n-1": false}}
	router := notificationTestRouter(repo)

	tests := []struct {
		name           string
		notificationID string
		wantStatus     int
	}{
		{name: "first read", notificationID: "n-1", wantStatus: http.StatusNoContent},
		{name: "repeat read is a no-op", notificationID: "n-1", wantStatus: http.StatusNoContent},
		{name: "unknown notification", notificationID: "nope", wantStatus: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/notifications/"+tc.notificationID+"/read", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("got status %d, want %d: %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}
}
