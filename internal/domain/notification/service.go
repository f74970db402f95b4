package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/infrastructure/metrics"
)

var (
	ErrNotFound    = errors.New("notification not found")
	ErrMissingUser = errors.New("user id is required")
)

// Repository defines persistence operations needed by the service.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
	// MarkRead flips is_read for the user's notification and reports whether
	// the row actually changed, so repeated calls stay idempotent. Returns
	// ErrNotFound when the user has no such notification.
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	// CountUnread counts unread rows for the user. Implementations must use
	// the notification table only, never the message table.
	CountUnread(ctx context.Context, userID string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Events receives change announcements after successful persistence.
type Events interface {
	NotificationCreated(ctx context.Context, n *Notification)
	NotificationRead(ctx context.Context, n *Notification)
}

// Service owns the notification inbox and its unread accounting.
type Service struct {
	repo      Repository
	events    Events
	counter   *Counter
	retention time.Duration
	log       zerolog.Logger
}

func NewService(repo Repository, events Events, counter *Counter, retention time.Duration, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		events:    events,
		counter:   counter,
		retention: retention,
		log:       log.With().Str("component", "notification-service").Logger(),
	}
}

// Notify creates a notification for the user and invalidates their unread
// count so the next read reflects it without waiting for the realtime path.
func (s *Service) Notify(ctx context.Context, userID, notificationType, text string) error {
	if userID == "" {
		return ErrMissingUser
	}
	n := &Notification{
		UserID:  userID,
		Type:    notificationType,
		Message: text,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	metrics.RecordNotificationCreated(notificationType)
	s.counter.Invalidate(userID)
	s.events.NotificationCreated(ctx, n)
	return nil
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.repo.ListByUser(ctx, userID)
}

// MarkRead marks one notification read. Repeating the call for an already
// read notification is a successful no-op and never double-decrements the
// unread count.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	changed, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.counter.Invalidate(userID)
	s.events.NotificationRead(ctx, &Notification{ID: id, UserID: userID, IsRead: true})
	return nil
}

// UnreadCount returns the user's unread notification count through the cache.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrMissingUser
	}
	return s.counter.Get(ctx, userID)
}

// PurgeExpired deletes notifications older than the retention window.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("purged expired notifications")
	}
	return deleted, nil
}
