package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockNotificationRepo struct {
	createFn    func(ctx context.Context, n *Notification) error
	markReadFn  func(ctx context.Context, id, userID string) (bool, error)
	deleteFn    func(ctx context.Context, cutoff time.Time) (int64, error)
	created     []*Notification
	unreadCount int64
	unreadCalls int
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *Notification) error {
	m.created = append(m.created, n)
	if m.createFn != nil {
		return m.createFn(ctx, n)
	}
	n.ID = "n-1"
	n.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	return nil, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, id, userID)
	}
	return false, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	m.unreadCalls++
	return m.unreadCount, nil
}

func (m *mockNotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, cutoff)
	}
	return 0, nil
}

type recordingEvents struct {
	created []*Notification
	read    []*Notification
}

func (e *recordingEvents) NotificationCreated(ctx context.Context, n *Notification) {
	e.created = append(e.created, n)
}

func (e *recordingEvents) NotificationRead(ctx context.Context, n *Notification) {
	e.read = append(e.read, n)
}

func newNotificationService(repo *mockNotificationRepo, events *recordingEvents, retention time.Duration) *Service {
	counter := NewCounter(repo, time.Hour, zerolog.Nop())
	return NewService(repo, events, counter, retention, zerolog.Nop())
}

func TestNotifyPersistsAndPublishes(t *testing.T) {
	repo := &mockNotificationRepo{}
	events := &recordingEvents{}
	svc := newNotificationService(repo, events, 24*time.Hour)

	if err := svc.Notify(context.Background(), "bob", TypeMessage, "New message: hi"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("got %d rows, want 1", len(repo.created))
	}
	if len(events.created) != 1 {
		t.Errorf("got %d events, want 1", len(events.created))
	}
	if err := svc.Notify(context.Background(), "", TypeMessage, "x"); !errors.Is(err, ErrMissingUser) {
		t.Errorf("got %v, want ErrMissingUser", err)
	}
}

func TestNotifyFailurePublishesNothing(t *testing.T) {
	repo := &mockNotificationRepo{
		createFn: func(context.Context, *Notification) error { return errors.New("db down") },
	}
	events := &recordingEvents{}
	svc := newNotificationService(repo, events, 24*time.Hour)

	if err := svc.Notify(context.Background(), "bob", TypeMessage, "hi"); err == nil {
		t.Fatal("expected persist failure")
	}
	if len(events.created) != 0 {
		t.Error("event published for unpersisted notification")
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	changed := true
	repo := &mockNotificationRepo{
		markReadFn: func(context.Context, string, string) (bool, error) {
			was := changed
			changed = false
			return was, nil
		},
	}
	events := &recordingEvents{}
	svc := newNotificationService(repo, events, 24*time.Hour)

	if err := svc.MarkRead(context.Background(), "n-1", "bob"); err != nil {
		t.Fatalf("first mark read: %v", err)
	}
	if err := svc.MarkRead(context.Background(), "n-1", "bob"); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if len(events.read) != 1 {
		t.Errorf("got %d read events, want 1 (repeat must be a no-op)", len(events.read))
	}
}

func TestMarkReadUnknownNotification(t *testing.T) {
	repo := &mockNotificationRepo{
		markReadFn: func(context.Context, string, string) (bool, error) {
			return false, ErrNotFound
		},
	}
	events := &recordingEvents{}
	svc := newNotificationService(repo, events, 24*time.Hour)

	if err := svc.MarkRead(context.Background(), "nope", "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if len(events.read) != 0 {
		t.Error("read event published for unknown notification")
	}
}

func TestPurgeExpiredUsesRetentionWindow(t *testing.T) {
	var gotCutoff time.Time
	repo := &mockNotificationRepo{
		deleteFn: func(_ context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 3, nil
		},
	}
	svc := newNotificationService(repo, &recordingEvents{}, 24*time.Hour)

	deleted, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 3 {
		t.Errorf("got %d deleted, want 3", deleted)
	}

	wantCutoff := time.Now().Add(-24 * time.Hour)
	if diff := gotCutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff %v not within a minute of %v", gotCutoff, wantCutoff)
	}
}
