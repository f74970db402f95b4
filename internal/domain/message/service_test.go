package message

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/config"
)

type mockRepo struct {
	createFn   func(ctx context.Context, msg *Message) error
	getByIDFn  func(ctx context.Context, id string) (*Message, error)
	markReadFn func(ctx context.Context, id string, at time.Time) (bool, error)
	created    []*Message
}

func (m *mockRepo) Create(ctx context.Context, msg *Message) error {
	m.created = append(m.created, msg)
	if m.createFn != nil {
		return m.createFn(ctx, msg)
	}
	msg.ID = "msg-1"
	msg.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Message, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *mockRepo) ListBetween(ctx context.Context, userA, userB string) ([]Message, error) {
	return nil, nil
}

func (m *mockRepo) ListInbox(ctx context.Context, userID string) ([]ConversationSummary, error) {
	return nil, nil
}

func (m *mockRepo) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, id, at)
	}
	return false, nil
}

type mockStorage struct {
	uploadFn func(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	uploads  []string
}

func (m *mockStorage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	m.uploads = append(m.uploads, key)
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, body, size, contentType)
	}
	return nil
}

func (m *mockStorage) PublicURL(key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

type mockEvents struct {
	created []*Message
	read    []*Message
}

func (m *mockEvents) MessageCreated(ctx context.Context, msg *Message) {
	m.created = append(m.created, msg)
}

func (m *mockEvents) MessageRead(ctx context.Context, msg *Message) {
	m.read = append(m.read, msg)
}

type mockNotifier struct {
	notifyFn func(ctx context.Context, userID, notificationType, text string) error
	calls    []string
}

func (m *mockNotifier) Notify(ctx context.Context, userID, notificationType, text string) error {
	m.calls = append(m.calls, userID)
	if m.notifyFn != nil {
		return m.notifyFn(ctx, userID, notificationType, text)
	}
	return nil
}

func newTestService(repo *mockRepo, store *mockStorage, events *mockEvents, notifier *mockNotifier) *Service {
	cfg := &config.Config{MaxAttachmentBytes: 1024}
	return NewService(cfg, repo, store, events, notifier, zerolog.Nop())
}

func TestSendValidationRejectsBeforeAnyIO(t *testing.T) {
	tests := []struct {
		name    string
		req     SendRequest
		wantErr error
	}{
		{
			name:    "missing sender",
			req:     SendRequest{ReceiverID: "bob", Content: "hi"},
			wantErr: ErrMissingParticipant,
		},
		{
			name:    "missing receiver",
			req:     SendRequest{SenderID: "alice", Content: "hi"},
			wantErr: ErrMissingParticipant,
		},
		{
			name:    "self conversation",
			req:     SendRequest{SenderID: "alice", ReceiverID: "alice", Content: "hi"},
			wantErr: ErrSelfConversation,
		},
		{
			name:    "no content and no attachment",
			req:     SendRequest{SenderID: "alice", ReceiverID: "bob", Content: "   "},
			wantErr: ErrEmptyMessage,
		},
		{
			name: "empty attachment",
			req: SendRequest{
				SenderID: "alice", ReceiverID: "bob",
				Attachment: &Attachment{Filename: "a.bin"},
			},
			wantErr: ErrEmptyAttachment,
		},
		{
			name: "oversized attachment",
			req: SendRequest{
				SenderID: "alice", ReceiverID: "bob",
				Attachment: &Attachment{Filename: "a.bin", Data: make([]byte, 2048)},
			},
			wantErr: ErrAttachmentTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockRepo{}
			store := &mockStorage{}
			svc := newTestService(repo, store, &mockEvents{}, &mockNotifier{})

			_, err := svc.Send(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got error %v, want %v", err, tc.wantErr)
			}
			if len(store.uploads) != 0 {
				t.Error("validation failure reached storage")
			}
			if len(repo.created) != 0 {
				t.Error("validation failure reached the repository")
			}
		})
	}
}

func TestSendTextOnlyNotifiesAfterPersist(t *testing.T) {
	repo := &mockRepo{}
	events := &mockEvents{}
	notifier := &mockNotifier{}
	svc := newTestService(repo, &mockStorage{}, events, notifier)

	msg, err := svc.Send(context.Background(), SendRequest{
		SenderID: "alice", ReceiverID: "bob", Content: "hello",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if msg.Type != TypeText || msg.Content == nil || *msg.Content != "hello" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if len(events.created) != 1 {
		t.Errorf("got %d created events, want 1", len(events.created))
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != "bob" {
		t.Errorf("notifier calls = %v, want exactly one for bob", notifier.calls)
	}
}

func TestSendAttachmentUploadsUnderSenderPrefix(t *testing.T) {
	repo := &mockRepo{}
	store := &mockStorage{}
	svc := newTestService(repo, store, &mockEvents{}, &mockNotifier{})

	msg, err := svc.Send(context.Background(), SendRequest{
		SenderID: "alice", ReceiverID: "bob",
		Attachment: &Attachment{Filename: "notes final.txt", Data: []byte("some plain text payload")},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(store.uploads) != 1 {
		t.Fatalf("got %d uploads, want 1", len(store.uploads))
	}
	key := store.uploads[0]
	if !strings.HasPrefix(key, "chat/alice/") {
		t.Errorf("key %q not namespaced by sender", key)
	}
	if strings.Contains(key, " ") {
		t.Errorf("key %q contains unsanitized characters", key)
	}
	if msg.MediaURL == nil || !strings.Contains(*msg.MediaURL, key) {
		t.Errorf("media url %v does not reference the uploaded key", msg.MediaURL)
	}
	if msg.Type != TypeFile {
		t.Errorf("got type %s, want file for text/plain payload", msg.Type)
	}
}

func TestSendUploadFailureAbortsWithoutPersist(t *testing.T) {
	repo := &mockRepo{}
	store := &mockStorage{
		uploadFn: func(context.Context, string, io.Reader, int64, string) error {
			return errors.New("blob store down")
		},
	}
	notifier := &mockNotifier{}
	svc := newTestService(repo, store, &mockEvents{}, notifier)

	_, err := svc.Send(context.Background(), SendRequest{
		SenderID: "alice", ReceiverID: "bob",
		Attachment: &Attachment{Filename: "a.bin", Data: []byte{1, 2, 3}},
	})
	if err == nil {
		t.Fatal("expected upload failure")
	}
	if len(repo.created) != 0 {
		t.Error("message persisted despite upload failure")
	}
	if len(notifier.calls) != 0 {
		t.Error("notification created despite upload failure")
	}
}

func TestSendPersistFailureCreatesNoNotification(t *testing.T) {
	repo := &mockRepo{
		createFn: func(context.Context, *Message) error {
			return errors.New("db down")
		},
	}
	events := &mockEvents{}
	notifier := &mockNotifier{}
	svc := newTestService(repo, &mockStorage{}, events, notifier)

	_, err := svc.Send(context.Background(), SendRequest{
		SenderID: "alice", ReceiverID: "bob",
		Attachment: &Attachment{Filename: "a.bin", Data: []byte{1, 2, 3}},
	})
	if err == nil {
		t.Fatal("expected persist failure")
	}
	if len(notifier.calls) != 0 {
		t.Error("notification created for unpersisted message")
	}
	if len(events.created) != 0 {
		t.Error("event published for unpersisted message")
	}
}

func TestSendSucceedsWhenNotifierFails(t *testing.T) {
	notifier := &mockNotifier{
		notifyFn: func(context.Context, string, string, string) error {
			return errors.New("notification store down")
		},
	}
	svc := newTestService(&mockRepo{}, &mockStorage{}, &mockEvents{}, notifier)

	if _, err := svc.Send(context.Background(), SendRequest{
		SenderID: "alice", ReceiverID: "bob", Content: "hello",
	}); err != nil {
		t.Fatalf("send should survive notifier failure, got %v", err)
	}
}

func TestMarkReadOnlyReceiver(t *testing.T) {
	stored := &Message{ID: "msg-1", SenderID: "alice", ReceiverID: "bob"}
	repo := &mockRepo{
		getByIDFn: func(context.Context, string) (*Message, error) { return stored, nil },
		markReadFn: func(context.Context, string, time.Time) (bool, error) {
			return true, nil
		},
	}
	events := &mockEvents{}
	svc := newTestService(repo, &mockStorage{}, events, &mockNotifier{})

	if err := svc.MarkRead(context.Background(), "msg-1", "alice"); !errors.Is(err, ErrNotReceiver) {
		t.Fatalf("sender marking read: got %v, want ErrNotReceiver", err)
	}
	if err := svc.MarkRead(context.Background(), "msg-1", "bob"); err != nil {
		t.Fatalf("receiver marking read: %v", err)
	}
	if len(events.read) != 1 {
		t.Errorf("got %d read events, want 1", len(events.read))
	}
}

func TestMarkReadRepeatPublishesNoEvent(t *testing.T) {
	stored := &Message{ID: "msg-1", SenderID: "alice", ReceiverID: "bob"}
	repo := &mockRepo{
		getByIDFn: func(context.Context, string) (*Message, error) { return stored, nil },
		markReadFn: func(context.Context, string, time.Time) (bool, error) {
			return false, nil
		},
	}
	events := &mockEvents{}
	svc := newTestService(repo, &mockStorage{}, events, &mockNotifier{})

	if err := svc.MarkRead(context.Background(), "msg-1", "bob"); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if len(events.read) != 0 {
		t.Errorf("repeat mark read published %d events, want 0", len(events.read))
	}
}
