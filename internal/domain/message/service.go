package message

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/servemehq/chat-api/internal/config"
	"github.com/servemehq/chat-api/internal/infrastructure/metrics"
)

var tracer = otel.Tracer("chat-api/message")

var (
	ErrEmptyMessage       = errors.New("message needs text content or an attachment")
	ErrAttachmentTooLarge = errors.New("attachment exceeds the configured size limit")
	ErrEmptyAttachment    = errors.New("attachment is empty")
	ErrMissingParticipant = errors.New("sender and receiver are required")
	ErrSelfConversation   = errors.New("sender and receiver must differ")
	ErrNotFound           = errors.New("message not found")
	ErrNotReceiver        = errors.New("only the receiver can mark a message read")
)

// Repository defines persistence operations needed by the service.
type Repository interface {
	// Create persists the message and maintains the materialized
	// conversation row for its participant pair.
	Create(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	// ListBetween returns every message exchanged between the two users in
	// either direction, ordered by created_at then id.
	ListBetween(ctx context.Context, userA, userB string) ([]Message, error)
	// ListInbox returns the newest message per conversation partner,
	// newest conversation first.
	ListInbox(ctx context.Context, userID string) ([]ConversationSummary, error)
	// MarkRead sets read_at if it is still null. Returns whether the row changed.
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
}

// Storage defines attachment blob operations.
type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PublicURL(key string) (string, error)
}

// Events receives change announcements after successful persistence.
type Events interface {
	MessageCreated(ctx context.Context, msg *Message)
	MessageRead(ctx context.Context, msg *Message)
}

// Notifier creates the receiver-side notification for a delivered message.
type Notifier interface {
	Notify(ctx context.Context, userID, notificationType, text string) error
}

// Service is the delivery pipeline: it validates a send, runs the
// upload-then-persist sequence and fans out the notification strictly after
// the message row is durable.
type Service struct {
	cfg      *config.Config
	repo     Repository
	storage  Storage
	events   Events
	notifier Notifier
	log      zerolog.Logger
}

func NewService(cfg *config.Config, repo Repository, storage Storage, events Events, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		repo:     repo,
		storage:  storage,
		events:   events,
		notifier: notifier,
		log:      log.With().Str("component", "message-service").Logger(),
	}
}

// Send validates, uploads the attachment if present, persists the message and
// triggers the receiver notification. Validation failures never reach storage
// or the database. A persist failure after a successful upload leaves an
// orphaned blob, which is logged and accepted; the message row stays the
// source of truth.
func (s *Service) Send(ctx context.Context, req SendRequest) (*Message, error) {
	ctx, span := tracer.Start(ctx, "message.send",
		trace.WithAttributes(attribute.Bool("message.has_attachment", req.Attachment != nil)))
	defer span.End()

	if req.SenderID == "" || req.ReceiverID == "" {
		return nil, ErrMissingParticipant
	}
	if req.SenderID == req.ReceiverID {
		return nil, ErrSelfConversation
	}
	content := strings.TrimSpace(req.Content)
	if content == "" && req.Attachment == nil {
		return nil, ErrEmptyMessage
	}

	msg := &Message{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Type:       TypeText,
	}
	if content != "" {
		msg.Content = &content
	}

	if req.Attachment != nil {
		size := int64(len(req.Attachment.Data))
		if size == 0 {
			return nil, ErrEmptyAttachment
		}
		if size > s.cfg.MaxAttachmentBytes {
			return nil, ErrAttachmentTooLarge
		}

		mime := mimetype.Detect(req.Attachment.Data).String()
		msg.Type = typeForMIME(mime)

		key := attachmentKey(req.SenderID, req.Attachment.Filename)
		if err := s.storage.Upload(ctx, key, bytes.NewReader(req.Attachment.Data), size, mime); err != nil {
			metrics.RecordAttachmentUpload(mime, "error", 0)
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
		metrics.RecordAttachmentUpload(mime, "success", size)

		url, err := s.storage.PublicURL(key)
		if err != nil {
			return nil, fmt.Errorf("resolve attachment url: %w", err)
		}
		msg.MediaURL = &url
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		if msg.MediaURL != nil {
			s.log.Warn().
				Str("media_url", *msg.MediaURL).
				Str("sender_id", req.SenderID).
				Msg("message persist failed after upload; attachment blob orphaned")
		}
		return nil, fmt.Errorf("persist message: %w", err)
	}
	metrics.RecordMessageSent(string(msg.Type))
	span.SetAttributes(attribute.String("message.type", string(msg.Type)))

	s.events.MessageCreated(ctx, msg)

	// The message is durable at this point; a notification failure must not
	// fail the send.
	if err := s.notifier.Notify(ctx, req.ReceiverID, "message", notificationText(msg)); err != nil {
		s.log.Warn().Err(err).Str("receiver_id", req.ReceiverID).Msg("notification fan-out failed")
	}

	return msg, nil
}

// ListConversation returns the full ordered message history between two users.
func (s *Service) ListConversation(ctx context.Context, userID, peerID string) ([]Message, error) {
	if userID == "" || peerID == "" {
		return nil, ErrMissingParticipant
	}
	return s.repo.ListBetween(ctx, userID, peerID)
}

// ListInbox returns the caller's conversation list, newest first.
func (s *Service) ListInbox(ctx context.Context, userID string) ([]ConversationSummary, error) {
	if userID == "" {
		return nil, ErrMissingParticipant
	}
	return s.repo.ListInbox(ctx, userID)
}

// MarkRead records the read_at transition. Only the receiver may read a
// message, and repeated calls are no-ops.
func (s *Service) MarkRead(ctx context.Context, messageID, readerID string) error {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != readerID {
		return ErrNotReceiver
	}

	now := time.Now().UTC()
	changed, err := s.repo.MarkRead(ctx, messageID, now)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if changed {
		msg.ReadAt = &now
		s.events.MessageRead(ctx, msg)
	}
	return nil
}

func typeForMIME(mime string) Type {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return TypeImage
	case strings.HasPrefix(mime, "video/"):
		return TypeVideo
	case strings.HasPrefix(mime, "audio/"):
		return TypeAudio
	default:
		return TypeFile
	}
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// attachmentKey namespaces blobs per sender and prefixes a ULID so concurrent
// uploads of identically named files never collide.
func attachmentKey(senderID, filename string) string {
	name := unsafeKeyChars.ReplaceAllString(filename, "_")
	if name == "" || name == "_" {
		name = "attachment"
	}
	return fmt.Sprintf("chat/%s/%s-%s", senderID, ulid.Make().String(), name)
}

func notificationText(msg *Message) string {
	if msg.Type != TypeText {
		return "You received a new " + string(msg.Type) + " message"
	}
	preview := []rune(*msg.Content)
	if len(preview) > 80 {
		preview = preview[:80]
	}
	return "New message: " + string(preview)
}
