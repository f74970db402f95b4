package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/servemehq/chat-api/internal/domain/message"
	"github.com/servemehq/chat-api/internal/infrastructure/database/entities"
)

// Repository persists messages and maintains the materialized conversation
// rows backing inbox queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the message and upserts the conversation row for its
// participant pair in one transaction, bumping last_message_at.
func (r *Repository) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		convID, err := upsertConversation(tx, msg.SenderID, msg.ReceiverID, now)
		if err != nil {
			return err
		}

		entity := toEntity(msg)
		entity.ConversationID = convID
		if err := tx.Create(entity).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		msg.ID = entity.ID
		msg.ConversationID = entity.ConversationID
		msg.CreatedAt = entity.CreatedAt
		return nil
	})
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var entity entities.Message
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	return toDomain(&entity), nil
}

// ListBetween returns every message exchanged between the two users in either
// direction, oldest first with id as the tiebreak.
func (r *Repository) ListBetween(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	var rows []entities.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}

	out := make([]domain.Message, 0, len(rows))
	for i := range rows {
		out = append(out, *toDomain(&rows[i]))
	}
	return out, nil
}

// ListInbox returns one summary per conversation the user participates in,
// most recently active first.
func (r *Repository) ListInbox(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	var convs []entities.Conversation
	err := r.db.WithContext(ctx).
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]domain.ConversationSummary, 0, len(convs))
	for i := range convs {
		var last entities.Message
		err := r.db.WithContext(ctx).
			Where("conversation_id = ?", convs[i].ID).
			Order("created_at DESC, id DESC").
			First(&last).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("fetch latest message: %w", err)
		}

		peer := convs[i].ParticipantLow
		if peer == userID {
			peer = convs[i].ParticipantHigh
		}
		out = append(out, domain.ConversationSummary{
			PeerID:        peer,
			LastMessage:   *toDomain(&last),
			LastMessageAt: convs[i].LastMessageAt,
		})
	}
	return out, nil
}

// MarkRead sets read_at on an unread message. The guard on read_at IS NULL
// keeps the transition one-way and repeated calls no-ops.
func (r *Repository) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at)
	if result.Error != nil {
		return false, fmt.Errorf("mark message read: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// upsertConversation finds or creates the conversation row for the pair and
// bumps last_message_at. The pair is stored lexicographically ordered so both
// directions hit the same row.
func upsertConversation(tx *gorm.DB, userA, userB string, at time.Time) (string, error) {
	low, high := userA, userB
	if low > high {
		low, high = high, low
	}

	conv := entities.Conversation{
		ParticipantLow:  low,
		ParticipantHigh: high,
		LastMessageAt:   at,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "participant_low"}, {Name: "participant_high"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_message_at": at}),
	}).Create(&conv).Error
	if err != nil {
		return "", fmt.Errorf("upsert conversation: %w", err)
	}

	// On conflict the generated id was discarded; read the canonical row back.
	var existing entities.Conversation
	err = tx.Select("id").
		Where("participant_low = ? AND participant_high = ?", low, high).
		First(&existing).Error
	if err != nil {
		return "", fmt.Errorf("fetch conversation id: %w", err)
	}
	return existing.ID, nil
}

func toEntity(msg *domain.Message) *entities.Message {
	return &entities.Message{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		Content:     msg.Content,
		MessageType: string(msg.Type),
		MediaURL:    msg.MediaURL,
		ReadAt:      msg.ReadAt,
	}
}

func toDomain(entity *entities.Message) *domain.Message {
	return &domain.Message{
		ID:             entity.ID,
		ConversationID: entity.ConversationID,
		SenderID:       entity.SenderID,
		ReceiverID:     entity.ReceiverID,
		Content:        entity.Content,
		Type:           domain.Type(entity.MessageType),
		MediaURL:       entity.MediaURL,
		ReadAt:         entity.ReadAt,
		CreatedAt:      entity.CreatedAt,
	}
}
