package notification

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domain "github.com/servemehq/chat-api/internal/domain/notification"
	"github.com/servemehq/chat-api/internal/infrastructure/database/entities"
)

// Repository persists notification inbox entries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, n *domain.Notification) error {
	entity := &entities.Notification{
		ID:      n.ID,
		UserID:  n.UserID,
		Type:    n.Type,
		Message: n.Message,
		IsRead:  n.IsRead,
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	n.ID = entity.ID
	n.CreatedAt = entity.CreatedAt
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	var rows []entities.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	out := make([]domain.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, domain.Notification{
			ID:        rows[i].ID,
			UserID:    rows[i].UserID,
			Type:      rows[i].Type,
			Message:   rows[i].Message,
			IsRead:    rows[i].IsRead,
			CreatedAt: rows[i].CreatedAt,
		})
	}
	return out, nil
}

// MarkRead flips is_read and reports whether the row changed. The is_read
// guard makes repeated calls no-ops, so the unread count never goes negative.
// Zero affected rows is disambiguated: a row the user owns that is already
// read is a no-op, no row at all is ErrNotFound.
func (r *Repository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return false, fmt.Errorf("mark notification read: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var exists int64
	err := r.db.WithContext(ctx).
		Model(&entities.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&exists).Error
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	if exists == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// CountUnread counts unread notification rows for the user. It reads the
// notifications table only; the covering (user_id, is_read) index keeps it
// cheap regardless of message volume.
func (r *Repository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes notifications created before the cutoff and returns
// how many rows were purged.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&entities.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
