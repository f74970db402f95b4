package push

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/servemehq/chat-api/internal/domain/push"
	"github.com/servemehq/chat-api/internal/infrastructure/database/entities"
)

// Repository persists push delivery registrations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts the registration unless the (user_id, token) pair already
// exists; a conflict is a successful no-op, never a duplicate row. Either way
// the canonical row is read back into reg.
func (r *Repository) Upsert(ctx context.Context, reg *domain.Registration) error {
	entity := &entities.PushRegistration{
		UserID:       reg.UserID,
		Token:        reg.Token,
		Platform:     reg.Platform,
		Subscription: datatypes.JSON(reg.Subscription),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "token"}},
		DoNothing: true,
	}).Create(entity).Error
	if err != nil {
		return fmt.Errorf("upsert push registration: %w", err)
	}

	var existing entities.PushRegistration
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", reg.UserID, reg.Token).
		First(&existing).Error
	if err != nil {
		return fmt.Errorf("fetch push registration: %w", err)
	}

	reg.ID = existing.ID
	reg.Platform = existing.Platform
	reg.CreatedAt = existing.CreatedAt
	return nil
}

// ListByUser returns the user's registrations, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Registration, error) {
	var rows []entities.PushRegistration
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list push registrations: %w", err)
	}

	out := make([]domain.Registration, 0, len(rows))
	for i := range rows {
		out = append(out, domain.Registration{
			ID:           rows[i].ID,
			UserID:       rows[i].UserID,
			Token:        rows[i].Token,
			Platform:     rows[i].Platform,
			Subscription: json.RawMessage(rows[i].Subscription),
			CreatedAt:    rows[i].CreatedAt,
		})
	}
	return out, nil
}
