package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PushRegistration stores one delivery token per (user, token) pair. Rows are
// never updated in place; token rotation inserts a new row.
type PushRegistration struct {
	ID           string         `gorm:"type:varchar(40);primaryKey"`
	UserID       string         `gorm:"type:varchar(64);uniqueIndex:idx_push_user_token;not null"`
	Token        string         `gorm:"type:varchar(512);uniqueIndex:idx_push_user_token;not null"`
	Platform     string         `gorm:"type:varchar(32);not null"`
	Subscription datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
}

func (PushRegistration) TableName() string {
	return "push_registrations"
}

func (p *PushRegistration) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
