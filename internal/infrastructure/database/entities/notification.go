package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is a per-user inbox entry produced as a side effect of sends
// and other triggering actions.
type Notification struct {
	ID        string    `gorm:"type:varchar(40);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);index:idx_notification_user_unread;not null"`
	Type      string    `gorm:"type:varchar(32);not null;default:'message'"`
	Message   string    `gorm:"type:text;not null"`
	IsRead    bool      `gorm:"index:idx_notification_user_unread;not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
