package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message represents one direct message between two users.
type Message struct {
	ID             string  `gorm:"type:varchar(40);primaryKey"`
	ConversationID string  `gorm:"type:varchar(40);index;not null"`
	SenderID       string  `gorm:"type:varchar(64);index;not null"`
	ReceiverID     string  `gorm:"type:varchar(64);index;not null"`
	Content        *string `gorm:"type:text"`
	MessageType    string  `gorm:"type:varchar(16);not null;default:'text'"`
	MediaURL       *string `gorm:"type:varchar(512)"`
	ReadAt         *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_message_conversation_created"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
