package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation materializes the unordered participant pair so inbox queries
// do not have to scan the message table. ParticipantLow/ParticipantHigh hold
// the pair in lexicographic order, which makes the pair index direction
// independent.
type Conversation struct {
	ID              string    `gorm:"type:varchar(40);primaryKey"`
	ParticipantLow  string    `gorm:"type:varchar(64);uniqueIndex:idx_conversation_pair;not null"`
	ParticipantHigh string    `gorm:"type:varchar(64);uniqueIndex:idx_conversation_pair;not null"`
	LastMessageAt   time.Time `gorm:"index"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
