package message

import "time"

// Type classifies message content.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeVideo Type = "video"
	TypeAudio Type = "audio"
	TypeFile  Type = "file"
)

// Message is one direct message between two users. Messages are immutable
// after creation except for the read_at transition from null to a timestamp.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	ReceiverID     string     `json:"receiver_id"`
	Content        *string    `json:"content,omitempty"`
	Type           Type       `json:"message_type"`
	MediaURL       *string    `json:"media_url,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Attachment is the raw media payload submitted alongside a send.
type Attachment struct {
	Filename string
	Data     []byte
}

// SendRequest defines the payload for sending a message.
type SendRequest struct {
	SenderID   string
	ReceiverID string
	Content    string
	Attachment *Attachment
}

// ConversationSummary is one inbox row: the peer and the newest message
// exchanged with them in either direction.
type ConversationSummary struct {
	PeerID        string    `json:"peer_id"`
	LastMessage   Message   `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Before returns true when m sorts ahead of other: created_at ascending,
// ties broken by id so ordering is total.
func (m *Message) Before(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
