package notification

import "time"

// Notification is one entry in a user's notification inbox.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Known notification types. The column is free-form so other producers can
// add their own without a schema change.
const (
	TypeMessage = "message"
	TypeReview  = "review"
	TypeSystem  = "system"
)
