package sync

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind identifies the entity an event refers to.
type Kind string

const (
	KindMessage      Kind = "message"
	KindNotification Kind = "notification"
)

// Op identifies what happened to the entity.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	// OpResync is emitted locally after a reconnect-triggered snapshot
	// reload; it never travels over the bus.
	OpResync Op = "resync"
)

// Event is one change-feed record. Payload carries the full entity so
// subscribers never need a follow-up read to render it.
type Event struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Op        Op              `json:"op"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Scope selects which slice of the change feed a subscription receives.
type Scope interface {
	Topic() string
	Label() string
}

// ConversationScope covers the unordered pair of two users. Both directions
// of the pair map onto the same topic.
type ConversationScope struct {
	UserA string
	UserB string
}

func (s ConversationScope) Topic() string {
	low, high := s.UserA, s.UserB
	if low > high {
		low, high = high, low
	}
	return "chat.messages." + low + "." + high
}

func (ConversationScope) Label() string { return "conversation" }

// NotificationScope covers one user's notification stream.
type NotificationScope struct {
	UserID string
}

func (s NotificationScope) Topic() string {
	return "chat.notifications." + s.UserID
}

func (NotificationScope) Label() string { return "notifications" }

// ValidTopic reports whether all topic segments are non-empty, guarding
// against subscriptions built from blank user ids.
func ValidTopic(topic string) bool {
	for _, part := range strings.Split(topic, ".") {
		if part == "" {
			return false
		}
	}
	return true
}
