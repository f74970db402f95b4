package push

import (
	"encoding/json"
	"time"
)

// State is the registration lifecycle position for one user session.
type State string

const (
	StateUnregistered       State = "unregistered"
	StateAwaitingPermission State = "awaiting_permission"
	StatePermissionDenied   State = "permission_denied"
	StateAwaitingToken      State = "awaiting_token"
	StateTokenPersisted     State = "token_persisted"
	StateRetryBackoff       State = "retry_backoff"
)

// Permission is the platform notification permission as reported by the
// delivery agent.
type Permission string

const (
	PermissionUndetermined Permission = "undetermined"
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
)

// Token is the delivery subscription handed back by the platform. Value is
// the opaque token used as the dedupe key; Subscription carries the full
// platform payload for the out-of-process sender.
type Token struct {
	Value        string
	Platform     string
	Subscription json.RawMessage
}

// Registration is one persisted (user, token) delivery route.
type Registration struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Token        string          `json:"token"`
	Platform     string          `json:"platform"`
	Subscription json.RawMessage `json:"subscription,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
