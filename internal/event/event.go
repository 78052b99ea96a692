package event

import "time"

type Type string

const (
	TypeUserRegistered  Type = "user.registered"
	TypeLoginSucceeded  Type = "login.succeeded"
	TypeLoginFailed     Type = "login.failed"
	TypeAccountLocked   Type = "account.locked"
	TypeSessionsRevoked Type = "sessions.revoked"
	TypePasswordChanged Type = "password.changed"
)

type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	UserID    int64          `json:"userId,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
