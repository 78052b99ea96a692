// Package session records which token pairs are currently live.
//
// A pair is valid only while its jti is present in the store; the signed
// expiry of the tokens is just an upper bound.
package session

import (
	"context"
	"time"

	"mytune-auth/internal/model"
)

const KeyPrefix = "session:"

type Store interface {
	// Save writes the session under its jti with the given TTL.
	Save(ctx context.Context, sess model.Session, ttl time.Duration) error
	Exists(ctx context.Context, jti string) (bool, error)
	// Get returns model.ErrSessionNotFound when the jti is absent.
	Get(ctx context.Context, jti string) (model.Session, error)
	// Delete reports whether this call removed the entry.
	Delete(ctx context.Context, jti string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Session, error)
	// DeleteAllForUser removes every indexed session of the user.
	DeleteAllForUser(ctx context.Context, userID int64) (int, error)
	// ScanByPrefix walks the whole keyspace. O(all sessions).
	ScanByPrefix(ctx context.Context, prefix string) ([]model.Session, error)
}
