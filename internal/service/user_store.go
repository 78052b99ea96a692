package service

import (
	"context"
	"time"

	"mytune-auth/internal/model"
)

// UserStore is the user record collaborator. Implementations must make each
// call atomic at the field level.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	// RecordFailedLogin increments the counter in one step and returns the
	// new value. A previous failure older than window restarts it at 1.
	RecordFailedLogin(ctx context.Context, id int64, at time.Time, window time.Duration) (int, error)
	ResetLoginAccounting(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// CredentialVerifier hashes and checks passwords. Verify reports false on
// any failure.
type CredentialVerifier interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, hash string) bool
	DummyVerify(plaintext string) bool
}
