package service

import (
	"time"

	"mytune-auth/internal/model"
)

const (
	DefaultMaxLoginAttempts = 5
	DefaultLockoutWindow    = 30 * time.Minute
)

type LoginState int

const (
	StateClear LoginState = iota
	StateWarned
	StateLocked
)

func (s LoginState) String() string {
	switch s {
	case StateClear:
		return "clear"
	case StateWarned:
		return "warned"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// LoginGovernor derives the lockout state from a user record. Failures older
// than Window no longer count, which is also how a lock expires.
type LoginGovernor struct {
	MaxAttempts int
	Window      time.Duration
}

func NewLoginGovernor(maxAttempts int, window time.Duration) LoginGovernor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	return LoginGovernor{MaxAttempts: maxAttempts, Window: window}
}

func (g LoginGovernor) State(u model.User, now time.Time) LoginState {
	if u.LoginAttempts <= 0 || u.LastLoginAttempt == nil {
		return StateClear
	}
	if now.Sub(*u.LastLoginAttempt) >= g.Window {
		return StateClear
	}
	if u.LoginAttempts >= g.MaxAttempts {
		return StateLocked
	}
	return StateWarned
}

// LockRemaining is zero unless the record is locked at now.
func (g LoginGovernor) LockRemaining(u model.User, now time.Time) time.Duration {
	if g.State(u, now) != StateLocked {
		return 0
	}
	return g.Window - now.Sub(*u.LastLoginAttempt)
}

// AfterFailure turns the counter returned by the user store into the error
// for this attempt.
func (g LoginGovernor) AfterFailure(attempts int) error {
	if attempts >= g.MaxAttempts {
		return &model.LockedError{RetryAfter: g.Window}
	}
	return &model.CredentialsError{Remaining: g.MaxAttempts - attempts}
}
