package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mytune-auth/internal/model"
)

func TestLoginGovernor_State(t *testing.T) {
	g := NewLoginGovernor(5, 30*time.Minute)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		at := now.Add(-d)
		return &at
	}

	tests := []struct {
		name     string
		user     model.User
		want     LoginState
		wantLock time.Duration
	}{
		{name: "no failures", user: model.User{}, want: StateClear},
		{name: "one recent failure", user: model.User{LoginAttempts: 1, LastLoginAttempt: ago(time.Minute)}, want: StateWarned},
		{name: "four recent failures", user: model.User{LoginAttempts: 4, LastLoginAttempt: ago(time.Minute)}, want: StateWarned},
		{name: "five recent failures", user: model.User{LoginAttempts: 5, LastLoginAttempt: ago(10 * time.Minute)}, want: StateLocked, wantLock: 20 * time.Minute},
		{name: "lock elapsed", user: model.User{LoginAttempts: 5, LastLoginAttempt: ago(30 * time.Minute)}, want: StateClear},
		{name: "stale warnings", user: model.User{LoginAttempts: 3, LastLoginAttempt: ago(time.Hour)}, want: StateClear},
		{name: "counter without timestamp", user: model.User{LoginAttempts: 5}, want: StateClear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.State(tt.user, now))
			assert.Equal(t, tt.wantLock, g.LockRemaining(tt.user, now))
		})
	}
}

func TestLoginGovernor_AfterFailure(t *testing.T) {
	g := NewLoginGovernor(5, 30*time.Minute)

	err := g.AfterFailure(2)
	var credErr *model.CredentialsError
	require.True(t, errors.As(err, &credErr))
	assert.Equal(t, 3, credErr.Remaining)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	err = g.AfterFailure(5)
	var lockErr *model.LockedError
	require.True(t, errors.As(err, &lockErr))
	assert.Equal(t, 30*time.Minute, lockErr.RetryAfter)
	assert.ErrorIs(t, err, model.ErrAccountLocked)
}

func TestNewLoginGovernorDefaults(t *testing.T) {
	g := NewLoginGovernor(0, 0)
	assert.Equal(t, DefaultMaxLoginAttempts, g.MaxAttempts)
	assert.Equal(t, DefaultLockoutWindow, g.Window)
	assert.Equal(t, "locked", StateLocked.String())
}
