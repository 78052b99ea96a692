package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mytune-auth/internal/model"
)

func seedMemoryUser(t *testing.T, repo *MemoryUserRepository) model.User {
	t.Helper()
	u, err := repo.Create(context.Background(), model.User{
		Email: "carol@example.com", Nickname: "carol", PasswordHash: "h", IsActive: true,
	})
	require.NoError(t, err)
	return u
}

func TestMemoryUserRepository_CreateUniqueness(t *testing.T) {
	repo := NewMemoryUserRepository()
	seedMemoryUser(t, repo)

	_, err := repo.Create(context.Background(), model.User{Email: "CAROL@example.com", Nickname: "other"})
	assert.ErrorIs(t, err, model.ErrEmailTaken)

	_, err = repo.Create(context.Background(), model.User{Email: "new@example.com", Nickname: "Carol"})
	assert.ErrorIs(t, err, model.ErrNicknameTaken)

	u, err := repo.FindByEmail(context.Background(), " Carol@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "carol", u.Nickname)
}

func TestMemoryUserRepository_FailedLoginWindow(t *testing.T) {
	repo := NewMemoryUserRepository()
	u := seedMemoryUser(t, repo)
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	window := 30 * time.Minute

	for i := 1; i <= 3; i++ {
		n, err := repo.RecordFailedLogin(ctx, u.ID, start.Add(time.Duration(i)*time.Minute), window)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	// Past the window the counter starts over.
	n, err := repo.RecordFailedLogin(ctx, u.ID, start.Add(time.Hour), window)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.ResetLoginAccounting(ctx, u.ID, start.Add(time.Hour+time.Minute)))
	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LoginAttempts)
	require.NotNil(t, got.LastLoginAt)
}

func TestMemoryUserRepository_FailedLoginConcurrent(t *testing.T) {
	repo := NewMemoryUserRepository()
	u := seedMemoryUser(t, repo)
	at := time.Now().UTC()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.RecordFailedLogin(context.Background(), u.ID, at, time.Hour)
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.LoginAttempts)
}

func TestMemoryUserRepository_InactiveAndDeleted(t *testing.T) {
	repo := NewMemoryUserRepository()
	u := seedMemoryUser(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.SetActive(ctx, u.ID, false))
	_, err := repo.RecordFailedLogin(ctx, u.ID, time.Now(), time.Hour)
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	require.NoError(t, repo.Delete(ctx, u.ID))
	_, err = repo.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
	assert.ErrorIs(t, repo.UpdatePassword(ctx, u.ID, "x"), model.ErrUserNotFound)
}
