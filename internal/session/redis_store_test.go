package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mytune-auth/internal/model"
)

const sessionTTL = 7 * 24 * time.Hour

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func testSession(jti string, userID int64) model.Session {
	return model.Session{
		UserID:    userID,
		Email:     "user@example.com",
		Nickname:  "user",
		JTI:       jti,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestRedisStoreSaveAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	sess := testSession("jti-1", 1)

	require.NoError(t, store.Save(ctx, sess, sessionTTL))

	got, err := store.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, sess.Email, got.Email)
	assert.Equal(t, sess.JTI, got.JTI)
	assert.True(t, sess.CreatedAt.Equal(got.CreatedAt))

	exists, err := store.Exists(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, sessionTTL, mr.TTL("session:jti-1"))
	assert.True(t, mr.Exists("user-sessions:1"))

	raw, err := mr.Get("session:jti-1")
	require.NoError(t, err)
	assert.Contains(t, raw, `"userId":1`)
	assert.Contains(t, raw, `"jti":"jti-1"`)
	assert.Contains(t, raw, `"createdAt"`)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	exists, err := store.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisStoreDeleteIsIdempotent(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("jti-1", 1), sessionTTL))

	deleted, err := store.Delete(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.False(t, mr.Exists("session:jti-1"))
	members, err := mr.Members("user-sessions:1")
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestRedisStoreExpiresByTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("short", 1), time.Minute))
	require.NoError(t, store.Save(ctx, testSession("long", 1), sessionTTL))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	sessions, err := store.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "long", sessions[0].JTI)

	members, err := mr.Members("user-sessions:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"long"}, members)
}

func TestRedisStoreDeleteAllForUserIsScopedToUser(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	// Interleave sessions of two users.
	require.NoError(t, store.Save(ctx, testSession("a-1", 1), sessionTTL))
	require.NoError(t, store.Save(ctx, testSession("b-1", 2), sessionTTL))
	require.NoError(t, store.Save(ctx, testSession("a-2", 1), sessionTTL))
	require.NoError(t, store.Save(ctx, testSession("b-2", 2), sessionTTL))

	revoked, err := store.DeleteAllForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	assert.False(t, mr.Exists("session:a-1"))
	assert.False(t, mr.Exists("session:a-2"))
	assert.True(t, mr.Exists("session:b-1"))
	assert.True(t, mr.Exists("session:b-2"))

	remaining, err := store.ListByUser(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	revoked, err = store.DeleteAllForUser(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestRedisStoreScanByPrefix(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("a-1", 1), sessionTTL))
	require.NoError(t, store.Save(ctx, testSession("b-1", 2), sessionTTL))
	require.NoError(t, mr.Set("session:corrupt", "{not json"))

	sessions, err := store.ScanByPrefix(ctx, KeyPrefix)
	require.NoError(t, err)

	jtis := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		jtis = append(jtis, sess.JTI)
	}
	assert.ElementsMatch(t, []string{"a-1", "b-1"}, jtis)
}

func TestRedisStoreFailsClosedWhenUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testSession("jti-1", 1), sessionTTL))

	mr.Close()

	_, err := store.Exists(ctx, "jti-1")
	assert.ErrorIs(t, err, model.ErrSessionStoreUnavailable)

	_, err = store.Get(ctx, "jti-1")
	assert.ErrorIs(t, err, model.ErrSessionStoreUnavailable)

	_, err = store.Delete(ctx, "jti-1")
	assert.ErrorIs(t, err, model.ErrSessionStoreUnavailable)

	err = store.Save(ctx, testSession("jti-2", 1), sessionTTL)
	assert.ErrorIs(t, err, model.ErrSessionStoreUnavailable)

	assert.ErrorIs(t, store.Ping(ctx), model.ErrSessionStoreUnavailable)
}
