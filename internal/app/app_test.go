package app

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mytune-auth/internal/config"
	"mytune-auth/internal/model"
	"mytune-auth/internal/session"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	prev := connectBackoff
	connectBackoff = time.Millisecond
	t.Cleanup(func() { connectBackoff = prev })
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	fastBackoff(t)

	calls := 0
	err := withRetry(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not ready")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	fastBackoff(t)

	calls := 0
	err := withRetry(context.Background(), "test", func(context.Context) error {
		calls++
		return errors.New("down")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, connectAttempts, calls)
}

func TestCleanupRunsInReverseOnce(t *testing.T) {
	var order []int
	a := &App{cleanupFuncs: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}

	a.cleanup()
	a.cleanup()

	assert.Equal(t, []int{2, 1}, order)
}

// silentListener accepts connections and never answers.
func silentListener(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

func TestRedisOptionsHonourStoreTimeout(t *testing.T) {
	cfg := &config.Config{RedisAddr: silentListener(t), StoreTimeout: 10 * time.Second}
	opts := redisOptions(cfg)
	require.True(t, opts.ContextTimeoutEnabled)
	opts.MaxRetries = -1

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	store := session.NewRedisStore(client)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := store.Exists(ctx, "jti-1")
	elapsed := time.Since(started)

	require.ErrorIs(t, err, model.ErrSessionStoreUnavailable)
	assert.Less(t, elapsed, 2*time.Second, "call must stop at the context deadline, not the socket timeout")
}
