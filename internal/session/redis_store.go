package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mytune-auth/internal/model"
)

const (
	userIndexPrefix = "user-sessions:"
	scanBatch       = 500
)

// RedisStore keeps session:<jti> entries plus a user-sessions:<userId> set
// so revoking every session of a user does not need a keyspace scan.
type RedisStore struct {
	redis redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

func sessionKey(jti string) string {
	return KeyPrefix + jti
}

func userIndexKey(userID int64) string {
	return userIndexPrefix + strconv.FormatInt(userID, 10)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", model.ErrSessionStoreUnavailable, err)
}

func (s *RedisStore) Save(ctx context.Context, sess model.Session, ttl time.Duration) error {
	if sess.JTI == "" {
		return errors.New("session jti is required")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	indexKey := userIndexKey(sess.UserID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.JTI), data, ttl)
		pipe.SAdd(ctx, indexKey, sess.JTI)
		pipe.Expire(ctx, indexKey, ttl)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}

	return nil
}

func (s *RedisStore) Exists(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, sessionKey(jti)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, jti string) (model.Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Session{}, model.ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, unavailable(err)
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return model.Session{}, fmt.Errorf("decode session %s: %w", jti, err)
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, jti string) (bool, error) {
	sess, err := s.Get(ctx, jti)
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return false, nil
	case errors.Is(err, model.ErrSessionStoreUnavailable):
		return false, err
	}
	// A corrupt entry is still removed; it just cannot be unindexed.
	indexed := err == nil

	var del *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, sessionKey(jti))
		if indexed {
			pipe.SRem(ctx, userIndexKey(sess.UserID), jti)
		}
		return nil
	})
	if err != nil {
		return false, unavailable(err)
	}

	return del.Val() == 1, nil
}

func (s *RedisStore) ListByUser(ctx context.Context, userID int64) ([]model.Session, error) {
	indexKey := userIndexKey(userID)
	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return []model.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	sessions := make([]model.Session, 0, len(ids))
	stale := make([]any, 0)
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var sess model.Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			stale = append(stale, ids[i])
			continue
		}
		sessions = append(sessions, sess)
	}

	// Entries expired by TTL leave their jti behind in the index.
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, indexKey, stale...).Err(); err != nil {
			return nil, unavailable(err)
		}
	}

	return sessions, nil
}

func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID int64) (int, error) {
	indexKey := userIndexKey(userID)
	ids, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}

	var del *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, indexKey, toAny(ids)...)
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}

	return int(del.Val()), nil
}

func (s *RedisStore) ScanByPrefix(ctx context.Context, prefix string) ([]model.Session, error) {
	var (
		cursor   uint64
		sessions []model.Session
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, unavailable(err)
		}

		if len(keys) > 0 {
			values, err := s.redis.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, unavailable(err)
			}
			for _, value := range values {
				raw, ok := value.(string)
				if !ok {
					continue
				}
				var sess model.Session
				if err := json.Unmarshal([]byte(raw), &sess); err != nil {
					continue
				}
				sessions = append(sessions, sess)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return sessions, nil
}

// Ping is used by the readiness check.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
