package sessionstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"medsign/internal/domain"
)

// RedisStore backs sessions with redis for multi-instance deployments.
// Absolute expiry rides on the key TTL, so an expired session is unreadable
// even under a race; the inactivity check and last-activity refresh run in a
// Lua script to keep reveal-and-touch atomic.
type RedisStore struct {
	client *redis.Client
	cfg    Config
	now    func() time.Time
}

type redisSession struct {
	Blob           string `json:"blob"`
	CreatedAtMs    int64  `json:"created_at_ms"`
	LastActivityMs int64  `json:"last_activity_ms"`
	InactivityMs   int64  `json:"inactivity_ms"`
}

var revealScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return false
end
local s = cjson.decode(raw)
local now = tonumber(ARGV[1])
if now - s.last_activity_ms >= s.inactivity_ms then
  redis.call("DEL", KEYS[1])
  return false
end
s.last_activity_ms = now
redis.call("SET", KEYS[1], cjson.encode(s), "KEEPTTL")
return cjson.encode(s)
`)

var touchScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end
local s = cjson.decode(raw)
local now = tonumber(ARGV[1])
if now - s.last_activity_ms >= s.inactivity_ms then
  redis.call("DEL", KEYS[1])
  return 0
end
s.last_activity_ms = now
redis.call("SET", KEYS[1], cjson.encode(s), "KEEPTTL")
return 1
`)

func NewRedisStore(client *redis.Client, cfg Config, now func() time.Time) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if len(cfg.ServerSecret) == 0 {
		return nil, errors.New("session server secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, cfg: cfg.withDefaults(), now: now}, nil
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Unlock(ctx context.Context, certificateID, userID, passphrase string, ttl time.Duration) error {
	blob, err := seal(deriveKey(s.cfg.ServerSecret, userID), []byte(passphrase))
	if err != nil {
		return err
	}
	now := s.now()
	payload, err := json.Marshal(redisSession{
		Blob:           base64.StdEncoding.EncodeToString(blob),
		CreatedAtMs:    now.UnixMilli(),
		LastActivityMs: now.UnixMilli(),
		InactivityMs:   s.cfg.InactivityTimeout.Milliseconds(),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.redisKey(certificateID, userID), payload, s.cfg.clampTTL(ttl)).Err()
}

func (s *RedisStore) Touch(ctx context.Context, certificateID, userID string) error {
	err := touchScript.Run(ctx, s.client, []string{s.redisKey(certificateID, userID)}, s.now().UnixMilli()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *RedisStore) Reveal(ctx context.Context, certificateID, userID string) (string, error) {
	raw, err := revealScript.Run(ctx, s.client, []string{s.redisKey(certificateID, userID)}, s.now().UnixMilli()).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrLocked
		}
		return "", err
	}
	var session redisSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return "", fmt.Errorf("decode session payload: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(session.Blob)
	if err != nil {
		return "", fmt.Errorf("decode session blob: %w", err)
	}
	plaintext, err := unseal(deriveKey(s.cfg.ServerSecret, userID), blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (s *RedisStore) Lock(ctx context.Context, certificateID, userID string) error {
	return s.client.Del(ctx, s.redisKey(certificateID, userID)).Err()
}

func (s *RedisStore) redisKey(certificateID, userID string) string {
	return "medsign:session:" + sessionKey(certificateID, userID)
}
