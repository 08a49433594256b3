// Package lock holds the Redis-backed match lock used when several hosts
// process recordings from a shared folder.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "matchstats:lock:"
	defaultLeaseTTL  = time.Minute
	defaultRetryWait = 100 * time.Millisecond
)

var ErrLockLost = errors.New("lock lease expired before release")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// MatchLock is a lease-based lock per match id.
type MatchLock struct {
	client    *redis.Client
	ttl       time.Duration
	retryWait time.Duration
}

// NewMatchLock connects to redisURL (redis://host:port/db) and verifies the
// connection.
func NewMatchLock(ctx context.Context, redisURL string, ttl time.Duration) (*MatchLock, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newMatchLock(client, ttl), nil
}

func newMatchLock(client *redis.Client, ttl time.Duration) *MatchLock {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &MatchLock{client: client, ttl: ttl, retryWait: defaultRetryWait}
}

// Close closes the Redis connection.
func (m *MatchLock) Close() error {
	return m.client.Close()
}

// Lock polls SET NX until the lease for key is acquired or ctx is done.
func (m *MatchLock) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := keyPrefix + key

	for {
		ok, err := m.client.SetNX(ctx, redisKey, token, m.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.retryWait):
		}
	}

	return func() {
		// Release with a fresh context: the caller's may already be done.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.release(relCtx, redisKey, token); err != nil {
			slog.Warn("Failed to release match lock", slog.String("key", redisKey), slog.String("error", err.Error()))
		}
	}, nil
}

func (m *MatchLock) release(ctx context.Context, redisKey, token string) error {
	n, err := releaseScript.Run(ctx, m.client, []string{redisKey}, token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", redisKey, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
