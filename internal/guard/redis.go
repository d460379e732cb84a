package guard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 2 * time.Minute

// releaseScript deletes the key only when we still own it
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisGuard holds keys in Redis so that every gateway replica sees them.
// Holds expire after ttl in case a replica dies before releasing.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGuard creates a Redis backed guard
func NewRedisGuard(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	if prefix == "" {
		prefix = "coursehub:submission:"
	}
	return &RedisGuard{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire implements Guard
func (g *RedisGuard) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate guard owner: %w", err)
	}
	owner := hex.EncodeToString(b)
	redisKey := g.prefix + key

	ok, err := g.client.SetNX(ctx, redisKey, owner, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire guard %s: %w", redisKey, err)
	}
	if !ok {
		return nil, inFlight(key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the request context may already be gone
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, g.client, []string{redisKey}, owner).Err(); err != nil {
				g.logger.Warn("Failed to release submission guard",
					slog.String("key", redisKey),
					slog.Any("error", err),
				)
			}
		})
	}, nil
}
