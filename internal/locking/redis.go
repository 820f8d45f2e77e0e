package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still carries our token, so an
// expired lock taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig tunes RedisLocker.
type RedisConfig struct {
	Prefix    string
	TTL       time.Duration
	RetryWait time.Duration
	MaxWait   time.Duration
}

// DefaultRedisConfig returns the settings used when the service enables Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Prefix:    "deskbooking:lock:",
		TTL:       5 * time.Second,
		RetryWait: 25 * time.Millisecond,
		MaxWait:   3 * time.Second,
	}
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	client redis.UniversalClient
	config RedisConfig
	logger *slog.Logger
}

// NewRedisLocker wraps client. Zero config fields fall back to the defaults.
func NewRedisLocker(client redis.UniversalClient, config RedisConfig, logger *slog.Logger) *RedisLocker {
	defaults := DefaultRedisConfig()
	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.RetryWait <= 0 {
		config.RetryWait = defaults.RetryWait
	}
	if config.MaxWait <= 0 {
		config.MaxWait = defaults.MaxWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, config: config, logger: logger}
}

// Acquire polls until the lock is taken, ctx ends or MaxWait elapses.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	lockKey := r.config.Prefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, r.config.MaxWait)
	defer cancel()

	ticker := time.NewTicker(r.config.RetryWait)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(waitCtx, lockKey, token, r.config.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return r.release(lockKey, token), nil
		}
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (r *RedisLocker) release(lockKey, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{lockKey}, token).Err(); err != nil {
				r.logger.Warn("desk lock release failed", "key", lockKey, "error", err)
			}
		})
	}
}
