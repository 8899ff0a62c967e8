package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rl1809/order-stock/internal/core/domain"
)

const (
	DefaultWaitTimeout = 10 * time.Second
	DefaultLeaseTTL    = 60 * time.Second

	retryInterval  = 25 * time.Millisecond
	cleanupTimeout = 2 * time.Second
)

// Deletes the key only if it still carries our token, so an expired lease
// that was taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker is a lease-based distributed lock. A holder that crashes
// loses the lock when its lease expires.
type RedisLocker struct {
	client      redis.UniversalClient
	waitTimeout time.Duration
	leaseTTL    time.Duration
	log         zerolog.Logger
}

func NewRedisLocker(client redis.UniversalClient, waitTimeout, leaseTTL time.Duration, log zerolog.Logger) *RedisLocker {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}

	return &RedisLocker{
		client:      client,
		waitTimeout: waitTimeout,
		leaseTTL:    leaseTTL,
		log:         log,
	}
}

// Acquire returns the random value stored under key, which is the token
// Release needs to prove ownership.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.leaseTTL).Result()
		if err != nil {
			if isContextErr(err) {
				// the SET may have reached the server before the deadline
				l.discard(ctx, key, token)
			}
			return "", fmt.Errorf("%w: %s: %v", domain.ErrLockAcquireFailed, key, err)
		}
		if ok {
			return token, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s: waited %s", domain.ErrLockAcquireFailed, key, l.waitTimeout)
		}
	}
}

// Release deletes key only while it still carries token. A lease that
// expired and was taken by someone else is left alone.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if token == "" {
		l.log.Warn().Str("key", key).Msg("release of lock that is not held")
		return nil
	}

	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if deleted == 0 {
		l.log.Warn().Str("key", key).Msg("lock not owned by this token, lease expired or already released")
	}
	return nil
}

// discard removes a lease that an abandoned Acquire may have written.
func (l *RedisLocker) discard(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.log.Error().Err(err).Str("key", key).Msg("failed to discard abandoned lease")
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
