package locks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medicare/medicare/backend/internal/domain/providers"
	redisclient "github.com/medicare/medicare/backend/internal/infrastructure/clients/redis"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
	"github.com/redis/go-redis/v9"
)

const (
	redisLockPrefix     = "lock:"
	defaultLockTTL      = 10 * time.Second
	defaultPollInterval = 25 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// Deletes the key only while it still carries our token, so a holder whose
// TTL lapsed can never free a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance Redis lock (SET NX PX) shared by every API replica
type RedisLocker struct {
	client       *redisclient.Client
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRedisLocker creates a Redis backed locker. ttl bounds how long a crashed
// holder can keep a key.
func NewRedisLocker(client *redisclient.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, pollInterval: defaultPollInterval}
}

var _ providers.LockProvider = (*RedisLocker)(nil)

// Acquire polls SET NX until it wins the key or ctx is done
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()
	rdb := l.client.Client()

	for {
		ok, err := rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			// The SET may have landed even though the reply was lost.
			release(rdb, key, redisKey, token)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", providers.ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		wait := l.pollInterval + rand.N(l.pollInterval)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", providers.ErrLockTimeout, key, ctx.Err())
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { release(rdb, key, redisKey, token) })
	}, nil
}

// release deletes redisKey if it still holds token
func release(rdb *redis.Client, key, redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := releaseScript.Run(ctx, rdb, []string{redisKey}, token).Err(); err != nil {
		observability.GetLogger().Warn().Err(err).Str("lock_key", key).Msg("Failed to release lock")
	}
}
