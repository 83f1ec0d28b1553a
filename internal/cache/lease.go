package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trainingdesk/internal/utils"

	"github.com/redis/go-redis/v9"
)

var ErrLeaseHeld = errors.New("lease is held by another worker")

// ReleaseFunc gives a lease back. Releasing an expired or stolen lease is a
// no-op.
type ReleaseFunc func(ctx context.Context) error

type Leaser interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

const leaseKeyPrefix = "trainingdesk:lease:"

// only delete the key if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLeaser struct {
	client redis.UniversalClient
}

func NewRedisLeaser(client redis.UniversalClient) *RedisLeaser {
	return &RedisLeaser{client: client}
}

func (l *RedisLeaser) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	token := utils.NanoID()
	redisKey := leaseKeyPrefix + key

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	return func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release lease %s: %w", key, err)
		}
		return nil
	}, nil
}

// LocalLeaser serializes within one process. Used when Redis is not
// configured.
type LocalLeaser struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLeaser() *LocalLeaser {
	return &LocalLeaser{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLeaser) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, ErrLeaseHeld
	}
	expires := now.Add(ttl)
	l.held[key] = expires

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(expires) {
			delete(l.held, key)
		}
		return nil
	}, nil
}
