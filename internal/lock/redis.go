package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus-events/internal/logger"
	"campus-events/internal/utils"

	"github.com/go-redis/redis/v8"
)

// unlockScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	Client *redis.Client
	Logger *logger.Logger
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// Wait bounds how long Lock retries when ctx has no deadline.
	Wait  time.Duration
	Retry time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		Client: client,
		Logger: log,
		TTL:    ttl,
		Wait:   ttl,
		Retry:  20 * time.Millisecond,
	}
}

// TryLock sets key to token if nobody holds it.
func (l *RedisLocker) TryLock(ctx context.Context, key, token string) (bool, error) {
	return l.Client.SetNX(ctx, key, token, l.TTL).Result()
}

// Unlock releases key if token still owns it.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return unlockScript.Run(ctx, l.Client, []string{key}, token).Err()
}

func (l *RedisLocker) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := l.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := utils.NewID()

	if _, ok := ctx.Deadline(); !ok && l.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Wait)
		defer cancel()
	}

	for {
		ok, err := l.TryLock(ctx, key, token)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", key, ErrTimeout)
		case <-time.After(l.Retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := l.Unlock(context.Background(), key, token); err != nil {
				l.Logger.Warn("REDIS", fmt.Sprintf("Failed to release %s: %v", key, err))
			}
		})
	}, nil
}
