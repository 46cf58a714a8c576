package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus-events/internal/logger"

	"github.com/go-redis/redis/v8"
)

// RevokedTokenPrefix namespaces revoked token ids in Redis.
const RevokedTokenPrefix = "revoked_token:"

// Revocations remembers logged-out tokens until they would have expired.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

type RedisRevocations struct {
	Client *redis.Client
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{Client: client}
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.Client.Set(ctx, RevokedTokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation in Redis: %w", err)
	}
	return nil
}

func (r *RedisRevocations) Revoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.Client.Exists(ctx, RevokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read revocation from Redis: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocations is the single-process fallback when Redis is disabled.
type MemoryRevocations struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{expires: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, id)
		}
	}
	m.expires[tokenID] = now.Add(ttl)
	return nil
}

func (m *MemoryRevocations) Revoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expires[tokenID]
	return ok && m.now().Before(exp), nil
}

// ConnectRedis opens a client and checks the connection.
func ConnectRedis(ctx context.Context, addr string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", addr, err))
		client.Close()
		return nil, err
	}
	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s", addr))
	return client, nil
}
