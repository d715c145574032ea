package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LatestStore keeps the most recent valid device line. Get returns nil
// when nothing has been stored or the entry expired.
type LatestStore interface {
	Put(ctx context.Context, raw []byte) error
	Get(ctx context.Context) ([]byte, error)
}

// MemoryStore is a LatestStore local to the process.
type MemoryStore struct {
	mu     sync.RWMutex
	raw    []byte
	stored time.Time
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStore creates a store; a zero ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Put(ctx context.Context, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append([]byte(nil), raw...)
	s.stored = s.now()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.raw == nil {
		return nil, nil
	}
	if s.ttl > 0 && s.now().Sub(s.stored) > s.ttl {
		return nil, nil
	}
	return append([]byte(nil), s.raw...), nil
}

// RedisStore shares the latest line between processes.
type RedisStore struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
}

// NewRedisStore creates a store under key; a zero ttl never expires.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: client, key: key, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, raw []byte) error {
	if err := s.redis.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store device payload in Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device payload from Redis: %w", err)
	}
	return data, nil
}

// LatestKey is the Redis key holding a site's latest device line.
func LatestKey(site string) string {
	return fmt.Sprintf("device_latest:%s", site)
}
