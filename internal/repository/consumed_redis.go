package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConsumedStore - отметки о погашении в Redis (SET NX с TTL).
type RedisConsumedStore struct {
	rc        *redis.Client
	keyPrefix string
}

func NewRedisConsumedStore(rc *redis.Client, keyPrefix string) *RedisConsumedStore {
	if keyPrefix == "" {
		keyPrefix = "hours:consumed:"
	}
	return &RedisConsumedStore{rc: rc, keyPrefix: keyPrefix}
}

func (s *RedisConsumedStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rc.SetNX(ctx, s.keyPrefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisConsumedStore) Release(ctx context.Context, key string) error {
	if err := s.rc.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
