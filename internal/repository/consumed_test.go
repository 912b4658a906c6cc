package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConsumedStore_ClaimOnce(t *testing.T) {
	s := NewMemoryConsumedStore()
	ctx := context.Background()

	ok, err := s.Claim(ctx, "sig", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, "sig", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "sig"))
	ok, _ = s.Claim(ctx, "sig", time.Hour)
	assert.True(t, ok)
}

func TestMemoryConsumedStore_Expiry(t *testing.T) {
	s := NewMemoryConsumedStore()
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	ok, _ := s.Claim(context.Background(), "sig", time.Minute)
	require.True(t, ok)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, s.Sweep())

	ok, _ = s.Claim(context.Background(), "sig", time.Minute)
	assert.True(t, ok)
}

func TestMemoryConsumedStore_ConcurrentClaim(t *testing.T) {
	s := NewMemoryConsumedStore()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Claim(context.Background(), "same", time.Hour); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func setupRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func TestRedisConsumedStore(t *testing.T) {
	rc := setupRedis(t)
	s := NewRedisConsumedStore(rc, "test:consumed:")
	ctx := context.Background()

	ok, err := s.Claim(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl := rc.TTL(ctx, "test:consumed:sig").Val()
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, s.Release(ctx, "sig"))
	ok, err = s.Claim(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
