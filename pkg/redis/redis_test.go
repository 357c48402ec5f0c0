package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/paperflow/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), &config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.Nil(t, client.Redis())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), KeyPrefix, 5, time.Second)

	for i := 0; i < 10; i++ {
		allowed, remaining, err := limiter.Allow(context.Background(), "127.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 5, remaining)
	}
	assert.Equal(t, 5, limiter.Limit())
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), KeyPrefix)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "digest:a", "abc", TTLDigest))

	var result string
	found, err := cache.Get(ctx, "digest:a", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "paperflow:cache:digest:a", cache.key("digest:a"))
}

func TestIntegration(t *testing.T) {
	if os.Getenv("REDIS_ENABLED") != "true" {
		t.Skip("REDIS_ENABLED not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	client, err := New(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	cache := NewCache(client, KeyPrefix+"-test")
	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	var got string
	found, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", got)

	found, err = cache.Get(ctx, "absent", &got)
	require.NoError(t, err)
	assert.False(t, found)

	limiter := NewRateLimiter(client, KeyPrefix+"-test", 2, time.Minute)
	key := "client-" + time.Now().Format(time.RFC3339Nano)
	for i, want := range []bool{true, true, false} {
		allowed, _, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "request %d", i)
	}
}
