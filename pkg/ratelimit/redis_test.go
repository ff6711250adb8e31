package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/flowdocs/flowdocs/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLimiter(t *testing.T, config ratelimit.Config) *ratelimit.Redis {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return ratelimit.NewRedisWithClient(client, config)
}

func TestRedis_Allow_LimitWithinWindow(t *testing.T) {
	t.Parallel()

	limiter := setupRedisLimiter(t, ratelimit.Config{Window: time.Minute, Limit: 3})
	ctx := context.Background()

	results := make([]bool, 0, 4)

	for range 4 {
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)

		results = append(results, allowed)
	}

	assert.Equal(t, []bool{true, true, true, false}, results)
}

func TestRedis_Allow_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := setupRedisLimiter(t, ratelimit.Config{Window: time.Minute, Limit: 1})
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNew_SelectsBackendByScheme(t *testing.T) {
	t.Parallel()

	memory, err := ratelimit.New("", ratelimit.Config{})
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.Memory{}, memory)

	server := miniredis.RunT(t)

	shared, err := ratelimit.New("redis://"+server.Addr(), ratelimit.Config{})
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.Redis{}, shared)

	require.NoError(t, shared.Close())
}
