package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, "ratelimit:auth", limit, window)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, mr, &now
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	l, _, now := newTestRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "other keys have their own counter")

	*now = now.Add(time.Minute)
	ok, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "new window resets the counter")
}

func TestRedisLimiter_SetsExpiry(t *testing.T) {
	l, mr, _ := newTestRedisLimiter(t, 5, time.Minute)

	_, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "ratelimit:auth:10.0.0.1:")
	assert.Equal(t, time.Minute, mr.TTL(keys[0]))
}

func TestRedisLimiter_ErrorWhenUnavailable(t *testing.T) {
	l, mr, _ := newTestRedisLimiter(t, 5, time.Minute)
	mr.Close()

	_, err := l.Allow(context.Background(), "10.0.0.1")
	assert.Error(t, err)
}
