package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCache_LocalOnly(t *testing.T) {
	local, err := NewLocalCache(100, time.Minute)
	require.NoError(t, err)
	c := NewStatsCache(nil, local, time.Minute, nil)
	t.Cleanup(c.Close)
	ctx := context.Background()

	_, ok := c.Get(ctx, "abc")
	assert.False(t, ok)

	c.Set(ctx, "abc", &model.StatsSnapshot{TotalViews: 4})
	local.Wait()

	snap, ok := c.Get(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, 4, snap.TotalViews)

	c.Delete(ctx, "abc")
	_, ok = c.Get(ctx, "abc")
	assert.False(t, ok)
}

func TestStatsCache_RedisDownIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	c := NewStatsCache(client, nil, time.Minute, nil)
	ctx := context.Background()

	c.Set(ctx, "abc", &model.StatsSnapshot{TotalViews: 1})
	_, ok := c.Get(ctx, "abc")
	assert.False(t, ok)
	c.Delete(ctx, "abc")
}
