package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/sifan077/linkbot/internal/infra/prometheus"
	"go.uber.org/zap"
)

const keyPrefix = "linkbot:stats:"

// StatsCache is a two level cache for provider statistics: ristretto in
// process, Redis shared. Either level may be absent. Redis failures are
// logged and treated as misses.
type StatsCache struct {
	client *redis.Client
	local  *LocalCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewStatsCache(client *redis.Client, local *LocalCache, ttl time.Duration, logger *zap.Logger) *StatsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsCache{client: client, local: local, ttl: ttl, logger: logger}
}

func (c *StatsCache) Get(ctx context.Context, key string) (*model.StatsSnapshot, bool) {
	if c.local != nil {
		if snap, ok := c.local.Get(key); ok {
			prometheus.CacheRequestsTotal.WithLabelValues("l1", "hit").Inc()
			return snap, true
		}
		prometheus.CacheRequestsTotal.WithLabelValues("l1", "miss").Inc()
	}

	if c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		prometheus.CacheRequestsTotal.WithLabelValues("l2", "miss").Inc()
		return nil, false
	}
	if err != nil {
		c.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var snap model.StatsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Warn("stats cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	prometheus.CacheRequestsTotal.WithLabelValues("l2", "hit").Inc()

	if c.local != nil {
		c.local.Set(key, &snap)
	}
	return &snap, true
}

func (c *StatsCache) Set(ctx context.Context, key string, snap *model.StatsSnapshot) {
	if snap == nil {
		return
	}
	if c.local != nil {
		c.local.Set(key, snap)
	}
	if c.client == nil {
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *StatsCache) Delete(ctx context.Context, key string) {
	if c.local != nil {
		c.local.Del(key)
	}
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		c.logger.Warn("stats cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the local cache.
func (c *StatsCache) Close() {
	if c.local != nil {
		c.local.Close()
	}
}
