package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/sifan077/linkbot/internal/app/model"
)

// LocalCache is the in-process L1 for stats snapshots, backed by ristretto.
type LocalCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewLocalCache creates a cache holding up to maxItems snapshots for ttl.
func NewLocalCache(maxItems int64, ttl time.Duration) (*LocalCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
		// cost is an entry count, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{cache: c, ttl: ttl}, nil
}

func (l *LocalCache) Get(key string) (*model.StatsSnapshot, bool) {
	v, ok := l.cache.Get(key)
	if !ok {
		return nil, false
	}
	snap, ok := v.(*model.StatsSnapshot)
	return snap, ok
}

// Set stores the snapshot with cost 1, so MaxCost bounds the entry count.
func (l *LocalCache) Set(key string, snap *model.StatsSnapshot) {
	l.cache.SetWithTTL(key, snap, 1, l.ttl)
}

func (l *LocalCache) Del(key string) {
	l.cache.Del(key)
}

// Wait blocks until buffered writes are applied.
func (l *LocalCache) Wait() {
	l.cache.Wait()
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
