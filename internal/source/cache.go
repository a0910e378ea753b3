package source

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"poolwatch/internal/model"
)

// DefaultTTL is how long a fetched pool set stays fresh.
const DefaultTTL = 60 * time.Second

// Cache wraps a Source with a TTL cache. Concurrent refreshes are
// collapsed into one upstream call, and a failed refresh serves the
// previous result when one exists.
type Cache struct {
	src    Source
	ttl    time.Duration
	logger *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	pools     []model.PoolStat
	fetchedAt time.Time
}

func NewCache(src Source, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{src: src, ttl: ttl, logger: logger}
}

func (c *Cache) Name() string  { return c.src.Name() }
func (c *Cache) Chain() string { return c.src.Chain() }

// Pools returns the cached pool set, refreshing it when stale.
func (c *Cache) Pools(ctx context.Context) ([]model.PoolStat, error) {
	if pools, ok := c.fresh(); ok {
		return pools, nil
	}
	return c.refresh(ctx, false)
}

// Refresh bypasses the TTL and fetches from the upstream source.
func (c *Cache) Refresh(ctx context.Context) ([]model.PoolStat, error) {
	return c.refresh(ctx, true)
}

// Age reports how long ago the cached set was fetched, or zero when
// nothing has been fetched yet.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() {
		return 0
	}
	return time.Since(c.fetchedAt)
}

func (c *Cache) fresh() ([]model.PoolStat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pools == nil || time.Since(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.pools, true
}

func (c *Cache) refresh(ctx context.Context, force bool) ([]model.PoolStat, error) {
	v, err, _ := c.group.Do("pools", func() (any, error) {
		// A concurrent caller may have refreshed while this one
		// waited on the flight group.
		if !force {
			if pools, ok := c.fresh(); ok {
				return pools, nil
			}
		}

		pools, err := c.src.Pools(ctx)
		if err != nil {
			c.mu.RLock()
			stale := c.pools
			c.mu.RUnlock()
			if stale != nil {
				c.logger.Warn("serving stale pools after refresh failure",
					zap.String("source", c.src.Name()),
					zap.Error(err))
				return stale, nil
			}
			return nil, err
		}

		c.mu.Lock()
		c.pools = pools
		c.fetchedAt = time.Now()
		c.mu.Unlock()
		return pools, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.PoolStat), nil
}
