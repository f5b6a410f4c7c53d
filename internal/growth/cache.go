package growth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"growline/internal/metrics"
)

// Cache wraps a Source with a size and age bounded LRU. Concurrent misses for
// the same key share one upstream call. Failed lookups are not cached.
type Cache struct {
	source  Source
	lru     *expirable.LRU[string, any]
	group   singleflight.Group
	metrics *metrics.Metrics
}

func NewCache(source Source, size int, ttl time.Duration, m *metrics.Metrics) *Cache {
	if size <= 0 {
		size = 256
	}
	return &Cache{
		source:  source,
		lru:     expirable.NewLRU[string, any](size, nil, ttl),
		metrics: m,
	}
}

func (c *Cache) GetPlant(ctx context.Context, plantID string) (Plant, error) {
	return cached(c, "plant", key("plant", plantID), func() (Plant, error) {
		return c.source.GetPlant(ctx, plantID)
	})
}

func (c *Cache) GetPlantVariety(ctx context.Context, plantID, varietyID string) (PlantVariety, error) {
	return cached(c, "variety", key("variety", plantID, varietyID), func() (PlantVariety, error) {
		return c.source.GetPlantVariety(ctx, plantID, varietyID)
	})
}

func (c *Cache) GetGrowInstruction(ctx context.Context, plantID, growInstructionID string) (GrowInstruction, error) {
	return cached(c, "instruction", key("instruction", plantID, growInstructionID), func() (GrowInstruction, error) {
		return c.source.GetGrowInstruction(ctx, plantID, growInstructionID)
	})
}

// Purge drops every cached entry.
func (c *Cache) Purge() { c.lru.Purge() }

func cached[T any](c *Cache, kind, k string, load func() (T, error)) (T, error) {
	if v, ok := c.lru.Get(k); ok {
		c.metrics.GrowthLookup(kind, "hit")
		return v.(T), nil
	}
	v, err, _ := c.group.Do(k, func() (any, error) {
		val, err := load()
		if err != nil {
			return nil, err
		}
		c.lru.Add(k, val)
		return val, nil
	})
	if err != nil {
		c.metrics.GrowthLookup(kind, "error")
		var zero T
		return zero, err
	}
	c.metrics.GrowthLookup(kind, "miss")
	return v.(T), nil
}
