package dashboard

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

// Cache keeps one composed dashboard per seller. It satisfies subscription.Invalidator so
// plan, catalog and order mutations can drop the entry.
type Cache struct {
	entries *cache.Cache
}

func NewCache(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{entries: cache.New(ttl, cleanupInterval)}
}

func (c *Cache) Get(userID uuid.UUID) (*types.Dashboard, bool) {
	v, found := c.entries.Get(userID.String())
	if !found {
		return nil, false
	}
	d, ok := v.(*types.Dashboard)
	return d, ok
}

func (c *Cache) Set(userID uuid.UUID, d *types.Dashboard) {
	c.entries.Set(userID.String(), d, cache.DefaultExpiration)
}

func (c *Cache) Invalidate(userID uuid.UUID) {
	c.entries.Delete(userID.String())
}
