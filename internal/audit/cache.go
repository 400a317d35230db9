package audit

import (
	"time"

	cache "github.com/patrickmn/go-cache"

	"auditgate/internal/models"
)

// DefaultCacheTTL is short enough to reflect registration-period changes but
// long enough to absorb repeated polling by one client.
const DefaultCacheTTL = 5 * time.Minute

// Cache holds parsed audit results keyed by session. Reads self-heal: an
// expired entry is evicted on lookup, so the periodic sweep is an
// optimization, not a correctness requirement.
type Cache struct {
	inner      *cache.Cache
	defaultTTL time.Duration
}

// CacheStats reports entry counts for monitoring. Total includes expired
// entries that have not been swept yet.
type CacheStats struct {
	TotalEntries   int `json:"total_entries"`
	ActiveEntries  int `json:"active_entries"`
	ExpiredEntries int `json:"expired_entries"`
}

// NewCache creates a cache with the given default TTL. The janitor is
// disabled; CleanupExpired is driven by the jobs scheduler instead.
func NewCache(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultCacheTTL
	}
	return &Cache{
		inner:      cache.New(defaultTTL, 0),
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached audit if present and unexpired. An expired entry is
// removed as a side effect of the miss.
func (c *Cache) Get(key SessionKey) (*models.DegreeAudit, bool) {
	if v, found := c.inner.Get(key.Hash()); found {
		if audit, ok := v.(*models.DegreeAudit); ok {
			return audit, true
		}
	}
	// Evict any expired remnant so Len reflects the miss.
	c.inner.Delete(key.Hash())
	return nil, false
}

// Insert stores an audit result with the default TTL.
func (c *Cache) Insert(key SessionKey, result *models.DegreeAudit) {
	c.InsertWithTTL(key, result, c.defaultTTL)
}

// InsertWithTTL stores an audit result with a per-entry TTL.
func (c *Cache) InsertWithTTL(key SessionKey, result *models.DegreeAudit, ttl time.Duration) {
	c.inner.Set(key.Hash(), result, ttl)
}

// Invalidate removes a single entry.
func (c *Cache) Invalidate(key SessionKey) {
	c.inner.Delete(key.Hash())
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.inner.Flush()
}

// CleanupExpired proactively removes expired entries.
func (c *Cache) CleanupExpired() {
	c.inner.DeleteExpired()
}

// Len returns the number of physically present entries, expired included.
func (c *Cache) Len() int {
	return c.inner.ItemCount()
}

// Stats counts live and expired entries.
func (c *Cache) Stats() CacheStats {
	total := c.inner.ItemCount()
	active := len(c.inner.Items()) // Items skips expired entries
	return CacheStats{
		TotalEntries:   total,
		ActiveEntries:  active,
		ExpiredEntries: total - active,
	}
}
