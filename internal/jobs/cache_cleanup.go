package jobs

import (
	"context"
	"log"

	"auditgate/internal/audit"
)

// CacheCleanupJob sweeps expired audit results out of the in-memory cache.
// Lookups self-heal on their own; the sweep just keeps memory bounded for
// sessions that never come back.
type CacheCleanupJob struct {
	client *audit.Client
}

// NewCacheCleanupJob creates a cache cleanup job.
func NewCacheCleanupJob(client *audit.Client) *CacheCleanupJob {
	return &CacheCleanupJob{client: client}
}

// Run sweeps expired entries.
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	before := j.client.CacheStats()
	j.client.CleanupExpiredCache()
	after := j.client.CacheStats()

	if removed := before.TotalEntries - after.TotalEntries; removed > 0 {
		log.Printf("🧹 [CACHE] Swept %d expired audit entries (%d remain)", removed, after.TotalEntries)
	}
	return nil
}
