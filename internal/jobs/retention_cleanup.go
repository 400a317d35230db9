package jobs

import (
	"context"
	"log"
	"time"

	"auditgate/internal/database"
)

// DefaultScheduleRetention keeps imported schedule data for two quarters.
const DefaultScheduleRetention = 180 * 24 * time.Hour

// RetentionCleanupJob deletes schedule data older than the retention window.
// Stale snapshots are worse than none: seat counts from a past quarter look
// authoritative but are wrong.
type RetentionCleanupJob struct {
	store     *database.ScheduleStore
	retention time.Duration
}

// NewRetentionCleanupJob creates a retention cleanup job.
func NewRetentionCleanupJob(store *database.ScheduleStore, retention time.Duration) *RetentionCleanupJob {
	if retention <= 0 {
		retention = DefaultScheduleRetention
	}
	return &RetentionCleanupJob{store: store, retention: retention}
}

// Run deletes courses imported before the retention cutoff.
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	if j.store == nil {
		log.Println("[RETENTION] Retention cleanup disabled (no schedule store)")
		return nil
	}

	cutoff := time.Now().Add(-j.retention)
	removed, err := j.store.PruneBefore(ctx, cutoff)
	if err != nil {
		log.Printf("[RETENTION] Cleanup failed: %v", err)
		return err
	}

	if removed > 0 {
		log.Printf("[RETENTION] Removed %d courses imported before %s", removed, cutoff.Format(time.RFC3339))
	}
	return nil
}
