package tasks

import (
	"context"
	"fmt"
)

// newBlacklistSweepTask deletes expired blacklist rows. Expired entries are
// already ignored on read, so this only keeps the table small.
func newBlacklistSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "blacklist_sweep")

	return func(ctx context.Context) error {
		removed, err := deps.Moderation.SweepBlacklist(ctx)
		if err != nil {
			return fmt.Errorf("blacklist sweep failed: %w", err)
		}
		if removed > 0 {
			log.InfoContext(ctx, "Removed expired blacklist entries", "count", removed)
		}
		return nil
	}
}

// newReloadKeywordsTask picks up edits to the keyword file without a restart.
func newReloadKeywordsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "reload_keywords")

	return func(ctx context.Context) error {
		filter := deps.Moderation.Keywords()
		if err := filter.Reload(); err != nil {
			return fmt.Errorf("keyword reload failed: %w", err)
		}
		log.DebugContext(ctx, "Keyword filter reloaded", "count", filter.Len())
		return nil
	}
}
