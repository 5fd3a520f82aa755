package tasks

import (
	"context"
	"fmt"
)

// newCompactTask keeps the event log database small and its ranking
// indexes effective. It is scheduled as "sql_maintenance".
func newCompactTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		began := deps.Clock.Now()
		if err := deps.Store.Compact(ctx); err != nil {
			return fmt.Errorf("compacting database: %w", err)
		}
		log.InfoContext(ctx, "Database compacted", "took", deps.Clock.Now().Sub(began))
		return nil
	}
}
