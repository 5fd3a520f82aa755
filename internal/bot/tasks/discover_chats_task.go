package tasks

import (
	"context"
	"fmt"
)

// newDiscoverChatsTask backfills known chats from the event log, covering
// groups the bot joined while it was offline.
func newDiscoverChatsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "discover_chats")

	return func(ctx context.Context) error {
		refreshed, err := deps.Store.DiscoverKnownChats(ctx)
		if err != nil {
			return fmt.Errorf("chat discovery failed: %w", err)
		}
		log.DebugContext(ctx, "Known groups refreshed", "count", refreshed)
		return nil
	}
}
