// Package tasks implements the scheduled maintenance jobs of the bot.
package tasks

import (
	"log/slog"

	"github.com/itl33054/wwannengBOT/internal/clock"
	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/moderation"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger     *slog.Logger
	Store      database.Store
	Moderation *moderation.Service
	Clock      clock.Clock
}
