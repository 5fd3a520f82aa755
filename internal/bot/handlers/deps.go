package handlers

import (
	"log/slog"

	"github.com/itl33054/wwannengBOT/internal/clock"
	"github.com/itl33054/wwannengBOT/internal/config"
	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/economy"
	"github.com/itl33054/wwannengBOT/internal/faq"
	"github.com/itl33054/wwannengBOT/internal/gemini"
	"github.com/itl33054/wwannengBOT/internal/moderation"
	"github.com/itl33054/wwannengBOT/internal/settings"
	"github.com/itl33054/wwannengBOT/internal/stats"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Store      database.Store
	Stats      *stats.Engine
	Moderation *moderation.Service
	Ledger     *economy.Ledger
	Settings   *settings.Service
	FAQ        *faq.Manager
	// GeminiClient is nil when no API key is configured.
	GeminiClient gemini.Client
	Clock        clock.Clock
}
