// Package main contains the entrypoint for the Telegram bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/itl33054/wwannengBOT/internal/bot"
	"github.com/itl33054/wwannengBOT/internal/bot/handlers"
	"github.com/itl33054/wwannengBOT/internal/bot/tasks"
	"github.com/itl33054/wwannengBOT/internal/clock"
	"github.com/itl33054/wwannengBOT/internal/config"
	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/economy"
	"github.com/itl33054/wwannengBOT/internal/faq"
	"github.com/itl33054/wwannengBOT/internal/gemini"
	"github.com/itl33054/wwannengBOT/internal/logger"
	"github.com/itl33054/wwannengBOT/internal/moderation"
	"github.com/itl33054/wwannengBOT/internal/settings"
	"github.com/itl33054/wwannengBOT/internal/stats"
	"github.com/itl33054/wwannengBOT/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components and returns an
// exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)
	if err := store.Ping(ctx); err != nil {
		log.Error("Database is not reachable", "path", cfg.Database.Path, "error", err)
		return 1
	}

	clk := clock.Real{}
	settingsSvc := settings.NewService(store, log)

	keywords, err := moderation.LoadKeywordFilter(cfg.Moderation.KeywordsFile)
	if err != nil {
		log.Error("Failed to load keyword file", "path", cfg.Moderation.KeywordsFile, "error", err)
		return 1
	}
	modSvc, err := moderation.NewService(store, settingsSvc, keywords, clk, moderation.Config{
		BurstSize:         cfg.Moderation.BurstSize,
		BurstWindow:       cfg.Moderation.BurstWindow,
		BlacklistDuration: cfg.Moderation.BlacklistDuration,
		MuteDuration:      cfg.Moderation.MuteDuration,
		WarningExpiry:     cfg.Moderation.WarningExpiry,
		AdminCacheTTL:     cfg.Moderation.AdminCacheTTL,
		Notices:           cfg.Moderation.Notices,
	}, log)
	if err != nil {
		log.Error("Failed to initialize moderation", "error", err)
		return 1
	}
	defer modSvc.Close()

	var gemClient gemini.Client
	if cfg.Gemini.APIKey != "" {
		gemClient, err = gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini client", "error", err)
			return 1
		}
	} else {
		log.Warn("No Gemini API key configured, language model replies are disabled")
	}

	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Store:  store,
		Stats: stats.NewEngine(store, clk, stats.Config{
			Location:        cfg.Location(),
			ExcludedUserIDs: cfg.Stats.ExcludedUserIDs,
			QueryTimeout:    cfg.Stats.QueryTimeout,
			MaxConcurrent:   cfg.Stats.MaxConcurrent,
			DefaultLimit:    cfg.Stats.DefaultLimit,
		}, log),
		Moderation: modSvc,
		Ledger: economy.NewLedger(store, clk, economy.Config{
			AccrualPoints:    cfg.Economy.AccrualPoints,
			AccrualCooldown:  cfg.Economy.AccrualCooldown,
			MinAccrualLength: cfg.Economy.MinAccrualLength,
			CheckinReward:    cfg.Economy.CheckinReward,
		}, log),
		Settings:     settingsSvc,
		FAQ:          faq.NewManager(store, cfg.FAQ.Threshold, log),
		GeminiClient: gemClient,
		Clock:        clk,
	}
	tDeps := tasks.TaskDeps{
		Logger:     log,
		Store:      store,
		Moderation: modSvc,
		Clock:      clk,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.ModerationGate(hDeps)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.PublishCommands(ctx, tg, cmdHandlers); err != nil {
		log.Warn("Failed to publish command menu", "error", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, cfg.Location(), tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
