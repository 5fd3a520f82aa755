package handlers

import (
	"github.com/go-telegram/bot"

	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/telegram"
)

func command(pattern, description string, h messageFunc, mw ...bot.Middleware) telegram.RegisteredHandler {
	return telegram.RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     pattern,
		Handler:     adapt(h),
		MatchType:   bot.MatchTypeCommandStartOnly,
		Middleware:  mw,
		Description: description,
	}
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// It configures each command with appropriate handlers and middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]telegram.RegisteredHandler {
	handlers := make(map[string]telegram.RegisteredHandler)

	handlers["/start"] = telegram.RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   bot.MatchTypeCommandStartOnly,
		Description: "Start the bot",
	}
	handlers["/help"] = telegram.RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   bot.MatchTypeCommandStartOnly,
		Description: "Show the command list",
	}

	economy := economyHandler{deps}
	handlers["/checkin"] = command("checkin", "Daily check-in for points", economy.checkin)
	handlers["/points"] = command("points", "Show your points", economy.points)
	handlers["/shop"] = command("shop", "List shop rewards", economy.shop)
	handlers["/redeem"] = command("redeem", "Redeem a reward", economy.redeem)

	stats := statsHandler{deps}
	handlers["/rank"] = command("rank", "Leaderboards", stats.rank)
	handlers["/mystats"] = command("mystats", "Your message statistics", stats.myStats)
	handlers["/activity"] = command("activity", "Messages per day", stats.activity)
	handlers["/ranking"] = command("ranking", "Hide or show yourself in leaderboards", stats.toggleRanking)

	settings := settingsHandler{deps}
	handlers["/language"] = command("language", "Set your language", settings.userLanguage)

	adminMiddleware := AdminOnly(deps)
	ownerMiddleware := OwnerOnly(deps)

	handlers["/group_language"] = command("group_language", "", settings.groupLanguage, adminMiddleware)
	handlers["/spamfilter"] = command("spamfilter", "", settings.toggle(database.FlagSpamFilter), adminMiddleware)
	handlers["/autochat"] = command("autochat", "", settings.toggle(database.FlagAutochat), adminMiddleware)
	handlers["/checkin_toggle"] = command("checkin_toggle", "", settings.toggle(database.FlagCheckin), adminMiddleware)

	faqs := faqHandler{deps}
	handlers["/faq_add"] = command("faq_add", "", faqs.add, adminMiddleware)
	handlers["/faq_del"] = command("faq_del", "", faqs.del, adminMiddleware)
	handlers["/faq_list"] = command("faq_list", "", faqs.list, adminMiddleware)

	handlers["/shop_add"] = command("shop_add", "", economy.shopAdd, adminMiddleware)
	handlers["/shop_active"] = command("shop_active", "", economy.shopActive, adminMiddleware)

	moderation := moderationHandler{deps}
	handlers["/unblacklist"] = command("unblacklist", "", moderation.unblacklist, adminMiddleware)
	handlers["/ban"] = command("ban", "", moderation.ban, ownerMiddleware)
	handlers["/groups"] = command("groups", "", moderation.groups, ownerMiddleware)

	return handlers
}
