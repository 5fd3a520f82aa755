package handlers

import (
	"context"
	"regexp"

	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/telegram"
)

var languageCode = regexp.MustCompile(`^[A-Za-z]{2,3}([-_][A-Za-z0-9]{2,8})?$`)

var flagNames = map[database.GroupFlag]string{
	database.FlagAutochat:   "Auto chat",
	database.FlagSpamFilter: "Spam filter",
	database.FlagCheckin:    "Check-in",
}

// settingsHandler serves user preferences and group feature toggles.
type settingsHandler struct {
	deps HandlerDeps
}

func (h settingsHandler) userLanguage(ctx context.Context, api telegram.API, msg *models.Message) {
	lang := commandArgs(msg.Text)
	if !languageCode.MatchString(lang) {
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.LanguageUsage)
		return
	}
	if err := h.deps.Settings.SetUserLanguage(ctx, senderID(msg), lang); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Setting user language failed", "user_id", senderID(msg), "error", err)
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.GeneralError)
		return
	}
	h.deps.reply(ctx, api, msg, render(h.deps.Config.Messages.LanguageSet, "lang", lang))
}

func (h settingsHandler) groupLanguage(ctx context.Context, api telegram.API, msg *models.Message) {
	if !isGroup(msg) {
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.GroupOnly)
		return
	}
	lang := commandArgs(msg.Text)
	if !languageCode.MatchString(lang) {
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.LanguageUsage)
		return
	}
	if err := h.deps.Settings.SetGroupLanguage(ctx, msg.Chat.ID, lang); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Setting group language failed", "chat_id", msg.Chat.ID, "error", err)
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.GeneralError)
		return
	}
	h.deps.reply(ctx, api, msg, render(h.deps.Config.Messages.LanguageSet, "lang", lang))
}

// toggle returns a handler flipping flag in the current group.
func (h settingsHandler) toggle(flag database.GroupFlag) messageFunc {
	return func(ctx context.Context, api telegram.API, msg *models.Message) {
		m := h.deps.Config.Messages
		if !isGroup(msg) {
			h.deps.reply(ctx, api, msg, m.GroupOnly)
			return
		}
		enabled, err := h.deps.Settings.ToggleGroupFlag(ctx, msg.Chat.ID, flag)
		if err != nil {
			h.deps.Logger.ErrorContext(ctx, "Toggling group flag failed", "chat_id", msg.Chat.ID, "flag", flag, "error", err)
			h.deps.reply(ctx, api, msg, m.GeneralError)
			return
		}
		h.deps.Logger.InfoContext(ctx, "Group flag toggled", "chat_id", msg.Chat.ID, "flag", flag, "enabled", enabled)

		template := m.FlagOff
		if enabled {
			template = m.FlagOn
		}
		h.deps.reply(ctx, api, msg, render(template, "flag", flagNames[flag]))
	}
}
