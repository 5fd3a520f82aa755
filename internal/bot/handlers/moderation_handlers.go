package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/telegram"
)

// moderationHandler serves the manual blacklist commands.
type moderationHandler struct {
	deps HandlerDeps
}

// ban blacklists a user everywhere for the configured ban duration.
func (h moderationHandler) ban(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	target, ok := h.deps.resolveTarget(ctx, msg, commandArgs(msg.Text))
	if !ok {
		h.deps.reply(ctx, api, msg, m.BanUsage)
		return
	}

	until, err := h.deps.Moderation.AddBlacklist(ctx, target, h.deps.Config.Moderation.BanDuration)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Ban failed", "target_id", target, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}
	h.deps.Logger.InfoContext(ctx, "User banned", "target_id", target, "by", senderID(msg), "until", until)
	h.deps.reply(ctx, api, msg, render(m.Banned,
		"target", strconv.FormatInt(target, 10),
		"until", until.In(h.deps.Config.Location()).Format(time.DateTime),
	))
}

// unblacklist lifts the chat restriction of a user and removes them from
// the blacklist.
func (h moderationHandler) unblacklist(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	if !isGroup(msg) {
		h.deps.reply(ctx, api, msg, m.GroupOnly)
		return
	}
	target, ok := h.deps.resolveTarget(ctx, msg, commandArgs(msg.Text))
	if !ok {
		h.deps.reply(ctx, api, msg, m.UnblacklistUsage)
		return
	}
	log := h.deps.Logger.With("handler", "unblacklist")

	// The user may have been muted without being blacklisted, so the
	// restriction is lifted regardless.
	if err := h.deps.enforcer(api).Unmute(ctx, msg.Chat.ID, target); err != nil {
		log.WarnContext(ctx, "Lifting restriction failed", "chat_id", msg.Chat.ID, "target_id", target, "error", err)
	}

	removed, err := h.deps.Moderation.RemoveBlacklist(ctx, target)
	if err != nil {
		log.ErrorContext(ctx, "Removing blacklist entry failed", "target_id", target, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}
	template := m.NotBlacklisted
	if removed {
		template = m.Unblacklisted
	}
	h.deps.reply(ctx, api, msg, render(template, "target", strconv.FormatInt(target, 10)))
}

// groups lists every group the bot has seen messages from.
func (h moderationHandler) groups(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	chats, err := h.deps.Store.ListKnownChats(ctx)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Listing known chats failed", "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}
	if len(chats) == 0 {
		h.deps.reply(ctx, api, msg, m.GroupsEmpty)
		return
	}

	lines := make([]string, 0, len(chats)+1)
	lines = append(lines, m.GroupsTitle)
	for _, c := range chats {
		lines = append(lines, render(m.GroupsLine, "title", c.ChatTitle, "id", strconv.FormatInt(c.ChatID, 10)))
	}
	h.deps.reply(ctx, api, msg, strings.Join(lines, "\n"))
}
