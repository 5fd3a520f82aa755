package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/telegram"
)

const (
	saveAttempts    = 3
	saveRetryDelay  = 500 * time.Millisecond
	aiProcessingCap = 2 * time.Minute
)

// NewDefaultHandler routes updates no command matched: plain messages go to
// the message handler and membership changes of the bot to the membership
// handler.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	messages := messageHandler{deps}
	members := membershipHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		switch {
		case update.Message != nil:
			if senderID(update.Message) != 0 {
				messages.handle(ctx, b, update.Message)
			}
		case update.MyChatMember != nil:
			members.handle(ctx, b, update.MyChatMember)
		}
	}
}

// messageHandler records every text message and answers keyword triggers,
// FAQ matches and direct conversation with the bot.
type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) handle(ctx context.Context, api telegram.API, msg *models.Message) {
	if msg.Text == "" {
		return
	}
	log := h.deps.Logger.With("handler", "message")

	h.save(ctx, h.deps.toRecord(msg))

	if h.trigger(ctx, api, msg) {
		return
	}

	if msg.From != nil && h.deps.Ledger != nil {
		h.deps.Ledger.Accrue(ctx, msg.From.ID, msg.Chat.ID, msg.Text, isPrivate(msg))
	}

	if !h.addressed(ctx, msg) {
		h.answerFAQ(ctx, api, msg)
		return
	}
	if h.deps.GeminiClient == nil {
		log.DebugContext(ctx, "Language model disabled, trying FAQ instead", "chat_id", msg.Chat.ID)
		h.answerFAQ(ctx, api, msg)
		return
	}
	h.converse(ctx, api, msg)
}

// save writes the message to the event log, retrying transient failures.
func (h messageHandler) save(ctx context.Context, rec *database.Message) {
	log := h.deps.Logger.With("handler", "message")
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		dbCtx, cancel := context.WithTimeout(ctx, dbSaveTimeout)
		err = h.deps.Store.SaveMessage(dbCtx, rec)
		cancel()
		if err == nil {
			return
		}
		log.WarnContext(ctx, "Failed to save message, retrying", "error", err, "chat_id", rec.ChatID, "attempt", attempt)

		select {
		case <-ctx.Done():
			log.WarnContext(ctx, "Context cancelled, aborting message save", "error", ctx.Err(), "chat_id", rec.ChatID)
			return
		case <-time.After(time.Duration(attempt) * saveRetryDelay):
		}
	}
	log.ErrorContext(ctx, "Failed to save message", "attempts", saveAttempts, "error", err, "chat_id", rec.ChatID)
}

// trigger answers exact keyword messages and reports whether one matched.
func (h messageHandler) trigger(ctx context.Context, api telegram.API, msg *models.Message) bool {
	text := strings.TrimSpace(msg.Text)
	shop := economyHandler{h.deps}

	switch strings.ToLower(text) {
	case "签到", "checkin":
		shop.checkin(ctx, api, msg)
		return true
	case "积分", "points":
		shop.points(ctx, api, msg)
		return true
	case "商店", "奖品", "shop":
		shop.shop(ctx, api, msg)
		return true
	}

	if q, ok := rankingPhrases[text]; ok {
		statsHandler{h.deps}.sendRanking(ctx, api, msg, q)
		return true
	}
	return false
}

// addressed reports whether the message is meant for the bot: a private
// chat, a mention, a reply to the bot, or a group with auto chat on.
func (h messageHandler) addressed(ctx context.Context, msg *models.Message) bool {
	if isPrivate(msg) {
		return true
	}
	if username := h.deps.botUsername(); username != "" &&
		strings.Contains(strings.ToLower(msg.Text), "@"+strings.ToLower(username)) {
		return true
	}
	if info := h.deps.Config.Telegram.BotInfo; info != nil &&
		msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && msg.ReplyToMessage.From.ID == info.ID {
		return true
	}
	return isGroup(msg) && h.deps.Settings.AutochatEnabled(ctx, msg.Chat.ID)
}

func (h messageHandler) answerFAQ(ctx context.Context, api telegram.API, msg *models.Message) {
	if h.deps.FAQ == nil || !isGroup(msg) {
		return
	}
	answer, ok, err := h.deps.FAQ.FindAnswer(ctx, msg.Chat.ID, msg.Text)
	if err != nil {
		h.deps.Logger.WarnContext(ctx, "FAQ lookup failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	if !ok {
		return
	}
	h.deps.reply(ctx, api, msg, h.deps.Config.Messages.FAQReplyPrefix+"\n\n"+answer)
}

// converse answers through the language model using the recent chat history.
func (h messageHandler) converse(ctx context.Context, api telegram.API, msg *models.Message) {
	log := h.deps.Logger.With("handler", "mention")
	info := h.deps.Config.Telegram.BotInfo
	if info == nil {
		log.WarnContext(ctx, "Bot info missing, cannot reply")
		return
	}

	prompt := strings.TrimSpace(strings.ReplaceAll(msg.Text, "@"+info.Username, ""))
	if prompt == "" {
		return
	}

	history, err := h.deps.Store.RecentMessages(ctx, msg.Chat.ID, h.deps.Config.Gemini.HistorySize)
	if err != nil || len(history) == 0 {
		if err != nil {
			log.ErrorContext(ctx, "Failed to retrieve message history", "error", err, "chat_id", msg.Chat.ID)
		}
		history = []database.Message{*h.deps.toRecord(msg)}
	}

	stopTyping := telegram.KeepTyping(ctx, api, log, msg.Chat.ID)
	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingCap)
	reply, err := h.deps.GeminiClient.GenerateReply(aiCtx, history, info.ID, info.Username, info.FirstName)
	cancel()
	stopTyping()

	if err != nil {
		log.ErrorContext(ctx, "AI generation failed", "error", err, "chat_id", msg.Chat.ID)
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.AIError)
		return
	}
	log.InfoContext(ctx, "Sending AI reply", "chat_id", msg.Chat.ID, "reply_to", msg.ID)
	h.deps.reply(ctx, api, msg, reply)
}

// membershipHandler reacts to the bot being added to or removed from a group.
type membershipHandler struct {
	deps HandlerDeps
}

func (h membershipHandler) handle(ctx context.Context, api telegram.API, upd *models.ChatMemberUpdated) {
	log := h.deps.Logger.With("handler", "membership")
	chat := upd.Chat
	oldStatus, newStatus := upd.OldChatMember.Type, upd.NewChatMember.Type
	log.InfoContext(ctx, "Bot membership changed",
		"chat_id", chat.ID, "chat_title", chat.Title, "old", oldStatus, "new", newStatus, "by", upd.From.ID)

	joined := newStatus == models.ChatMemberTypeMember || newStatus == models.ChatMemberTypeAdministrator
	wasOut := oldStatus == models.ChatMemberTypeLeft || oldStatus == models.ChatMemberTypeBanned
	if !joined || !wasOut {
		return
	}

	addedBy := upd.From.ID
	if err := h.deps.Store.UpsertKnownChat(ctx, chat.ID, chat.Title, &addedBy, h.deps.Clock.Now()); err != nil {
		log.ErrorContext(ctx, "Failed to record new group", "chat_id", chat.ID, "error", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	if _, err := telegram.Reply(sendCtx, api, chat.ID, 0, h.deps.Config.Messages.GroupWelcome); err != nil {
		log.ErrorContext(ctx, "Failed to send group welcome", "chat_id", chat.ID, "error", err)
	}
}
