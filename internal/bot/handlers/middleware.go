// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/moderation"
	"github.com/itl33054/wwannengBOT/internal/telegram"
)

// ModerationGate runs every inbound message through the moderation gate
// before any handler. A suppressed message stops the chain.
func ModerationGate(deps HandlerDeps) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message != nil && deps.suppressed(ctx, b, update.Message) {
				return
			}
			next(ctx, b, update)
		}
	}
}

func (d HandlerDeps) suppressed(ctx context.Context, api telegram.API, msg *models.Message) bool {
	userID := senderID(msg)
	if d.Moderation == nil || userID == 0 {
		return false
	}
	// Anonymous admins post as the group itself.
	if msg.SenderChat != nil && msg.SenderChat.ID == msg.Chat.ID {
		return false
	}

	verdict := d.Moderation.Inspect(ctx, d.enforcer(api), moderation.Event{
		ChatID:    msg.Chat.ID,
		UserID:    userID,
		MessageID: msg.ID,
		Text:      msg.Text,
		Private:   isPrivate(msg),
		UserName:  displayName(msg),
	})
	if verdict.Suppress {
		d.Logger.With("middleware", "moderation").InfoContext(ctx, "Message suppressed",
			"chat_id", msg.Chat.ID, "user_id", userID, "reason", verdict.Reason)
	}
	return verdict.Suppress
}

// AdminOnly creates a middleware that lets configured owners and chat
// administrators through. Others get a "Not Authorized" reply.
func AdminOnly(deps HandlerDeps) bot.Middleware {
	return guard(deps, deps.isAdmin)
}

// OwnerOnly lets only configured owners through.
func OwnerOnly(deps HandlerDeps) bot.Middleware {
	return guard(deps, func(_ context.Context, _ telegram.API, msg *models.Message) bool {
		return msg.From != nil && deps.Config.IsOwner(msg.From.ID)
	})
}

func guard(deps HandlerDeps, allowed func(context.Context, telegram.API, *models.Message) bool) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}
			if !deps.authorize(ctx, b, update.Message, allowed) {
				return
			}
			next(ctx, b, update)
		}
	}
}

func (d HandlerDeps) authorize(ctx context.Context, api telegram.API, msg *models.Message,
	allowed func(context.Context, telegram.API, *models.Message) bool,
) bool {
	if allowed(ctx, api, msg) {
		return true
	}
	d.Logger.With("middleware", "authorization").WarnContext(ctx, "Unauthorized access attempt",
		"user_id", senderID(msg), "chat_id", msg.Chat.ID)
	d.reply(ctx, api, msg, d.Config.Messages.NotAuthorized)
	return false
}

func (d HandlerDeps) isAdmin(ctx context.Context, api telegram.API, msg *models.Message) bool {
	if msg.From == nil {
		return false
	}
	if d.Config.IsOwner(msg.From.ID) {
		return true
	}
	if d.Moderation == nil {
		return false
	}
	return d.Moderation.IsAdmin(ctx, d.enforcer(api), msg.Chat.ID, msg.From.ID, isPrivate(msg))
}
