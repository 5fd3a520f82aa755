package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// API is the subset of *bot.Bot the application calls. Handlers and the
// enforcer depend on it so tests can substitute a mock.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	RestrictChatMember(ctx context.Context, params *bot.RestrictChatMemberParams) (bool, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

var _ API = (*bot.Bot)(nil)

// Reply sends text to chatID as a reply to replyTo. A zero replyTo sends a
// plain message.
func Reply(ctx context.Context, api API, chatID int64, replyTo int, text string) (*models.Message, error) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if replyTo != 0 {
		params.ReplyParameters = &models.ReplyParameters{
			MessageID:                replyTo,
			AllowSendingWithoutReply: true,
		}
	}
	return api.SendMessage(ctx, params)
}
