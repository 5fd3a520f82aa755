package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/telegram"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(helpHandler{deps}.handle)
}

type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) handle(ctx context.Context, api telegram.API, msg *models.Message) {
	h.deps.Logger.With("handler", "help").DebugContext(ctx, "Handling /help command", "chat_id", msg.Chat.ID)
	h.deps.reply(ctx, api, msg, h.deps.Config.Messages.Help)
}
