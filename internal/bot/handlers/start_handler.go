package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/telegram"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return adapt(startHandler{deps}.handle)
}

// startHandler processes the /start command using injected dependencies.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) handle(ctx context.Context, api telegram.API, msg *models.Message) {
	log := h.deps.Logger.With("handler", "start")
	log.InfoContext(ctx, "Handling /start command", "chat_id", msg.Chat.ID, "user_id", senderID(msg))

	welcome := h.deps.Config.Messages.Welcome
	if username := h.deps.botUsername(); username != "" {
		welcome = strings.ReplaceAll(welcome, "@botname", "@"+username)
	}
	h.deps.reply(ctx, api, msg, welcome)
}
