package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TypingInterval is how often the typing action is refreshed. Telegram
// clears it after about five seconds.
const TypingInterval = 4 * time.Second

// KeepTyping shows the typing indicator in chatID until the returned stop
// function is called or ctx ends.
func KeepTyping(ctx context.Context, api API, logger *slog.Logger, chatID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(TypingInterval)
		defer ticker.Stop()

		for {
			if _, err := api.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: chatID,
				Action: models.ChatActionTyping,
			}); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Debug("typing action failed", "error", err, "chat_id", chatID)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
