package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/telegram"
)

const (
	sendMessageTimeout = 10 * time.Second
	dbSaveTimeout      = 5 * time.Second
)

// messageFunc handles one message through the API seam, so the logic can be
// driven by a mock in tests.
type messageFunc func(ctx context.Context, api telegram.API, msg *models.Message)

// adapt turns a messageFunc into a bot handler. Updates without a message
// or sender are ignored.
func adapt(h messageFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || senderID(update.Message) == 0 {
			return
		}
		h(ctx, b, update.Message)
	}
}

// senderID is the user id of the message, or the id of the chat posting as
// itself for anonymous admins and channels.
func senderID(msg *models.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	if msg.SenderChat != nil {
		return msg.SenderChat.ID
	}
	return 0
}

func isPrivate(msg *models.Message) bool {
	return msg.Chat.Type == models.ChatTypePrivate
}

func isGroup(msg *models.Message) bool {
	return msg.Chat.Type == models.ChatTypeGroup || msg.Chat.Type == models.ChatTypeSupergroup
}

// displayName returns the sender's full name, falling back to the username
// and then the sender chat title.
func displayName(msg *models.Message) string {
	if msg.From != nil {
		return userName(msg.From)
	}
	if msg.SenderChat != nil {
		return msg.SenderChat.Title
	}
	return ""
}

func userName(u *models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		return "@" + u.Username
	}
	if name == "" {
		return strconv.FormatInt(u.ID, 10)
	}
	return name
}

// render substitutes {key} placeholders in template. pairs alternate keys
// and values.
func render(template string, pairs ...string) string {
	if len(pairs) == 0 {
		return template
	}
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(template)
}

// commandArgs returns the text after the command word.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	_, rest, _ := strings.Cut(text, " ")
	return strings.TrimSpace(rest)
}

// splitFields splits s on | and trims every part.
func splitFields(s string) []string {
	parts := strings.Split(s, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// reply sends text as a reply to msg and logs failures.
func (d HandlerDeps) reply(ctx context.Context, api telegram.API, msg *models.Message, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	if _, err := telegram.Reply(sendCtx, api, msg.Chat.ID, msg.ID, text); err != nil {
		d.Logger.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", msg.Chat.ID)
	}
}

// enforcer returns the moderation enforcer acting through api.
func (d HandlerDeps) enforcer(api telegram.API) *telegram.Enforcer {
	var botID int64
	if d.Config.Telegram.BotInfo != nil {
		botID = d.Config.Telegram.BotInfo.ID
	}
	return telegram.NewEnforcer(api, botID)
}

func (d HandlerDeps) botUsername() string {
	if d.Config.Telegram.BotInfo == nil {
		return ""
	}
	return d.Config.Telegram.BotInfo.Username
}

// toRecord converts an inbound message into an event log record. Text is
// trimmed so topic counting sees identical messages as one topic.
func (d HandlerDeps) toRecord(msg *models.Message) *database.Message {
	rec := &database.Message{
		ChatID:       msg.Chat.ID,
		ChatTitle:    msg.Chat.Title,
		ChatUsername: msg.Chat.Username,
		UserID:       senderID(msg),
		UserName:     displayName(msg),
		Timestamp:    int64(msg.Date),
		Text:         strings.TrimSpace(msg.Text),
	}
	if msg.From != nil {
		rec.UserUsername = msg.From.Username
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = d.Clock.Now().Unix()
	}
	return rec
}

// resolveTarget reads a user id, an @username or the author of the replied
// message.
func (d HandlerDeps) resolveTarget(ctx context.Context, msg *models.Message, arg string) (int64, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
			return msg.ReplyToMessage.From.ID, true
		}
		return 0, false
	}
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, true
	}
	if strings.HasPrefix(arg, "@") {
		id, err := d.Store.FindUserIDByUsername(ctx, arg)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
