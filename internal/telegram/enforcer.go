package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/moderation"
)

// Enforcer carries out moderation decisions through the Bot API.
type Enforcer struct {
	api   API
	botID int64
}

var _ moderation.Enforcer = (*Enforcer)(nil)

// NewEnforcer returns an enforcer acting as the bot with id botID.
func NewEnforcer(api API, botID int64) *Enforcer {
	return &Enforcer{api: api, botID: botID}
}

// CanRestrict reports whether the bot itself holds the restrict permission.
func (e *Enforcer) CanRestrict(ctx context.Context, chatID int64) (bool, error) {
	member, err := e.api.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: e.botID})
	if err != nil {
		return false, fmt.Errorf("get bot membership in %d: %w", chatID, err)
	}
	switch member.Type {
	case models.ChatMemberTypeOwner:
		return true, nil
	case models.ChatMemberTypeAdministrator:
		return member.Administrator != nil && member.Administrator.CanRestrictMembers, nil
	default:
		return false, nil
	}
}

// Mute revokes send permissions for userID until the given time.
func (e *Enforcer) Mute(ctx context.Context, chatID, userID int64, until time.Time) error {
	_, err := e.api.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID:      chatID,
		UserID:      userID,
		Permissions: &models.ChatPermissions{CanSendMessages: false},
		UntilDate:   int(until.Unix()),
	})
	if err != nil {
		return fmt.Errorf("restrict %d in %d: %w", userID, chatID, err)
	}
	return nil
}

// Unmute restores the default member permissions.
func (e *Enforcer) Unmute(ctx context.Context, chatID, userID int64) error {
	_, err := e.api.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID: chatID,
		UserID: userID,
		Permissions: &models.ChatPermissions{
			CanSendMessages:       true,
			CanSendAudios:         true,
			CanSendDocuments:      true,
			CanSendPhotos:         true,
			CanSendVideos:         true,
			CanSendVideoNotes:     true,
			CanSendVoiceNotes:     true,
			CanSendPolls:          true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
			CanInviteUsers:        true,
		},
	})
	if err != nil {
		return fmt.Errorf("lift restriction of %d in %d: %w", userID, chatID, err)
	}
	return nil
}

func (e *Enforcer) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := e.api.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		return fmt.Errorf("delete message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

func (e *Enforcer) Notify(ctx context.Context, chatID int64, replyTo int, text string) error {
	if _, err := Reply(ctx, e.api, chatID, replyTo, text); err != nil {
		return fmt.Errorf("notify %d: %w", chatID, err)
	}
	return nil
}

// IsChatAdmin reports whether userID is the creator or an administrator of chatID.
func (e *Enforcer) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := e.api.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		return false, fmt.Errorf("get membership of %d in %d: %w", userID, chatID, err)
	}
	return member.Type == models.ChatMemberTypeOwner || member.Type == models.ChatMemberTypeAdministrator, nil
}
