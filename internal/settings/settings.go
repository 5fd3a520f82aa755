// Package settings exposes per-user and per-group preferences with their
// defaults applied.
package settings

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/itl33054/wwannengBOT/internal/database"
)

// Service reads and toggles preferences. Reads never fail from the caller's
// point of view: storage errors are logged and the documented default wins.
type Service struct {
	store  database.SettingsStore
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(store database.SettingsStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: store, logger: logger.With("component", "settings")}
}

// User returns the settings of userID.
func (s *Service) User(ctx context.Context, userID int64) (database.UserSettings, error) {
	return s.store.GetUserSettings(ctx, userID)
}

// RankingEnabled reports whether userID appears in leaderboards.
func (s *Service) RankingEnabled(ctx context.Context, userID int64) bool {
	us, err := s.store.GetUserSettings(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Falling back to default ranking preference", "user_id", userID, "error", err)
		return database.DefaultUserSettings(userID).RankingEnabled
	}
	return us.RankingEnabled
}

// ToggleRanking flips the leaderboard opt-out of userID and returns the new value.
func (s *Service) ToggleRanking(ctx context.Context, userID int64) (bool, error) {
	us, err := s.store.GetUserSettings(ctx, userID)
	if err != nil {
		return false, err
	}
	enabled := !us.RankingEnabled
	if err := s.store.SetUserRankingEnabled(ctx, userID, enabled); err != nil {
		return us.RankingEnabled, err
	}
	s.logger.InfoContext(ctx, "Ranking preference changed", "user_id", userID, "enabled", enabled)
	return enabled, nil
}

// SetUserLanguage stores a lowercased language code for userID.
func (s *Service) SetUserLanguage(ctx context.Context, userID int64, lang string) error {
	return s.store.SetUserLanguage(ctx, userID, normalizeLanguage(lang))
}

// Group returns the settings of chatID.
func (s *Service) Group(ctx context.Context, chatID int64) (database.GroupSettings, error) {
	return s.store.GetGroupSettings(ctx, chatID)
}

// SetGroupLanguage stores a lowercased language code for chatID.
func (s *Service) SetGroupLanguage(ctx context.Context, chatID int64, lang string) error {
	return s.store.SetGroupLanguage(ctx, chatID, normalizeLanguage(lang))
}

// SetGroupFlag sets one feature flag of chatID.
func (s *Service) SetGroupFlag(ctx context.Context, chatID int64, flag database.GroupFlag, enabled bool) error {
	if err := s.store.SetGroupFlag(ctx, chatID, flag, enabled); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Group flag changed", "chat_id", chatID, "flag", string(flag), "enabled", enabled)
	return nil
}

// ToggleGroupFlag flips one feature flag of chatID and returns the new value.
func (s *Service) ToggleGroupFlag(ctx context.Context, chatID int64, flag database.GroupFlag) (bool, error) {
	gs, err := s.store.GetGroupSettings(ctx, chatID)
	if err != nil {
		return false, err
	}
	enabled := !flagValue(gs, flag)
	if err := s.SetGroupFlag(ctx, chatID, flag, enabled); err != nil {
		return !enabled, err
	}
	return enabled, nil
}

// SpamFilterEnabled reports whether the keyword filter runs in chatID.
func (s *Service) SpamFilterEnabled(ctx context.Context, chatID int64) bool {
	return s.flag(ctx, chatID, database.FlagSpamFilter)
}

// AutochatEnabled reports whether the bot answers unaddressed messages in chatID.
func (s *Service) AutochatEnabled(ctx context.Context, chatID int64) bool {
	return s.flag(ctx, chatID, database.FlagAutochat)
}

// CheckinEnabled reports whether check-ins are accepted in chatID.
func (s *Service) CheckinEnabled(ctx context.Context, chatID int64) bool {
	return s.flag(ctx, chatID, database.FlagCheckin)
}

func (s *Service) flag(ctx context.Context, chatID int64, flag database.GroupFlag) bool {
	gs, err := s.store.GetGroupSettings(ctx, chatID)
	if err != nil {
		s.logger.WarnContext(ctx, "Falling back to default group flag", "chat_id", chatID, "flag", string(flag), "error", err)
		gs = database.DefaultGroupSettings(chatID)
	}
	return flagValue(gs, flag)
}

func flagValue(gs database.GroupSettings, flag database.GroupFlag) bool {
	switch flag {
	case database.FlagAutochat:
		return gs.AutochatEnabled
	case database.FlagSpamFilter:
		return gs.SpamFilterEnabled
	case database.FlagCheckin:
		return gs.CheckinEnabled
	default:
		return false
	}
}

func normalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
