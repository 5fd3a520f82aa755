package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetUserSettings returns the user's settings, or the defaults when no row exists.
func (s *sqlxStore) GetUserSettings(ctx context.Context, userID int64) (UserSettings, error) {
	var settings UserSettings
	err := s.db.GetContext(ctx, &settings, `
        SELECT user_id, language_code, ranking_enabled FROM user_settings WHERE user_id = ?;
    `, formatID(userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultUserSettings(userID), nil
		}
		s.logger.ErrorContext(ctx, "Error loading user settings", "user_id", userID, "error", err)
		return DefaultUserSettings(userID), fmt.Errorf("failed to load settings of user %d: %w", userID, err)
	}
	return settings, nil
}

// SetUserLanguage stores the preferred language of a user.
func (s *sqlxStore) SetUserLanguage(ctx context.Context, userID int64, lang string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO user_settings (user_id, language_code) VALUES (?, ?)
        ON CONFLICT(user_id) DO UPDATE SET language_code = excluded.language_code;
    `, formatID(userID), lang)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving user language", "user_id", userID, "error", err)
		return fmt.Errorf("failed to save language of user %d: %w", userID, err)
	}
	return nil
}

// SetUserRankingEnabled opts a user in or out of user leaderboards.
func (s *sqlxStore) SetUserRankingEnabled(ctx context.Context, userID int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO user_settings (user_id, ranking_enabled) VALUES (?, ?)
        ON CONFLICT(user_id) DO UPDATE SET ranking_enabled = excluded.ranking_enabled;
    `, formatID(userID), boolToInt(enabled))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving ranking preference", "user_id", userID, "error", err)
		return fmt.Errorf("failed to save ranking preference of user %d: %w", userID, err)
	}
	return nil
}

// GetGroupSettings returns the group's settings, or the defaults when no row exists.
func (s *sqlxStore) GetGroupSettings(ctx context.Context, chatID int64) (GroupSettings, error) {
	var settings GroupSettings
	err := s.db.GetContext(ctx, &settings, `
        SELECT chat_id, language_code, autochat_enabled, spam_filter_enabled, checkin_enabled
        FROM group_settings WHERE chat_id = ?;
    `, formatID(chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultGroupSettings(chatID), nil
		}
		s.logger.ErrorContext(ctx, "Error loading group settings", "chat_id", chatID, "error", err)
		return DefaultGroupSettings(chatID), fmt.Errorf("failed to load settings of chat %d: %w", chatID, err)
	}
	return settings, nil
}

// SetGroupLanguage stores the language of a group.
func (s *sqlxStore) SetGroupLanguage(ctx context.Context, chatID int64, lang string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO group_settings (chat_id, language_code) VALUES (?, ?)
        ON CONFLICT(chat_id) DO UPDATE SET language_code = excluded.language_code;
    `, formatID(chatID), lang)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving group language", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to save language of chat %d: %w", chatID, err)
	}
	return nil
}

// SetGroupFlag sets one boolean feature flag of a group.
func (s *sqlxStore) SetGroupFlag(ctx context.Context, chatID int64, flag GroupFlag, enabled bool) error {
	if !flag.Valid() {
		return fmt.Errorf("unknown group setting %q", flag)
	}

	// flag is one of the whitelisted column names.
	query := fmt.Sprintf(`
        INSERT INTO group_settings (chat_id, %[1]s) VALUES (?, ?)
        ON CONFLICT(chat_id) DO UPDATE SET %[1]s = excluded.%[1]s;
    `, string(flag))
	if _, err := s.db.ExecContext(ctx, query, formatID(chatID), boolToInt(enabled)); err != nil {
		s.logger.ErrorContext(ctx, "Error saving group setting", "chat_id", chatID, "flag", flag, "error", err)
		return fmt.Errorf("failed to save %s of chat %d: %w", flag, chatID, err)
	}
	return nil
}
