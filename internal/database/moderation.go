package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// GetBlacklistEntry returns the blacklist entry of a user, or ErrNotFound.
// Expired entries are returned as-is; callers decide what expiry means.
func (s *sqlxStore) GetBlacklistEntry(ctx context.Context, userID int64) (*BlacklistEntry, error) {
	var entry BlacklistEntry
	err := s.db.GetContext(ctx, &entry, `
        SELECT user_id, expiration_timestamp FROM blacklist WHERE user_id = ?;
    `, formatID(userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Error loading blacklist entry", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load blacklist entry of user %d: %w", userID, err)
	}
	return &entry, nil
}

// UpsertBlacklist blacklists a user until expiresAt, replacing any previous expiry.
func (s *sqlxStore) UpsertBlacklist(ctx context.Context, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO blacklist (user_id, expiration_timestamp) VALUES (?, ?)
        ON CONFLICT(user_id) DO UPDATE SET expiration_timestamp = excluded.expiration_timestamp;
    `, formatID(userID), expiresAt.Unix())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving blacklist entry", "user_id", userID, "error", err)
		return fmt.Errorf("failed to blacklist user %d: %w", userID, err)
	}
	return nil
}

// DeleteBlacklist removes a user from the blacklist and reports whether a row existed.
func (s *sqlxStore) DeleteBlacklist(ctx context.Context, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE user_id = ?;`, formatID(userID))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting blacklist entry", "user_id", userID, "error", err)
		return false, fmt.Errorf("failed to remove user %d from blacklist: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

// DeleteExpiredBlacklist removes every entry that expired strictly before
// now. An entry expiring exactly at now is still active.
func (s *sqlxStore) DeleteExpiredBlacklist(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE expiration_timestamp < ?;`, now.Unix())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error sweeping blacklist", "error", err)
		return 0, fmt.Errorf("failed to sweep blacklist: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// BumpWarning increments the warning counter of a user in a chat.
func (s *sqlxStore) BumpWarning(ctx context.Context, chatID, userID int64, now time.Time, expiry time.Duration) (int, error) {
	var count int
	err := s.withTx(ctx, "bump_warning", func(tx *sqlx.Tx) error {
		var current UserWarning
		err := tx.GetContext(ctx, &current, `
            SELECT chat_id, user_id, warning_count, last_warning_timestamp
            FROM user_warnings WHERE chat_id = ? AND user_id = ?;
        `, formatID(chatID), formatID(userID))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			count = 1
		case err != nil:
			return fmt.Errorf("failed to load warnings of user %d in chat %d: %w", userID, chatID, err)
		case now.Sub(timeFromUnix(current.LastWarningAt)) > expiry:
			count = 1
		default:
			count = current.WarningCount + 1
		}

		_, err = tx.ExecContext(ctx, `
            INSERT INTO user_warnings (chat_id, user_id, warning_count, last_warning_timestamp)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(chat_id, user_id) DO UPDATE SET
                warning_count = excluded.warning_count,
                last_warning_timestamp = excluded.last_warning_timestamp;
        `, formatID(chatID), formatID(userID), count, now.Unix())
		if err != nil {
			return fmt.Errorf("failed to save warnings of user %d in chat %d: %w", userID, chatID, err)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording warning", "chat_id", chatID, "user_id", userID, "error", err)
		return 0, err
	}
	return count, nil
}
