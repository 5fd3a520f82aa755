package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const upsertKnownChatQuery = `
    INSERT INTO known_chats (chat_id, chat_title, added_by_user_id, date_added)
    VALUES (?, ?, ?, ?)
    ON CONFLICT(chat_id) DO UPDATE SET
        chat_title = excluded.chat_title,
        added_by_user_id = COALESCE(known_chats.added_by_user_id, excluded.added_by_user_id),
        date_added = COALESCE(known_chats.date_added, excluded.date_added);
`

// SaveMessage inserts a new message record. When the chat is a titled group
// the known chat entry is refreshed in the same transaction.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if message.UserID == 0 {
		return fmt.Errorf("message must have a non-zero user_id")
	}

	err := s.withTx(ctx, "save_message", func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
            INSERT INTO messages (chat_id, chat_title, chat_username, user_id, user_name, user_username, timestamp, text)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?);
        `, formatID(message.ChatID), message.ChatTitle, message.ChatUsername,
			formatID(message.UserID), message.UserName, message.UserUsername,
			message.Timestamp, message.Text)
		if err != nil {
			return fmt.Errorf("failed to save message (chat %d, user %d): %w", message.ChatID, message.UserID, err)
		}

		if id, err := result.LastInsertId(); err == nil {
			message.ID = id
		} else {
			s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving message",
				"chat_id", message.ChatID, "user_id", message.UserID, "error", err)
		}

		if IsGroupID(message.ChatID) && message.ChatTitle != "" {
			if _, err := tx.ExecContext(ctx, upsertKnownChatQuery,
				formatID(message.ChatID), message.ChatTitle, nil, nil); err != nil {
				return fmt.Errorf("failed to upsert known chat %d: %w", message.ChatID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "chat_id", message.ChatID, "user_id", message.UserID, "error", err)
		return err
	}

	s.logger.DebugContext(ctx, "Message saved successfully",
		"chat_id", message.ChatID, "user_id", message.UserID, "message_id", message.ID)
	return nil
}

// UpsertKnownChat records a group the bot has seen. Non-group ids and empty
// titles are ignored.
func (s *sqlxStore) UpsertKnownChat(ctx context.Context, chatID int64, title string, addedBy *int64, at time.Time) error {
	if !IsGroupID(chatID) || title == "" {
		return nil
	}

	var addedByArg, dateArg any
	if addedBy != nil {
		addedByArg = formatID(*addedBy)
		dateArg = at.Unix()
	}

	if _, err := s.db.ExecContext(ctx, upsertKnownChatQuery, formatID(chatID), title, addedByArg, dateArg); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting known chat", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to upsert known chat %d: %w", chatID, err)
	}
	return nil
}

// ListKnownChats returns every known group ordered by title.
func (s *sqlxStore) ListKnownChats(ctx context.Context) ([]KnownChat, error) {
	var chats []KnownChat
	err := s.db.SelectContext(ctx, &chats, `
        SELECT chat_id, chat_title, added_by_user_id, date_added
        FROM known_chats
        ORDER BY chat_title ASC, chat_id ASC;
    `)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing known chats", "error", err)
		return nil, fmt.Errorf("failed to list known chats: %w", err)
	}
	return chats, nil
}

// DiscoverKnownChats backfills known_chats from the message log.
func (s *sqlxStore) DiscoverKnownChats(ctx context.Context) (int, error) {
	// "WHERE true" keeps SQLite from reading ON CONFLICT as a join constraint.
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO known_chats (chat_id, chat_title)
        SELECT m.chat_id, m.chat_title
        FROM messages AS m
        INNER JOIN (
            SELECT MAX(id) AS max_id
            FROM messages
            WHERE chat_id LIKE '-100%' AND chat_title != ''
            GROUP BY chat_id
        ) AS latest ON m.id = latest.max_id
        WHERE true
        ON CONFLICT(chat_id) DO UPDATE SET chat_title = excluded.chat_title;
    `)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error discovering known chats", "error", err)
		return 0, fmt.Errorf("failed to discover known chats: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	s.logger.InfoContext(ctx, "Known chats refreshed from message history", "chats", affected)
	return int(affected), nil
}

// ListGroupsForUser returns the titled groups userID posted in, with the
// latest title of each group and the user's message count there.
func (s *sqlxStore) ListGroupsForUser(ctx context.Context, userID int64) ([]GroupCount, error) {
	var groups []GroupCount
	err := s.db.SelectContext(ctx, &groups, `
        SELECT m.chat_id, m.chat_title, m.chat_username, latest.msg_count
        FROM messages AS m
        INNER JOIN (
            SELECT MAX(id) AS max_id, COUNT(*) AS msg_count
            FROM messages
            WHERE user_id = ? AND chat_id LIKE '-100%' AND chat_title != ''
            GROUP BY chat_id
        ) AS latest ON m.id = latest.max_id
        ORDER BY m.chat_title ASC;
    `, formatID(userID))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing groups for user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list groups for user %d: %w", userID, err)
	}
	return groups, nil
}

// FindUserIDByUsername resolves a username (case-insensitive, leading @
// stripped) to the user id of the latest message carrying it.
func (s *sqlxStore) FindUserIDByUsername(ctx context.Context, username string) (int64, error) {
	cleaned := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if cleaned == "" {
		return 0, ErrNotFound
	}

	var userID int64
	err := s.db.GetContext(ctx, &userID, `
        SELECT user_id FROM messages
        WHERE LOWER(user_username) = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT 1;
    `, cleaned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Error resolving username", "username", cleaned, "error", err)
		return 0, fmt.Errorf("failed to resolve username %q: %w", cleaned, err)
	}
	return userID, nil
}

// GetUserActivityAcrossGroups returns the user's message count per group,
// highest first, with the latest title and username of each group.
func (s *sqlxStore) GetUserActivityAcrossGroups(ctx context.Context, userID int64) ([]GroupCount, error) {
	var groups []GroupCount
	err := s.db.SelectContext(ctx, &groups, `
        SELECT m.chat_id, m.chat_title, m.chat_username, latest.msg_count
        FROM messages AS m
        INNER JOIN (
            SELECT MAX(id) AS max_id, COUNT(*) AS msg_count
            FROM messages
            WHERE user_id = ? AND chat_id LIKE '-100%'
            GROUP BY chat_id
        ) AS latest ON m.id = latest.max_id
        ORDER BY latest.msg_count DESC, m.chat_id ASC;
    `, formatID(userID))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error loading user activity", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load activity of user %d: %w", userID, err)
	}
	return groups, nil
}

// GetDailyActivity counts messages of chatID per UTC day within [from, to].
func (s *sqlxStore) GetDailyActivity(ctx context.Context, chatID int64, from, to time.Time) ([]DayCount, error) {
	var days []DayCount
	err := s.db.SelectContext(ctx, &days, `
        SELECT date(timestamp, 'unixepoch') AS day, COUNT(*) AS msg_count
        FROM messages
        WHERE chat_id = ? AND timestamp >= ? AND timestamp <= ?
        GROUP BY day
        ORDER BY day ASC;
    `, formatID(chatID), from.Unix(), to.Unix())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error loading daily activity", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to load daily activity of chat %d: %w", chatID, err)
	}
	return days, nil
}

// RecentMessages returns up to limit of the latest messages in chatID in
// chronological order.
func (s *sqlxStore) RecentMessages(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	var msgs []Message
	err := s.db.SelectContext(ctx, &msgs, `
        SELECT id, chat_id, chat_title, chat_username, user_id, user_name, user_username, timestamp, text
        FROM (
            SELECT * FROM messages
            WHERE chat_id = ?
            ORDER BY id DESC
            LIMIT ?
        )
        ORDER BY id ASC;
    `, formatID(chatID), limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error loading recent messages", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to load recent messages of chat %d: %w", chatID, err)
	}
	return msgs, nil
}
