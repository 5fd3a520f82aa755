package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// filterClause renders f as a WHERE clause. When people is true, senders
// whose id looks like a group are dropped; otherwise only group chats match.
func filterClause(f RankFilter, people bool) (string, []any, error) {
	var (
		conds []string
		args  []any
	)

	if people {
		conds = append(conds, "user_id NOT LIKE '"+GroupIDPrefix+"%'")
	} else {
		conds = append(conds, "chat_id LIKE '"+GroupIDPrefix+"%'")
	}
	if f.ChatID != nil {
		conds = append(conds, "chat_id = ?")
		args = append(args, formatID(*f.ChatID))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.Since.Unix())
	}
	if len(f.ExcludeUserIDs) > 0 {
		ids := make([]string, 0, len(f.ExcludeUserIDs))
		for _, id := range f.ExcludeUserIDs {
			ids = append(ids, formatID(id))
		}
		conds = append(conds, "user_id NOT IN (?)")
		args = append(args, ids)
	}
	if f.ExcludeOptOut {
		optOut := "user_id NOT IN (SELECT user_id FROM user_settings WHERE ranking_enabled = 0)"
		if f.KeepUserID != 0 {
			optOut = "(" + optOut + " OR user_id = ?)"
			args = append(args, formatID(f.KeepUserID))
		}
		conds = append(conds, optOut)
	}

	clause := "WHERE " + strings.Join(conds, " AND ")
	if len(f.ExcludeUserIDs) == 0 {
		return clause, args, nil
	}
	// Expand the exclusion slice into one placeholder per id.
	return sqlx.In(clause, args...)
}

func limitArg(limit int) int {
	if limit <= 0 {
		return -1 // SQLite: no limit
	}
	return limit
}

// TopUsers returns the most active users under f with their latest names.
func (s *sqlxStore) TopUsers(ctx context.Context, f RankFilter) ([]UserCount, error) {
	where, args, err := filterClause(f, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build user ranking filter: %w", err)
	}

	query := `
        WITH counts AS (
            SELECT user_id, COUNT(*) AS msg_count, MAX(id) AS max_id, MIN(id) AS first_id
            FROM messages ` + where + `
            GROUP BY user_id
        )
        SELECT c.user_id, m.user_name, m.user_username, c.msg_count,
               RANK() OVER (ORDER BY c.msg_count DESC) AS rnk
        FROM counts AS c
        INNER JOIN messages AS m ON m.id = c.max_id
        ORDER BY c.msg_count DESC, c.first_id ASC
        LIMIT ?;
    `
	args = append(args, limitArg(f.Limit))

	var users []UserCount
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Error ranking users", "error", err)
		return nil, fmt.Errorf("failed to rank users: %w", err)
	}
	return users, nil
}

// TopGroups returns the most active group chats under f with their latest
// title and username.
func (s *sqlxStore) TopGroups(ctx context.Context, f RankFilter) ([]GroupCount, error) {
	where, args, err := filterClause(f, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build group ranking filter: %w", err)
	}

	query := `
        WITH counts AS (
            SELECT chat_id, COUNT(*) AS msg_count, MAX(id) AS max_id, MIN(id) AS first_id
            FROM messages ` + where + `
            GROUP BY chat_id
        )
        SELECT c.chat_id, m.chat_title, m.chat_username, c.msg_count,
               RANK() OVER (ORDER BY c.msg_count DESC) AS rnk
        FROM counts AS c
        INNER JOIN messages AS m ON m.id = c.max_id
        ORDER BY c.msg_count DESC, c.first_id ASC
        LIMIT ?;
    `
	args = append(args, limitArg(f.Limit))

	var groups []GroupCount
	if err := s.db.SelectContext(ctx, &groups, s.db.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Error ranking groups", "error", err)
		return nil, fmt.Errorf("failed to rank groups: %w", err)
	}
	return groups, nil
}

// MessageTexts returns the non-empty texts matching f in insertion order.
// f.Limit is ignored.
func (s *sqlxStore) MessageTexts(ctx context.Context, f RankFilter) ([]string, error) {
	where, args, err := filterClause(f, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build topic filter: %w", err)
	}

	var texts []string
	query := `SELECT text FROM messages ` + where + ` AND text != '' ORDER BY id ASC;`
	if err := s.db.SelectContext(ctx, &texts, s.db.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Error loading message texts", "error", err)
		return nil, fmt.Errorf("failed to load message texts: %w", err)
	}
	return texts, nil
}

// UserRank returns the competition rank of userID among the users matching f.
func (s *sqlxStore) UserRank(ctx context.Context, userID int64, f RankFilter) (int, int64, error) {
	where, args, err := filterClause(f, true)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build rank filter: %w", err)
	}

	query := `
        WITH counts AS (
            SELECT user_id, COUNT(*) AS msg_count
            FROM messages ` + where + `
            GROUP BY user_id
        ),
        ranked AS (
            SELECT user_id, msg_count, RANK() OVER (ORDER BY msg_count DESC) AS rnk
            FROM counts
        )
        SELECT rnk, msg_count FROM ranked WHERE user_id = ?;
    `
	args = append(args, formatID(userID))

	var row struct {
		Rank  int   `db:"rnk"`
		Count int64 `db:"msg_count"`
	}
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, nil
		}
		s.logger.ErrorContext(ctx, "Error computing user rank", "user_id", userID, "error", err)
		return 0, 0, fmt.Errorf("failed to compute rank of user %d: %w", userID, err)
	}
	return row.Rank, row.Count, nil
}

// UserTotals returns the message count and first message time of userID in chatID.
func (s *sqlxStore) UserTotals(ctx context.Context, userID, chatID int64) (UserTotals, error) {
	var row struct {
		Count int64         `db:"msg_count"`
		First sql.NullInt64 `db:"first_ts"`
	}
	err := s.db.GetContext(ctx, &row, `
        SELECT COUNT(*) AS msg_count, MIN(timestamp) AS first_ts
        FROM messages
        WHERE user_id = ? AND chat_id = ?;
    `, formatID(userID), formatID(chatID))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error loading user totals", "user_id", userID, "chat_id", chatID, "error", err)
		return UserTotals{}, fmt.Errorf("failed to load totals of user %d: %w", userID, err)
	}

	totals := UserTotals{Count: row.Count}
	if row.First.Valid {
		totals.FirstMessage = timeFromUnix(row.First.Int64)
	}
	return totals, nil
}
