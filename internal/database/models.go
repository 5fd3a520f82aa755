package database

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// GroupIDPrefix marks chat ids of supergroups and channels. Senders whose id
// carries this prefix are chats posting as themselves, not people.
const GroupIDPrefix = "-100"

// IsGroupID reports whether id uses the group-identifier convention.
func IsGroupID(id int64) bool {
	return strings.HasPrefix(strconv.FormatInt(id, 10), GroupIDPrefix)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Message is an immutable record of one inbound text event.
// Timestamp holds unix seconds in UTC.
type Message struct {
	ID           int64  `db:"id"`
	ChatID       int64  `db:"chat_id"`
	ChatTitle    string `db:"chat_title"`
	ChatUsername string `db:"chat_username"`
	UserID       int64  `db:"user_id"`
	UserName     string `db:"user_name"`
	UserUsername string `db:"user_username"`
	Timestamp    int64  `db:"timestamp"`
	Text         string `db:"text"`
}

// SentAt returns the message timestamp as a UTC time.
func (m *Message) SentAt() time.Time {
	return time.Unix(m.Timestamp, 0).UTC()
}

// KnownChat is a group the bot has observed. AddedBy and DateAdded are set
// once and preserved afterwards.
type KnownChat struct {
	ChatID    int64         `db:"chat_id"`
	ChatTitle string        `db:"chat_title"`
	AddedBy   sql.NullInt64 `db:"added_by_user_id"`
	DateAdded sql.NullInt64 `db:"date_added"`
}

// UserSettings holds per-user preferences. Absent rows read as defaults.
type UserSettings struct {
	UserID         int64          `db:"user_id"`
	LanguageCode   sql.NullString `db:"language_code"`
	RankingEnabled bool           `db:"ranking_enabled"`
}

// DefaultUserSettings returns the settings of a user without a row.
func DefaultUserSettings(userID int64) UserSettings {
	return UserSettings{UserID: userID, RankingEnabled: true}
}

// GroupSettings holds per-group feature flags. Absent rows read as defaults.
type GroupSettings struct {
	ChatID            int64          `db:"chat_id"`
	LanguageCode      sql.NullString `db:"language_code"`
	AutochatEnabled   bool           `db:"autochat_enabled"`
	SpamFilterEnabled bool           `db:"spam_filter_enabled"`
	CheckinEnabled    bool           `db:"checkin_enabled"`
}

// DefaultGroupSettings returns the settings of a group without a row.
func DefaultGroupSettings(chatID int64) GroupSettings {
	return GroupSettings{ChatID: chatID, SpamFilterEnabled: true}
}

// FAQ is a canned question/answer pair scoped to one chat.
type FAQ struct {
	ID       int64  `db:"id"`
	ChatID   int64  `db:"chat_id"`
	Question string `db:"question"`
	Answer   string `db:"answer"`
	Keywords string `db:"keywords"`
}

// BlacklistEntry suppresses a user globally until ExpiresAt (unix seconds).
type BlacklistEntry struct {
	UserID    int64 `db:"user_id"`
	ExpiresAt int64 `db:"expiration_timestamp"`
}

// Expiration returns the expiry as a UTC time.
func (e *BlacklistEntry) Expiration() time.Time {
	return time.Unix(e.ExpiresAt, 0).UTC()
}

// UserWarning counts keyword/link violations of a user in a chat.
type UserWarning struct {
	ChatID        int64 `db:"chat_id"`
	UserID        int64 `db:"user_id"`
	WarningCount  int   `db:"warning_count"`
	LastWarningAt int64 `db:"last_warning_timestamp"`
}

// UserPoints is the balance of a user in a chat. LastUpdateMs is kept in
// unix milliseconds so sub-second cooldowns compare exactly.
type UserPoints struct {
	ChatID       int64 `db:"chat_id"`
	UserID       int64 `db:"user_id"`
	Points       int64 `db:"points"`
	LastUpdateMs int64 `db:"last_update_ms"`
}

// ShopItem is a redeemable reward. Stock -1 means unlimited.
type ShopItem struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Cost        int64  `db:"cost"`
	Stock       int64  `db:"stock"`
	IsActive    bool   `db:"is_active"`
}

// UnlimitedStock marks a shop item that is never decremented.
const UnlimitedStock = -1

// UserCount is one row of a user leaderboard. Name fields come from the
// user's latest message in the window.
type UserCount struct {
	UserID       int64  `db:"user_id"`
	UserName     string `db:"user_name"`
	UserUsername string `db:"user_username"`
	Count        int64  `db:"msg_count"`
	Rank         int    `db:"rnk"`
}

// GroupCount is one row of the group leaderboard or of a user's per-group activity.
type GroupCount struct {
	ChatID       int64  `db:"chat_id"`
	ChatTitle    string `db:"chat_title"`
	ChatUsername string `db:"chat_username"`
	Count        int64  `db:"msg_count"`
	Rank         int    `db:"rnk"`
}

// DayCount is the number of messages in a chat on one UTC day.
type DayCount struct {
	Day   string `db:"day"`
	Count int64  `db:"msg_count"`
}

// UserTotals summarises a user's history in one chat.
type UserTotals struct {
	Count        int64
	FirstMessage time.Time // zero when Count is 0
}

// RankFilter narrows a message-count aggregation.
type RankFilter struct {
	// ChatID restricts the aggregation to one chat; nil means all chats.
	ChatID *int64
	// Since is the inclusive lower bound; zero means all time.
	Since time.Time
	// ExcludeUserIDs are never counted.
	ExcludeUserIDs []int64
	// ExcludeOptOut drops users with ranking_enabled = 0.
	ExcludeOptOut bool
	// KeepUserID is never dropped by ExcludeOptOut, so a user can still see
	// their own position.
	KeepUserID int64
	Limit      int
}

// GroupFlag names a boolean column of group_settings.
type GroupFlag string

// Group feature flags.
const (
	FlagAutochat   GroupFlag = "autochat_enabled"
	FlagSpamFilter GroupFlag = "spam_filter_enabled"
	FlagCheckin    GroupFlag = "checkin_enabled"
)

// Valid reports whether f names a known column.
func (f GroupFlag) Valid() bool {
	switch f {
	case FlagAutochat, FlagSpamFilter, FlagCheckin:
		return true
	}
	return false
}

// RedeemOutcome is the result of a redemption attempt.
type RedeemOutcome int

// Redemption outcomes, checked in this order.
const (
	RedeemSuccess RedeemOutcome = iota
	RedeemNotFound
	RedeemInsufficientPoints
	RedeemOutOfStock
	RedeemError
)

func (o RedeemOutcome) String() string {
	switch o {
	case RedeemSuccess:
		return "success"
	case RedeemNotFound:
		return "not_found"
	case RedeemInsufficientPoints:
		return "insufficient_points"
	case RedeemOutOfStock:
		return "out_of_stock"
	default:
		return "error"
	}
}

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
