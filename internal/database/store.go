package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write collides with a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
)

// MessageStore persists the append-only event log and the known chats derived from it.
type MessageStore interface {
	// SaveMessage inserts a new message record. Every call inserts a row.
	SaveMessage(ctx context.Context, message *Message) error
	// UpsertKnownChat records a group. The title is always overwritten,
	// addedBy and the add time are kept from the first writer.
	UpsertKnownChat(ctx context.Context, chatID int64, title string, addedBy *int64, at time.Time) error
	ListKnownChats(ctx context.Context) ([]KnownChat, error)
	// DiscoverKnownChats backfills known_chats from the latest message title
	// of every group present in the log. It returns the number of chats touched.
	DiscoverKnownChats(ctx context.Context) (int, error)
	ListGroupsForUser(ctx context.Context, userID int64) ([]GroupCount, error)
	FindUserIDByUsername(ctx context.Context, username string) (int64, error)
	GetUserActivityAcrossGroups(ctx context.Context, userID int64) ([]GroupCount, error)
	GetDailyActivity(ctx context.Context, chatID int64, from, to time.Time) ([]DayCount, error)
	// RecentMessages returns up to limit of the latest messages of chatID,
	// oldest first.
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]Message, error)
}

// RankingStore runs the message-count aggregations behind leaderboards.
type RankingStore interface {
	TopUsers(ctx context.Context, f RankFilter) ([]UserCount, error)
	TopGroups(ctx context.Context, f RankFilter) ([]GroupCount, error)
	// MessageTexts returns message texts in insertion order for topic counting.
	MessageTexts(ctx context.Context, f RankFilter) ([]string, error)
	// UserRank returns the competition rank and count of userID under f.
	// A user without matching messages has rank 0 and count 0.
	UserRank(ctx context.Context, userID int64, f RankFilter) (int, int64, error)
	UserTotals(ctx context.Context, userID, chatID int64) (UserTotals, error)
}

// SettingsStore reads and writes user and group settings rows.
type SettingsStore interface {
	GetUserSettings(ctx context.Context, userID int64) (UserSettings, error)
	SetUserLanguage(ctx context.Context, userID int64, lang string) error
	SetUserRankingEnabled(ctx context.Context, userID int64, enabled bool) error
	GetGroupSettings(ctx context.Context, chatID int64) (GroupSettings, error)
	SetGroupLanguage(ctx context.Context, chatID int64, lang string) error
	SetGroupFlag(ctx context.Context, chatID int64, flag GroupFlag, enabled bool) error
}

// FAQStore holds the per-chat FAQ entries.
type FAQStore interface {
	AddFAQ(ctx context.Context, faq *FAQ) error
	ListFAQs(ctx context.Context, chatID int64) ([]FAQ, error)
	DeleteFAQ(ctx context.Context, id int64) error
}

// ModerationStore holds the blacklist and warning counters.
type ModerationStore interface {
	GetBlacklistEntry(ctx context.Context, userID int64) (*BlacklistEntry, error)
	UpsertBlacklist(ctx context.Context, userID int64, expiresAt time.Time) error
	DeleteBlacklist(ctx context.Context, userID int64) (bool, error)
	DeleteExpiredBlacklist(ctx context.Context, now time.Time) (int64, error)
	// BumpWarning increments the warning counter of a user in a chat, resetting
	// it to 1 when the previous warning is older than expiry. It returns the new count.
	BumpWarning(ctx context.Context, chatID, userID int64, now time.Time, expiry time.Duration) (int, error)
}

// EconomyStore holds balances, check-ins and the shop.
type EconomyStore interface {
	GetPoints(ctx context.Context, chatID, userID int64) (UserPoints, error)
	// AddPoints applies delta unless the previous accepted change is younger
	// than cooldown. It reports whether the change was applied and the resulting balance.
	AddPoints(ctx context.Context, chatID, userID, delta int64, cooldown time.Duration, now time.Time) (bool, int64, error)
	// Checkin records the check-in for day and grants reward in one transaction.
	// It returns ErrConflict when the user already checked in on day.
	Checkin(ctx context.Context, chatID, userID int64, day string, reward int64, now time.Time) (int64, error)
	ListShopItems(ctx context.Context, activeOnly bool) ([]ShopItem, error)
	GetShopItem(ctx context.Context, itemID int64) (*ShopItem, error)
	AddShopItem(ctx context.Context, item *ShopItem) error
	SetShopItemActive(ctx context.Context, itemID int64, active bool) error
	// Redeem debits the item cost and decrements stock in one transaction.
	Redeem(ctx context.Context, chatID, userID, itemID int64, now time.Time) (RedeemOutcome, *ShopItem, int64, error)
}

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	MessageStore
	RankingStore
	SettingsStore
	FAQStore
	ModerationStore
	EconomyStore

	// Ping checks the database connection.
	Ping(ctx context.Context) error
	// Compact refreshes planner statistics and reclaims free pages.
	Compact(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing when fn returns nil.
func (s *sqlxStore) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "op", op, "error", err)
		return fmt.Errorf("failed to begin transaction for %s: %w", op, err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "op", op, "error", rollbackErr)
				}
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "op", op, "error", err)
		return fmt.Errorf("failed to commit transaction for %s: %w", op, err)
	}
	// Successfully committed, set tx to nil to avoid rollback
	tx = nil
	return nil
}

// Compact runs PRAGMA optimize, so the ranking queries keep using the
// timestamp indexes as the event log grows, then VACUUM to give back the
// pages freed by blacklist sweeps and FAQ deletions. VACUUM cannot run
// inside a transaction.
func (s *sqlxStore) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, stmt := range []string{"PRAGMA optimize;", "VACUUM;"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.WarnContext(ctx, "Compaction step failed", "statement", stmt, "error", err)
			return fmt.Errorf("compact %q: %w", stmt, err)
		}
	}
	return nil
}
