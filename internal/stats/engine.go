// Package stats computes time-windowed leaderboards and individual ranks over
// the message log.
package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/itl33054/wwannengBOT/internal/clock"
	"github.com/itl33054/wwannengBOT/internal/database"
)

// Store is the part of the database the engine reads.
type Store interface {
	database.RankingStore
	GetDailyActivity(ctx context.Context, chatID int64, from, to time.Time) ([]database.DayCount, error)
}

// Query describes one leaderboard request.
type Query struct {
	Scope  Scope
	Type   RankType
	Period Period
	// ChatID is required for the local scope and ignored for the global one.
	ChatID int64
	// Limit caps the number of entries; zero uses the engine default.
	Limit int
}

// RankEntry is one leaderboard line. For user rankings ID is the user id,
// for group rankings the chat id, and for topics ID is zero and Text holds
// the counted message.
type RankEntry struct {
	Rank     int
	ID       int64
	Name     string
	Username string
	Text     string
	Count    int64
}

// UserStats is the all-time activity of a user in one chat.
type UserStats struct {
	TotalCount   int64
	FirstMessage time.Time // zero when TotalCount is 0
}

// GlobalStats is the all-time standing of a user across every chat.
type GlobalStats struct {
	Rank       int
	TotalCount int64
}

// Config tunes the engine.
type Config struct {
	// Location is the zone period boundaries are computed in. Nil means UTC.
	Location *time.Location
	// ExcludedUserIDs never appear in user or topic rankings.
	ExcludedUserIDs []int64
	// QueryTimeout bounds each aggregation. Zero disables the deadline.
	QueryTimeout time.Duration
	// MaxConcurrent bounds the number of aggregations running at once.
	MaxConcurrent int64
	// DefaultLimit is used when a query does not set one.
	DefaultLimit int
}

// Engine answers ranking queries. It is safe for concurrent use.
type Engine struct {
	store  Store
	clock  clock.Clock
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, clk clock.Clock, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	return &Engine{
		store:  store,
		clock:  clk,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger.With("component", "stats_engine"),
	}
}

// acquire takes an aggregation slot and applies the query deadline.
// The returned release must always be called.
func (e *Engine) acquire(ctx context.Context) (context.Context, func(), error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return ctx, func() {}, fmt.Errorf("waiting for aggregation slot: %w", err)
	}
	cancel := context.CancelFunc(func() {})
	if e.cfg.QueryTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
	}
	return ctx, func() {
		cancel()
		e.sem.Release(1)
	}, nil
}

// GetRank returns the leaderboard for q. An empty window yields an empty list.
func (e *Engine) GetRank(ctx context.Context, q Query) ([]RankEntry, error) {
	period, err := ParsePeriod(string(q.Period))
	if err != nil {
		return nil, err
	}
	if _, err := ParseRankType(string(q.Type)); err != nil {
		return nil, err
	}
	switch q.Scope {
	case ScopeLocal:
		if q.Type == RankGroups {
			return nil, fmt.Errorf("%w: group ranking is global only", ErrInvalidQuery)
		}
		if q.ChatID == 0 {
			return nil, fmt.Errorf("%w: local ranking needs a chat", ErrInvalidQuery)
		}
	case ScopeGlobal:
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidQuery, q.Scope)
	}

	since, err := period.Start(e.clock.Now(), e.cfg.Location)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	filter := database.RankFilter{Since: since, Limit: limit}
	if q.Scope == ScopeLocal {
		chatID := q.ChatID
		filter.ChatID = &chatID
	}

	ctx, release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var entries []RankEntry
	switch q.Type {
	case RankUsers:
		filter.ExcludeUserIDs = e.cfg.ExcludedUserIDs
		filter.ExcludeOptOut = true
		entries, err = e.rankUsers(ctx, filter)
	case RankTopics:
		filter.ExcludeUserIDs = e.cfg.ExcludedUserIDs
		entries, err = e.rankTopics(ctx, filter)
	case RankGroups:
		entries, err = e.rankGroups(ctx, filter)
	default:
		return nil, fmt.Errorf("%w: unknown rank type %q", ErrInvalidQuery, q.Type)
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "Ranking query failed",
			"scope", q.Scope, "type", q.Type, "period", q.Period, "chat_id", q.ChatID, "error", err)
		return nil, err
	}
	return entries, nil
}

func (e *Engine) rankUsers(ctx context.Context, f database.RankFilter) ([]RankEntry, error) {
	users, err := e.store.TopUsers(ctx, f)
	if err != nil {
		return nil, err
	}
	entries := make([]RankEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, RankEntry{
			Rank:     u.Rank,
			ID:       u.UserID,
			Name:     u.UserName,
			Username: u.UserUsername,
			Count:    u.Count,
		})
	}
	return entries, nil
}

func (e *Engine) rankGroups(ctx context.Context, f database.RankFilter) ([]RankEntry, error) {
	groups, err := e.store.TopGroups(ctx, f)
	if err != nil {
		return nil, err
	}
	entries := make([]RankEntry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, RankEntry{
			Rank:     g.Rank,
			ID:       g.ChatID,
			Name:     g.ChatTitle,
			Username: g.ChatUsername,
			Count:    g.Count,
		})
	}
	return entries, nil
}

func (e *Engine) rankTopics(ctx context.Context, f database.RankFilter) ([]RankEntry, error) {
	texts, err := e.store.MessageTexts(ctx, f)
	if err != nil {
		return nil, err
	}
	counts := countTopics(texts, f.Limit)
	entries := make([]RankEntry, 0, len(counts))
	for i, c := range counts {
		rank := i + 1
		if i > 0 && c.count == counts[i-1].count {
			rank = entries[i-1].Rank
		}
		entries = append(entries, RankEntry{Rank: rank, Text: c.text, Count: c.count})
	}
	return entries, nil
}

// GetUserStats returns the all-time message count and first message time of
// a user in a chat. Opt-out does not apply.
func (e *Engine) GetUserStats(ctx context.Context, userID, chatID int64) (UserStats, error) {
	ctx, release, err := e.acquire(ctx)
	if err != nil {
		return UserStats{}, err
	}
	defer release()

	totals, err := e.store.UserTotals(ctx, userID, chatID)
	if err != nil {
		e.logger.ErrorContext(ctx, "User stats query failed", "user_id", userID, "chat_id", chatID, "error", err)
		return UserStats{}, err
	}
	return UserStats{TotalCount: totals.Count, FirstMessage: totals.FirstMessage}, nil
}

// GetUserRank returns the rank and count of a user in a chat for period.
// Rank 0 means the user has no counted messages in the window.
func (e *Engine) GetUserRank(ctx context.Context, userID, chatID int64, period Period) (int, int64, error) {
	since, err := period.Start(e.clock.Now(), e.cfg.Location)
	if err != nil {
		return 0, 0, err
	}

	ctx, release, err := e.acquire(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer release()

	rank, count, err := e.store.UserRank(ctx, userID, database.RankFilter{
		ChatID:         &chatID,
		Since:          since,
		ExcludeUserIDs: e.cfg.ExcludedUserIDs,
		ExcludeOptOut:  true,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "User rank query failed", "user_id", userID, "chat_id", chatID, "period", period, "error", err)
		return 0, 0, err
	}
	return rank, count, nil
}

// GetUserGlobalStats returns the all-time global rank of a user and their
// total message count. The user's own opt-out and static exclusion are
// ignored for their own lookup; every other exclusion still applies.
func (e *Engine) GetUserGlobalStats(ctx context.Context, userID int64) (GlobalStats, error) {
	ctx, release, err := e.acquire(ctx)
	if err != nil {
		return GlobalStats{}, err
	}
	defer release()

	excluded := slices.DeleteFunc(slices.Clone(e.cfg.ExcludedUserIDs), func(id int64) bool { return id == userID })
	rank, _, err := e.store.UserRank(ctx, userID, database.RankFilter{
		ExcludeUserIDs: excluded,
		ExcludeOptOut:  true,
		KeepUserID:     userID,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Global rank query failed", "user_id", userID, "error", err)
		return GlobalStats{}, err
	}

	// Unfiltered, the count is the user's raw message total across all chats.
	_, total, err := e.store.UserRank(ctx, userID, database.RankFilter{})
	if err != nil {
		e.logger.ErrorContext(ctx, "Global total query failed", "user_id", userID, "error", err)
		return GlobalStats{}, err
	}
	return GlobalStats{Rank: rank, TotalCount: total}, nil
}

// GetDailyActivity returns per-day message counts of a chat over the last
// days days, today included.
func (e *Engine) GetDailyActivity(ctx context.Context, chatID int64, days int) ([]database.DayCount, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", ErrInvalidQuery)
	}
	now := e.clock.Now()
	today, _ := PeriodToday.Start(now, time.UTC)
	from := today.AddDate(0, 0, -(days - 1))

	ctx, release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	activity, err := e.store.GetDailyActivity(ctx, chatID, from, now)
	if err != nil {
		e.logger.ErrorContext(ctx, "Daily activity query failed", "chat_id", chatID, "error", err)
		return nil, err
	}
	return activity, nil
}
