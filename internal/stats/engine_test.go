package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itl33054/wwannengBOT/internal/clock"
	"github.com/itl33054/wwannengBOT/internal/database"
)

const chat int64 = -1001234

// Wednesday.
var now = time.Date(2024, time.May, 15, 15, 30, 0, 0, time.UTC)

type fixture struct {
	store  database.Store
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewDB(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	store := database.NewStore(db, nil)
	engine := NewEngine(store, clock.NewMock(now), Config{
		ExcludedUserIDs: []int64{777000},
		QueryTimeout:    5 * time.Second,
	}, nil)
	return &fixture{store: store, engine: engine}
}

func (f *fixture) post(t *testing.T, chatID, userID int64, n int, at time.Time, text string) {
	t.Helper()
	for range n {
		require.NoError(t, f.store.SaveMessage(context.Background(), &database.Message{
			ChatID:    chatID,
			ChatTitle: "Chat",
			UserID:    userID,
			UserName:  "user",
			Timestamp: at.Unix(),
			Text:      text,
		}))
	}
}

func TestPeriodStart(t *testing.T) {
	t.Parallel()

	shanghai := time.FixedZone("UTC+8", 8*3600)
	tests := []struct {
		name   string
		period Period
		now    time.Time
		loc    *time.Location
		want   time.Time
	}{
		{"today", PeriodToday, now, time.UTC, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)},
		{"week from wednesday", PeriodWeek, now, time.UTC, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)},
		{"week on monday", PeriodWeek, time.Date(2024, 5, 13, 8, 0, 0, 0, time.UTC), time.UTC, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)},
		{"week on sunday", PeriodWeek, time.Date(2024, 5, 19, 23, 0, 0, 0, time.UTC), time.UTC, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)},
		{"month", PeriodMonth, now, time.UTC, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"today in another zone", PeriodToday, time.Date(2024, 5, 15, 20, 0, 0, 0, time.UTC), shanghai, time.Date(2024, 5, 16, 0, 0, 0, 0, shanghai)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.period.Start(tt.now, tt.loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestParsers(t *testing.T) {
	t.Parallel()

	p, err := ParsePeriod(" Week ")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)
	_, err = ParsePeriod("year")
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = ParseScope("galaxy")
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = ParseRankType("emoji")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestIsValidTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{"a", false},
		{"  x  ", false},
		{"/start", false},
		{"12345", false},
		{"!!!!!!", false},
		{"hahaha", false},
		{"aaaaa", false},
		{"ok", true},
		{"aaaa", true},
		{"hello world", true},
		{"你好", true},
		{"good morning everyone", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidTopic(tt.text), "text %q", tt.text)
	}
}

func TestCountTopicsTiesKeepFirstSeenOrder(t *testing.T) {
	t.Parallel()

	texts := []string{"beta", "alpha", "beta", "alpha", "gamma", "!!", "Beta"}
	got := countTopics(texts, 10)
	require.Len(t, got, 4)
	assert.Equal(t, topicCount{"beta", 2}, got[0])
	assert.Equal(t, topicCount{"alpha", 2}, got[1])
	assert.Equal(t, topicCount{"gamma", 1}, got[2])
	assert.Equal(t, topicCount{"Beta", 1}, got[3])

	assert.Len(t, countTopics(texts, 2), 2)
}

func TestUserRankSingleUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, chat, 42, 5, now.Add(-time.Hour), "hello there")

	rank, count, err := f.engine.GetUserRank(ctx, 42, chat, PeriodToday)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)
	assert.Equal(t, int64(5), count)
}

func TestUnrankedUserHasRankZero(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, chat, 1, 3, now.Add(-time.Hour), "hi all")
	// Yesterday's messages do not count for today.
	f.post(t, chat, 2, 3, now.Add(-24*time.Hour), "hi all")

	rank, count, err := f.engine.GetUserRank(ctx, 2, chat, PeriodToday)
	require.NoError(t, err)
	assert.Zero(t, rank)
	assert.Zero(t, count)

	rank, _, err = f.engine.GetUserRank(ctx, 3, chat, PeriodMonth)
	require.NoError(t, err)
	assert.Zero(t, rank)
}

func TestCompetitionRanking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	at := now.Add(-time.Minute)

	f.post(t, chat, 1, 5, at, "msg one")
	f.post(t, chat, 2, 3, at, "msg two")
	f.post(t, chat, 3, 3, at, "msg three")
	f.post(t, chat, 4, 1, at, "msg four")

	entries, err := f.engine.GetRank(ctx, Query{Scope: ScopeLocal, Type: RankUsers, Period: PeriodToday, ChatID: chat})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	ranks := make(map[int64]int, len(entries))
	for _, e := range entries {
		ranks[e.ID] = e.Rank
	}
	assert.Equal(t, map[int64]int{1: 1, 2: 2, 3: 2, 4: 4}, ranks)

	for i := range entries {
		for j := range entries {
			if entries[i].Count > entries[j].Count {
				assert.LessOrEqual(t, entries[i].Rank, entries[j].Rank)
			}
			if entries[i].Count == entries[j].Count {
				assert.Equal(t, entries[i].Rank, entries[j].Rank)
			}
		}
	}

	rank, count, err := f.engine.GetUserRank(ctx, 4, chat, PeriodToday)
	require.NoError(t, err)
	assert.Equal(t, 4, rank)
	assert.Equal(t, int64(1), count)
}

func TestOptedOutUserIsHiddenFromUserRanking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	at := now.Add(-time.Minute)

	f.post(t, chat, 10, 10, at, "chatty message")
	f.post(t, chat, 11, 2, at, "quiet message")
	require.NoError(t, f.store.SetUserRankingEnabled(ctx, 10, false))

	entries, err := f.engine.GetRank(ctx, Query{Scope: ScopeLocal, Type: RankUsers, Period: PeriodToday, ChatID: chat})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(11), entries[0].ID)
	assert.Equal(t, 1, entries[0].Rank)

	stats, err := f.engine.GetUserStats(ctx, 10, chat)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalCount)
	assert.True(t, at.Equal(stats.FirstMessage))

	// Topics are not filtered by the opt-out.
	topics, err := f.engine.GetRank(ctx, Query{Scope: ScopeLocal, Type: RankTopics, Period: PeriodToday, ChatID: chat})
	require.NoError(t, err)
	require.NotEmpty(t, topics)
	assert.Equal(t, "chatty message", topics[0].Text)
	assert.Equal(t, int64(10), topics[0].Count)

	// The user still sees their own global standing.
	global, err := f.engine.GetUserGlobalStats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, global.Rank)
	assert.Equal(t, int64(10), global.TotalCount)
}

func TestExclusionPolicy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	at := now.Add(-time.Minute)

	f.post(t, chat, 777000, 9, at, "service notice")
	f.post(t, chat, -1009999, 8, at, "channel post")
	f.post(t, chat, 5, 1, at, "a person")

	users, err := f.engine.GetRank(ctx, Query{Scope: ScopeGlobal, Type: RankUsers, Period: PeriodWeek})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(5), users[0].ID)

	topics, err := f.engine.GetRank(ctx, Query{Scope: ScopeGlobal, Type: RankTopics, Period: PeriodWeek})
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "a person", topics[0].Text)
}

func TestGroupRanking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	at := now.Add(-time.Minute)

	const other int64 = -1005555
	f.post(t, chat, 1, 2, at, "x")
	f.post(t, other, 1, 4, at, "y")
	f.post(t, 99, 99, 10, at, "private chat")
	require.NoError(t, f.store.SaveMessage(ctx, &database.Message{
		ChatID: other, ChatTitle: "Renamed", ChatUsername: "renamed", UserID: 2, Timestamp: at.Unix(),
	}))

	groups, err := f.engine.GetRank(ctx, Query{Scope: ScopeGlobal, Type: RankGroups, Period: PeriodToday})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, other, groups[0].ID)
	assert.Equal(t, "Renamed", groups[0].Name)
	assert.Equal(t, "renamed", groups[0].Username)
	assert.Equal(t, int64(5), groups[0].Count)
	assert.Equal(t, 2, groups[1].Rank)
}

func TestInvalidQueries(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query Query
		want  error
	}{
		{"bad period", Query{Scope: ScopeGlobal, Type: RankUsers, Period: "year"}, ErrInvalidPeriod},
		{"bad scope", Query{Scope: "galaxy", Type: RankUsers, Period: PeriodToday}, ErrInvalidQuery},
		{"bad type", Query{Scope: ScopeGlobal, Type: "emoji", Period: PeriodToday}, ErrInvalidQuery},
		{"local groups", Query{Scope: ScopeLocal, Type: RankGroups, Period: PeriodToday, ChatID: chat}, ErrInvalidQuery},
		{"local without chat", Query{Scope: ScopeLocal, Type: RankUsers, Period: PeriodToday}, ErrInvalidQuery},
	}
	for _, tt := range tests {
		entries, err := f.engine.GetRank(ctx, tt.query)
		assert.ErrorIs(t, err, tt.want, tt.name)
		assert.Empty(t, entries, tt.name)
	}

	_, _, err := f.engine.GetUserRank(ctx, 1, chat, Period("decade"))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestEmptyWindowIsNotAnError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, rt := range []RankType{RankUsers, RankTopics, RankGroups} {
		entries, err := f.engine.GetRank(context.Background(), Query{Scope: ScopeGlobal, Type: rt, Period: PeriodMonth})
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestDailyActivity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.post(t, chat, 1, 2, now.Add(-time.Hour), "today")
	f.post(t, chat, 1, 1, now.Add(-48*time.Hour), "two days ago")
	f.post(t, chat, 1, 1, now.Add(-10*24*time.Hour), "too old")

	days, err := f.engine.GetDailyActivity(context.Background(), chat, 7)
	require.NoError(t, err)
	assert.Equal(t, []database.DayCount{
		{Day: "2024-05-13", Count: 1},
		{Day: "2024-05-15", Count: 2},
	}, days)

	_, err = f.engine.GetDailyActivity(context.Background(), chat, 0)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.GetRank(ctx, Query{Scope: ScopeGlobal, Type: RankUsers, Period: PeriodToday})
	assert.Error(t, err)
}
