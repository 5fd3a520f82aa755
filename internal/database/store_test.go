package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) Store {
	t.Helper()
	db, err := NewDB(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { CloseDB(db) })
	return NewStore(db, nil)
}

func save(t *testing.T, s Store, chatID, userID int64, at time.Time, text string) {
	t.Helper()
	msg := &Message{
		ChatID:    chatID,
		ChatTitle: "Group",
		UserID:    userID,
		UserName:  "User",
		Timestamp: at.Unix(),
		Text:      text,
	}
	require.NoError(t, s.SaveMessage(context.Background(), msg))
}

func TestNewDBReopensAtLatestSchema(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bot.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	_, _, err = NewStore(db, nil).AddPoints(context.Background(), -1001, 1, 3, 0, base)
	require.NoError(t, err)
	CloseDB(db)

	db, err = NewDB(path)
	require.NoError(t, err)
	defer CloseDB(db)

	var version int
	require.NoError(t, db.Get(&version, `SELECT version FROM schema_migrations;`))
	assert.Equal(t, 2, version)

	pts, err := NewStore(db, nil).GetPoints(context.Background(), -1001, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pts.Points)
	assert.Equal(t, base.UnixMilli(), pts.LastUpdateMs)
}

func TestIsGroupID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   int64
		want bool
	}{
		{-1001234567890, true},
		{-100, true},
		{-99, false},
		{42, false},
		{777000, false},
		{-42, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsGroupID(tt.id), "id %d", tt.id)
	}
}

func TestSaveMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("rejects missing ids", func(t *testing.T) {
		assert.Error(t, s.SaveMessage(ctx, nil))
		assert.Error(t, s.SaveMessage(ctx, &Message{ChatID: 0, UserID: 1}))
		assert.Error(t, s.SaveMessage(ctx, &Message{ChatID: 1, UserID: 0}))
	})

	t.Run("accepts empty text and never deduplicates", func(t *testing.T) {
		first := &Message{ChatID: 5, UserID: 7, Timestamp: base.Unix()}
		second := &Message{ChatID: 5, UserID: 7, Timestamp: base.Unix()}
		require.NoError(t, s.SaveMessage(ctx, first))
		require.NoError(t, s.SaveMessage(ctx, second))
		assert.NotZero(t, first.ID)
		assert.Greater(t, second.ID, first.ID)

		totals, err := s.UserTotals(ctx, 7, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(2), totals.Count)
		assert.Equal(t, base, totals.FirstMessage)
	})

	t.Run("titled group messages register the chat", func(t *testing.T) {
		const chatID int64 = -1009000000001
		require.NoError(t, s.SaveMessage(ctx, &Message{ChatID: chatID, ChatTitle: "Old", UserID: 1, Timestamp: base.Unix()}))
		require.NoError(t, s.SaveMessage(ctx, &Message{ChatID: chatID, ChatTitle: "New", UserID: 1, Timestamp: base.Unix()}))
		require.NoError(t, s.SaveMessage(ctx, &Message{ChatID: -5, ChatTitle: "Small group", UserID: 1, Timestamp: base.Unix()}))

		chats, err := s.ListKnownChats(ctx)
		require.NoError(t, err)
		require.Len(t, chats, 1)
		assert.Equal(t, chatID, chats[0].ChatID)
		assert.Equal(t, "New", chats[0].ChatTitle)
	})
}

func TestUpsertKnownChatFirstWriterWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	const chatID int64 = -1001
	first, second := int64(10), int64(20)
	require.NoError(t, s.UpsertKnownChat(ctx, chatID, "A", nil, base))
	require.NoError(t, s.UpsertKnownChat(ctx, chatID, "B", &first, base))
	require.NoError(t, s.UpsertKnownChat(ctx, chatID, "C", &second, base.Add(time.Hour)))
	require.NoError(t, s.UpsertKnownChat(ctx, chatID, "", &second, base))
	require.NoError(t, s.UpsertKnownChat(ctx, 123, "private", &second, base))

	chats, err := s.ListKnownChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "C", chats[0].ChatTitle)
	assert.True(t, chats[0].AddedBy.Valid)
	assert.Equal(t, first, chats[0].AddedBy.Int64)
	assert.Equal(t, base.Unix(), chats[0].DateAdded.Int64)
}

func TestDiscoverKnownChats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	// Insert behind the store's back so known_chats stays empty.
	raw := s.(*sqlxStore).db
	_, err := raw.Exec(`INSERT INTO messages (chat_id, chat_title, user_id, timestamp) VALUES
        ('-1001', 'First title', '1', 1), ('-1001', 'Latest title', '1', 2),
        ('-1002', '', '1', 3), ('55', 'Private', '1', 4);`)
	require.NoError(t, err)

	n, err := s.DiscoverKnownChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	chats, err := s.ListKnownChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Latest title", chats[0].ChatTitle)
}

func TestUserLookups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveMessage(ctx, &Message{ChatID: -1001, ChatTitle: "Alpha", UserID: 1, UserUsername: "Alice", Timestamp: base.Unix()}))
	require.NoError(t, s.SaveMessage(ctx, &Message{ChatID: -1001, ChatTitle: "Alpha 2", UserID: 1, UserUsername: "alice", Timestamp: base.Add(time.Minute).Unix()}))
	require.NoError(t, s.SaveMessage(ctx, &Message{ChatID: -1002, ChatTitle: "Beta", UserID: 1, Timestamp: base.Unix()}))
	require.NoError(t, s.SaveMessage(ctx, &Message{ChatID: -1002, ChatTitle: "Beta", UserID: 1, Timestamp: base.Unix()}))
	require.NoError(t, s.SaveMessage(ctx, &Message{ChatID: -1002, ChatTitle: "Beta", UserID: 1, Timestamp: base.Unix()}))
	require.NoError(t, s.SaveMessage(ctx, &Message{ChatID: 1, UserID: 1, Timestamp: base.Unix()}))

	t.Run("username resolution", func(t *testing.T) {
		id, err := s.FindUserIDByUsername(ctx, "@ALICE")
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		_, err = s.FindUserIDByUsername(ctx, "@nobody")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindUserIDByUsername(ctx, "@")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("activity across groups", func(t *testing.T) {
		groups, err := s.GetUserActivityAcrossGroups(ctx, 1)
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, int64(-1002), groups[0].ChatID)
		assert.Equal(t, int64(3), groups[0].Count)
		assert.Equal(t, "Alpha 2", groups[1].ChatTitle)
	})

	t.Run("groups for user", func(t *testing.T) {
		groups, err := s.ListGroupsForUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, "Alpha 2", groups[0].ChatTitle)
		assert.Equal(t, "Beta", groups[1].ChatTitle)
	})
}

func TestDailyActivity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	save(t, s, -1001, 1, base, "a")
	save(t, s, -1001, 2, base.Add(time.Hour), "b")
	save(t, s, -1001, 1, base.Add(24*time.Hour), "c")
	save(t, s, -1002, 1, base, "other chat")

	days, err := s.GetDailyActivity(ctx, -1001, base.Add(-time.Hour), base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []DayCount{{Day: "2024-05-15", Count: 2}, {Day: "2024-05-16", Count: 1}}, days)
}

func TestCompact(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
	save(t, s, -1001, 1, base, "hello")
	assert.NoError(t, s.Compact(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Compact(ctx), context.Canceled)
}

func TestRecentMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	const chatID int64 = -1009000000050
	for i, text := range []string{"one", "two", "three", "four"} {
		save(t, s, chatID, 7, base.Add(time.Duration(i)*time.Minute), text)
	}
	save(t, s, -1009000000051, 7, base, "elsewhere")

	msgs, err := s.RecentMessages(ctx, chatID, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "two", msgs[0].Text)
	assert.Equal(t, "four", msgs[2].Text)
	assert.Equal(t, chatID, msgs[2].ChatID)
	assert.Equal(t, base.Add(3*time.Minute), msgs[2].SentAt())

	none, err := s.RecentMessages(ctx, chatID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
