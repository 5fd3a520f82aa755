package economy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itl33054/wwannengBOT/internal/clock"
	"github.com/itl33054/wwannengBOT/internal/database"
)

const (
	chat int64 = -1005550001
	user int64 = 7
)

func newLedger(t *testing.T) (*Ledger, *clock.Mock) {
	t.Helper()
	db, err := database.NewDB(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	clk := clock.NewMock(time.Date(2024, time.May, 15, 23, 59, 0, 0, time.UTC))
	return NewLedger(database.NewStore(db, nil), clk, Config{}, nil), clk
}

func TestCheckinIsIdempotentPerDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, clk := newLedger(t)

	res, err := l.Checkin(ctx, user, chat)
	require.NoError(t, err)
	assert.Equal(t, CheckinResult{Done: true, Awarded: 10, Balance: 10}, res)

	res, err = l.Checkin(ctx, user, chat)
	require.NoError(t, err)
	assert.Equal(t, CheckinResult{Balance: 10}, res)

	// The next UTC day starts two minutes later.
	clk.Advance(2 * time.Minute)
	res, err = l.Checkin(ctx, user, chat)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, int64(20), res.Balance)
}

func TestCheckinIgnoresAccrualCooldown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newLedger(t)

	assert.True(t, l.Accrue(ctx, user, chat, "hello world", false))
	res, err := l.Checkin(ctx, user, chat)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, int64(11), res.Balance)
}

func TestAddPointsCooldownGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, clk := newLedger(t)

	applied, balance, err := l.AddPoints(ctx, user, chat, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(1), balance)

	clk.Advance(500 * time.Millisecond)
	applied, balance, err = l.AddPoints(ctx, user, chat, 1, time.Second)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(1), balance)

	clk.Advance(time.Second)
	applied, balance, err = l.AddPoints(ctx, user, chat, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(2), balance)
}

func TestAddPointsCooldownBelowOneSecond(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := database.NewDB(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	clk := clock.NewMock(time.Date(2024, time.May, 15, 12, 0, 0, 900_000_000, time.UTC))
	l := NewLedger(database.NewStore(db, nil), clk, Config{}, nil)

	applied, balance, err := l.AddPoints(ctx, user, chat, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(1), balance)

	// Crosses a wall-clock second boundary but not the cooldown.
	clk.Advance(200 * time.Millisecond)
	applied, balance, err = l.AddPoints(ctx, user, chat, 1, time.Second)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(1), balance)

	clk.Advance(799 * time.Millisecond)
	applied, _, err = l.AddPoints(ctx, user, chat, 1, time.Second)
	require.NoError(t, err)
	assert.False(t, applied)

	clk.Advance(time.Millisecond)
	applied, balance, err = l.AddPoints(ctx, user, chat, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(2), balance)
}

func TestAccrue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		chatID  int64
		text    string
		private bool
		want    bool
	}{
		{"long group message", chat, "good morning", false, true},
		{"exactly five characters", chat, "hello", false, false},
		{"five runes of CJK plus one", chat, "大家早上好啊", false, true},
		{"private chat", user, "good morning", true, false},
		{"basic group id", -4242, "good morning", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, _ := newLedger(t)
			assert.Equal(t, tt.want, l.Accrue(context.Background(), user, tt.chatID, tt.text, tt.private))
		})
	}
}

func TestAccrueRespectsCooldown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, clk := newLedger(t)

	assert.True(t, l.Accrue(ctx, user, chat, "first message", false))
	assert.False(t, l.Accrue(ctx, user, chat, "second message", false))
	clk.Advance(time.Second)
	assert.True(t, l.Accrue(ctx, user, chat, "third message", false))

	balance, err := l.Balance(ctx, user, chat)
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance)
}

func TestRedeemInsufficientPoints(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newLedger(t)

	item, err := l.AddItem(ctx, "Sticker pack", "a sticker pack", 50, 5)
	require.NoError(t, err)
	_, _, err = l.AddPoints(ctx, user, chat, 30, 0)
	require.NoError(t, err)

	res, err := l.Redeem(ctx, user, chat, item.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RedeemInsufficientPoints, res.Outcome)
	assert.Equal(t, int64(30), res.Balance)

	balance, err := l.Balance(ctx, user, chat)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)
}

func TestRedeemStock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newLedger(t)

	soldOut, err := l.AddItem(ctx, "Badge", "", 10, 0)
	require.NoError(t, err)
	unlimited, err := l.AddItem(ctx, "Title", "", 10, database.UnlimitedStock)
	require.NoError(t, err)
	single, err := l.AddItem(ctx, "Mug", "", 10, 1)
	require.NoError(t, err)

	_, _, err = l.AddPoints(ctx, user, chat, 100, 0)
	require.NoError(t, err)

	res, err := l.Redeem(ctx, user, chat, soldOut.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RedeemOutOfStock, res.Outcome)
	assert.Equal(t, int64(100), res.Balance)

	for i := range 3 {
		res, err = l.Redeem(ctx, user, chat, unlimited.ID)
		require.NoError(t, err)
		assert.Equal(t, database.RedeemSuccess, res.Outcome)
		assert.Equal(t, int64(database.UnlimitedStock), res.Item.Stock)
		assert.Equal(t, int64(90-10*i), res.Balance)
	}

	res, err = l.Redeem(ctx, user, chat, single.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RedeemSuccess, res.Outcome)
	assert.Zero(t, res.Item.Stock)

	res, err = l.Redeem(ctx, user, chat, single.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RedeemOutOfStock, res.Outcome)
	assert.Equal(t, int64(60), res.Balance)

	items, err := l.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestRedeemUnknownOrInactiveItem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newLedger(t)

	_, _, err := l.AddPoints(ctx, user, chat, 40, 0)
	require.NoError(t, err)

	res, err := l.Redeem(ctx, user, chat, 999)
	require.NoError(t, err)
	assert.Equal(t, database.RedeemNotFound, res.Outcome)
	assert.Nil(t, res.Item)
	assert.Equal(t, int64(40), res.Balance)

	item, err := l.AddItem(ctx, "Hidden", "", 1, 1)
	require.NoError(t, err)
	require.NoError(t, l.SetItemActive(ctx, item.ID, false))

	res, err = l.Redeem(ctx, user, chat, item.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RedeemNotFound, res.Outcome)

	items, err := l.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	hidden, err := l.Item(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hidden", hidden.Name)
	assert.False(t, hidden.IsActive)
	_, err = l.Item(ctx, 999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAddItemValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := newLedger(t)

	_, err := l.AddItem(ctx, "Free", "", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidItem)
	_, err = l.AddItem(ctx, "Weird", "", 5, -2)
	assert.ErrorIs(t, err, ErrInvalidItem)
	_, err = l.AddItem(ctx, "  ", "", 5, 1)
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = l.AddItem(ctx, "Mug", "", 5, 1)
	require.NoError(t, err)
	_, err = l.AddItem(ctx, "Mug", "again", 7, 1)
	assert.ErrorIs(t, err, database.ErrConflict)
}
