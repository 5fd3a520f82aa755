// Package economy keeps per-group point balances: message accrual, daily
// check-ins and shop redemptions.
package economy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/itl33054/wwannengBOT/internal/clock"
	"github.com/itl33054/wwannengBOT/internal/database"
)

// ErrInvalidItem is returned by AddItem for a non-positive cost or a stock
// below -1.
var ErrInvalidItem = errors.New("invalid shop item")

var validate = validator.New(validator.WithRequiredStructEnabled())

// itemInput is the shape AddItem accepts.
type itemInput struct {
	Name  string `validate:"required,max=64"`
	Cost  int64  `validate:"gt=0"`
	Stock int64  `validate:"gte=-1"`
}

// Config holds the ledger's tunables.
type Config struct {
	AccrualPoints   int64
	AccrualCooldown time.Duration
	// MinAccrualLength is the number of characters a message must exceed.
	MinAccrualLength int
	CheckinReward    int64
}

// DefaultConfig returns the stock economy: one point per message longer than
// five characters at most once a second, ten points per check-in.
func DefaultConfig() Config {
	return Config{
		AccrualPoints:    1,
		AccrualCooldown:  time.Second,
		MinAccrualLength: 5,
		CheckinReward:    10,
	}
}

// CheckinResult reports a check-in attempt.
type CheckinResult struct {
	// Done is false when the user already checked in today.
	Done    bool
	Awarded int64
	Balance int64
}

// RedeemResult reports a redemption attempt. Item is nil for NotFound and
// Error outcomes.
type RedeemResult struct {
	Outcome database.RedeemOutcome
	Item    *database.ShopItem
	Balance int64
}

// Ledger is the points economy.
type Ledger struct {
	store  database.EconomyStore
	clock  clock.Clock
	cfg    Config
	logger *slog.Logger
}

// NewLedger creates a Ledger. Zero config fields take their defaults.
func NewLedger(store database.EconomyStore, clk clock.Clock, cfg Config, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clk == nil {
		clk = clock.Real{}
	}
	def := DefaultConfig()
	if cfg.AccrualPoints <= 0 {
		cfg.AccrualPoints = def.AccrualPoints
	}
	if cfg.AccrualCooldown < 0 {
		cfg.AccrualCooldown = def.AccrualCooldown
	}
	if cfg.MinAccrualLength <= 0 {
		cfg.MinAccrualLength = def.MinAccrualLength
	}
	if cfg.CheckinReward <= 0 {
		cfg.CheckinReward = def.CheckinReward
	}
	return &Ledger{
		store:  store,
		clock:  clk,
		cfg:    cfg,
		logger: logger.With("component", "economy"),
	}
}

// AddPoints applies delta unless less than cooldown passed since the last
// accepted change. A zero cooldown disables the gate.
func (l *Ledger) AddPoints(ctx context.Context, userID, chatID, delta int64, cooldown time.Duration) (bool, int64, error) {
	return l.store.AddPoints(ctx, chatID, userID, delta, cooldown, l.clock.Now())
}

// Accrue grants the per-message point for qualifying messages outside
// private chats, basic groups included, and reports whether a point was
// granted.
func (l *Ledger) Accrue(ctx context.Context, userID, chatID int64, text string, private bool) bool {
	if private {
		return false
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) <= l.cfg.MinAccrualLength {
		return false
	}
	applied, _, err := l.AddPoints(ctx, userID, chatID, l.cfg.AccrualPoints, l.cfg.AccrualCooldown)
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to accrue points", "chat_id", chatID, "user_id", userID, "error", err)
		return false
	}
	return applied
}

// Checkin grants the daily reward once per UTC calendar day.
func (l *Ledger) Checkin(ctx context.Context, userID, chatID int64) (CheckinResult, error) {
	now := l.clock.Now()
	day := now.UTC().Format(time.DateOnly)

	balance, err := l.store.Checkin(ctx, chatID, userID, day, l.cfg.CheckinReward, now)
	if errors.Is(err, database.ErrConflict) {
		current, err := l.Balance(ctx, userID, chatID)
		return CheckinResult{Balance: current}, err
	}
	if err != nil {
		return CheckinResult{}, err
	}

	l.logger.InfoContext(ctx, "User checked in", "chat_id", chatID, "user_id", userID, "day", day)
	return CheckinResult{Done: true, Awarded: l.cfg.CheckinReward, Balance: balance}, nil
}

// Balance returns the points of a user in a chat.
func (l *Ledger) Balance(ctx context.Context, userID, chatID int64) (int64, error) {
	p, err := l.store.GetPoints(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	return p.Points, nil
}

// Item returns one shop item, active or not, or database.ErrNotFound.
func (l *Ledger) Item(ctx context.Context, itemID int64) (*database.ShopItem, error) {
	return l.store.GetShopItem(ctx, itemID)
}

// ListItems returns the active shop items, cheapest first.
func (l *Ledger) ListItems(ctx context.Context) ([]database.ShopItem, error) {
	return l.store.ListShopItems(ctx, true)
}

// AddItem creates a shop item. A duplicate name yields database.ErrConflict.
func (l *Ledger) AddItem(ctx context.Context, name, description string, cost, stock int64) (*database.ShopItem, error) {
	name = strings.TrimSpace(name)
	if err := validate.Struct(itemInput{Name: name, Cost: cost, Stock: stock}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	item := &database.ShopItem{
		Name:        name,
		Description: strings.TrimSpace(description),
		Cost:        cost,
		Stock:       stock,
		IsActive:    true,
	}
	if err := l.store.AddShopItem(ctx, item); err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "Shop item added", "item_id", item.ID, "name", item.Name)
	return item, nil
}

// SetItemActive lists or unlists a shop item.
func (l *Ledger) SetItemActive(ctx context.Context, itemID int64, active bool) error {
	return l.store.SetShopItemActive(ctx, itemID, active)
}

// Redeem spends points on a shop item.
func (l *Ledger) Redeem(ctx context.Context, userID, chatID, itemID int64) (RedeemResult, error) {
	outcome, item, balance, err := l.store.Redeem(ctx, chatID, userID, itemID, l.clock.Now())
	if err != nil {
		return RedeemResult{Outcome: database.RedeemError}, err
	}
	if outcome == database.RedeemNotFound {
		// The lookup stopped before reading the balance.
		if balance, err = l.Balance(ctx, userID, chatID); err != nil {
			l.logger.WarnContext(ctx, "Failed to read balance after redemption", "user_id", userID, "error", err)
		}
	}
	return RedeemResult{Outcome: outcome, Item: item, Balance: balance}, nil
}
