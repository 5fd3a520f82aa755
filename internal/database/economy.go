package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// GetPoints returns the balance of a user in a chat. A missing row reads as 0 points.
func (s *sqlxStore) GetPoints(ctx context.Context, chatID, userID int64) (UserPoints, error) {
	var points UserPoints
	err := s.db.GetContext(ctx, &points, `
        SELECT chat_id, user_id, points, last_update_ms
        FROM user_points WHERE chat_id = ? AND user_id = ?;
    `, formatID(chatID), formatID(userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserPoints{ChatID: chatID, UserID: userID}, nil
		}
		s.logger.ErrorContext(ctx, "Error loading points", "chat_id", chatID, "user_id", userID, "error", err)
		return UserPoints{ChatID: chatID, UserID: userID}, fmt.Errorf("failed to load points of user %d in chat %d: %w", userID, chatID, err)
	}
	return points, nil
}

// addPointsTx is the read-then-write core shared by AddPoints and Checkin.
func addPointsTx(ctx context.Context, tx *sqlx.Tx, chatID, userID, delta int64, cooldown time.Duration, now time.Time) (bool, int64, error) {
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO user_points (chat_id, user_id, points, last_update_ms) VALUES (?, ?, 0, 0)
        ON CONFLICT(chat_id, user_id) DO NOTHING;
    `, formatID(chatID), formatID(userID)); err != nil {
		return false, 0, fmt.Errorf("failed to initialise points of user %d in chat %d: %w", userID, chatID, err)
	}

	var current UserPoints
	if err := tx.GetContext(ctx, &current, `
        SELECT chat_id, user_id, points, last_update_ms
        FROM user_points WHERE chat_id = ? AND user_id = ?;
    `, formatID(chatID), formatID(userID)); err != nil {
		return false, 0, fmt.Errorf("failed to load points of user %d in chat %d: %w", userID, chatID, err)
	}

	if cooldown > 0 && now.Sub(time.UnixMilli(current.LastUpdateMs)) < cooldown {
		return false, current.Points, nil
	}

	balance := current.Points + delta
	if _, err := tx.ExecContext(ctx, `
        UPDATE user_points SET points = ?, last_update_ms = ?
        WHERE chat_id = ? AND user_id = ?;
    `, balance, now.UnixMilli(), formatID(chatID), formatID(userID)); err != nil {
		return false, 0, fmt.Errorf("failed to update points of user %d in chat %d: %w", userID, chatID, err)
	}
	return true, balance, nil
}

// AddPoints applies delta to a balance unless the cooldown since the last
// accepted change has not elapsed. A rejected change leaves the row untouched.
func (s *sqlxStore) AddPoints(ctx context.Context, chatID, userID, delta int64, cooldown time.Duration, now time.Time) (bool, int64, error) {
	var (
		applied bool
		balance int64
	)
	err := s.withTx(ctx, "add_points", func(tx *sqlx.Tx) error {
		var err error
		applied, balance, err = addPointsTx(ctx, tx, chatID, userID, delta, cooldown, now)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error adding points", "chat_id", chatID, "user_id", userID, "error", err)
		return false, 0, err
	}
	return applied, balance, nil
}

// Checkin records a check-in for day and grants reward without cooldown.
func (s *sqlxStore) Checkin(ctx context.Context, chatID, userID int64, day string, reward int64, now time.Time) (int64, error) {
	var balance int64
	err := s.withTx(ctx, "checkin", func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
            INSERT INTO checkin_log (chat_id, user_id, checkin_date) VALUES (?, ?, ?)
            ON CONFLICT(chat_id, user_id, checkin_date) DO NOTHING;
        `, formatID(chatID), formatID(userID), day)
		if err != nil {
			return fmt.Errorf("failed to record check-in of user %d in chat %d: %w", userID, chatID, err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return ErrConflict
		}

		_, balance, err = addPointsTx(ctx, tx, chatID, userID, reward, 0, now)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrConflict) {
			s.logger.ErrorContext(ctx, "Error during check-in", "chat_id", chatID, "user_id", userID, "error", err)
		}
		return 0, err
	}
	return balance, nil
}

// ListShopItems returns shop items ordered by cost.
func (s *sqlxStore) ListShopItems(ctx context.Context, activeOnly bool) ([]ShopItem, error) {
	query := `SELECT id, name, description, cost, stock, is_active FROM shop_items`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY cost ASC, id ASC;`

	var items []ShopItem
	if err := s.db.SelectContext(ctx, &items, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing shop items", "error", err)
		return nil, fmt.Errorf("failed to list shop items: %w", err)
	}
	return items, nil
}

const getShopItemQuery = `
    SELECT id, name, description, cost, stock, is_active FROM shop_items WHERE id = ?;
`

// GetShopItem returns one shop item, or ErrNotFound.
func (s *sqlxStore) GetShopItem(ctx context.Context, itemID int64) (*ShopItem, error) {
	var item ShopItem
	if err := s.db.GetContext(ctx, &item, getShopItemQuery, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Error loading shop item", "item_id", itemID, "error", err)
		return nil, fmt.Errorf("failed to load shop item %d: %w", itemID, err)
	}
	return &item, nil
}

// AddShopItem inserts a new active item and sets its ID. A duplicate name
// returns ErrConflict.
func (s *sqlxStore) AddShopItem(ctx context.Context, item *ShopItem) error {
	if item == nil {
		return fmt.Errorf("cannot save nil shop item")
	}
	if item.Cost <= 0 {
		return fmt.Errorf("shop item cost must be positive, got %d", item.Cost)
	}
	if item.Stock < UnlimitedStock {
		return fmt.Errorf("shop item stock must be %d or more, got %d", UnlimitedStock, item.Stock)
	}

	result, err := s.db.ExecContext(ctx, `
        INSERT INTO shop_items (name, description, cost, stock, is_active) VALUES (?, ?, ?, ?, 1)
        ON CONFLICT(name) DO NOTHING;
    `, item.Name, item.Description, item.Cost, item.Stock)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving shop item", "name", item.Name, "error", err)
		return fmt.Errorf("failed to save shop item %q: %w", item.Name, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		s.logger.WarnContext(ctx, "Shop item name already exists", "name", item.Name)
		return ErrConflict
	}
	if id, err := result.LastInsertId(); err == nil {
		item.ID = id
	}
	item.IsActive = true
	return nil
}

// SetShopItemActive shows or hides an item.
func (s *sqlxStore) SetShopItemActive(ctx context.Context, itemID int64, active bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE shop_items SET is_active = ? WHERE id = ?;`, boolToInt(active), itemID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating shop item", "item_id", itemID, "error", err)
		return fmt.Errorf("failed to update shop item %d: %w", itemID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Redeem checks the item, the balance and the stock in that order, then
// debits the cost and decrements a limited stock in one transaction.
// The returned balance is the user's balance after the attempt.
func (s *sqlxStore) Redeem(ctx context.Context, chatID, userID, itemID int64, now time.Time) (RedeemOutcome, *ShopItem, int64, error) {
	var (
		outcome RedeemOutcome
		item    ShopItem
		balance int64
	)
	err := s.withTx(ctx, "redeem", func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &item, getShopItemQuery, itemID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				outcome = RedeemNotFound
				return nil
			}
			return fmt.Errorf("failed to load shop item %d: %w", itemID, err)
		}
		if !item.IsActive {
			outcome = RedeemNotFound
			return nil
		}

		err := tx.GetContext(ctx, &balance, `
            SELECT points FROM user_points WHERE chat_id = ? AND user_id = ?;
        `, formatID(chatID), formatID(userID))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to load points of user %d in chat %d: %w", userID, chatID, err)
		}

		if balance < item.Cost {
			outcome = RedeemInsufficientPoints
			return nil
		}
		if item.Stock == 0 {
			outcome = RedeemOutOfStock
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
            UPDATE user_points SET points = points - ? WHERE chat_id = ? AND user_id = ?;
        `, item.Cost, formatID(chatID), formatID(userID)); err != nil {
			return fmt.Errorf("failed to debit user %d in chat %d: %w", userID, chatID, err)
		}
		if item.Stock != UnlimitedStock {
			if _, err := tx.ExecContext(ctx, `
                UPDATE shop_items SET stock = stock - 1 WHERE id = ? AND stock > 0;
            `, item.ID); err != nil {
				return fmt.Errorf("failed to decrement stock of item %d: %w", item.ID, err)
			}
			item.Stock--
		}
		balance -= item.Cost
		outcome = RedeemSuccess
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error redeeming item", "chat_id", chatID, "user_id", userID, "item_id", itemID, "error", err)
		return RedeemError, nil, 0, err
	}

	s.logger.InfoContext(ctx, "Redemption processed",
		"chat_id", chatID, "user_id", userID, "item_id", itemID, "outcome", outcome.String(), "at", now.Unix())
	if outcome == RedeemNotFound {
		return outcome, nil, balance, nil
	}
	return outcome, &item, balance, nil
}
