package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/economy"
	"github.com/itl33054/wwannengBOT/internal/telegram"
)

// economyHandler serves check-in, balances and the shop.
type economyHandler struct {
	deps HandlerDeps
}

func (h economyHandler) groupOnly(ctx context.Context, api telegram.API, msg *models.Message) bool {
	if isGroup(msg) {
		return true
	}
	h.deps.reply(ctx, api, msg, h.deps.Config.Messages.GroupOnly)
	return false
}

func (h economyHandler) checkin(ctx context.Context, api telegram.API, msg *models.Message) {
	if !h.groupOnly(ctx, api, msg) {
		return
	}
	m := h.deps.Config.Messages
	if !h.deps.Settings.CheckinEnabled(ctx, msg.Chat.ID) {
		h.deps.reply(ctx, api, msg, m.CheckinDisabled)
		return
	}

	res, err := h.deps.Ledger.Checkin(ctx, senderID(msg), msg.Chat.ID)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Check-in failed", "chat_id", msg.Chat.ID, "user_id", senderID(msg), "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}

	template := m.CheckinAlready
	if res.Done {
		template = m.CheckinSuccess
	}
	h.deps.reply(ctx, api, msg, render(template,
		"user", displayName(msg),
		"reward", strconv.FormatInt(res.Awarded, 10),
		"balance", strconv.FormatInt(res.Balance, 10),
	))
}

// points reports the balance in the current group, or per group in a
// private chat.
func (h economyHandler) points(ctx context.Context, api telegram.API, msg *models.Message) {
	if isPrivate(msg) {
		h.pointsEverywhere(ctx, api, msg)
		return
	}
	if !h.groupOnly(ctx, api, msg) {
		return
	}
	balance, err := h.deps.Ledger.Balance(ctx, senderID(msg), msg.Chat.ID)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Balance lookup failed", "chat_id", msg.Chat.ID, "error", err)
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.GeneralError)
		return
	}
	h.deps.reply(ctx, api, msg, render(h.deps.Config.Messages.PointsBalance,
		"user", displayName(msg),
		"balance", strconv.FormatInt(balance, 10),
	))
}

func (h economyHandler) pointsEverywhere(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	userID := senderID(msg)
	groups, err := h.deps.Store.ListGroupsForUser(ctx, userID)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Listing user groups failed", "user_id", userID, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}

	var sb strings.Builder
	for _, g := range groups {
		balance, err := h.deps.Ledger.Balance(ctx, userID, g.ChatID)
		if err != nil {
			h.deps.Logger.WarnContext(ctx, "Balance lookup failed", "chat_id", g.ChatID, "user_id", userID, "error", err)
			continue
		}
		if balance == 0 {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(render(m.PointsLine, "name", g.ChatTitle, "balance", strconv.FormatInt(balance, 10)))
	}
	if sb.Len() == 0 {
		h.deps.reply(ctx, api, msg, m.PointsNone)
		return
	}
	h.deps.reply(ctx, api, msg, m.PointsHeader+sb.String())
}

func (h economyHandler) shop(ctx context.Context, api telegram.API, msg *models.Message) {
	if !h.groupOnly(ctx, api, msg) {
		return
	}
	m := h.deps.Config.Messages
	items, err := h.deps.Ledger.ListItems(ctx)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Listing shop items failed", "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}
	if len(items) == 0 {
		h.deps.reply(ctx, api, msg, m.ShopEmpty)
		return
	}
	balance, err := h.deps.Ledger.Balance(ctx, senderID(msg), msg.Chat.ID)
	if err != nil {
		h.deps.Logger.WarnContext(ctx, "Balance lookup failed", "chat_id", msg.Chat.ID, "error", err)
	}

	var sb strings.Builder
	sb.WriteString(render(m.ShopHeader, "balance", strconv.FormatInt(balance, 10)))
	for _, item := range items {
		sb.WriteString("\n\n")
		sb.WriteString(h.formatItem(item))
	}
	h.deps.reply(ctx, api, msg, sb.String())
}

func (h economyHandler) formatItem(item database.ShopItem) string {
	stock := strconv.FormatInt(item.Stock, 10)
	if item.Stock == database.UnlimitedStock {
		stock = h.deps.Config.Messages.ShopUnlimited
	}
	return strings.TrimSpace(render(h.deps.Config.Messages.ShopItem,
		"id", strconv.FormatInt(item.ID, 10),
		"name", item.Name,
		"cost", strconv.FormatInt(item.Cost, 10),
		"stock", stock,
		"description", item.Description,
	))
}

func (h economyHandler) redeem(ctx context.Context, api telegram.API, msg *models.Message) {
	if !h.groupOnly(ctx, api, msg) {
		return
	}
	m := h.deps.Config.Messages
	itemID, err := strconv.ParseInt(commandArgs(msg.Text), 10, 64)
	if err != nil || itemID <= 0 {
		h.deps.reply(ctx, api, msg, m.RedeemUsage)
		return
	}

	res, err := h.deps.Ledger.Redeem(ctx, senderID(msg), msg.Chat.ID, itemID)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Redemption failed", "chat_id", msg.Chat.ID, "item_id", itemID, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}

	pairs := []string{
		"user", displayName(msg),
		"id", strconv.FormatInt(itemID, 10),
		"balance", strconv.FormatInt(res.Balance, 10),
	}
	if res.Item != nil {
		pairs = append(pairs, "name", res.Item.Name, "cost", strconv.FormatInt(res.Item.Cost, 10))
	}

	switch res.Outcome {
	case database.RedeemSuccess:
		h.deps.Logger.InfoContext(ctx, "Item redeemed", "chat_id", msg.Chat.ID, "user_id", senderID(msg), "item_id", itemID)
		h.deps.reply(ctx, api, msg, render(m.RedeemSuccess, pairs...))
	case database.RedeemNotFound:
		h.deps.reply(ctx, api, msg, render(m.RedeemNotFound, pairs...))
	case database.RedeemInsufficientPoints:
		h.deps.reply(ctx, api, msg, render(m.RedeemNoPoints, pairs...))
	case database.RedeemOutOfStock:
		h.deps.reply(ctx, api, msg, render(m.RedeemOutOfStock, pairs...))
	default:
		h.deps.reply(ctx, api, msg, m.GeneralError)
	}
}

// shopAdd parses "name | description | cost | stock".
func (h economyHandler) shopAdd(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	fields := splitFields(commandArgs(msg.Text))
	if len(fields) != 4 {
		h.deps.reply(ctx, api, msg, m.ShopAddUsage)
		return
	}
	cost, costErr := strconv.ParseInt(fields[2], 10, 64)
	stock, stockErr := strconv.ParseInt(fields[3], 10, 64)
	if costErr != nil || stockErr != nil {
		h.deps.reply(ctx, api, msg, m.ShopAddUsage)
		return
	}

	item, err := h.deps.Ledger.AddItem(ctx, fields[0], fields[1], cost, stock)
	switch {
	case errors.Is(err, economy.ErrInvalidItem):
		h.deps.reply(ctx, api, msg, m.ShopAddUsage)
	case errors.Is(err, database.ErrConflict):
		h.deps.reply(ctx, api, msg, m.ShopAddConflict)
	case err != nil:
		h.deps.Logger.ErrorContext(ctx, "Adding shop item failed", "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
	default:
		h.deps.reply(ctx, api, msg, render(m.ShopAdded, "id", strconv.FormatInt(item.ID, 10), "name", item.Name))
	}
}

// shopActive parses "<id> <on|off>".
func (h economyHandler) shopActive(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	args := strings.Fields(commandArgs(msg.Text))
	if len(args) != 2 {
		h.deps.reply(ctx, api, msg, m.ShopActiveUsage)
		return
	}
	itemID, err := strconv.ParseInt(args[0], 10, 64)
	active, ok := parseSwitch(args[1])
	if err != nil || !ok {
		h.deps.reply(ctx, api, msg, m.ShopActiveUsage)
		return
	}

	err = h.deps.Ledger.SetItemActive(ctx, itemID, active)
	if errors.Is(err, database.ErrNotFound) {
		h.deps.reply(ctx, api, msg, render(m.RedeemNotFound, "id", args[0]))
		return
	}
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Updating shop item failed", "item_id", itemID, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}

	var name string
	if item, err := h.deps.Ledger.Item(ctx, itemID); err == nil {
		name = item.Name
	}
	template := m.ShopHidden
	if active {
		template = m.ShopShown
	}
	h.deps.reply(ctx, api, msg, strings.Join(strings.Fields(render(template, "id", args[0], "name", name)), " "))
}

func parseSwitch(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, true
	case "off", "false", "0", "no":
		return false, true
	}
	return false, false
}
