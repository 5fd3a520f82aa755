package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/stats"
	"github.com/itl33054/wwannengBOT/internal/telegram"
)

const (
	topicPreviewLength = 30
	defaultActivityDay = 7
	maxActivityDays    = 31
)

var medals = []string{"🥇", "🥈", "🥉"}

// rankingPhrases are plain-text leaderboard requests.
var rankingPhrases = map[string]stats.Query{
	"本群今日发言": {Scope: stats.ScopeLocal, Type: stats.RankUsers, Period: stats.PeriodToday},
	"本群本周发言": {Scope: stats.ScopeLocal, Type: stats.RankUsers, Period: stats.PeriodWeek},
	"本群本月发言": {Scope: stats.ScopeLocal, Type: stats.RankUsers, Period: stats.PeriodMonth},
	"全服今日发言": {Scope: stats.ScopeGlobal, Type: stats.RankUsers, Period: stats.PeriodToday},
	"全服本周发言": {Scope: stats.ScopeGlobal, Type: stats.RankUsers, Period: stats.PeriodWeek},
	"全服本月发言": {Scope: stats.ScopeGlobal, Type: stats.RankUsers, Period: stats.PeriodMonth},
}

// statsHandler serves leaderboards and personal statistics.
type statsHandler struct {
	deps HandlerDeps
}

// parseRankQuery reads scope, type and period tokens in any order.
// Missing tokens default to local (global in private chats and for group
// rankings), users, today.
func parseRankQuery(args string, private bool) (stats.Query, error) {
	q := stats.Query{Scope: stats.ScopeLocal, Type: stats.RankUsers, Period: stats.PeriodToday}
	if private {
		q.Scope = stats.ScopeGlobal
	}
	scopeSet := false
	for _, tok := range strings.Fields(args) {
		if sc, err := stats.ParseScope(tok); err == nil {
			q.Scope = sc
			scopeSet = true
			continue
		}
		if rt, err := stats.ParseRankType(tok); err == nil {
			q.Type = rt
			continue
		}
		p, err := stats.ParsePeriod(tok)
		if err != nil {
			return stats.Query{}, err
		}
		q.Period = p
	}
	if q.Type == stats.RankGroups && !scopeSet {
		q.Scope = stats.ScopeGlobal
	}
	return q, nil
}

func (h statsHandler) rank(ctx context.Context, api telegram.API, msg *models.Message) {
	q, err := parseRankQuery(commandArgs(msg.Text), isPrivate(msg))
	if err != nil {
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.RankUsage)
		return
	}
	h.sendRanking(ctx, api, msg, q)
}

func (h statsHandler) sendRanking(ctx context.Context, api telegram.API, msg *models.Message, q stats.Query) {
	m := h.deps.Config.Messages
	if q.Scope == stats.ScopeLocal {
		if !isGroup(msg) {
			h.deps.reply(ctx, api, msg, m.GroupOnly)
			return
		}
		q.ChatID = msg.Chat.ID
	}

	entries, err := h.deps.Stats.GetRank(ctx, q)
	switch {
	case errors.Is(err, stats.ErrInvalidPeriod), errors.Is(err, stats.ErrInvalidQuery):
		h.deps.reply(ctx, api, msg, m.RankUsage)
		return
	case err != nil:
		h.deps.Logger.ErrorContext(ctx, "Ranking query failed", "chat_id", msg.Chat.ID, "query", q, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}

	h.deps.reply(ctx, api, msg, h.formatRanking(q, entries))
}

func (h statsHandler) formatRanking(q stats.Query, entries []stats.RankEntry) string {
	m := h.deps.Config.Messages
	var sb strings.Builder
	sb.WriteString(render(m.RankHeader, "type", string(q.Type), "scope", string(q.Scope), "period", string(q.Period)))
	if len(entries) == 0 {
		sb.WriteString("\n")
		sb.WriteString(m.RankEmpty)
		return sb.String()
	}
	for _, e := range entries {
		sb.WriteString("\n")
		sb.WriteString(render(m.RankLine,
			"rank", rankLabel(e.Rank),
			"name", entryName(q.Type, e),
			"count", strconv.FormatInt(e.Count, 10),
		))
	}
	return sb.String()
}

func rankLabel(rank int) string {
	if rank >= 1 && rank <= len(medals) {
		return medals[rank-1]
	}
	return strconv.Itoa(rank) + "."
}

func entryName(t stats.RankType, e stats.RankEntry) string {
	if t == stats.RankTopics {
		runes := []rune(e.Text)
		if len(runes) > topicPreviewLength {
			return string(runes[:topicPreviewLength]) + "…"
		}
		return e.Text
	}
	switch {
	case e.Name != "":
		return e.Name
	case e.Username != "":
		return "@" + e.Username
	default:
		return strconv.FormatInt(e.ID, 10)
	}
}

// myStats reports the sender's statistics for the current group with the
// rank of each period, or their global standing and per-group activity in
// private chats.
func (h statsHandler) myStats(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	userID := senderID(msg)
	log := h.deps.Logger.With("handler", "mystats")

	if isGroup(msg) {
		totals, err := h.deps.Stats.GetUserStats(ctx, userID, msg.Chat.ID)
		if err != nil {
			log.ErrorContext(ctx, "User stats failed", "user_id", userID, "error", err)
			h.deps.reply(ctx, api, msg, m.GeneralError)
			return
		}
		first := "-"
		if !totals.FirstMessage.IsZero() {
			first = totals.FirstMessage.In(h.deps.Config.Location()).Format(time.DateOnly)
		}
		lines := []string{render(m.MyStatsGroup,
			"user", displayName(msg),
			"total", strconv.FormatInt(totals.TotalCount, 10),
			"first", first,
		)}
		for _, period := range []stats.Period{stats.PeriodToday, stats.PeriodWeek, stats.PeriodMonth} {
			rank, count, err := h.deps.Stats.GetUserRank(ctx, userID, msg.Chat.ID, period)
			if err != nil {
				log.ErrorContext(ctx, "User rank failed", "user_id", userID, "period", period, "error", err)
				h.deps.reply(ctx, api, msg, m.GeneralError)
				return
			}
			lines = append(lines, render(m.MyStatsRank,
				"period", string(period),
				"count", strconv.FormatInt(count, 10),
				"rank", rankNumber(rank),
			))
		}
		h.deps.reply(ctx, api, msg, strings.Join(lines, "\n"))
		return
	}

	global, err := h.deps.Stats.GetUserGlobalStats(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Global stats failed", "user_id", userID, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}
	var sb strings.Builder
	sb.WriteString(render(m.MyStats,
		"user", displayName(msg),
		"total", strconv.FormatInt(global.TotalCount, 10),
		"rank", rankNumber(global.Rank),
	))

	groups, err := h.deps.Store.GetUserActivityAcrossGroups(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "Group activity failed", "user_id", userID, "error", err)
	}
	for _, g := range groups {
		sb.WriteString("\n")
		sb.WriteString(render(m.MyStatsLine, "name", g.ChatTitle, "count", strconv.FormatInt(g.Count, 10)))
	}
	h.deps.reply(ctx, api, msg, sb.String())
}

func rankNumber(rank int) string {
	if rank <= 0 {
		return "-"
	}
	return strconv.Itoa(rank)
}

// activity lists the daily message counts of the current group.
func (h statsHandler) activity(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	if !isGroup(msg) {
		h.deps.reply(ctx, api, msg, m.GroupOnly)
		return
	}
	days := defaultActivityDay
	if arg := commandArgs(msg.Text); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			h.deps.reply(ctx, api, msg, m.RankUsage)
			return
		}
		days = min(n, maxActivityDays)
	}

	counts, err := h.deps.Stats.GetDailyActivity(ctx, msg.Chat.ID, days)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Daily activity failed", "chat_id", msg.Chat.ID, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}
	if len(counts) == 0 {
		h.deps.reply(ctx, api, msg, m.RankEmpty)
		return
	}

	var sb strings.Builder
	sb.WriteString(render(m.ActivityHead, "days", strconv.Itoa(days)))
	for _, c := range counts {
		sb.WriteString("\n")
		sb.WriteString(render(m.ActivityLine, "day", c.Day, "count", strconv.FormatInt(c.Count, 10)))
	}
	h.deps.reply(ctx, api, msg, sb.String())
}

func (h statsHandler) toggleRanking(ctx context.Context, api telegram.API, msg *models.Message) {
	enabled, err := h.deps.Settings.ToggleRanking(ctx, senderID(msg))
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Toggling ranking failed", "user_id", senderID(msg), "error", err)
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.GeneralError)
		return
	}
	if enabled {
		h.deps.reply(ctx, api, msg, h.deps.Config.Messages.RankingOn)
		return
	}
	h.deps.reply(ctx, api, msg, h.deps.Config.Messages.RankingOff)
}
