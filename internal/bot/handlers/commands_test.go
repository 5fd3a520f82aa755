package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/stats"
)

func TestParseRankQuery(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		private bool
		want    stats.Query
		wantErr bool
	}{
		{name: "defaults", want: stats.Query{Scope: stats.ScopeLocal, Type: stats.RankUsers, Period: stats.PeriodToday}},
		{name: "private defaults to global", private: true,
			want: stats.Query{Scope: stats.ScopeGlobal, Type: stats.RankUsers, Period: stats.PeriodToday}},
		{name: "any order", args: "month topics global",
			want: stats.Query{Scope: stats.ScopeGlobal, Type: stats.RankTopics, Period: stats.PeriodMonth}},
		{name: "groups imply global", args: "groups week",
			want: stats.Query{Scope: stats.ScopeGlobal, Type: stats.RankGroups, Period: stats.PeriodWeek}},
		{name: "explicit local groups kept", args: "local groups",
			want: stats.Query{Scope: stats.ScopeLocal, Type: stats.RankGroups, Period: stats.PeriodToday}},
		{name: "unknown token", args: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRankQuery(tt.args, tt.private)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntryName(t *testing.T) {
	long := "这是一个非常非常长的话题，它的长度明显超过了三十个字符的限制，所以需要截断"
	name := entryName(stats.RankTopics, stats.RankEntry{Text: long})
	assert.Equal(t, 31, len([]rune(name)))
	assert.Equal(t, "Alice", entryName(stats.RankUsers, stats.RankEntry{Name: "Alice", Username: "al"}))
	assert.Equal(t, "@al", entryName(stats.RankUsers, stats.RankEntry{Username: "al"}))
	assert.Equal(t, "42", entryName(stats.RankUsers, stats.RankEntry{ID: 42}))
	assert.Equal(t, "4.", rankLabel(4))
	assert.Equal(t, "🥉", rankLabel(3))
}

func TestRankCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := statsHandler{f.deps}
	m := f.deps.Config.Messages

	h.rank(ctx, f.api, f.groupMsg(alice, "Alice", "/rank"))
	assert.Equal(t, "Top users (local, today):\n"+m.RankEmpty, f.last(t))

	f.handle(f.groupMsg(alice, "Alice", "hello there"))
	h.rank(ctx, f.api, f.privateMsg(alice, "Alice", "/rank groups"))
	assert.Equal(t, "Top groups (global, today):\n🥇 Test Group - 1", f.last(t))

	h.rank(ctx, f.api, f.groupMsg(alice, "Alice", "/rank local groups"))
	assert.Equal(t, m.RankUsage, f.last(t))

	h.rank(ctx, f.api, f.groupMsg(alice, "Alice", "/rank forever"))
	assert.Equal(t, m.RankUsage, f.last(t))

	h.rank(ctx, f.api, f.privateMsg(alice, "Alice", "/rank local"))
	assert.Equal(t, m.GroupOnly, f.last(t))
}

func TestMyStatsAndActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := statsHandler{f.deps}

	f.handle(f.groupMsg(alice, "Alice", "first message"))
	f.clock.Advance(time.Minute)
	f.handle(f.groupMsg(alice, "Alice", "second message"))
	f.handle(f.groupMsg(bob, "Bob", "only one today"))
	// Bob was also active earlier this week (Monday) and earlier this month.
	for _, at := range []time.Time{
		time.Date(2024, time.May, 13, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.May, 2, 10, 0, 0, 0, time.UTC),
	} {
		require.NoError(t, f.store.SaveMessage(ctx, &database.Message{
			ChatID: group, ChatTitle: "Test Group", UserID: bob, UserName: "Bob", Timestamp: at.Unix(), Text: "earlier",
		}))
	}

	h.myStats(ctx, f.api, f.groupMsg(alice, "Alice", "/mystats"))
	assert.Equal(t, "Alice: 2 messages here since 2024-05-15.\n"+
		"today: 2 messages, rank #1\n"+
		"week: 2 messages, rank #1\n"+
		"month: 2 messages, rank #2", f.last(t))

	h.myStats(ctx, f.api, f.groupMsg(bob, "Bob", "/mystats"))
	assert.Equal(t, "Bob: 3 messages here since 2024-05-02.\n"+
		"today: 1 messages, rank #2\n"+
		"week: 2 messages, rank #1\n"+
		"month: 3 messages, rank #1", f.last(t))

	h.myStats(ctx, f.api, f.privateMsg(bob, "Bob", "/mystats"))
	reply := f.last(t)
	assert.Contains(t, reply, "Bob: 3 messages across all groups. Global rank: #1.")
	assert.Contains(t, reply, "Test Group: 3")

	h.activity(ctx, f.api, f.groupMsg(alice, "Alice", "/activity"))
	assert.Equal(t, "Messages per day, last 7 days:\n2024-05-13: 1\n2024-05-15: 3", f.last(t))

	h.activity(ctx, f.api, f.groupMsg(alice, "Alice", "/activity lots"))
	assert.Equal(t, f.deps.Config.Messages.RankUsage, f.last(t))

	h.activity(ctx, f.api, f.privateMsg(alice, "Alice", "/activity"))
	assert.Equal(t, f.deps.Config.Messages.GroupOnly, f.last(t))
}

func TestShopCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := economyHandler{f.deps}
	m := f.deps.Config.Messages

	h.shopAdd(ctx, f.api, f.groupMsg(owner, "Owner", "/shop_add Sticker | A sticker | 5 | 1"))
	assert.Equal(t, "Added #1 Sticker.", f.last(t))
	h.shopAdd(ctx, f.api, f.groupMsg(owner, "Owner", "/shop_add Sticker | Again | 5 | 1"))
	assert.Equal(t, m.ShopAddConflict, f.last(t))
	h.shopAdd(ctx, f.api, f.groupMsg(owner, "Owner", "/shop_add Sticker | 5"))
	assert.Equal(t, m.ShopAddUsage, f.last(t))
	h.shopAdd(ctx, f.api, f.groupMsg(owner, "Owner", "/shop_add Free | nothing | 0 | 1"))
	assert.Equal(t, m.ShopAddUsage, f.last(t))

	_, _, err := f.deps.Ledger.AddPoints(ctx, alice, group, 20, 0)
	require.NoError(t, err)

	h.shop(ctx, f.api, f.groupMsg(alice, "Alice", "/shop"))
	assert.Equal(t, "Shop (your points: 20)\n\n#1 Sticker - 5 points, stock: 1\nA sticker", f.last(t))

	h.redeem(ctx, f.api, f.groupMsg(bob, "Bob", "/redeem 1"))
	assert.Equal(t, "Sticker costs 5 points but you have 0.", f.last(t))
	h.redeem(ctx, f.api, f.groupMsg(alice, "Alice", "/redeem 1"))
	assert.Equal(t, "Alice redeemed Sticker. Balance: 15.", f.last(t))
	h.redeem(ctx, f.api, f.groupMsg(alice, "Alice", "/redeem 1"))
	assert.Equal(t, "Sticker is out of stock.", f.last(t))
	h.redeem(ctx, f.api, f.groupMsg(alice, "Alice", "/redeem 9"))
	assert.Equal(t, "Item #9 does not exist.", f.last(t))
	h.redeem(ctx, f.api, f.groupMsg(alice, "Alice", "/redeem"))
	assert.Equal(t, m.RedeemUsage, f.last(t))
	h.redeem(ctx, f.api, f.privateMsg(alice, "Alice", "/redeem 1"))
	assert.Equal(t, m.GroupOnly, f.last(t))

	h.shopActive(ctx, f.api, f.groupMsg(owner, "Owner", "/shop_active 1 maybe"))
	assert.Equal(t, m.ShopActiveUsage, f.last(t))
	h.shopActive(ctx, f.api, f.groupMsg(owner, "Owner", "/shop_active 77 on"))
	assert.Equal(t, "Item #77 does not exist.", f.last(t))
	h.shopActive(ctx, f.api, f.groupMsg(owner, "Owner", "/shop_active 1 off"))
	assert.Equal(t, "#1 Sticker is hidden from the shop.", f.last(t))

	h.shop(ctx, f.api, f.groupMsg(alice, "Alice", "/shop"))
	assert.Equal(t, m.ShopEmpty, f.last(t))
}

func TestShopListsUnlimitedStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.deps.Ledger.AddItem(ctx, "Badge", "", 100, database.UnlimitedStock)
	require.NoError(t, err)

	economyHandler{f.deps}.shop(ctx, f.api, f.groupMsg(alice, "Alice", "/shop"))
	assert.Equal(t, "Shop (your points: 0)\n\n#1 Badge - 100 points, stock: unlimited", f.last(t))
}

func TestFAQCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := faqHandler{f.deps}
	m := f.deps.Config.Messages

	h.list(ctx, f.api, f.groupMsg(owner, "Owner", "/faq_list"))
	assert.Equal(t, m.FAQListEmpty, f.last(t))

	h.add(ctx, f.api, f.groupMsg(owner, "Owner", "/faq_add How do I check in? | Send /checkin"))
	assert.Equal(t, m.FAQAdded, f.last(t))
	h.add(ctx, f.api, f.groupMsg(owner, "Owner", "/faq_add How do I check in? | Ask an admin"))
	assert.Equal(t, m.FAQExists, f.last(t))
	h.add(ctx, f.api, f.groupMsg(owner, "Owner", "/faq_add no separator here"))
	assert.Equal(t, m.FAQUsage, f.last(t))
	h.add(ctx, f.api, f.groupMsg(owner, "Owner", "/faq_add Where is the shop? | Send /shop"))

	h.list(ctx, f.api, f.groupMsg(owner, "Owner", "/faq_list"))
	assert.Equal(t, "FAQs:\n1. How do I check in?\n   Send /checkin\n2. Where is the shop?\n   Send /shop", f.last(t))

	h.del(ctx, f.api, f.groupMsg(owner, "Owner", "/faq_del 5"))
	assert.Equal(t, m.FAQNotFound, f.last(t))
	h.del(ctx, f.api, f.groupMsg(owner, "Owner", "/faq_del first"))
	assert.Equal(t, m.FAQDelUsage, f.last(t))
	h.del(ctx, f.api, f.groupMsg(owner, "Owner", "/faq_del 1"))
	assert.Equal(t, "Deleted: How do I check in?", f.last(t))

	faqs, err := f.deps.FAQ.List(ctx, group)
	require.NoError(t, err)
	require.Len(t, faqs, 1)
	assert.Equal(t, "Where is the shop?", faqs[0].Question)

	h.add(ctx, f.api, f.privateMsg(owner, "Owner", "/faq_add a | b"))
	assert.Equal(t, m.GroupOnly, f.last(t))
}

func TestSettingsCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := settingsHandler{f.deps}

	h.userLanguage(ctx, f.api, f.privateMsg(alice, "Alice", "/language zh-CN"))
	assert.Equal(t, "Language set to zh-CN.", f.last(t))
	us, err := f.deps.Settings.User(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "zh-CN", us.LanguageCode.String)

	h.userLanguage(ctx, f.api, f.privateMsg(alice, "Alice", "/language english please"))
	assert.Equal(t, f.deps.Config.Messages.LanguageUsage, f.last(t))

	h.groupLanguage(ctx, f.api, f.groupMsg(owner, "Owner", "/group_language en"))
	assert.Equal(t, "Language set to en.", f.last(t))

	toggle := h.toggle(database.FlagSpamFilter)
	toggle(ctx, f.api, f.groupMsg(owner, "Owner", "/spamfilter"))
	assert.Equal(t, "Spam filter is now off.", f.last(t))
	assert.False(t, f.deps.Settings.SpamFilterEnabled(ctx, group))
	toggle(ctx, f.api, f.groupMsg(owner, "Owner", "/spamfilter"))
	assert.Equal(t, "Spam filter is now on.", f.last(t))

	h.toggle(database.FlagCheckin)(ctx, f.api, f.groupMsg(owner, "Owner", "/checkin_toggle"))
	assert.Equal(t, "Check-in is now on.", f.last(t))
	h.toggle(database.FlagAutochat)(ctx, f.api, f.privateMsg(owner, "Owner", "/autochat"))
	assert.Equal(t, f.deps.Config.Messages.GroupOnly, f.last(t))
}

func TestBanAndUnblacklist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := moderationHandler{f.deps}
	m := f.deps.Config.Messages

	bobMsg := f.groupMsg(bob, "Bob", "hi, I'm bob")
	bobMsg.From.Username = "Bobby"
	f.handle(bobMsg)

	h.ban(ctx, f.api, f.groupMsg(owner, "Owner", "/ban @bobby"))
	assert.Equal(t, "User 43 is blacklisted until 2024-05-16 12:00:00.", f.last(t))
	_, blacklisted, err := f.deps.Moderation.CheckBlacklist(ctx, bob)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	h.ban(ctx, f.api, f.groupMsg(owner, "Owner", "/ban @nobody"))
	assert.Equal(t, m.BanUsage, f.last(t))

	f.api.On("RestrictChatMember", mock.Anything, mock.MatchedBy(func(p *bot.RestrictChatMemberParams) bool {
		return p.ChatID == group && p.UserID == bob && p.Permissions.CanSendMessages
	})).Return(true, nil).Times(2)

	reply := f.groupMsg(owner, "Owner", "/unblacklist")
	reply.ReplyToMessage = bobMsg
	h.unblacklist(ctx, f.api, reply)
	assert.Equal(t, "User 43 can talk again.", f.last(t))

	h.unblacklist(ctx, f.api, f.groupMsg(owner, "Owner", "/unblacklist 43"))
	assert.Equal(t, "User 43 was not blacklisted.", f.last(t))

	h.unblacklist(ctx, f.api, f.groupMsg(owner, "Owner", "/unblacklist"))
	assert.Equal(t, m.UnblacklistUsage, f.last(t))
	h.unblacklist(ctx, f.api, f.privateMsg(owner, "Owner", "/unblacklist 43"))
	assert.Equal(t, m.GroupOnly, f.last(t))

	f.api.AssertExpectations(t)
}

func TestStartAndHelp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	startHandler{f.deps}.handle(ctx, f.api, f.privateMsg(alice, "Alice", "/start"))
	assert.Equal(t, f.deps.Config.Messages.Welcome, f.last(t))

	helpHandler{f.deps}.handle(ctx, f.api, f.groupMsg(alice, "Alice", "/help"))
	assert.Contains(t, f.last(t), "/activity [days]")
}

func TestKnownGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := moderationHandler{f.deps}

	h.groups(ctx, f.api, f.privateMsg(owner, "Owner", "/groups"))
	assert.Equal(t, f.deps.Config.Messages.GroupsEmpty, f.last(t))

	f.handle(f.groupMsg(alice, "Alice", "hello"))
	_, err := f.store.DiscoverKnownChats(ctx)
	require.NoError(t, err)

	h.groups(ctx, f.api, f.privateMsg(owner, "Owner", "/groups"))
	assert.Equal(t, "Known groups:\nTest Group (-1001234)", f.last(t))
}
