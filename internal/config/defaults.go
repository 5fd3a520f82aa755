package config

import (
	"time"

	"github.com/itl33054/wwannengBOT/internal/moderation"
)

// Default values for configuration
const (
	DefaultLogLevel = "info"
	DefaultDBPath   = "data/bot.db"

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 0.8
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2 // seconds
	DefaultGeminiHistorySize = 20
	DefaultGeminiTimeout     = 2 * time.Minute
	DefaultGeminiInstruction = "You are a friendly group assistant. Answer briefly and in the language of the question."

	DefaultStatsTimezone      = "UTC"
	DefaultStatsQueryTimeout  = 10 * time.Second
	DefaultStatsMaxConcurrent = 4
	DefaultStatsLimit         = 10

	DefaultBurstSize         = 3
	DefaultBurstWindow       = 3 * time.Second
	DefaultBlacklistDuration = time.Hour
	DefaultBanDuration       = 24 * time.Hour
	DefaultMuteDuration      = time.Hour
	DefaultWarningExpiry     = 24 * time.Hour
	DefaultAdminCacheTTL     = 5 * time.Minute
	DefaultKeywordsFile      = "data/keywords.txt"

	DefaultAccrualPoints    = 1
	DefaultAccrualCooldown  = time.Second
	DefaultMinAccrualLength = 5
	DefaultCheckinReward    = 10

	DefaultFAQThreshold = 0.75
)

// DefaultExcludedUserIDs keeps the Telegram service account out of rankings.
var DefaultExcludedUserIDs = []int64{777000}

// DefaultTasks are the scheduled tasks and their cron expressions.
var DefaultTasks = map[string]TaskConfig{
	"blacklist_sweep": {Enabled: true, Schedule: "0 */5 * * * *"},
	"discover_chats":  {Enabled: true, Schedule: "0 30 * * * *"},
	"reload_keywords": {Enabled: true, Schedule: "0 */10 * * * *"},
	"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
}

// DefaultMessages are the built-in user-facing texts.
var DefaultMessages = MessagesConfig{
	Welcome: "Hi! I keep group statistics, moderate spam and run a points shop. Add me to a group and send /help to see what I can do.",
	Help: "Commands:\n" +
		"/checkin - daily check-in\n" +
		"/points - your points (per group in private chat)\n" +
		"/shop - list rewards\n" +
		"/redeem <id> - redeem a reward\n" +
		"/rank [local|global] [users|topics|groups] [today|week|month] - leaderboards\n" +
		"/mystats - your message statistics\n" +
		"/activity [days] - messages per day in this group\n" +
		"/ranking - hide or show yourself in leaderboards\n" +
		"/language <code> - set your language\n" +
		"Admins: /spamfilter /autochat /checkin_toggle /faq_add /faq_del /faq_list /unblacklist /shop_add /shop_active /group_language\n" +
		"Owners: /ban /groups",
	GroupWelcome:   "Thanks for adding me! Admins can use /checkin_toggle, /spamfilter and /autochat to configure me.",
	NotAuthorized:  "Only group admins can use this command.",
	GeneralError:   "Something went wrong. Please try again later.",
	GroupOnly:      "This command only works in groups.",
	UserNotFound:   "I don't know that user.",
	AIError:        "I couldn't come up with an answer right now.",
	FAQReplyPrefix: "Auto reply:",

	CheckinSuccess:  "{user} checked in: +{reward} points. Balance: {balance}.",
	CheckinAlready:  "{user}, you already checked in today. Balance: {balance}.",
	CheckinDisabled: "Check-in is not enabled in this group.",
	PointsBalance:   "{user}, you have {balance} points in this group.",
	PointsHeader:    "Your points per group:",
	PointsLine:      "{name}: {balance}",
	PointsNone:      "You have no points yet. Chat in a group to earn some.",

	ShopHeader:       "Shop (your points: {balance})",
	ShopItem:         "#{id} {name} - {cost} points, stock: {stock}\n{description}",
	ShopEmpty:        "The shop is empty.",
	ShopUnlimited:    "unlimited",
	ShopAddUsage:     "Usage: /shop_add name | description | cost | stock",
	ShopAdded:        "Added #{id} {name}.",
	ShopAddConflict:  "An item with that name already exists.",
	ShopActiveUsage:  "Usage: /shop_active <item id> <on|off>",
	ShopShown:        "#{id} {name} is listed in the shop again.",
	ShopHidden:       "#{id} {name} is hidden from the shop.",
	RedeemUsage:      "Usage: /redeem <item id>",
	RedeemSuccess:    "{user} redeemed {name}. Balance: {balance}.",
	RedeemNotFound:   "Item #{id} does not exist.",
	RedeemNoPoints:   "{name} costs {cost} points but you have {balance}.",
	RedeemOutOfStock: "{name} is out of stock.",

	RankUsage:    "Usage: /rank [local|global] [users|topics|groups] [today|week|month]",
	RankHeader:   "Top {type} ({scope}, {period}):",
	RankEmpty:    "No messages in this period yet.",
	RankLine:     "{rank} {name} - {count}",
	MyStats:      "{user}: {total} messages across all groups. Global rank: #{rank}.",
	MyStatsGroup: "{user}: {total} messages here since {first}.",
	MyStatsRank:  "{period}: {count} messages, rank #{rank}",
	MyStatsLine:  "{name}: {count}",
	ActivityHead: "Messages per day, last {days} days:",
	ActivityLine: "{day}: {count}",
	RankingOn:    "You are visible in leaderboards again.",
	RankingOff:   "You are now hidden from leaderboards.",

	LanguageUsage: "Usage: /language <code>, for example /language en",
	LanguageSet:   "Language set to {lang}.",
	FlagOn:        "{flag} is now on.",
	FlagOff:       "{flag} is now off.",

	FAQUsage:     "Usage: /faq_add question | answer",
	FAQAdded:     "FAQ added.",
	FAQExists:    "That question already exists.",
	FAQDelUsage:  "Usage: /faq_del <number from /faq_list>",
	FAQDeleted:   "Deleted: {question}",
	FAQNotFound:  "No FAQ with that number.",
	FAQListEmpty: "No FAQs yet.",
	FAQListTitle: "FAQs:",

	BanUsage:         "Usage: /ban <user_id|@username>",
	Banned:           "User {target} is blacklisted until {until}.",
	UnblacklistUsage: "Usage: /unblacklist <user_id|@username>, or reply to the user's message.",
	Unblacklisted:    "User {target} can talk again.",
	NotBlacklisted:   "User {target} was not blacklisted.",

	GroupsTitle: "Known groups:",
	GroupsLine:  "{title} ({id})",
	GroupsEmpty: "I haven't seen any groups yet.",
}

// Defaults returns a Config populated with every default value.
func Defaults() Config {
	tasks := make(map[string]TaskConfig, len(DefaultTasks))
	for name, task := range DefaultTasks {
		tasks[name] = task
	}
	return Config{
		Database: DatabaseConfig{Path: DefaultDBPath},
		Logger:   LoggerConfig{Level: DefaultLogLevel},
		Gemini: GeminiConfig{
			ModelName:         DefaultGeminiModel,
			Temperature:       DefaultGeminiTemperature,
			SystemInstruction: DefaultGeminiInstruction,
			MaxRetries:        DefaultGeminiMaxRetries,
			RetryDelaySeconds: DefaultGeminiRetryDelay,
			HistorySize:       DefaultGeminiHistorySize,
			Timeout:           DefaultGeminiTimeout,
		},
		Scheduler: SchedulerConfig{Tasks: tasks},
		Stats: StatsConfig{
			Timezone:        DefaultStatsTimezone,
			ExcludedUserIDs: append([]int64(nil), DefaultExcludedUserIDs...),
			QueryTimeout:    DefaultStatsQueryTimeout,
			MaxConcurrent:   DefaultStatsMaxConcurrent,
			DefaultLimit:    DefaultStatsLimit,
		},
		Moderation: ModerationConfig{
			BurstSize:         DefaultBurstSize,
			BurstWindow:       DefaultBurstWindow,
			BlacklistDuration: DefaultBlacklistDuration,
			BanDuration:       DefaultBanDuration,
			MuteDuration:      DefaultMuteDuration,
			WarningExpiry:     DefaultWarningExpiry,
			AdminCacheTTL:     DefaultAdminCacheTTL,
			KeywordsFile:      DefaultKeywordsFile,
			Notices:           moderation.DefaultNotices(),
		},
		Economy: EconomyConfig{
			AccrualPoints:    DefaultAccrualPoints,
			AccrualCooldown:  DefaultAccrualCooldown,
			MinAccrualLength: DefaultMinAccrualLength,
			CheckinReward:    DefaultCheckinReward,
		},
		FAQ:      FAQConfig{Threshold: DefaultFAQThreshold},
		Messages: DefaultMessages,
	}
}
