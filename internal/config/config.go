// Package config loads the bot configuration from config.yaml, BOT_*
// environment variables and built-in defaults, and validates it.
package config

import (
	"slices"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/moderation"
)

// Config is the complete application configuration.
type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Stats      StatsConfig      `mapstructure:"stats"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Economy    EconomyConfig    `mapstructure:"economy"`
	FAQ        FAQConfig        `mapstructure:"faq"`
	Messages   MessagesConfig   `mapstructure:"messages"`
}

// TelegramConfig holds the bot credentials.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// OwnerIDs may run the global commands (/ban, /unblacklist, /shop_add)
	// anywhere and count as admins in every group.
	OwnerIDs []int64 `mapstructure:"owner_ids" validate:"dive,gt=0"`
	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LoggerConfig selects the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// GeminiConfig configures the language-model replies. An empty APIKey
// disables them.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	ModelName         string        `mapstructure:"model_name" validate:"required_with=APIKey"`
	Temperature       float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
	HistorySize       int           `mapstructure:"history_size" validate:"min=1,max=200"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"min=1s,max=10m"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig schedules one task with a cron expression (seconds field allowed).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// StatsConfig tunes the ranking engine.
type StatsConfig struct {
	Timezone        string        `mapstructure:"timezone" validate:"required"`
	ExcludedUserIDs []int64       `mapstructure:"excluded_user_ids"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" validate:"min=100ms,max=5m"`
	MaxConcurrent   int64         `mapstructure:"max_concurrent" validate:"min=1,max=64"`
	DefaultLimit    int           `mapstructure:"default_limit" validate:"min=1,max=100"`
}

// ModerationConfig tunes the moderation gate.
type ModerationConfig struct {
	BurstSize         int                `mapstructure:"burst_size" validate:"min=2"`
	BurstWindow       time.Duration      `mapstructure:"burst_window" validate:"min=100ms"`
	BlacklistDuration time.Duration      `mapstructure:"blacklist_duration" validate:"min=1s"`
	BanDuration       time.Duration      `mapstructure:"ban_duration" validate:"min=1s"`
	MuteDuration      time.Duration      `mapstructure:"mute_duration" validate:"min=30s"`
	WarningExpiry     time.Duration      `mapstructure:"warning_expiry" validate:"min=1m"`
	AdminCacheTTL     time.Duration      `mapstructure:"admin_cache_ttl" validate:"min=1s,max=1h"`
	KeywordsFile      string             `mapstructure:"keywords_file" validate:"required"`
	Notices           moderation.Notices `mapstructure:"notices"`
}

// EconomyConfig tunes the points economy.
type EconomyConfig struct {
	AccrualPoints    int64         `mapstructure:"accrual_points" validate:"min=1"`
	AccrualCooldown  time.Duration `mapstructure:"accrual_cooldown" validate:"min=0"`
	MinAccrualLength int           `mapstructure:"min_accrual_length" validate:"min=0"`
	CheckinReward    int64         `mapstructure:"checkin_reward" validate:"min=1"`
}

// FAQConfig tunes automatic FAQ answers.
type FAQConfig struct {
	Threshold float64 `mapstructure:"threshold" validate:"gt=0,lte=1"`
}

// MessagesConfig holds every user-facing text. Placeholders in braces are
// substituted by the handlers.
type MessagesConfig struct {
	Welcome        string `mapstructure:"welcome"`
	Help           string `mapstructure:"help"`
	GroupWelcome   string `mapstructure:"group_welcome"`
	NotAuthorized  string `mapstructure:"not_authorized"`
	GeneralError   string `mapstructure:"general_error"`
	GroupOnly      string `mapstructure:"group_only"`
	UserNotFound   string `mapstructure:"user_not_found"`
	AIError        string `mapstructure:"ai_error"`
	FAQReplyPrefix string `mapstructure:"faq_reply_prefix"`

	CheckinSuccess  string `mapstructure:"checkin_success"`
	CheckinAlready  string `mapstructure:"checkin_already"`
	CheckinDisabled string `mapstructure:"checkin_disabled"`
	PointsBalance   string `mapstructure:"points_balance"`
	PointsHeader    string `mapstructure:"points_header"`
	PointsLine      string `mapstructure:"points_line"`
	PointsNone      string `mapstructure:"points_none"`

	ShopHeader       string `mapstructure:"shop_header"`
	ShopItem         string `mapstructure:"shop_item"`
	ShopEmpty        string `mapstructure:"shop_empty"`
	ShopUnlimited    string `mapstructure:"shop_unlimited"`
	ShopAddUsage     string `mapstructure:"shop_add_usage"`
	ShopAdded        string `mapstructure:"shop_added"`
	ShopAddConflict  string `mapstructure:"shop_add_conflict"`
	ShopActiveUsage  string `mapstructure:"shop_active_usage"`
	ShopShown        string `mapstructure:"shop_shown"`
	ShopHidden       string `mapstructure:"shop_hidden"`
	RedeemUsage      string `mapstructure:"redeem_usage"`
	RedeemSuccess    string `mapstructure:"redeem_success"`
	RedeemNotFound   string `mapstructure:"redeem_not_found"`
	RedeemNoPoints   string `mapstructure:"redeem_insufficient_points"`
	RedeemOutOfStock string `mapstructure:"redeem_out_of_stock"`

	RankUsage    string `mapstructure:"rank_usage"`
	RankHeader   string `mapstructure:"rank_header"`
	RankEmpty    string `mapstructure:"rank_empty"`
	RankLine     string `mapstructure:"rank_line"`
	MyStats      string `mapstructure:"my_stats"`
	MyStatsGroup string `mapstructure:"my_stats_group"`
	MyStatsRank  string `mapstructure:"my_stats_rank"`
	MyStatsLine  string `mapstructure:"my_stats_line"`
	ActivityHead string `mapstructure:"activity_header"`
	ActivityLine string `mapstructure:"activity_line"`
	RankingOn    string `mapstructure:"ranking_on"`
	RankingOff   string `mapstructure:"ranking_off"`

	LanguageUsage string `mapstructure:"language_usage"`
	LanguageSet   string `mapstructure:"language_set"`
	FlagOn        string `mapstructure:"flag_on"`
	FlagOff       string `mapstructure:"flag_off"`

	FAQUsage     string `mapstructure:"faq_usage"`
	FAQAdded     string `mapstructure:"faq_added"`
	FAQExists    string `mapstructure:"faq_exists"`
	FAQDelUsage  string `mapstructure:"faq_del_usage"`
	FAQDeleted   string `mapstructure:"faq_deleted"`
	FAQNotFound  string `mapstructure:"faq_not_found"`
	FAQListEmpty string `mapstructure:"faq_list_empty"`
	FAQListTitle string `mapstructure:"faq_list_title"`

	BanUsage         string `mapstructure:"ban_usage"`
	Banned           string `mapstructure:"banned"`
	UnblacklistUsage string `mapstructure:"unblacklist_usage"`
	Unblacklisted    string `mapstructure:"unblacklisted"`
	NotBlacklisted   string `mapstructure:"not_blacklisted"`

	GroupsTitle string `mapstructure:"groups_title"`
	GroupsLine  string `mapstructure:"groups_line"`
	GroupsEmpty string `mapstructure:"groups_empty"`
}

// IsOwner reports whether userID is a configured owner.
func (c *Config) IsOwner(userID int64) bool {
	return slices.Contains(c.Telegram.OwnerIDs, userID)
}
