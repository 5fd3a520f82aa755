// Package moderation implements the per-message gate: the global blacklist,
// the burst detector and the keyword/link filter with warning escalation.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/itl33054/wwannengBOT/internal/clock"
	"github.com/itl33054/wwannengBOT/internal/database"
)

// Enforcer carries out moderation actions on the messaging platform.
type Enforcer interface {
	// CanRestrict reports whether the bot may mute members of chatID.
	CanRestrict(ctx context.Context, chatID int64) (bool, error)
	Mute(ctx context.Context, chatID, userID int64, until time.Time) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	// Notify posts text to chatID, replying to replyTo when it is non-zero.
	Notify(ctx context.Context, chatID int64, replyTo int, text string) error
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// GroupSettings reports whether a group has the keyword filter enabled.
type GroupSettings interface {
	SpamFilterEnabled(ctx context.Context, chatID int64) bool
}

// Event is one inbound message as seen by the gate.
type Event struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
	Private   bool
	// UserName is the display name used in notices.
	UserName string
	At       time.Time
}

// Reason explains a suppress verdict.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonBlacklisted Reason = "blacklisted"
	ReasonBurst       Reason = "burst"
	ReasonFiltered    Reason = "filtered"
)

// Verdict is the outcome of Inspect. A suppressed message must not reach
// any further handler.
type Verdict struct {
	Suppress bool
	Reason   Reason
}

var allow = Verdict{}

func suppress(r Reason) Verdict { return Verdict{Suppress: true, Reason: r} }

// Notices are the texts posted by the gate. {user} is replaced by the
// sender's display name and {remaining} by the remaining blacklist time.
type Notices struct {
	BlacklistedGroup   string `mapstructure:"blacklisted_group"`
	BlacklistedPrivate string `mapstructure:"blacklisted_private"`
	BurstMuted         string `mapstructure:"burst_muted"`
	BurstNeedAdmin     string `mapstructure:"burst_need_admin"`
	BurstRestricted    string `mapstructure:"burst_restricted"`
	BurstPrivate       string `mapstructure:"burst_private"`
	FirstWarning       string `mapstructure:"first_warning"`
	SecondWarning      string `mapstructure:"second_warning"`
	FilterMuted        string `mapstructure:"filter_muted"`
}

// DefaultNotices returns the built-in notice texts.
func DefaultNotices() Notices {
	return Notices{
		BlacklistedGroup:   "{user} is muted. Time remaining: {remaining}.",
		BlacklistedPrivate: "You are currently muted. Time remaining: {remaining}.",
		BurstMuted:         "{user} has been muted for 1 hour for flooding.",
		BurstNeedAdmin:     "Flooding detected from {user}. Please grant me admin rights so I can mute.",
		BurstRestricted:    "{user} has been temporarily restricted for flooding.",
		BurstPrivate:       "You have been muted for 1 hour for flooding.",
		FirstWarning:       "{user}, your message was removed. This is your 1st warning. Please follow the rules.",
		SecondWarning:      "{user}, you have violated the rules again. This is your 2nd warning. You will be muted on the next violation.",
		FilterMuted:        "{user}, this is your 3rd warning. You have been muted for 1 hour.",
	}
}

// Config tunes the gate.
type Config struct {
	BurstSize         int
	BurstWindow       time.Duration
	BlacklistDuration time.Duration
	MuteDuration      time.Duration
	WarningExpiry     time.Duration
	AdminCacheTTL     time.Duration
	Notices           Notices
}

// Service is the moderation state machine. It is safe for concurrent use.
type Service struct {
	store    database.ModerationStore
	settings GroupSettings
	filter   *KeywordFilter
	clock    clock.Clock
	cfg      Config

	burst  *BurstDetector
	notes  *notified
	admins *AdminCache
	logger *slog.Logger
}

// NewService creates a Service. A nil filter flags links only.
func NewService(store database.ModerationStore, settings GroupSettings, filter *KeywordFilter,
	clk clock.Clock, cfg Config, logger *slog.Logger,
) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if filter == nil {
		filter = NewKeywordFilter()
	}
	if cfg.BlacklistDuration <= 0 {
		cfg.BlacklistDuration = time.Hour
	}
	if cfg.MuteDuration <= 0 {
		cfg.MuteDuration = time.Hour
	}
	if cfg.WarningExpiry <= 0 {
		cfg.WarningExpiry = 24 * time.Hour
	}
	if cfg.Notices == (Notices{}) {
		cfg.Notices = DefaultNotices()
	}

	admins, err := NewAdminCache(cfg.AdminCacheTTL)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:    store,
		settings: settings,
		filter:   filter,
		clock:    clk,
		cfg:      cfg,
		burst:    NewBurstDetector(cfg.BurstSize, cfg.BurstWindow),
		notes:    newNotified(),
		admins:   admins,
		logger:   logger.With("component", "moderation"),
	}, nil
}

// Close releases the admin cache.
func (s *Service) Close() {
	s.admins.Close()
}

// Keywords returns the keyword filter, for reloading.
func (s *Service) Keywords() *KeywordFilter {
	return s.filter
}

// CheckBlacklist returns the expiry of an active blacklist entry. An expired
// entry is deleted and the user's notification flags cleared.
func (s *Service) CheckBlacklist(ctx context.Context, userID int64) (time.Time, bool, error) {
	entry, err := s.store.GetBlacklistEntry(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	expires := entry.Expiration()
	if !expires.Before(s.clock.Now()) {
		return expires, true, nil
	}

	if _, err := s.store.DeleteBlacklist(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete expired blacklist entry", "user_id", userID, "error", err)
	}
	s.notes.clearUser(userID)
	s.logger.InfoContext(ctx, "Blacklist entry expired", "user_id", userID)
	return time.Time{}, false, nil
}

// AddBlacklist blacklists userID for d from now and returns the expiry.
func (s *Service) AddBlacklist(ctx context.Context, userID int64, d time.Duration) (time.Time, error) {
	// Stored with second precision; truncate so in-memory flags compare equal.
	expires := time.Unix(s.clock.Now().Add(d).Unix(), 0).UTC()
	if err := s.store.UpsertBlacklist(ctx, userID, expires); err != nil {
		return time.Time{}, err
	}
	s.logger.InfoContext(ctx, "User blacklisted", "user_id", userID, "until", expires)
	return expires, nil
}

// RemoveBlacklist lifts a blacklist and reports whether one existed.
func (s *Service) RemoveBlacklist(ctx context.Context, userID int64) (bool, error) {
	removed, err := s.store.DeleteBlacklist(ctx, userID)
	if err != nil {
		return false, err
	}
	s.notes.clearUser(userID)
	s.burst.Reset(userID)
	return removed, nil
}

// SweepBlacklist deletes every expired entry.
func (s *Service) SweepBlacklist(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	n, err := s.store.DeleteExpiredBlacklist(ctx, now)
	if err != nil {
		return 0, err
	}
	s.notes.prune(now)
	return n, nil
}

// RecordViolation escalates the warning counter of a user in a chat and
// returns the new level.
func (s *Service) RecordViolation(ctx context.Context, chatID, userID int64) (int, error) {
	return s.store.BumpWarning(ctx, chatID, userID, s.clock.Now(), s.cfg.WarningExpiry)
}

// IsAdmin reports whether the sender administers the chat. Lookup failures
// count as not admin.
func (s *Service) IsAdmin(ctx context.Context, enf Enforcer, chatID, userID int64, private bool) bool {
	ok, err := s.admins.IsAdmin(ctx, chatID, userID, private, enf.IsChatAdmin)
	if err != nil {
		s.logger.WarnContext(ctx, "Admin lookup failed", "chat_id", chatID, "user_id", userID, "error", err)
		return false
	}
	return ok
}

// Inspect runs the gate for ev: blacklist, then burst, then the keyword filter.
func (s *Service) Inspect(ctx context.Context, enf Enforcer, ev Event) Verdict {
	if ev.At.IsZero() {
		ev.At = s.clock.Now()
	}

	expires, blacklisted, err := s.CheckBlacklist(ctx, ev.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Blacklist check failed", "user_id", ev.UserID, "error", err)
	}
	if blacklisted {
		s.notifyBlacklisted(ctx, enf, ev, expires)
		return suppress(ReasonBlacklisted)
	}

	// Group admins are exempt; private floods are always handled.
	if s.burst.Observe(ev.UserID, ev.At) && (ev.Private || !s.IsAdmin(ctx, enf, ev.ChatID, ev.UserID, false)) {
		s.handleBurst(ctx, enf, ev)
		return suppress(ReasonBurst)
	}

	if s.shouldFilter(ctx, enf, ev) {
		s.handleViolation(ctx, enf, ev)
		return suppress(ReasonFiltered)
	}
	return allow
}

func (s *Service) notifyBlacklisted(ctx context.Context, enf Enforcer, ev Event, expires time.Time) {
	remaining := formatRemaining(expires.Sub(s.clock.Now()))
	if ev.Private {
		s.notify(ctx, enf, ev, s.cfg.Notices.BlacklistedPrivate, remaining)
		return
	}
	if s.notes.mark(ev.ChatID, ev.UserID, expires) {
		s.notify(ctx, enf, ev, s.cfg.Notices.BlacklistedGroup, remaining)
	}
}

func (s *Service) handleBurst(ctx context.Context, enf Enforcer, ev Event) {
	s.logger.InfoContext(ctx, "Message burst detected", "chat_id", ev.ChatID, "user_id", ev.UserID)

	expires, err := s.AddBlacklist(ctx, ev.UserID, s.cfg.BlacklistDuration)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to blacklist flooding user", "user_id", ev.UserID, "error", err)
		expires = time.Unix(s.clock.Now().Add(s.cfg.BlacklistDuration).Unix(), 0).UTC()
	}

	if ev.Private {
		s.notify(ctx, enf, ev, s.cfg.Notices.BurstPrivate, "")
		return
	}
	// Suppress the follow-up blacklist notice for this chat.
	s.notes.mark(ev.ChatID, ev.UserID, expires)

	canRestrict, err := enf.CanRestrict(ctx, ev.ChatID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read bot permissions", "chat_id", ev.ChatID, "error", err)
		s.notify(ctx, enf, ev, s.cfg.Notices.BurstRestricted, "")
		return
	}
	if !canRestrict {
		s.notify(ctx, enf, ev, s.cfg.Notices.BurstNeedAdmin, "")
		return
	}
	if err := enf.Mute(ctx, ev.ChatID, ev.UserID, s.clock.Now().Add(s.cfg.MuteDuration)); err != nil {
		s.logger.WarnContext(ctx, "Failed to mute flooding user", "chat_id", ev.ChatID, "user_id", ev.UserID, "error", err)
		s.notify(ctx, enf, ev, s.cfg.Notices.BurstRestricted, "")
		return
	}
	s.notify(ctx, enf, ev, s.cfg.Notices.BurstMuted, "")
}

func (s *Service) shouldFilter(ctx context.Context, enf Enforcer, ev Event) bool {
	if ev.Private || ev.Text == "" {
		return false
	}
	if s.settings != nil && !s.settings.SpamFilterEnabled(ctx, ev.ChatID) {
		return false
	}
	if !s.filter.Flagged(ev.Text) {
		return false
	}
	return !s.IsAdmin(ctx, enf, ev.ChatID, ev.UserID, false)
}

func (s *Service) handleViolation(ctx context.Context, enf Enforcer, ev Event) {
	if err := enf.DeleteMessage(ctx, ev.ChatID, ev.MessageID); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete flagged message", "chat_id", ev.ChatID, "message_id", ev.MessageID, "error", err)
	} else {
		s.logger.InfoContext(ctx, "Deleted flagged message", "chat_id", ev.ChatID, "user_id", ev.UserID)
	}

	level, err := s.RecordViolation(ctx, ev.ChatID, ev.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to record violation", "chat_id", ev.ChatID, "user_id", ev.UserID, "error", err)
		return
	}

	switch level {
	case 1:
		s.notify(ctx, enf, ev, s.cfg.Notices.FirstWarning, "")
	case 2:
		s.notify(ctx, enf, ev, s.cfg.Notices.SecondWarning, "")
	default:
		s.muteForViolation(ctx, enf, ev)
	}
}

// muteForViolation blacklists and notifies only when the mute succeeded.
func (s *Service) muteForViolation(ctx context.Context, enf Enforcer, ev Event) {
	canRestrict, err := enf.CanRestrict(ctx, ev.ChatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read bot permissions", "chat_id", ev.ChatID, "error", err)
		return
	}
	if !canRestrict {
		s.logger.WarnContext(ctx, "Cannot mute repeat offender without restrict permission",
			"chat_id", ev.ChatID, "user_id", ev.UserID)
		return
	}

	until := s.clock.Now().Add(s.cfg.MuteDuration)
	if err := enf.Mute(ctx, ev.ChatID, ev.UserID, until); err != nil {
		s.logger.ErrorContext(ctx, "Failed to mute repeat offender", "chat_id", ev.ChatID, "user_id", ev.UserID, "error", err)
		return
	}
	if _, err := s.AddBlacklist(ctx, ev.UserID, s.cfg.MuteDuration); err != nil {
		s.logger.ErrorContext(ctx, "Failed to blacklist repeat offender", "user_id", ev.UserID, "error", err)
	}
	s.notify(ctx, enf, ev, s.cfg.Notices.FilterMuted, "")
}

func (s *Service) notify(ctx context.Context, enf Enforcer, ev Event, template, remaining string) {
	if template == "" {
		return
	}
	text := strings.NewReplacer("{user}", ev.UserName, "{remaining}", remaining).Replace(template)
	replyTo := ev.MessageID
	if err := enf.Notify(ctx, ev.ChatID, replyTo, text); err != nil {
		s.logger.WarnContext(ctx, "Failed to send moderation notice", "chat_id", ev.ChatID, "error", err)
	}
}

// formatRemaining renders d as hours, minutes and seconds, largest unit first.
func formatRemaining(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, sec)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}
