package stats

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidPeriod is returned for a period other than today, week or month.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrInvalidQuery is returned for an unknown scope or rank type, or a
	// combination that is not supported.
	ErrInvalidQuery = errors.New("invalid ranking query")
)

// Period is a ranking time window ending now.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts today, week and month, case-insensitively.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodToday, PeriodWeek, PeriodMonth:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// Start returns the inclusive start of the window containing now, computed in loc.
// Weeks start on Monday.
func (p Period) Start(now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch p {
	case PeriodToday:
		return midnight, nil
	case PeriodWeek:
		sinceMonday := (int(local.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -sinceMonday), nil
	case PeriodMonth:
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
}

// Scope selects a single chat or all chats.
type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeGlobal Scope = "global"
)

// ParseScope accepts local and global.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScopeLocal, ScopeGlobal:
		return sc, nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidQuery, s)
}

// RankType selects what a leaderboard counts.
type RankType string

const (
	RankUsers  RankType = "users"
	RankTopics RankType = "topics"
	RankGroups RankType = "groups"
)

// ParseRankType accepts users, topics and groups.
func ParseRankType(s string) (RankType, error) {
	switch rt := RankType(strings.ToLower(strings.TrimSpace(s))); rt {
	case RankUsers, RankTopics, RankGroups:
		return rt, nil
	}
	return "", fmt.Errorf("%w: unknown rank type %q", ErrInvalidQuery, s)
}
