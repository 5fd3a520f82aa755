package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  owner_ids: [42]
stats:
  timezone: Asia/Shanghai
  excluded_user_ids: [777000, 1087968824]
moderation:
  burst_window: 5s
  notices:
    burst_muted: "{user} muted"
scheduler:
  tasks:
    sql_maintenance:
      enabled: false
messages:
  checkin_success: "ok {balance}"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.True(t, cfg.IsOwner(42))
	assert.False(t, cfg.IsOwner(43))
	assert.Equal(t, "Asia/Shanghai", cfg.Location().String())
	assert.Equal(t, []int64{777000, 1087968824}, cfg.Stats.ExcludedUserIDs)
	assert.Equal(t, 5*time.Second, cfg.Moderation.BurstWindow)
	assert.Equal(t, "{user} muted", cfg.Moderation.Notices.BurstMuted)
	assert.Equal(t, "ok {balance}", cfg.Messages.CheckinSuccess)

	// Untouched values keep their defaults.
	assert.Equal(t, DefaultBurstSize, cfg.Moderation.BurstSize)
	assert.Equal(t, DefaultMessages.Help, cfg.Messages.Help)
	assert.Equal(t, DefaultTasks["blacklist_sweep"], cfg.Scheduler.Tasks["blacklist_sweep"])
	assert.False(t, cfg.Scheduler.Tasks["sql_maintenance"].Enabled)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "env-token")
	t.Setenv("BOT_DATABASE_PATH", "/tmp/env.db")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, DefaultStatsTimezone, cfg.Stats.Timezone)
	assert.Equal(t, DefaultExcludedUserIDs, cfg.Stats.ExcludedUserIDs)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing token", "logger:\n  level: info\n"},
		{"bad log level", "telegram:\n  token: x\nlogger:\n  level: loud\n"},
		{"bad timezone", "telegram:\n  token: x\nstats:\n  timezone: Mars/Olympus\n"},
		{"threshold out of range", "telegram:\n  token: x\nfaq:\n  threshold: 1.5\n"},
		{"enabled task without schedule", "telegram:\n  token: x\nscheduler:\n  tasks:\n    custom:\n      enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}
