package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: "1:x"
  run_mode: polling
rate_limit:
  interval_ms: 300
  exclude_updates: [" Callback ", ""]
`), 0o600))
	t.Setenv("STORE_TTL_MINUTES", "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.False(t, cfg.Telegram.UsesWebhook())
	assert.Equal(t, 10*time.Second, cfg.Telegram.LongPollTimeout())
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
	assert.Equal(t, 300*time.Millisecond, cfg.RateLimit.Interval())
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Store.TTL())
	assert.Equal(t, "langbot:fsm:", cfg.Store.KeyPrefix)
	assert.Equal(t, time.UTC, cfg.Clock.Location())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNormalizeRejects(t *testing.T) {
	valid := func() Config {
		return Config{Telegram: TelegramConfig{Token: "1:x"}}
	}
	cases := map[string]func(*Config){
		"no token":        func(c *Config) { c.Telegram.Token = " " },
		"bad run mode":    func(c *Config) { c.Telegram.RunMode = "push" },
		"webhook no url":  func(c *Config) { c.Telegram.RunMode = RunModeWebhook },
		"negative poll":   func(c *Config) { c.Telegram.LongPollTimeoutSeconds = -1 },
		"bad exclusion":   func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"poll"} },
		"bad timezone":    func(c *Config) { c.Clock.Timezone = "Mars/Olympus" },
		"redis no addr":   func(c *Config) { c.Store.Backend = StoreRedis },
		"unknown backend": func(c *Config) { c.Store.Backend = "etcd" },
		"negative ttl":    func(c *Config) { c.Store.TTLMinutes = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, Normalize(&cfg))
		})
	}
	assert.Error(t, Normalize(nil))
}

func TestWebhookConfig(t *testing.T) {
	cfg := Config{
		Telegram: TelegramConfig{Token: "1:x", RunMode: " WEBHOOK "},
		Webhook:  WebhookConfig{URL: "https://bot.example/hook", Listen: "::", Port: 8443},
	}
	require.NoError(t, Normalize(&cfg))
	assert.True(t, cfg.Telegram.UsesWebhook())
	assert.Equal(t, "[::]:8443", cfg.Webhook.Addr())
}
