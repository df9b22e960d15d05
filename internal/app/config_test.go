package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/langbot/core/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
telegram:
  token: "123:abc"
  admin_id: 42
gateway:
  host: backend
  port: 8000
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.CoreConfig().Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, coreconfig.StoreMemory, cfg.Store.Backend)
	assert.Equal(t, "UTC", cfg.Clock.Timezone)
	assert.Equal(t, "http", cfg.Gateway.Scheme)
	assert.Equal(t, 10, cfg.Gateway.TimeoutSeconds)

	base, err := cfg.Gateway.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8000", base.String())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("GATEWAY_HOST", "gateway.internal")
	t.Setenv("TZ_NAME", "Europe/Moscow")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "gateway.internal", cfg.Gateway.Host)
	assert.Equal(t, "Europe/Moscow", cfg.Clock.Timezone)
}

func TestNormalizePostgresNeedsDatabase(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	cfg.Store.Backend = coreconfig.StorePostgres
	assert.ErrorContains(t, Normalize(cfg), "database.host")

	cfg.Database.Host = "db"
	cfg.Database.Name = "langbot"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]string{
		"no gateway": `
telegram:
  token: "123:abc"
`,
		"bad timezone": minimalYAML + `
clock:
  timezone: Mars/Olympus
`,
		"missing image": minimalYAML + `
bot:
  image_path: /nonexistent/menu.png
`,
		"no token": `
gateway:
  url: http://backend:8000
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestCoreConfigNil(t *testing.T) {
	var cfg *Config
	assert.Nil(t, cfg.CoreConfig())
}
