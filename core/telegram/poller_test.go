package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/langbot/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestNewPoller(t *testing.T) {
	cfg := &coreconfig.Config{}
	lp, ok := newPoller(cfg).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)

	cfg.Telegram.LongPollTimeoutSeconds = 25
	assert.Equal(t, 25*time.Second, newPoller(cfg).(*tele.LongPoller).Timeout)

	cfg.Telegram.RunMode = "Webhook"
	cfg.Webhook = coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example/hook"}
	wh, ok := newPoller(cfg).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://bot.example/hook", wh.Endpoint.PublicURL)
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		var out []string
		for _, mw := range mws {
			require.NotNil(t, mw.Use)
			out = append(out, mw.Name)
		}
		return out
	}
	assert.Equal(t, []string{"recover", "receipt", "counters"}, names(DefaultMiddlewares(nil)))

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 300}}
	assert.Equal(t, []string{"recover", "rate_limit", "receipt", "counters"}, names(DefaultMiddlewares(cfg)))
}

func TestRunTelegramNeedsConfig(t *testing.T) {
	assert.Error(t, RunTelegram(context.Background(), RunOptions{}))
}
