package telegram

import (
	coreconfig "github.com/m3rciful/langbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// newPoller picks a webhook listener or long polling from the run mode.
func newPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.UsesWebhook() {
		return &tele.Webhook{
			Listen:   cfg.Webhook.Addr(),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: cfg.Telegram.LongPollTimeout()}
}
