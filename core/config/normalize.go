package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Normalize validates cfg and fills defaults, section by section. The first
// invalid section stops it.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	steps := []func() error{
		func() error { return cfg.Telegram.normalize(cfg.Webhook) },
		cfg.RateLimit.normalize,
		cfg.Clock.normalize,
		cfg.Store.normalize,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (t *TelegramConfig) normalize(w WebhookConfig) error {
	if strings.TrimSpace(t.Token) == "" {
		return errors.New("telegram.token is required")
	}
	mode := lower(t.RunMode)
	switch mode {
	case "", "polling", RunModeLongpoll:
		if t.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
		mode = RunModeLongpoll
	case RunModeWebhook:
		switch {
		case strings.TrimSpace(w.URL) == "":
			return errors.New("webhook.url is required in webhook mode")
		case strings.TrimSpace(w.Listen) == "":
			return errors.New("webhook.listen is required in webhook mode")
		case w.Port <= 0:
			return errors.New("webhook.port must be > 0 in webhook mode")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode)
	}
	t.RunMode = mode
	return nil
}

func (r *RateLimitConfig) normalize() error {
	if r.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	kinds := []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}
	kept := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		kind := lower(v)
		if kind == "" {
			continue
		}
		if !slices.Contains(kinds, kind) {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s", v, strings.Join(kinds, ", "))
		}
		kept = append(kept, kind)
	}
	r.ExcludeUpdates = kept
	return nil
}

func (c *ClockConfig) normalize() error {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid clock.timezone %q: %w", c.Timezone, err)
	}
	c.Timezone = tz
	return nil
}

func (s *StoreConfig) normalize() error {
	backend := lower(s.Backend)
	switch backend {
	case "":
		backend = StoreMemory
	case StoreMemory, StorePostgres:
	case StoreRedis:
		if strings.TrimSpace(s.Redis.Addr) == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: memory, redis, postgres", s.Backend)
	}
	if s.TTLMinutes < 0 {
		return errors.New("store.ttl_minutes must be >= 0")
	}
	s.Backend = backend
	if strings.TrimSpace(s.KeyPrefix) == "" {
		s.KeyPrefix = defaultKeyPrefix
	}
	return nil
}
