// Package config holds the configuration shared by every bot built on the
// core: Telegram transport, logging, rate limiting, clock and state store.
// Values come from a YAML file and are overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// RunModeWebhook receives updates on an HTTP listener.
	RunModeWebhook = "webhook"
	// RunModeLongpoll pulls updates with getUpdates.
	RunModeLongpoll = "longpoll"
)

const (
	// StoreMemory keeps conversation state in process memory.
	StoreMemory = "memory"
	// StoreRedis keeps conversation state in redis.
	StoreRedis = "redis"
	// StorePostgres keeps conversation state in a postgres table.
	StorePostgres = "postgres"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

const (
	defaultLongPoll  = 10 * time.Second
	defaultKeyPrefix = "langbot:fsm:"
)

// TelegramConfig holds the bot token and how updates are received.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// 0 selects the default of 10 seconds.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// UsesWebhook reports whether updates arrive on the webhook listener.
func (t TelegramConfig) UsesWebhook() bool {
	return strings.EqualFold(strings.TrimSpace(t.RunMode), RunModeWebhook)
}

// LongPollTimeout is the getUpdates wait.
func (t TelegramConfig) LongPollTimeout() time.Duration {
	if t.LongPollTimeoutSeconds > 0 {
		return time.Duration(t.LongPollTimeoutSeconds) * time.Second
	}
	return defaultLongPoll
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// Addr is the host:port the webhook server binds.
func (w WebhookConfig) Addr() string {
	return net.JoinHostPort(w.Listen, strconv.Itoa(w.Port))
}

// LoggingConfig tunes the structured logger. BotFile and ErrorsFile are
// joined to Dir; ErrorsFile receives only WARN and above.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// debug and dev default to kv output, anything else to json.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig throttles each user to one update per interval. Update
// kinds listed in ExcludeUpdates (callback, message, inline_query) pass
// through unthrottled.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Interval is the minimum gap between two updates of a user; zero disables
// limiting.
func (r RateLimitConfig) Interval() time.Duration {
	if r.IntervalMS <= 0 {
		return 0
	}
	return time.Duration(r.IntervalMS) * time.Millisecond
}

// ClockConfig selects the zone every "now" in the bot is computed in.
type ClockConfig struct {
	Timezone string `yaml:"timezone" envconfig:"TZ_NAME"`
}

// Location resolves the configured zone. Normalize guarantees it loads.
func (c ClockConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RedisConfig holds connection settings for the redis state backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// StoreConfig selects and tunes the per-user conversation state backend.
type StoreConfig struct {
	Backend    string      `yaml:"backend" envconfig:"STORE_BACKEND"`
	TTLMinutes int         `yaml:"ttl_minutes" envconfig:"STORE_TTL_MINUTES"`
	KeyPrefix  string      `yaml:"key_prefix" envconfig:"STORE_KEY_PREFIX"`
	Redis      RedisConfig `yaml:"redis"`
}

// TTL returns the configured state lifetime; zero means entries never expire.
func (s StoreConfig) TTL() time.Duration {
	if s.TTLMinutes <= 0 {
		return 0
	}
	return time.Duration(s.TTLMinutes) * time.Minute
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Clock     ClockConfig     `yaml:"clock"`
	Store     StoreConfig     `yaml:"store"`
}

// LoadInto reads a YAML file into out, then overlays environment variables.
// A .env file in the working directory is loaded first when present.
func LoadInto(path string, out any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Load reads and normalizes a core-only configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
