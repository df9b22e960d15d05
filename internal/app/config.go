// Package app loads the bot configuration and wires the core runtime to the
// language club handlers.
package app

import (
	"fmt"
	"os"
	"strings"

	coreconfig "github.com/m3rciful/langbot/core/config"
	coredatabase "github.com/m3rciful/langbot/core/database"
	"github.com/m3rciful/langbot/internal/gateway"
)

// BotConfig holds presentation settings of the bot.
type BotConfig struct {
	// ImagePath is sent as the photo of the main menu when set.
	ImagePath string `yaml:"image_path" envconfig:"BOT_IMAGE_PATH"`
}

// Config is the full application configuration: the core sections plus the
// database, gateway and bot sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Gateway  gateway.Config      `yaml:"gateway"`
	Bot      BotConfig           `yaml:"bot"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Gateway.Normalize(); err != nil {
		return err
	}
	if cfg.Store.Backend == coreconfig.StorePostgres {
		if err := cfg.Database.Normalize(); err != nil {
			return fmt.Errorf("store.backend 'postgres': %w", err)
		}
	}
	cfg.Bot.ImagePath = strings.TrimSpace(cfg.Bot.ImagePath)
	if cfg.Bot.ImagePath != "" {
		if _, err := os.Stat(cfg.Bot.ImagePath); err != nil {
			return fmt.Errorf("bot.image_path: %w", err)
		}
	}
	return nil
}
