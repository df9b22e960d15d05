package gateway

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every gateway call.
const DefaultTimeout = 10 * time.Second

// Config describes where the backend gateway lives.
type Config struct {
	// URL overrides Scheme/Host/Port when set.
	URL            string `yaml:"url" envconfig:"GATEWAY_URL"`
	Scheme         string `yaml:"scheme" envconfig:"GATEWAY_SCHEME"`
	Host           string `yaml:"host" envconfig:"GATEWAY_HOST"`
	Port           int    `yaml:"port" envconfig:"GATEWAY_PORT"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"GATEWAY_TIMEOUT_SECONDS"`
	Retries        int    `yaml:"retries" envconfig:"GATEWAY_RETRIES"`
}

// Normalize validates the configuration and fills defaults.
func (c *Config) Normalize() error {
	if c == nil {
		return fmt.Errorf("gateway: nil config")
	}
	if strings.TrimSpace(c.URL) == "" {
		if strings.TrimSpace(c.Host) == "" {
			return fmt.Errorf("gateway.host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("gateway.port must be in 1..65535")
		}
		scheme := strings.ToLower(strings.TrimSpace(c.Scheme))
		if scheme == "" {
			scheme = "http"
		}
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("invalid gateway.scheme %q; allowed: http, https", c.Scheme)
		}
		c.Scheme = scheme
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("gateway.timeout_seconds must be >= 0")
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = int(DefaultTimeout / time.Second)
	}
	if c.Retries < 0 {
		return fmt.Errorf("gateway.retries must be >= 0")
	}
	return nil
}

// Timeout returns the per-call timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BaseURL resolves the gateway root URL.
func (c Config) BaseURL() (*url.URL, error) {
	raw := strings.TrimSpace(c.URL)
	if raw == "" {
		scheme := c.Scheme
		if scheme == "" {
			scheme = "http"
		}
		raw = scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: url %q must include scheme and host", raw)
	}
	return u, nil
}
