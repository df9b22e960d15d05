package telegram

import (
	coreconfig "github.com/m3rciful/langbot/core/config"
	"github.com/m3rciful/langbot/core/telegram/middleware"
)

// DefaultMiddlewares is the chain every update passes through: panic
// recovery, the per-user rate limit when one is configured, the receipt
// log line and the reply counters read by the handler summary.
func DefaultMiddlewares(cfg *coreconfig.Config) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.Recover}}
	if cfg != nil && cfg.RateLimit.Interval() > 0 {
		chain = append(chain, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimit(middleware.RateLimitOptions{
				Interval: cfg.RateLimit.Interval(),
				Exclude:  cfg.RateLimit.ExcludeUpdates,
			}),
		})
	}
	return append(chain,
		Middleware{Name: "receipt", Use: middleware.Receipt},
		Middleware{Name: "counters", Use: middleware.Counters},
	)
}
