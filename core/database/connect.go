package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/langbot/core/httpclient"
	"github.com/m3rciful/langbot/core/logger"
)

const (
	readyTimeout  = 30 * time.Second
	attemptWait   = 5 * time.Second
	retryInterval = 2 * time.Second
)

// Connect opens the pool and waits up to 30s for the server to accept
// connections, which covers a database container that starts alongside
// the bot.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	return connect(ctx, cfg)
}

func connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	attrs := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
	start := time.Now()
	for attempt := 1; ; attempt++ {
		db, err := dial(ctx, cfg)
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxConnections)
			db.SetMaxIdleConns(cfg.MaxConnections)
			logger.Info(ctx, "db", "db.connect", append(attrs,
				slog.String("status", "ok"),
				slog.Int("attempts", attempt),
				slog.Int("pool_open", cfg.MaxConnections),
				slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
			)...)
			return db, nil
		}
		logger.Debug(ctx, "db", "db.connect", append(attrs,
			slog.String("status", "retry"),
			slog.Int("attempts", attempt),
			slog.String("err", err.Error()),
		)...)
		if werr := httpclient.Sleep(ctx, retryInterval); werr != nil {
			logger.Error(ctx, "db", "db.connect", append(attrs,
				slog.String("status", "fail"),
				slog.Int("attempts", attempt),
				slog.String("err", err.Error()),
			)...)
			return nil, fmt.Errorf("database: connect: %w", err)
		}
	}
}

// dial makes one connection attempt and verifies it with a ping.
func dial(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptWait)
	defer cancel()
	return sqlx.ConnectContext(attemptCtx, "postgres", cfg.URL())
}
