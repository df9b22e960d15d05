package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/langbot/core/clock"
	coreconfig "github.com/m3rciful/langbot/core/config"
	coredatabase "github.com/m3rciful/langbot/core/database"
	"github.com/m3rciful/langbot/core/logger"
	"github.com/m3rciful/langbot/core/telegram/state"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
	// NewRedis builds the redis client for the redis state backend.
	NewRedis func(coreconfig.RedisConfig) redis.UniversalClient
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB    *sqlx.DB
	Redis redis.UniversalClient
	Store state.Store
	Clock clock.Clock
}

// Close releases connections opened by Run.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger and the conversation state backend. The database
// is connected and migrated only when the postgres backend is selected.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{Clock: clock.Real(cfg.Clock.Location())}

	switch cfg.Store.Backend {
	case coreconfig.StorePostgres:
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(opts.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		res.DB = db

		store, err := state.NewPostgresStore(db, cfg.Store.TTL())
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: state store: %w", err)
		}
		res.Store = store

	case coreconfig.StoreRedis:
		newRedis := opts.NewRedis
		if newRedis == nil {
			newRedis = defaultRedis
		}
		client := newRedis(cfg.Store.Redis)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("bootstrap: redis ping failed: %w", err)
		}
		res.Redis = client

		store, err := state.NewRedisStore(client, cfg.Store.KeyPrefix, cfg.Store.TTL())
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("bootstrap: state store: %w", err)
		}
		res.Store = store

	default:
		res.Store = state.NewMemoryStore(cfg.Store.TTL(), res.Clock)
	}

	logger.Info(context.Background(), "store", "store.ready",
		slog.String("status", "ok"),
		slog.String("backend", cfg.Store.Backend),
		slog.Duration("ttl", cfg.Store.TTL()),
	)
	return res, nil
}

func defaultRedis(cfg coreconfig.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
