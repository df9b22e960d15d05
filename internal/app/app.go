package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/langbot/core/bootstrap"
	"github.com/m3rciful/langbot/core/logger"
	tg "github.com/m3rciful/langbot/core/telegram"
	"github.com/m3rciful/langbot/core/telegram/router"
	"github.com/m3rciful/langbot/core/telegram/state"
	"github.com/m3rciful/langbot/internal/approval"
	"github.com/m3rciful/langbot/internal/bot"
	"github.com/m3rciful/langbot/internal/flow"
	"github.com/m3rciful/langbot/internal/gateway"
	"github.com/m3rciful/langbot/internal/session"
)

// minPurgeInterval keeps short ttls from hammering the database.
const minPurgeInterval = time.Minute

// purger is implemented by stores that need stale entries removed
// explicitly.
type purger interface {
	Purge(ctx context.Context) (int64, error)
}

// App is the assembled bot: infrastructure, services and the handler
// registry.
type App struct {
	cfg   *Config
	infra *bootstrap.Result

	gateway  *gateway.Client
	bot      *bot.Bot
	registry *tg.Registry
	states   *state.Dispatcher
	locks    *state.Locks

	stopPurge context.CancelFunc
	purgeWG   sync.WaitGroup
}

// New runs the bootstrap pipeline for cfg and assembles the App on top of
// it.
func New(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	a, err := Assemble(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

// Assemble wires the services and handlers on already initialized
// infrastructure.
func Assemble(cfg *Config, infra *bootstrap.Result) (*App, error) {
	if cfg == nil || infra == nil || infra.Store == nil {
		return nil, errors.New("app: config and state store are required")
	}
	gw, err := gateway.New(cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("app: gateway: %w", err)
	}
	cache := session.New(gw, infra.Store, infra.Clock)
	machine, err := flow.NewMachine(infra.Store, flow.Table)
	if err != nil {
		return nil, fmt.Errorf("app: flow: %w", err)
	}
	b, err := bot.New(bot.Deps{
		Gateway:      gw,
		Cache:        cache,
		Approval:     approval.New(gw, infra.Clock),
		Registration: flow.NewRegistration(machine, infra.Store),
		Edit:         flow.NewEdit(machine, cache, gw, gw),
		ImagePath:    cfg.Bot.ImagePath,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}
	states := state.NewDispatcher(infra.Store)
	b.States(states)

	return &App{
		cfg:      cfg,
		infra:    infra,
		gateway:  gw,
		bot:      b,
		registry: reg,
		states:   states,
		locks:    state.NewLocks(),
	}, nil
}

// TelegramRunOptions implements the runner contract of core/cmd.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.Routes(a.registry, router.Options{
		AdminID:   core.Telegram.AdminID,
		Steps:     a.states,
		Fallbacks: a.bot,
	})

	mws := tg.DefaultMiddlewares(core)
	mws = append(mws, tg.Middleware{Name: "serialize", Use: state.Serialize(a.locks)})

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: mws,
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ tg.Runtime) error {
	p, ok := a.infra.Store.(purger)
	ttl := a.cfg.Store.TTL()
	if !ok || ttl <= 0 {
		return nil
	}
	interval := ttl / 2
	if interval < minPurgeInterval {
		interval = minPurgeInterval
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	a.stopPurge = cancel
	a.purgeWG.Add(1)
	go func() {
		defer a.purgeWG.Done()
		purgeLoop(loopCtx, p, interval)
	}()
	logger.Info(ctx, "store", "store.purge.start",
		slog.String("status", "ok"),
		slog.Duration("interval", interval),
	)
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	if a.stopPurge != nil {
		a.stopPurge()
		a.purgeWG.Wait()
	}
	if open := a.gateway.OpenSessions(); open > 0 {
		logger.Warn(ctx, "gateway", "gateway.sessions.open",
			slog.String("status", "skip"),
			slog.Int64("open", open),
		)
	}
	return a.infra.Close()
}

// purgeLoop removes stale conversation state every interval until ctx ends.
func purgeLoop(ctx context.Context, p purger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			n, err := p.Purge(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn(ctx, "store", "store.purge",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				continue
			}
			logger.Debug(ctx, "store", "store.purge",
				slog.String("status", "ok"),
				slog.Int64("removed", n),
				slog.Duration("duration", logger.Took(start)),
			)
		}
	}
}
