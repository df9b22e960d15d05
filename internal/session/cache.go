// Package session keeps the per-user session snapshot in the conversation
// store and fills it from the gateway on demand.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/langbot/core/clock"
	"github.com/m3rciful/langbot/core/logger"
	"github.com/m3rciful/langbot/core/telegram/state"
	"github.com/m3rciful/langbot/internal/gateway"
)

// ErrNotRegistered is returned by Get when the gateway has no user record.
var ErrNotRegistered = errors.New("session: user not registered")

// Kind tells how a Load was served.
type Kind int

const (
	// KindCached means the stored snapshot was complete; no I/O happened.
	KindCached Kind = iota + 1
	// KindHydrated means the snapshot was rebuilt from the gateway.
	KindHydrated
	// KindNotFound means the gateway has no user record.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindCached:
		return "cached"
	case KindHydrated:
		return "hydrated"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is the outcome of Load. Record is zero unless Found.
type Result struct {
	Kind   Kind
	Record Record
}

// Found reports whether Result carries a record.
func (r Result) Found() bool {
	return r.Kind == KindCached || r.Kind == KindHydrated
}

type loadOptions struct {
	renew bool
}

// LoadOption tweaks a single Load call.
type LoadOption func(*loadOptions)

// WithRenew drops the stored snapshot before loading so it is rebuilt from
// the gateway.
func WithRenew() LoadOption {
	return func(o *loadOptions) { o.renew = true }
}

// Cache serves session snapshots out of a state.Store and hydrates them
// from the gateway when incomplete.
type Cache struct {
	gw    *gateway.Client
	store state.Store
	clock clock.Clock
}

// New wires a Cache. A nil clock means UTC wall time.
func New(gw *gateway.Client, store state.Store, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.Real(time.UTC)
	}
	return &Cache{gw: gw, store: store, clock: clk}
}

// Store exposes the backing conversation store.
func (c *Cache) Store() state.Store { return c.store }

// Load returns the user's session snapshot. A complete stored snapshot is
// returned without I/O; otherwise it is rebuilt from three gateway reads and
// merged into the store. Nothing is written when hydration fails.
func (c *Cache) Load(ctx context.Context, userID int64, opts ...LoadOption) (Result, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	cacheAttr := "miss"
	if o.renew {
		cacheAttr = "refresh"
		if err := c.store.Clear(ctx, userID); err != nil {
			return Result{}, fmt.Errorf("session: clear: %w", err)
		}
	}

	data, err := c.store.Data(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("session: read: %w", err)
	}
	if Complete(data) {
		logger.Debug(ctx, "session", "session.load",
			slog.Int64("user_id", userID),
			slog.String("cache", "hit"),
		)
		return Result{Kind: KindCached, Record: FromData(data)}, nil
	}

	start := time.Now()
	merged, found, err := c.hydrate(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "session", "session.hydrate",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("cache", cacheAttr),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return Result{}, fmt.Errorf("session: hydrate: %w", err)
	}
	if !found {
		logger.Info(ctx, "session", "session.hydrate",
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.String("cache", cacheAttr),
			slog.String("outcome", "not_found"),
		)
		return Result{Kind: KindNotFound}, nil
	}

	if err := c.store.Update(ctx, userID, merged); err != nil {
		return Result{}, fmt.Errorf("session: write: %w", err)
	}
	for k, v := range merged {
		data[k] = v
	}
	logger.Debug(ctx, "session", "session.hydrate",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("cache", cacheAttr),
		slog.Duration("duration", logger.Took(start)),
	)
	return Result{Kind: KindHydrated, Record: FromData(data)}, nil
}

// Get is Load for callers that treat an unknown user as an error.
func (c *Cache) Get(ctx context.Context, userID int64, opts ...LoadOption) (Record, error) {
	res, err := c.Load(ctx, userID, opts...)
	if err != nil {
		return Record{}, err
	}
	if !res.Found() {
		return Record{}, ErrNotRegistered
	}
	return res.Record, nil
}

// Update merges patch into the user's stored snapshot.
func (c *Cache) Update(ctx context.Context, userID int64, patch map[string]any) error {
	if err := c.store.Update(ctx, userID, patch); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}

// Forget drops the user's stored snapshot and dialog state.
func (c *Cache) Forget(ctx context.Context, userID int64) error {
	if err := c.store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

type upstream struct {
	user    *gateway.User
	payment *gateway.Payment
	profile *gateway.Profile
}

func (c *Cache) fetch(ctx context.Context, userID int64) (upstream, error) {
	var up upstream
	err := c.gw.Do(ctx, func(s *gateway.Session) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			u, err := s.User(gctx, userID)
			up.user = u
			return err
		})
		g.Go(func() error {
			p, err := s.Payment(gctx, userID)
			up.payment = p
			return err
		})
		g.Go(func() error {
			p, err := s.Profile(gctx, userID)
			up.profile = p
			return err
		})
		return g.Wait()
	})
	return up, err
}

func (c *Cache) hydrate(ctx context.Context, userID int64) (map[string]any, bool, error) {
	up, err := c.fetch(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if up.user == nil {
		return nil, false, nil
	}
	rec := c.merge(ctx, userID, up)
	return rec.Data(), true, nil
}

func (c *Cache) merge(ctx context.Context, userID int64, up upstream) Record {
	u := up.user
	rec := Record{
		UserID:    userID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LangCode:  u.LangCode,
		CameFrom:  u.CameFrom,
		Language:  u.Language,
		Fluency:   u.Fluency,
		Topics:    append([]string{}, u.Topics...),
	}
	if up.payment != nil {
		rec.IsActive = bool(up.payment.IsActive)
		rec.DueTo = up.payment.Expiry()
	}
	if p := up.profile; p != nil && !p.Failed() {
		prof := &Profile{
			Nickname: p.Nickname,
			Email:    p.Email,
			Gender:   p.Gender,
			Intro:    p.Intro,
			Birthday: p.Birthday,
			Dating:   p.Dating,
			Status:   p.Status,
		}
		if p.Birthday != nil {
			if born, ok := clock.ParseDate(*p.Birthday, c.clock.Location()); ok {
				age := clock.WholeYears(born, clock.NowNaive(c.clock))
				prof.Age = &age
			} else {
				logger.Warn(ctx, "session", "session.birthday",
					slog.Int64("user_id", userID),
					slog.String("err", fmt.Sprintf("unparsable birthday %q", *p.Birthday)),
				)
			}
		}
		rec.Profile = prof
	}
	return rec
}
