// Package approval decides whether a user's subscription lets them use the
// bot. Every check reads the subscription straight from the gateway and
// fails closed.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/langbot/core/clock"
	"github.com/m3rciful/langbot/core/logger"
	"github.com/m3rciful/langbot/internal/gateway"
)

// Writer receives the refreshed subscription fields. state.Store and
// session.Cache both satisfy it.
type Writer interface {
	Update(ctx context.Context, userID int64, patch map[string]any) error
}

// Decision is the full outcome of a check.
type Decision struct {
	Approved bool
	// Registered is false when the gateway has no subscription snapshot.
	Registered bool
	DueTo      string
	IsActive   bool
	// Err is the failure that forced a denial, if any.
	Err error
}

// Engine evaluates subscription approval.
type Engine struct {
	gw    *gateway.Client
	clock clock.Clock
}

// New wires an Engine. A nil clock means UTC wall time.
func New(gw *gateway.Client, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.Real(time.UTC)
	}
	return &Engine{gw: gw, clock: clk}
}

// IsApproved reports whether the user may proceed. It never fails: any error
// is logged and yields false.
func (e *Engine) IsApproved(ctx context.Context, userID int64, w Writer) bool {
	return e.Check(ctx, userID, w).Approved
}

// Check fetches the subscription snapshot, writes due_to and is_active back
// through w when given, and compares the expiry with the naive current time.
// A user without a snapshot is approved so onboarding can finish.
func (e *Engine) Check(ctx context.Context, userID int64, w Writer) Decision {
	d := e.check(ctx, userID, w)
	attrs := []slog.Attr{
		slog.Int64("user_id", userID),
		slog.Bool("approved", d.Approved),
	}
	if d.DueTo != "" {
		attrs = append(attrs, slog.String("due_to", d.DueTo))
	}
	if d.Err != nil {
		attrs = append(attrs, slog.String("status", "fail"), slog.String("err", d.Err.Error()))
		if code := errorCode(d.Err); code != "" {
			attrs = append(attrs, slog.String("err_code", code))
		}
		logger.Error(ctx, "approval", "approval.check", attrs...)
		return d
	}
	logger.Debug(ctx, "approval", "approval.check", attrs...)
	return d
}

func (e *Engine) check(ctx context.Context, userID int64, w Writer) Decision {
	var payment *gateway.Payment
	err := e.gw.Do(ctx, func(s *gateway.Session) error {
		var err error
		payment, err = s.Payment(ctx, userID)
		return err
	})
	if err != nil {
		return Decision{Err: err}
	}

	d := Decision{Registered: payment != nil}
	if payment != nil {
		d.DueTo = payment.Expiry()
		d.IsActive = bool(payment.IsActive)
	}

	if w != nil {
		var dueTo any
		if d.DueTo != "" {
			dueTo = d.DueTo
		}
		patch := map[string]any{"due_to": dueTo, "is_active": d.IsActive}
		if err := w.Update(ctx, userID, patch); err != nil {
			d.Err = fmt.Errorf("approval: write back: %w", err)
			return d
		}
	}

	if d.DueTo == "" {
		d.Approved = true
		return d
	}
	expiry, err := clock.ParseISO(d.DueTo, e.clock.Location())
	if err != nil {
		d.Err = fmt.Errorf("approval: %w", err)
		return d
	}
	d.Approved = expiry.After(clock.NowNaive(e.clock))
	return d
}

func errorCode(err error) string {
	var c interface{ Code() string }
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
