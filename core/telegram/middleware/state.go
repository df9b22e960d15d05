package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/langbot/core/logger"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"
	"github.com/m3rciful/langbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// StateGetter is the minimal interface required from a state store.
type StateGetter interface {
	State(ctx context.Context, userID int64) (state.State, error)
}

// State returns a middleware that lets the update through only when the sender
// sits in one of the expected states. Other updates are dropped silently.
func State(store StateGetter, expected ...state.State) tele.MiddlewareFunc {
	allowed := make(map[state.State]struct{}, len(expected))
	for _, st := range expected {
		allowed[st] = struct{}{}
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			ctx := tghelpers.BuildContext(c)
			current, err := store.State(ctx, sender.ID)
			if err != nil {
				logger.Warn(ctx, "tg", "fsm.state",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				return nil
			}
			if _, ok := allowed[current]; ok {
				logger.Debug(ctx, "tg", "fsm.match",
					slog.String("state", string(current)),
				)
				return next(c)
			}
			logger.Debug(ctx, "tg", "fsm.skip",
				slog.String("status", "skip"),
				slog.String("state", string(current)),
			)
			return nil
		}
	}
}
