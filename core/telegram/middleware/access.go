package middleware

import (
	"log/slog"

	"github.com/m3rciful/langbot/core/logger"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// GateOptions configures a predicate guard in front of handlers.
type GateOptions struct {
	// Name appears in reject logs.
	Name     string
	Allow    func(c tele.Context) bool
	OnReject tele.HandlerFunc
}

// Gate lets an update through only when Allow reports true. Rejected updates
// go to OnReject when set and are dropped otherwise.
func Gate(opts GateOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if opts.Allow == nil {
			return next
		}
		return func(c tele.Context) error {
			if opts.Allow(c) {
				return next(c)
			}
			logger.Debug(tghelpers.BuildContext(c), "tg", "gate.reject",
				slog.String("status", "skip"),
				slog.String("reason", opts.Name),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream
// handlers. Without a configured admin every update passes.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	if opts.AdminID == 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	return Gate(GateOptions{
		Name: "admin",
		Allow: func(c tele.Context) bool {
			s := c.Sender()
			return s != nil && s.ID == opts.AdminID
		},
		OnReject: opts.OnReject,
	})
}
