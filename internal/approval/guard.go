package approval

import (
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"
	"github.com/m3rciful/langbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// GuardOptions configures Guard.
type GuardOptions struct {
	Engine *Engine
	// Store receives the refreshed subscription fields; optional.
	Store    Writer
	OnReject tele.HandlerFunc
}

// Guard gates handlers on IsApproved.
func Guard(opts GuardOptions) tele.MiddlewareFunc {
	return middleware.Gate(middleware.GateOptions{
		Name: "approval",
		Allow: func(c tele.Context) bool {
			s := c.Sender()
			if s == nil || opts.Engine == nil {
				return false
			}
			return opts.Engine.IsApproved(tghelpers.BuildContext(c), s.ID, opts.Store)
		},
		OnReject: opts.OnReject,
	})
}
