// Package router turns the handler registry and the step dispatcher into
// telebot routes.
package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/langbot/core/logger"
	tg "github.com/m3rciful/langbot/core/telegram"
	"github.com/m3rciful/langbot/core/telegram/callbacks"
	"github.com/m3rciful/langbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Steps is the step dispatcher of multi-step conversations.
type Steps interface {
	InProgress(c tele.Context) bool
	ManagerHandler(c tele.Context) error
}

// Fallbacks answers updates that nothing else claims.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Options configures Routes. Steps and Fallbacks are optional.
type Options struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	Steps         Steps
	Fallbacks     Fallbacks
}

// Routes builds every route of the bot: one per registered command, then
// the callback, text and document routes.
func Routes(reg *tg.Registry, opts Options) []tg.Route {
	if reg == nil {
		return nil
	}
	r := &routes{reg: reg, opts: opts}
	out := r.commands()
	out = append(out,
		tg.Route{Endpoint: tele.OnCallback, Handler: r.callback},
		tg.Route{Endpoint: tele.OnText, Handler: r.text},
		tg.Route{Endpoint: tele.OnDocument, Handler: r.document},
	)
	logger.Info(context.Background(), "tg.wire", "wire.complete",
		slog.String("status", "ok"),
		slog.Int("count", len(out)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return out
}

type routes struct {
	reg  *tg.Registry
	opts Options
}

func (r *routes) commands() []tg.Route {
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  r.opts.AdminID,
		OnReject: r.opts.OnAdminReject,
	})
	cmds := r.reg.Commands()
	out := make([]tg.Route, 0, len(cmds)+3)
	for name, cmd := range cmds {
		h := named(handlerName(name), cmd.Handler)
		if cmd.AdminOnly {
			h = admin(h)
		}
		out = append(out, tg.Route{Endpoint: name, Handler: h})
	}
	return out
}

// callback acknowledges the press and runs the registered handler. Unknown
// uniques go to the fallback, which answers the press itself.
func (r *routes) callback(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	key, _ := callbacks.Parse(c.Callback())
	extra := slog.String("cb_key", key)
	if h, ok := r.reg.GetCallback(key); ok && h != nil {
		_ = c.Respond()
		return serve(c, "callback."+handlerName(key), h, extra)
	}
	fallback := r.reg.CallbackNotFound()
	if fb := r.opts.Fallbacks; fb != nil && fb.UnknownCallback() != nil {
		fallback = fb.UnknownCallback()
	}
	if fallback == nil {
		_ = c.Respond()
		skip(c, "callback.unknown", extra)
		return nil
	}
	return serve(c, "callback.unknown", fallback, extra, slog.String("reason", "not_found"))
}

// text prefers a running conversation step, then command words such as
// aliases, then the fallbacks.
func (r *routes) text(c tele.Context) error {
	if s := r.opts.Steps; s != nil && s.InProgress(c) {
		return serve(c, "step", s.ManagerHandler)
	}
	if key, cmd, ok := r.reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
		return serve(c, handlerName(key), cmd.Handler)
	}
	if fb := r.reg.TextFallback(); fb != nil {
		return serve(c, "fallback", fb)
	}
	if fb := r.opts.Fallbacks; fb != nil && fb.UnknownText() != nil {
		return serve(c, "unknown_text", fb.UnknownText())
	}
	skip(c, "unknown_text")
	return nil
}

func (r *routes) document(c tele.Context) error {
	if s := r.opts.Steps; s != nil && s.InProgress(c) {
		return serve(c, "step.document", s.ManagerHandler)
	}
	if fb := r.opts.Fallbacks; fb != nil && fb.UnknownDocument() != nil {
		return serve(c, "unknown_document", fb.UnknownDocument())
	}
	skip(c, "unknown_document")
	return nil
}

func named(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error { return serve(c, name, h) }
}
