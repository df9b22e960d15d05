package logger

import (
	"context"
	"log/slog"
)

type (
	scopeKey  struct{}
	loggerKey struct{}
)

// scope holds the identifiers of the update a context belongs to. It is
// stored by value so every With* call copies it.
type scope struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
}

func scopeOf(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeOf(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger makes l the logger used for ctx. A nil l leaves ctx unchanged.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

func fromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return root.Load()
}

// WithRID sets the correlation id of ctx.
func WithRID(ctx context.Context, rid string) context.Context {
	return withScope(ctx, func(s *scope) { s.rid = rid })
}

// RIDFrom returns the correlation id of ctx.
func RIDFrom(ctx context.Context) string { return scopeOf(ctx).rid }

// WithUpdateMeta records the Telegram update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withScope(ctx, func(s *scope) {
		s.updateID, s.userID, s.chatID = updateID, userID, chatID
	})
}

// UserIDFrom returns the Telegram user id of ctx.
func UserIDFrom(ctx context.Context) int64 { return scopeOf(ctx).userID }

// ChatIDFrom returns the chat id of ctx.
func ChatIDFrom(ctx context.Context) int64 { return scopeOf(ctx).chatID }

// UpdateIDFrom returns the update id of ctx.
func UpdateIDFrom(ctx context.Context) int { return scopeOf(ctx).updateID }

// WithHandler names the handler serving ctx. An empty name is ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.handler = handler })
}

// HandlerFrom returns the handler name of ctx.
func HandlerFrom(ctx context.Context) string { return scopeOf(ctx).handler }
