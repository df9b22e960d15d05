package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/langbot/core/logger"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"
	"github.com/m3rciful/langbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// serve runs h under name and writes the handler summary line.
func serve(c tele.Context, name string, h tele.HandlerFunc, extra ...slog.Attr) error {
	start := time.Now()
	tghelpers.WithHandler(c, name)
	err := h(c)
	summarize(c, name, start, err, extra...)
	return err
}

// skip logs an update that no handler took.
func skip(c tele.Context, name string, extra ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	attrs := append([]slog.Attr{
		slog.String("status", "skip"),
		slog.String("handler", name),
	}, extra...)
	logger.Debug(ctx, "tg", "handler.handled", attrs...)
}

func summarize(c tele.Context, name string, start time.Time, err error, extra ...slog.Attr) {
	messages, keyboard := middleware.Tally(c)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.String("outcome", status),
		slog.Int("messages", messages),
		slog.Bool("kb", keyboard),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Info(tghelpers.BuildContext(c), "tg", "handler.handled", append(attrs, extra...)...)
}

func handlerName(key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		return "unknown"
	}
	return strings.ReplaceAll(key, " ", "_")
}

// errorCode uses the Code method of errors that classify themselves, such
// as gateway failures.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return code
		}
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return "TELEGRAM_API"
	}
	return "INTERNAL"
}
