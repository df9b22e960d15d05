package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/langbot/core/logger"
	"github.com/m3rciful/langbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// dispatcher is the queue installed by the runtime. Without one every call
// goes out inline.
var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the queue used by the send helpers; nil removes it.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// deliver hands run to the queue. A full or closed queue sends inline.
func deliver(c tele.Context, action string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.bypass",
			slog.String("status", "skip"),
			slog.String("action", action),
			slog.String("reason", err.Error()),
		)
		return run()
	}
	return err
}

func markdown(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup}
}

// SendText sends text without formatting.
func SendText(c tele.Context, text string) error {
	return deliver(c, "send.text", func() error { return c.Send(text) })
}

// SendMD sends Markdown text with an optional keyboard.
func SendMD(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return deliver(c, "send.markdown", func() error { return c.Send(text, markdown(markup)) })
}

// SendPhotoMD sends the image at path with a Markdown caption.
func SendPhotoMD(c tele.Context, path, caption string, markup *tele.ReplyMarkup) error {
	photo := &tele.Photo{File: tele.FromDisk(path), Caption: caption}
	return deliver(c, "send.photo", func() error { return c.Send(photo, markdown(markup)) })
}

// ShowMD replaces the screen a pressed button belongs to. Photo messages
// get a new caption; anything else is edited, or sent anew when there is
// nothing to edit.
func ShowMD(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if m := c.Message(); c.Callback() != nil && m != nil && m.Photo != nil {
		return deliver(c, "edit.caption", func() error { return c.EditCaption(text, markdown(markup)) })
	}
	return deliver(c, "edit.markdown", func() error { return c.EditOrSend(text, markdown(markup)) })
}

// Drop deletes the message a pressed button belongs to. Failures are only
// logged: the message may already be gone.
func Drop(c tele.Context) {
	if c.Callback() == nil {
		return
	}
	if err := c.Delete(); err != nil {
		logger.Debug(BuildContext(c), "tg", "message.delete",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
