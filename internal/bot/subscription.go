package bot

import (
	"log/slog"
	"strings"

	"github.com/m3rciful/langbot/core/logger"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"
	"github.com/m3rciful/langbot/internal/gateway"
	"github.com/m3rciful/langbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// subscriptionScreen shows the state of the subscription: active with its
// end date, paused, or expired.
func (b *Bot) subscriptionScreen(c tele.Context, rec session.Record, approved bool) error {
	lang := recordLang(rec)
	switch {
	case approved && rec.IsActive:
		date, _, _ := strings.Cut(rec.DueTo, "T")
		return tghelpers.ShowMD(c, b.texts.Format("active_sub_caption", lang, "date", date), b.kb.subscription(lang, true, false))
	case approved:
		return tghelpers.ShowMD(c, b.texts.Message("resume_sub_caption", lang), b.kb.subscription(lang, false, true))
	default:
		return tghelpers.ShowMD(c, b.texts.Message("expired_sub_caption", lang), b.kb.subscription(lang, false, false))
	}
}

func (b *Bot) onSubDetails(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	approved := b.approval.IsApproved(ctx, uid, b.cache)
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	return b.subscriptionScreen(c, rec, approved)
}

// onCancelSubscription pauses the subscription and drops the session so the
// next read sees the new flag.
func (b *Bot) onCancelSubscription(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	if err := b.gw.Do(ctx, func(s *gateway.Session) error {
		return s.DeactivateSubscription(ctx, uid)
	}); err != nil {
		return b.failure(ctx, c, err)
	}
	logger.Info(ctx, "tg", "subscription.cancel", slog.String("status", "ok"))
	if err := b.cache.Forget(ctx, uid); err != nil {
		return b.failure(ctx, c, err)
	}
	approved := b.approval.IsApproved(ctx, uid, b.cache)
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	return b.subscriptionScreen(c, rec, approved)
}

// onResumeSubscription reactivates the subscription and forces a fresh
// snapshot from the backend.
func (b *Bot) onResumeSubscription(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	if err := b.gw.Do(ctx, func(s *gateway.Session) error {
		return s.ActivateSubscription(ctx, uid)
	}); err != nil {
		return b.failure(ctx, c, err)
	}
	logger.Info(ctx, "tg", "subscription.resume", slog.String("status", "ok"))
	rec, ok, err := b.record(ctx, c, session.WithRenew())
	if !ok {
		return err
	}
	approved := b.approval.IsApproved(ctx, uid, b.cache)
	return b.subscriptionScreen(c, rec, approved)
}
