package bot

import (
	"log/slog"
	"strconv"

	"github.com/m3rciful/langbot/core/logger"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// onMenu opens the main menu for active subscribers and stays silent for
// paused ones.
func (b *Bot) onMenu(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	if !rec.IsActive {
		return nil
	}
	return b.sendMenu(c, recordLang(rec), rec.NicknameOrEmpty() != "")
}

func (b *Bot) onMainPage(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	tghelpers.Drop(c)
	return b.sendMenu(c, recordLang(rec), rec.NicknameOrEmpty() != "")
}

// onGoBack abandons any open edit and returns to the main menu.
func (b *Bot) onGoBack(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	if _, err := b.edit.GoBack(ctx, rec.UserID); err != nil {
		logger.Warn(ctx, "flow", "edit.go_back",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return b.showMenu(c, rec, "")
}

func (b *Bot) onAbout(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	lang := recordLang(rec)
	if !rec.IsActive {
		return tghelpers.SendText(c, b.texts.Message("sub_paused", lang))
	}
	return tghelpers.ShowMD(c, b.texts.Message("about", lang), b.kb.back(lang))
}

func (b *Bot) onProfile(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	lang := recordLang(rec)
	if !rec.IsActive {
		return tghelpers.SendText(c, b.texts.Message("sub_paused", lang))
	}
	return tghelpers.ShowMD(c, b.profileText(rec, c.Sender().Username), b.kb.back(lang))
}

func (b *Bot) onEditProfile(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	lang := recordLang(rec)
	return tghelpers.ShowMD(c, b.texts.Message("change_profile_options", lang), b.kb.editOptions(lang))
}

// onStats reports runtime counters to the admin.
func (b *Bot) onStats(c tele.Context) error {
	return tghelpers.SendText(c, b.texts.Format("stats", "en",
		"sessions", strconv.FormatInt(b.gw.OpenSessions(), 10),
	))
}
