package bot

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/m3rciful/langbot/core/logger"
	"github.com/m3rciful/langbot/core/telegram/callbacks"
	"github.com/m3rciful/langbot/core/telegram/format"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"
	"github.com/m3rciful/langbot/internal/flow"
	"github.com/m3rciful/langbot/internal/gateway"

	tele "gopkg.in/telebot.v4"
)

// onStart sends known users to the menu and opens the questionnaire for
// everyone else.
func (b *Bot) onStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	u := c.Sender()
	if u == nil {
		return nil
	}
	var exists bool
	if err := b.gw.Do(ctx, func(s *gateway.Session) error {
		var err error
		exists, err = s.CheckUserExists(ctx, u.ID)
		return err
	}); err != nil {
		return b.failure(ctx, c, err)
	}
	lang := flow.InterfaceLang(u.LanguageCode)
	if exists {
		return tghelpers.SendText(c, b.texts.Message("press_menu", lang))
	}

	if err := b.reg.Start(ctx, flow.Applicant{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LangCode:  u.LanguageCode,
	}); err != nil {
		return b.failure(ctx, c, err)
	}
	logger.Info(ctx, "flow", "registration.start",
		slog.String("status", "ok"),
		slog.String("lang", lang),
	)
	text := b.texts.Format("hello", lang, "name", format.Markdown(u.FirstName)) +
		"\n\n" + b.texts.Message("ask_came_from", lang)
	return tghelpers.SendMD(c, text, b.kb.cameFrom(lang))
}

func (b *Bot) youChose(lang, label, next string) string {
	return b.texts.Message("you_chose", lang) + " " + label + "\n\n" + b.texts.Message(next, lang)
}

func (b *Bot) onCameFrom(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	choice := callbacks.Payload(c)
	if choice == "" {
		return nil
	}
	if err := b.reg.CameFrom(ctx, uid, choice); err != nil {
		return b.failure(ctx, c, err)
	}
	lang := b.langOf(ctx, c)
	text := b.youChose(lang, b.texts.Label(GroupCameFrom, choice, lang), "pick_lang")
	return tghelpers.ShowMD(c, text, b.kb.language(lang, false))
}

func (b *Bot) onLanguage(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	choice := callbacks.Payload(c)
	if choice == "" {
		return nil
	}
	if err := b.reg.Language(ctx, uid, choice); err != nil {
		return b.failure(ctx, c, err)
	}
	lang := b.langOf(ctx, c)
	text := b.youChose(lang, b.texts.Label(GroupLanguages, choice, lang), "pick_fluency")
	return tghelpers.ShowMD(c, text, b.kb.fluency(lang, false))
}

func (b *Bot) onFluency(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	level, err := callbacks.PayloadInt(c)
	if err != nil {
		logger.Warn(ctx, "tg", "callback.payload",
			slog.String("status", "skip"),
			slog.String("err", err.Error()),
		)
		return nil
	}
	if _, err := b.reg.Fluency(ctx, uid, level); err != nil {
		return b.failure(ctx, c, err)
	}
	lang := b.langOf(ctx, c)
	text := b.youChose(lang, b.texts.Label(GroupFluency, strconv.Itoa(level), lang), "choose_topic")
	return tghelpers.ShowMD(c, text, b.kb.topics(lang, flow.Topics{}, false))
}

// onTopic toggles a topic; Done with at least one topic moves on to the
// trial offer.
func (b *Bot) onTopic(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	choice := callbacks.Payload(c)
	if choice == "" {
		return nil
	}
	step, err := b.reg.Topic(ctx, uid, choice)
	if errors.Is(err, flow.ErrIllegalTransition) {
		return nil
	}
	if err != nil {
		return b.failure(ctx, c, err)
	}
	lang := b.langOf(ctx, c)
	if step.Outcome == flow.Advance {
		text := b.youChose(lang, b.texts.Labels(GroupTopics, step.Topics.Strings(), lang), "payment_offer")
		return tghelpers.ShowMD(c, text, b.kb.trial(lang))
	}
	if choice == flow.SentinelEndSelection {
		return nil
	}
	return c.Edit(b.kb.topics(lang, step.Topics, false))
}

func (b *Bot) onStartTrial(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	lang := b.langOf(ctx, c)
	return tghelpers.ShowMD(c, b.texts.Message("terms", lang), b.kb.confirm(lang))
}

// onConfirm registers the applicant with the backend and opens the menu.
func (b *Bot) onConfirm(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	u, err := b.reg.Applicant(ctx, uid)
	if errors.Is(err, flow.ErrNoApplicant) {
		return b.notRegistered(ctx, c)
	}
	if err != nil {
		return b.failure(ctx, c, err)
	}
	if err := b.gw.Do(ctx, func(s *gateway.Session) error {
		return s.AddUser(ctx, u)
	}); err != nil {
		return b.failure(ctx, c, err)
	}
	if err := b.reg.Finish(ctx, uid); err != nil {
		logger.Warn(ctx, "flow", "registration.finish",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	logger.Info(ctx, "flow", "registration.complete",
		slog.String("status", "ok"),
		slog.String("language", u.Language),
		slog.Int("fluency", u.Fluency),
		slog.Int("topics", len(u.Topics)),
	)
	tghelpers.Drop(c)
	return b.sendMenu(c, u.LangCode, false)
}
