package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/langbot/core/logger"
	"github.com/m3rciful/langbot/core/telegram/callbacks"
	"github.com/m3rciful/langbot/core/telegram/format"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"
	"github.com/m3rciful/langbot/internal/flow"
	"github.com/m3rciful/langbot/internal/session"
	"github.com/m3rciful/langbot/internal/validate"

	tele "gopkg.in/telebot.v4"
)

var nicknameErrors = map[validate.Kind]string{
	validate.KindTooShort:          "nickname_too_short_error",
	validate.KindTooLong:           "nickname_too_long_error",
	validate.KindEmptySpace:        "nickname_empty_space_error",
	validate.KindEmoji:             "emojies_not_allowed_error",
	validate.KindInvalidCharacters: "invalid_characters_error",
	validate.KindAlreadyExists:     "nickname_already_exists_error",
}

var introErrors = map[validate.Kind]string{
	validate.KindTooShort: "intro_too_short_error",
	validate.KindTooLong:  "intro_too_long_error",
}

// onProfileChange opens the edit of the field named in the payload.
func (b *Bot) onProfileChange(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	field, err := flow.ParseField(callbacks.Payload(c))
	if err != nil {
		logger.Warn(ctx, "tg", "callback.payload",
			slog.String("status", "skip"),
			slog.String("err", err.Error()),
		)
		return nil
	}

	rec, _, err := b.edit.Begin(ctx, uid, field)
	switch {
	case errors.Is(err, session.ErrNotRegistered):
		return b.notRegistered(ctx, c)
	case errors.Is(err, flow.ErrProfileRequired):
		lang := recordLang(rec)
		return tghelpers.ShowMD(c, b.texts.Message("registration_required", lang), b.kb.back(lang))
	case err != nil:
		return b.failure(ctx, c, err)
	}

	lang := recordLang(rec)
	switch field {
	case flow.FieldNickname:
		text := b.texts.Format("current_nickname", lang, "nickname", format.Markdown(rec.NicknameOrEmpty()))
		return tghelpers.ShowMD(c, text, b.kb.back(lang))
	case flow.FieldLanguage:
		text := b.texts.Format("current_lang", lang, "language", b.texts.Label(GroupLanguages, rec.Language, lang))
		return tghelpers.ShowMD(c, text, b.kb.language(lang, true))
	case flow.FieldTopics:
		text := b.texts.Format("current_topic", lang, "topics", b.texts.Labels(GroupTopics, rec.Topics, lang))
		return tghelpers.ShowMD(c, text, b.kb.topics(lang, flow.Topics{}, true))
	default:
		intro := b.texts.Message("no_intro", lang)
		if rec.Profile != nil {
			intro = format.Or(format.Deref(rec.Profile.Intro, ""), intro)
		}
		text := b.texts.Format("current_intro", lang, "intro", format.Markdown(intro))
		return tghelpers.ShowMD(c, text, b.kb.back(lang))
	}
}

func (b *Bot) onChangeLanguage(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	choice := callbacks.Payload(c)
	if choice == "" {
		return nil
	}
	if _, err := b.edit.PickLanguage(ctx, uid, choice); err != nil {
		return b.failure(ctx, c, err)
	}
	return c.Edit(b.kb.fluency(b.langOf(ctx, c), true))
}

func (b *Bot) onChangeFluency(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	level, err := callbacks.PayloadInt(c)
	if err != nil {
		return nil
	}
	if _, err := b.edit.PickFluency(ctx, uid, level); err != nil {
		return b.failure(ctx, c, err)
	}
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	return b.showMenu(c, rec, "")
}

// onChangeTopic toggles a topic of the new selection; Done writes a changed
// selection back and returns to the menu either way.
func (b *Bot) onChangeTopic(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	choice := callbacks.Payload(c)
	if choice == "" {
		return nil
	}
	step, err := b.edit.ToggleTopic(ctx, uid, choice)
	if err != nil {
		return b.failure(ctx, c, err)
	}
	if step.Outcome == flow.Stay {
		if choice == flow.SentinelEndSelection {
			return nil
		}
		return c.Edit(b.kb.topics(b.langOf(ctx, c), step.Topics, true))
	}

	notice := "fail_to_change"
	if step.Outcome == flow.Advance {
		notice = "topic_changed"
	}
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	return b.showMenu(c, rec, notice)
}

func (b *Bot) onNicknameText(c tele.Context) error {
	return b.submitText(c, b.edit.SubmitNickname, nicknameErrors, "nickname_change_succeeded")
}

func (b *Bot) onIntroText(c tele.Context) error {
	return b.submitText(c, b.edit.SubmitIntro, introErrors, "intro_change_succeeded")
}

// submitText runs a free-text edit step. Rejected input is answered with the
// matching error text and the user stays on the step.
func (b *Bot) submitText(
	c tele.Context,
	submit func(ctx context.Context, userID int64, text string) (flow.Step, error),
	rejections map[validate.Kind]string,
	succeeded string,
) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	lang := b.langOf(ctx, c)
	_, err := submit(ctx, uid, c.Text())
	if kind, ok := validate.KindOf(err); ok {
		key, known := rejections[kind]
		if !known {
			key = "unexpected_error"
		}
		logger.Debug(ctx, "flow", "edit.rejected",
			slog.String("status", "skip"),
			slog.String("kind", string(kind)),
		)
		return c.Reply(b.texts.Message(key, lang))
	}
	if err != nil {
		return b.failure(ctx, c, err)
	}
	return tghelpers.SendMD(c, b.texts.Message(succeeded, lang), b.kb.toMenu(lang))
}
