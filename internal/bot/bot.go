// Package bot holds the Telegram handlers: registration, main menu,
// profile edits and subscription management, plus the fallbacks for
// updates nothing else claims.
package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/langbot/core/logger"
	tg "github.com/m3rciful/langbot/core/telegram"
	"github.com/m3rciful/langbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"
	"github.com/m3rciful/langbot/core/telegram/middleware"
	"github.com/m3rciful/langbot/core/telegram/router"
	"github.com/m3rciful/langbot/core/telegram/state"
	"github.com/m3rciful/langbot/internal/approval"
	"github.com/m3rciful/langbot/internal/flow"
	"github.com/m3rciful/langbot/internal/gateway"
	"github.com/m3rciful/langbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// notRegisteredText is sent verbatim in every language.
const notRegisteredText = "You`re not registered. Press /start to do so"

// Deps are the services the handlers drive.
type Deps struct {
	Gateway      *gateway.Client
	Cache        *session.Cache
	Approval     *approval.Engine
	Registration *flow.Registration
	Edit         *flow.Edit
	// Texts defaults to the embedded catalog.
	Texts *Texts
	// ImagePath, when set, is sent as the photo of the main menu.
	ImagePath string
}

// Bot implements the handlers on top of Deps.
type Bot struct {
	gw        *gateway.Client
	cache     *session.Cache
	store     state.Store
	approval  *approval.Engine
	reg       *flow.Registration
	edit      *flow.Edit
	texts     *Texts
	kb        keyboards
	imagePath string
}

var _ router.Fallbacks = (*Bot)(nil)

// New validates deps and builds a Bot.
func New(d Deps) (*Bot, error) {
	switch {
	case d.Gateway == nil:
		return nil, errors.New("bot: gateway is required")
	case d.Cache == nil:
		return nil, errors.New("bot: session cache is required")
	case d.Approval == nil:
		return nil, errors.New("bot: approval engine is required")
	case d.Registration == nil || d.Edit == nil:
		return nil, errors.New("bot: registration and edit flows are required")
	}
	texts := d.Texts
	if texts == nil {
		var err error
		if texts, err = LoadTexts(); err != nil {
			return nil, err
		}
	}
	return &Bot{
		gw:        d.Gateway,
		cache:     d.Cache,
		store:     d.Cache.Store(),
		approval:  d.Approval,
		reg:       d.Registration,
		edit:      d.Edit,
		texts:     texts,
		kb:        keyboards{texts: texts},
		imagePath: d.ImagePath,
	}, nil
}

// gated lets the update through only for users whose subscription is valid.
// Everyone else is offered the payment link.
func (b *Bot) gated(h tele.HandlerFunc) tele.HandlerFunc {
	return approval.Guard(approval.GuardOptions{
		Engine:   b.approval,
		Store:    b.cache,
		OnReject: b.paymentPrompt,
	})(h)
}

// in drops callbacks pressed outside the step their keyboard belongs to.
func (b *Bot) in(st state.State, h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.State(b.store, st)(h)
}

// Register adds the commands and callbacks to reg and installs the unknown
// callback fallback.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: b.onStart, Description: "Start registration"}},
		{"/menu", commands.Command{Handler: b.onMenu, Description: "Open the main menu", Aliases: []string{"!menu"}}},
		{"/stats", commands.Command{Handler: b.onStats, Description: "Runtime diagnostics", AdminOnly: true, Hidden: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}

	callbacks := []struct {
		key string
		h   tele.HandlerFunc
	}{
		{cbCameFrom, b.onCameFrom},
		{cbLang, b.onLanguage},
		{cbFluency, b.onFluency},
		{cbTopic, b.in(flow.WaitingSelection, b.onTopic)},
		{cbStartTrial, b.onStartTrial},
		{cbConfirm, b.onConfirm},
		{cbMainPage, b.gated(b.onMainPage)},
		{cbGoBack, b.onGoBack},
		{cbAbout, b.gated(b.onAbout)},
		{cbProfile, b.gated(b.onProfile)},
		{cbEditProfile, b.gated(b.onEditProfile)},
		{cbProfileChange, b.onProfileChange},
		{cbChLang, b.in(flow.WaitingLanguage, b.gated(b.onChangeLanguage))},
		{cbChFluency, b.in(flow.WaitingFluency, b.gated(b.onChangeFluency))},
		{cbChTopic, b.in(flow.WaitingTopic, b.gated(b.onChangeTopic))},
		{cbSubDetails, b.onSubDetails},
		{cbCancelSub, b.onCancelSubscription},
		{cbResumeSub, b.onResumeSubscription},
	}
	for _, cb := range callbacks {
		if err := reg.RegisterCallback(cb.key, cb.h); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(b.UnknownCallback())
	return nil
}

// States binds the free-text steps to their handlers.
func (b *Bot) States(d *state.Dispatcher) {
	d.Handle(flow.WaitingNickname, b.gated(b.onNicknameText))
	d.Handle(flow.WaitingIntro, b.gated(b.onIntroText))
}

// UnknownText answers text no command or step claimed.
func (b *Bot) UnknownText() tele.HandlerFunc { return b.onFreeText }

// UnknownDocument treats stray documents like stray text.
func (b *Bot) UnknownDocument() tele.HandlerFunc { return b.onFreeText }

// UnknownCallback offers the payment link for buttons nothing handles.
func (b *Bot) UnknownCallback() tele.HandlerFunc { return b.paymentPrompt }

// senderID returns the ID of the user behind the update. Handlers ignore
// updates that carry no sender.
func senderID(c tele.Context) (int64, bool) {
	s := c.Sender()
	if s == nil {
		return 0, false
	}
	return s.ID, true
}

// langOf picks the interface language: the session's, else the chat's.
func (b *Bot) langOf(ctx context.Context, c tele.Context) string {
	s := c.Sender()
	if s == nil {
		return flow.DefaultLangCode
	}
	data, err := b.store.Data(ctx, s.ID)
	if err == nil {
		if code, ok := state.String(data, session.KeyLangCode); ok && code != "" {
			return flow.InterfaceLang(code)
		}
	}
	return flow.InterfaceLang(s.LanguageCode)
}

func recordLang(rec session.Record) string {
	return flow.InterfaceLang(rec.LangCode)
}

func (b *Bot) notRegistered(ctx context.Context, c tele.Context) error {
	logger.Warn(ctx, "tg", "user.not_registered",
		slog.String("status", "skip"),
	)
	return tghelpers.SendText(c, notRegisteredText)
}

// failure logs err, tells the user something went wrong and hands err to
// the handler summary.
func (b *Bot) failure(ctx context.Context, c tele.Context, err error) error {
	logger.Error(ctx, "tg", "handler.failure",
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	if sendErr := tghelpers.SendText(c, b.texts.Message("unexpected_error", b.langOf(ctx, c))); sendErr != nil {
		logger.Warn(ctx, "tg", "handler.failure.notify",
			slog.String("status", "fail"),
			slog.String("err", sendErr.Error()),
		)
	}
	return err
}

// record loads the sender's session, answering unregistered users itself.
// ok is false when the handler has nothing left to do.
func (b *Bot) record(ctx context.Context, c tele.Context, opts ...session.LoadOption) (session.Record, bool, error) {
	uid, ok := senderID(c)
	if !ok {
		return session.Record{}, false, nil
	}
	rec, err := b.cache.Get(ctx, uid, opts...)
	switch {
	case errors.Is(err, session.ErrNotRegistered):
		return rec, false, b.notRegistered(ctx, c)
	case err != nil:
		return rec, false, b.failure(ctx, c, err)
	}
	return rec, true, nil
}

// paymentPrompt sends the payment link to registered users.
func (b *Bot) paymentPrompt(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	var (
		exists bool
		link   string
	)
	err := b.gw.Do(ctx, func(gs *gateway.Session) error {
		var err error
		if exists, err = gs.CheckUserExists(ctx, uid); err != nil || !exists {
			return err
		}
		link, err = gs.PaymentLink(ctx, uid)
		return err
	})
	if err != nil {
		return b.failure(ctx, c, err)
	}
	if !exists {
		return b.notRegistered(ctx, c)
	}
	lang := b.langOf(ctx, c)
	return tghelpers.SendMD(c, b.texts.Message("payment_needed", lang), b.kb.payment(lang, link))
}

// onFreeText answers approved users with help and everyone else with the
// payment prompt.
func (b *Bot) onFreeText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	if !b.approval.IsApproved(ctx, uid, b.cache) {
		return b.paymentPrompt(c)
	}
	rec, ok, err := b.record(ctx, c)
	if !ok {
		return err
	}
	if !rec.IsActive {
		return nil
	}
	return tghelpers.SendText(c, b.texts.Message("get_help", recordLang(rec)))
}
