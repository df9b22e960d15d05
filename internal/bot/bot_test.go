package bot

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/langbot/core/clock"
	tg "github.com/m3rciful/langbot/core/telegram"
	"github.com/m3rciful/langbot/core/telegram/callbacks"
	"github.com/m3rciful/langbot/core/telegram/state"
	"github.com/m3rciful/langbot/internal/approval"
	"github.com/m3rciful/langbot/internal/flow"
	"github.com/m3rciful/langbot/internal/gateway"
	"github.com/m3rciful/langbot/internal/gateway/gatewaytest"
	"github.com/m3rciful/langbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

type outgoing struct {
	text   string
	markup *tele.ReplyMarkup
}

// recorder captures what handlers send instead of calling Telegram.
type recorder struct {
	tele.Context
	out     []outgoing
	deleted bool
}

func (r *recorder) record(what interface{}, opts []interface{}) error {
	var o outgoing
	switch v := what.(type) {
	case string:
		o.text = v
	case *tele.Photo:
		o.text = v.Caption
	case *tele.ReplyMarkup:
		o.markup = v
	}
	for _, opt := range opts {
		switch v := opt.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				o.markup = v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			o.markup = v
		}
	}
	r.out = append(r.out, o)
	return nil
}

func (r *recorder) Send(what interface{}, opts ...interface{}) error  { return r.record(what, opts) }
func (r *recorder) Reply(what interface{}, opts ...interface{}) error { return r.record(what, opts) }
func (r *recorder) Edit(what interface{}, opts ...interface{}) error  { return r.record(what, opts) }
func (r *recorder) EditOrSend(what interface{}, opts ...interface{}) error {
	return r.record(what, opts)
}
func (r *recorder) EditCaption(caption string, opts ...interface{}) error {
	return r.record(caption, opts)
}
func (r *recorder) Delete() error                           { r.deleted = true; return nil }
func (r *recorder) Respond(...*tele.CallbackResponse) error { return nil }

func (r *recorder) last(t *testing.T) outgoing {
	t.Helper()
	require.NotEmpty(t, r.out, "nothing was sent")
	return r.out[len(r.out)-1]
}

func labels(m *tele.ReplyMarkup) []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, row := range m.InlineKeyboard {
		for _, btn := range row {
			out = append(out, btn.Text)
		}
	}
	return out
}

type fixture struct {
	bot     *Bot
	reg     *tg.Registry
	disp    *state.Dispatcher
	store   state.Store
	backend *gatewaytest.Backend
	tb      *tele.Bot
	update  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := gatewaytest.New(t)
	clk := clock.Fake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), time.UTC)
	store := state.NewMemoryStore(0, clk)
	gw := backend.Client(t)
	cache := session.New(gw, store, clk)
	m, err := flow.NewMachine(store, flow.Table)
	require.NoError(t, err)

	b, err := New(Deps{
		Gateway:      gw,
		Cache:        cache,
		Approval:     approval.New(gw, clk),
		Registration: flow.NewRegistration(m, store),
		Edit:         flow.NewEdit(m, cache, gw, gw),
	})
	require.NoError(t, err)

	reg := tg.NewRegistry()
	require.NoError(t, b.Register(reg))
	disp := state.NewDispatcher(store)
	b.States(disp)

	tb, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return &fixture{bot: b, reg: reg, disp: disp, store: store, backend: backend, tb: tb}
}

// registered seeds a user whose subscription ends at until.
func (f *fixture) registered(uid int64, until string, withProfile bool) {
	f.backend.SetUser(uid, map[string]any{
		"user_id":    uid,
		"username":   "neo",
		"first_name": "Thomas",
		"camefrom":   "ads",
		"language":   "en",
		"fluency":    2,
		"topics":     []string{"travel", "music"},
		"lang_code":  "en",
	})
	f.backend.SetPayment(uid, map[string]any{"is_active": true, "until": until})
	if withProfile {
		f.backend.SetProfile(uid, map[string]any{
			"user_id":  uid,
			"nickname": "neo42x",
			"intro":    "old intro text",
		})
	}
}

func (f *fixture) sender(uid int64) *tele.User {
	return &tele.User{ID: uid, FirstName: "Thomas", LanguageCode: "en"}
}

func (f *fixture) message(uid int64, text string) *recorder {
	f.update++
	return &recorder{Context: f.tb.NewContext(tele.Update{
		ID: f.update,
		Message: &tele.Message{
			ID:     f.update,
			Sender: f.sender(uid),
			Chat:   &tele.Chat{ID: uid},
			Text:   text,
		},
	})}
}

func (f *fixture) command(t *testing.T, uid int64, name string) *recorder {
	t.Helper()
	_, cmd, ok := f.reg.LookupCommand(name)
	require.True(t, ok, name)
	r := f.message(uid, name)
	require.NoError(t, cmd.Handler(r))
	return r
}

func (f *fixture) press(t *testing.T, uid int64, unique, payload string) *recorder {
	t.Helper()
	r, err := f.tap(f.sender(uid), uid, unique, payload)
	require.NoError(t, err)
	return r
}

// tap runs the callback handler for unique and returns its error as is.
// A nil sender stands for updates Telegram delivers without one.
func (f *fixture) tap(sender *tele.User, chat int64, unique, payload string) (*recorder, error) {
	f.update++
	r := &recorder{Context: f.tb.NewContext(tele.Update{
		ID: f.update,
		Callback: &tele.Callback{
			ID:      "cb",
			Sender:  sender,
			Message: &tele.Message{ID: 1, Chat: &tele.Chat{ID: chat}},
			Data:    callbacks.Encode(unique, payload),
		},
	})}
	h, ok := f.reg.GetCallback(unique)
	if !ok {
		h = f.reg.CallbackNotFound()
	}
	return r, h(r)
}

func (f *fixture) say(t *testing.T, uid int64, text string) *recorder {
	t.Helper()
	r := f.message(uid, text)
	if f.disp.InProgress(r) {
		require.NoError(t, f.disp.ManagerHandler(r))
		return r
	}
	require.NoError(t, f.bot.UnknownText()(r))
	return r
}

func (f *fixture) state(t *testing.T, uid int64) state.State {
	t.Helper()
	st, err := f.store.State(context.Background(), uid)
	require.NoError(t, err)
	return st
}

func TestRegistrationWalkthrough(t *testing.T) {
	f := newFixture(t)
	const uid int64 = 501

	r := f.command(t, uid, "/start")
	out := r.last(t)
	assert.Contains(t, out.text, "Hello, *Thomas*!")
	assert.Contains(t, labels(out.markup), "Friends")

	out = f.press(t, uid, cbCameFrom, "friends").last(t)
	assert.Contains(t, out.text, "You chose: Friends")
	assert.Contains(t, labels(out.markup), "German")

	out = f.press(t, uid, cbLang, "de").last(t)
	assert.Contains(t, out.text, "German")
	assert.Contains(t, labels(out.markup), "Intermediate")

	out = f.press(t, uid, cbFluency, "3").last(t)
	assert.Contains(t, out.text, "Intermediate")
	assert.Equal(t, flow.WaitingSelection, f.state(t, uid))

	out = f.press(t, uid, cbTopic, "music").last(t)
	assert.Contains(t, labels(out.markup), selectedMark+"Music")
	f.press(t, uid, cbTopic, "travel")

	out = f.press(t, uid, cbTopic, flow.SentinelEndSelection).last(t)
	assert.Contains(t, out.text, "Music, Travel")
	assert.Equal(t, []string{"Start free trial"}, labels(out.markup))

	out = f.press(t, uid, cbStartTrial, "").last(t)
	assert.Contains(t, out.text, "terms of use")

	r = f.press(t, uid, cbConfirm, "")
	assert.True(t, r.deleted)
	assert.Contains(t, r.last(t).text, "Welcome to the language club")

	added := f.backend.Added()
	require.Len(t, added, 1)
	assert.Equal(t, uid, added[0].UserID)
	assert.Equal(t, "NO USERNAME", added[0].Username)
	assert.Equal(t, "friends", added[0].CameFrom)
	assert.Equal(t, "de", added[0].Language)
	assert.Equal(t, 3, added[0].Fluency)
	assert.Equal(t, []string{"music", "travel"}, []string(added[0].Topics))
	assert.Equal(t, "en", added[0].LangCode)

	data, err := f.store.Data(context.Background(), uid)
	require.NoError(t, err)
	assert.Empty(t, data)

	assert.Contains(t, f.command(t, uid, "/start").last(t).text, "/menu")
}

func TestDoneWithoutTopicsStays(t *testing.T) {
	f := newFixture(t)
	const uid int64 = 502
	f.command(t, uid, "/start")
	f.press(t, uid, cbFluency, "1")

	r := f.press(t, uid, cbTopic, flow.SentinelEndSelection)
	assert.Empty(t, r.out)
	assert.Equal(t, flow.WaitingSelection, f.state(t, uid))
}

func TestTopicOutsideSelectionIsDropped(t *testing.T) {
	f := newFixture(t)
	r := f.press(t, 503, cbTopic, "music")
	assert.Empty(t, r.out)
}

func TestMenu(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, notRegisteredText, f.command(t, 1, "/menu").last(t).text)

	f.registered(77, "2999-01-01T00:00:00", true)
	out := f.command(t, 77, "/menu").last(t)
	assert.Contains(t, out.text, "Pin this chat")
	assert.Contains(t, labels(out.markup), "Subscription")
}

func TestProfileCard(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2999-01-01T00:00:00", true)

	out := f.press(t, 77, cbProfile, "").last(t)
	assert.Contains(t, out.text, "========= neo42x =========")
	assert.Contains(t, out.text, "*Age:* not specified")
	assert.Contains(t, out.text, "*Language:* English")
	assert.Contains(t, out.text, "*Fluency:* Elementary")
	assert.Contains(t, out.text, "*Topics:* Travel, Music")
	assert.Contains(t, out.text, "*About:* old intro text")
}

func TestExpiredUserIsOfferedPayment(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2020-01-01T00:00:00", true)

	out := f.press(t, 77, cbProfile, "").last(t)
	assert.Contains(t, out.text, "subscription has expired")
	require.NotNil(t, out.markup)
	require.Len(t, out.markup.InlineKeyboard, 1)
	assert.Equal(t, "https://pay.example/checkout", out.markup.InlineKeyboard[0][0].URL)

	out = f.say(t, 77, "hello?").last(t)
	assert.Contains(t, out.text, "subscription has expired")
}

func TestFreeText(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, notRegisteredText, f.say(t, 9, "hi").last(t).text)

	f.registered(77, "2999-01-01T00:00:00", false)
	assert.Contains(t, f.say(t, 77, "hi").last(t).text, "/menu")
}

func TestUnknownCallbackOffersPayment(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2020-01-01T00:00:00", false)
	out := f.press(t, 77, "shop", "1").last(t)
	assert.Contains(t, out.text, "subscription has expired")
}

func TestNicknameEditRetriesInPlace(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2999-01-01T00:00:00", true)
	f.backend.Take("taken42")

	out := f.press(t, 77, cbProfileChange, "nickname").last(t)
	assert.Contains(t, out.text, "*neo42x*")
	assert.Equal(t, flow.WaitingNickname, f.state(t, 77))

	assert.Contains(t, f.say(t, 77, "ab").last(t).text, "too short")
	assert.Contains(t, f.say(t, 77, "taken42").last(t).text, "already taken")
	assert.Equal(t, flow.WaitingNickname, f.state(t, 77))
	assert.Empty(t, f.backend.UpdatedProfiles())

	out = f.say(t, 77, "trinity7").last(t)
	assert.Contains(t, out.text, "Nickname updated.")
	assert.Equal(t, []string{"Main menu"}, labels(out.markup))
	assert.Equal(t, flow.EndedChange, f.state(t, 77))

	profiles := f.backend.UpdatedProfiles()
	require.Len(t, profiles, 1)
	require.NotNil(t, profiles[0].Nickname)
	assert.Equal(t, "trinity7", *profiles[0].Nickname)
}

func TestNicknameEditNeedsProfile(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2999-01-01T00:00:00", false)

	out := f.press(t, 77, cbProfileChange, "nickname").last(t)
	assert.Contains(t, out.text, "Fill in your profile first")
	assert.Equal(t, []string{"Back"}, labels(out.markup))
}

func TestTopicsEdit(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2999-01-01T00:00:00", true)

	out := f.press(t, 77, cbProfileChange, "topics").last(t)
	assert.Contains(t, out.text, "Travel, Music")

	out = f.press(t, 77, cbChTopic, "food").last(t)
	assert.Contains(t, labels(out.markup), selectedMark+"Food")

	out = f.press(t, 77, cbChTopic, flow.SentinelEndSelection).last(t)
	assert.True(t, strings.HasPrefix(out.text, "Topics updated."))

	users := f.backend.UpdatedUsers()
	require.Len(t, users, 1)
	assert.Equal(t, []string{"food"}, []string(users[0].Topics))
	assert.Equal(t, flow.EndedChange, f.state(t, 77))
}

func TestLanguageEdit(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2999-01-01T00:00:00", true)

	assert.Empty(t, f.press(t, 77, cbChLang, "de").out, "stale keyboard")

	f.press(t, 77, cbProfileChange, "language")
	out := f.press(t, 77, cbChLang, "de").last(t)
	assert.Contains(t, labels(out.markup), "Advanced")

	out = f.press(t, 77, cbChFluency, "4").last(t)
	assert.Contains(t, out.text, "Welcome")

	users := f.backend.UpdatedUsers()
	require.Len(t, users, 1)
	assert.Equal(t, "de", users[0].Language)
	assert.Equal(t, 4, users[0].Fluency)
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2999-01-01T00:00:00", false)

	out := f.press(t, 77, cbSubDetails, "").last(t)
	assert.Contains(t, out.text, "active until *2999-01-01*")
	assert.Contains(t, labels(out.markup), "Pause subscription")

	out = f.press(t, 77, cbCancelSub, "").last(t)
	assert.Contains(t, out.text, "paused")
	assert.Contains(t, labels(out.markup), "Resume subscription")

	out = f.press(t, 77, cbResumeSub, "").last(t)
	assert.Contains(t, out.text, "active until *2999-01-01*")

	toggles := f.backend.Toggles()
	require.Len(t, toggles, 2)
	assert.False(t, toggles[0].Activate)
	assert.True(t, toggles[1].Activate)
}

func TestExpiredSubscriptionDetails(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2020-01-01T00:00:00", false)
	out := f.press(t, 77, cbSubDetails, "").last(t)
	assert.Contains(t, out.text, "expired")
	assert.Equal(t, []string{"Back"}, labels(out.markup))
}

func TestGoBackLeavesEdit(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2999-01-01T00:00:00", true)
	f.press(t, 77, cbProfileChange, "intro")
	assert.Equal(t, flow.WaitingIntro, f.state(t, 77))

	out := f.press(t, 77, cbGoBack, "").last(t)
	assert.Contains(t, out.text, "Welcome")
	assert.Equal(t, flow.EndedChange, f.state(t, 77))
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Open gateway sessions: 0", f.command(t, 1, "/stats").last(t).text)
}

func TestBackendFailureTellsUserToRestart(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2999-01-01T00:00:00", true)
	f.backend.Fail(gateway.OpUserData, http.StatusInternalServerError)

	r, err := f.tap(f.sender(77), 77, cbProfile, "")
	require.Error(t, err)
	out := r.last(t).text
	assert.Contains(t, out, "/menu")
	assert.Contains(t, out, "/start")
}

func TestCallbacksWithoutSenderAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.registered(77, "2999-01-01T00:00:00", true)

	presses := []struct{ unique, payload string }{
		{cbCameFrom, "ads"},
		{cbLang, "de"},
		{cbFluency, "2"},
		{cbTopic, "music"},
		{cbConfirm, ""},
		{cbProfile, ""},
		{cbGoBack, ""},
		{cbProfileChange, "intro"},
		{cbSubDetails, ""},
		{cbCancelSub, ""},
		{cbResumeSub, ""},
		{"shop", "1"},
	}
	for _, p := range presses {
		t.Run(p.unique, func(t *testing.T) {
			var (
				r   *recorder
				err error
			)
			require.NotPanics(t, func() { r, err = f.tap(nil, 77, p.unique, p.payload) })
			require.NoError(t, err)
			assert.Empty(t, r.out)
		})
	}
	assert.Empty(t, f.backend.Toggles())
}
