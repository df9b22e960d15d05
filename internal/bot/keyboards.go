package bot

import (
	"github.com/m3rciful/langbot/core/telegram/keyboard"
	"github.com/m3rciful/langbot/internal/flow"

	tele "gopkg.in/telebot.v4"
)

// Callback uniques.
const (
	cbCameFrom      = "camefrom"
	cbLang          = "lang"
	cbFluency       = "fluency"
	cbTopic         = "topic"
	cbStartTrial    = "start_trial"
	cbConfirm       = "action_confirm"
	cbMainPage      = "start_main_page"
	cbGoBack        = "go_back"
	cbAbout         = "about"
	cbProfile       = "profile"
	cbEditProfile   = "edit_profile"
	cbProfileChange = "profile_change"
	cbChLang        = "chlang"
	cbChFluency     = "chfluency"
	cbChTopic       = "chtopic"
	cbSubDetails    = "sub_details"
	cbCancelSub     = "cancel_subscription"
	cbResumeSub     = "resume_subscription"
)

const selectedMark = "✅ "

type keyboards struct {
	texts *Texts
}

func (k keyboards) options(group, unique, lang string, perRow int) *tele.ReplyMarkup {
	choices := k.texts.Choices(group)
	btns := make([]keyboard.Button, 0, len(choices))
	for _, o := range choices {
		btns = append(btns, keyboard.Button{Text: k.texts.Label(group, o.Key, lang), Unique: unique, Data: o.Key})
	}
	return keyboard.Grid(btns, perRow)
}

func (k keyboards) cameFrom(lang string) *tele.ReplyMarkup {
	return k.options(GroupCameFrom, cbCameFrom, lang, 2)
}

// language lists practice languages; edit selects the edit-track unique.
func (k keyboards) language(lang string, edit bool) *tele.ReplyMarkup {
	unique := cbLang
	if edit {
		unique = cbChLang
	}
	return k.options(GroupLanguages, unique, lang, 2)
}

func (k keyboards) fluency(lang string, edit bool) *tele.ReplyMarkup {
	unique := cbFluency
	if edit {
		unique = cbChFluency
	}
	return k.options(GroupFluency, unique, lang, 1)
}

// topics marks the selected topics and closes with the Done button.
func (k keyboards) topics(lang string, selected flow.Topics, edit bool) *tele.ReplyMarkup {
	unique := cbTopic
	if edit {
		unique = cbChTopic
	}
	choices := k.texts.Choices(GroupTopics)
	btns := make([]keyboard.Button, 0, len(choices))
	for _, o := range choices {
		label := k.texts.Label(GroupTopics, o.Key, lang)
		if selected.Contains(o.Key) {
			label = selectedMark + label
		}
		btns = append(btns, keyboard.Button{Text: label, Unique: unique, Data: o.Key})
	}
	done := keyboard.Button{Text: k.texts.Button("done", lang), Unique: unique, Data: flow.SentinelEndSelection}
	return keyboard.Grid(btns, 2, []keyboard.Button{done})
}

func (k keyboards) single(label, unique, lang string) *tele.ReplyMarkup {
	return keyboard.Column(keyboard.Button{Text: k.texts.Button(label, lang), Unique: unique})
}

func (k keyboards) trial(lang string) *tele.ReplyMarkup {
	return k.single("start_trial", cbStartTrial, lang)
}

func (k keyboards) confirm(lang string) *tele.ReplyMarkup {
	return k.single("confirm", cbConfirm, lang)
}

// toMenu opens the main menu as a fresh message.
func (k keyboards) toMenu(lang string) *tele.ReplyMarkup {
	return k.single("main_menu", cbMainPage, lang)
}

func (k keyboards) back(lang string) *tele.ReplyMarkup {
	return k.single("back", cbGoBack, lang)
}

func (k keyboards) mainMenu(lang string) *tele.ReplyMarkup {
	return keyboard.Grid([]keyboard.Button{
		{Text: k.texts.Button("profile", lang), Unique: cbProfile},
		{Text: k.texts.Button("edit_profile", lang), Unique: cbEditProfile},
		{Text: k.texts.Button("subscription", lang), Unique: cbSubDetails},
		{Text: k.texts.Button("about", lang), Unique: cbAbout},
	}, 2)
}

func (k keyboards) editOptions(lang string) *tele.ReplyMarkup {
	fields := []struct {
		label string
		field flow.Field
	}{
		{"edit_nickname", flow.FieldNickname},
		{"edit_language", flow.FieldLanguage},
		{"edit_topics", flow.FieldTopics},
		{"edit_intro", flow.FieldIntro},
	}
	btns := make([]keyboard.Button, 0, len(fields))
	for _, f := range fields {
		btns = append(btns, keyboard.Button{Text: k.texts.Button(f.label, lang), Unique: cbProfileChange, Data: string(f.field)})
	}
	back := keyboard.Button{Text: k.texts.Button("back", lang), Unique: cbGoBack}
	return keyboard.Grid(btns, 2, []keyboard.Button{back})
}

// subscription offers pause or resume; with neither it only leads back.
func (k keyboards) subscription(lang string, active, paused bool) *tele.ReplyMarkup {
	var btns []keyboard.Button
	switch {
	case active:
		btns = append(btns, keyboard.Button{Text: k.texts.Button("cancel_sub", lang), Unique: cbCancelSub})
	case paused:
		btns = append(btns, keyboard.Button{Text: k.texts.Button("resume_sub", lang), Unique: cbResumeSub})
	}
	btns = append(btns, keyboard.Button{Text: k.texts.Button("back", lang), Unique: cbGoBack})
	return keyboard.Column(btns...)
}

// payment carries the checkout link as a URL button.
func (k keyboards) payment(lang, link string) *tele.ReplyMarkup {
	if link == "" {
		return keyboard.Markup()
	}
	return keyboard.Column(keyboard.Button{Text: k.texts.Button("pay", lang), URL: link})
}
