package bot

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/langbot/core/telegram/format"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"
	"github.com/m3rciful/langbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

const bannerWidth = 15

func (b *Bot) menuText(lang string, hasNickname bool) string {
	tail := "get_to_know"
	if hasNickname {
		tail = "pin_me"
	}
	return b.texts.Message("welcome", lang) + b.texts.Message(tail, lang)
}

// sendMenu posts the main menu as a new message, with the configured image
// when there is one.
func (b *Bot) sendMenu(c tele.Context, lang string, hasNickname bool) error {
	text := b.menuText(lang, hasNickname)
	markup := b.kb.mainMenu(lang)
	if b.imagePath != "" {
		return tghelpers.SendPhotoMD(c, b.imagePath, text, markup)
	}
	return tghelpers.SendMD(c, text, markup)
}

// showMenu turns the current screen back into the main menu, optionally
// headed by a notice.
func (b *Bot) showMenu(c tele.Context, rec session.Record, notice string) error {
	lang := recordLang(rec)
	text := b.menuText(lang, rec.NicknameOrEmpty() != "")
	if notice != "" {
		text = b.texts.Message(notice, lang) + "\n\n" + text
	}
	return tghelpers.ShowMD(c, text, b.kb.mainMenu(lang))
}

// profileText renders the profile card. The nickname, or the chat username
// without one, is centred in a banner of bannerWidth.
func (b *Bot) profileText(rec session.Record, username string) string {
	lang := recordLang(rec)
	notSpecified := b.texts.Message("not_specified", lang)

	nickname := format.Or(rec.NicknameOrEmpty(), format.Or(username, rec.Username))
	side := strings.Repeat("=", max(0, bannerWidth-utf8.RuneCountInString(nickname)))
	banner := side + " " + nickname + " " + side

	age, about := notSpecified, notSpecified
	if p := rec.Profile; p != nil {
		if p.Age != nil {
			age = strconv.Itoa(*p.Age)
		}
		about = format.Markdown(format.Or(format.Deref(p.Intro, ""), notSpecified))
	}
	return b.texts.Format("user_info", lang,
		"nickname", banner,
		"age", age,
		"language", b.texts.Label(GroupLanguages, rec.Language, lang),
		"fluency", b.texts.Label(GroupFluency, strconv.Itoa(rec.Fluency), lang),
		"topics", b.texts.Labels(GroupTopics, rec.Topics, lang),
		"about", about,
	)
}
