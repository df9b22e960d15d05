// Package format holds small text helpers for building Telegram messages.
package format

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

var (
	legacyMarkdown = escaper("_*`[")
	markdownV2     = escaper("_*[]()~`>#+-=|{}.!\\")
)

func escaper(specials string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(specials))
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// Markdown escapes user supplied text for the legacy Markdown parse mode.
func Markdown(text string) string {
	return legacyMarkdown.Replace(text)
}

// Escape escapes text for the given parse mode. HTML and plain text are
// returned unchanged.
func Escape(mode tele.ParseMode, text string) string {
	switch mode {
	case tele.ModeMarkdown:
		return legacyMarkdown.Replace(text)
	case tele.ModeMarkdownV2:
		return markdownV2.Replace(text)
	}
	return text
}
