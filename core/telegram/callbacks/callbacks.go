// Package callbacks reads the data telebot attaches to inline buttons.
//
// A button built with Markup.Data(text, unique, payload) arrives as
// "\f<unique>|<payload>". When telebot already routed the press to a
// registered unique, Callback.Unique is filled and Data holds the payload.
package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const marker = "\f"

// Encode builds the raw callback data of a button, the inverse of Parse.
func Encode(unique, payload string) string {
	if payload == "" {
		return marker + unique
	}
	return marker + unique + "|" + payload
}

// Parse splits cb into its unique key and payload.
func Parse(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, marker)
	raw = strings.TrimPrefix(raw, `\f`)
	unique, payload, _ = strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// Key is the unique of the pressed button.
func Key(c tele.Context) string {
	k, _ := Parse(c.Callback())
	return k
}

// Payload is the payload of the pressed button.
func Payload(c tele.Context) string {
	_, p := Parse(c.Callback())
	return p
}

// PayloadInt reads the payload as a decimal integer.
func PayloadInt(c tele.Context) (int, error) {
	return strconv.Atoi(strings.TrimSpace(Payload(c)))
}
