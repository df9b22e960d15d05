// Package validate holds the acceptance rules for user-supplied profile text.
package validate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
)

// Kind classifies a rejected input.
type Kind string

const (
	KindTooShort          Kind = "too_short"
	KindTooLong           Kind = "too_long"
	KindEmptySpace        Kind = "empty_space"
	KindEmoji             Kind = "emoji"
	KindInvalidCharacters Kind = "invalid_characters"
	KindAlreadyExists     Kind = "already_exists"
)

const (
	nicknameMin = 6
	nicknameMax = 16
	introMin    = 10
	introMax    = 500
)

var nicknamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,15}$`)

// Error reports why an input was rejected.
type Error struct {
	Field string
	Kind  Kind
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Kind)
}

// Code returns a stable identifier for logs.
func (e *Error) Code() string {
	return "VALIDATION_" + strings.ToUpper(string(e.Kind))
}

// KindOf extracts the rejection kind from err.
func KindOf(err error) (Kind, bool) {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Kind, true
	}
	return "", false
}

// NicknameChecker asks the backend whether a nickname is still free.
type NicknameChecker interface {
	NicknameAvailable(ctx context.Context, nickname string) (bool, error)
}

// NicknameFormat applies the local nickname rules.
func NicknameFormat(nickname string) error {
	reject := func(k Kind) error { return &Error{Field: "nickname", Kind: k} }

	if hasEmoji(nickname) {
		return reject(KindEmoji)
	}
	n := utf8.RuneCountInString(nickname)
	if n < nicknameMin {
		return reject(KindTooShort)
	}
	if n > nicknameMax {
		return reject(KindTooLong)
	}
	if strings.IndexFunc(nickname, unicode.IsSpace) >= 0 {
		return reject(KindEmptySpace)
	}
	if !nicknamePattern.MatchString(nickname) || strings.IndexFunc(nickname, isASCIILetter) < 0 {
		return reject(KindInvalidCharacters)
	}
	return nil
}

// Nickname applies the local rules and then the remote uniqueness check.
// Errors from the checker itself are returned unchanged.
func Nickname(ctx context.Context, nickname string, checker NicknameChecker) error {
	if err := NicknameFormat(nickname); err != nil {
		return err
	}
	if checker == nil {
		return nil
	}
	free, err := checker.NicknameAvailable(ctx, nickname)
	if err != nil {
		return fmt.Errorf("nickname uniqueness: %w", err)
	}
	if !free {
		return &Error{Field: "nickname", Kind: KindAlreadyExists}
	}
	return nil
}

// Intro checks the free-text bio length, ignoring plain spaces.
func Intro(intro string) error {
	n := utf8.RuneCountInString(strings.ReplaceAll(intro, " ", ""))
	if n < introMin {
		return &Error{Field: "intro", Kind: KindTooShort}
	}
	if n > introMax {
		return &Error{Field: "intro", Kind: KindTooLong}
	}
	return nil
}

// hasEmoji skips pure ASCII input; keycap emoji need a non-ASCII selector.
func hasEmoji(s string) bool {
	nonASCII := strings.IndexFunc(s, func(r rune) bool { return r > unicode.MaxASCII }) >= 0
	return nonASCII && gomoji.ContainsEmoji(s)
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
