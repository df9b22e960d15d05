package validate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	taken map[string]bool
	err   error
	calls int
}

func (s *stubChecker) NicknameAvailable(_ context.Context, nickname string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return !s.taken[nickname], nil
}

func TestNicknameFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
	}{
		{"neo42x", ""},
		{"Trinity", ""},
		{"abc", KindTooShort},
		{"abcdefghijklmnopq", KindTooLong},
		{"neo 42x", KindEmptySpace},
		{"neo\t42x", KindEmptySpace},
		{"neo😀42x", KindEmoji},
		{"123456", KindInvalidCharacters},
		{"neo_42x", KindInvalidCharacters},
		{"абвгдеж", KindInvalidCharacters},
		// sixteen characters passes the length rule but not the pattern
		{"abcdefghijklmnop", KindInvalidCharacters},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			err := NicknameFormat(tc.in)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			kind, ok := KindOf(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tc.want, kind)
		})
	}
}

func TestNicknameRemoteCheck(t *testing.T) {
	checker := &stubChecker{taken: map[string]bool{"taken42": true}}

	assert.NoError(t, Nickname(context.Background(), "free42", checker))

	kind, ok := KindOf(Nickname(context.Background(), "taken42", checker))
	require.True(t, ok)
	assert.Equal(t, KindAlreadyExists, kind)
	assert.Equal(t, 2, checker.calls)

	// local failures never reach the backend
	_, ok = KindOf(Nickname(context.Background(), "ab", checker))
	assert.True(t, ok)
	assert.Equal(t, 2, checker.calls)
}

func TestNicknameCheckerFailure(t *testing.T) {
	boom := errors.New("gateway down")
	err := Nickname(context.Background(), "free42", &stubChecker{err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	_, ok := KindOf(err)
	assert.False(t, ok)
}

func TestIntro(t *testing.T) {
	assert.NoError(t, Intro("I like long walks"))

	kind, _ := KindOf(Intro("a b c d e f g h i"))
	assert.Equal(t, KindTooShort, kind)

	kind, _ = KindOf(Intro(strings.Repeat("x", 501)))
	assert.Equal(t, KindTooLong, kind)

	assert.NoError(t, Intro(strings.Repeat("x ", 500)))
}

func TestErrorCode(t *testing.T) {
	err := &Error{Field: "nickname", Kind: KindAlreadyExists}
	assert.Equal(t, "VALIDATION_ALREADY_EXISTS", err.Code())
	assert.Equal(t, "invalid nickname: already_exists", err.Error())
}
