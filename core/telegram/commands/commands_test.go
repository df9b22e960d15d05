package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestValidate(t *testing.T) {
	h := func(tele.Context) error { return nil }

	assert.NoError(t, Command{Handler: h, Description: "Open the main menu"}.Validate("/menu"))
	assert.ErrorIs(t, Command{Handler: h, Description: "x"}.Validate("menu"), ErrNoSlash)
	assert.ErrorIs(t, Command{Description: "x"}.Validate("/menu"), ErrInvalid)
	assert.ErrorIs(t, Command{Handler: h, Description: "  "}.Validate("/menu"), ErrInvalid)
}

func TestVisible(t *testing.T) {
	assert.True(t, Command{}.Visible())
	assert.False(t, Command{AdminOnly: true}.Visible())
	assert.False(t, Command{Hidden: true}.Visible())
}
