package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedTexts(t *testing.T) {
	texts, err := LoadTexts()
	require.NoError(t, err)

	for _, group := range []string{GroupCameFrom, GroupLanguages, GroupFluency, GroupTopics} {
		assert.NotEmpty(t, texts.Choices(group), group)
	}
	assert.Len(t, texts.Choices(GroupFluency), 5)
}

func TestTextsFallback(t *testing.T) {
	texts, err := LoadTexts()
	require.NoError(t, err)

	assert.Equal(t, "Press /menu to open menu", texts.Message("press_menu", "ru"))
	assert.Equal(t, "Back", texts.Button("back", "zh"))
	assert.Equal(t, "Назад", texts.Button("back", "ru"))
	assert.Equal(t, "no_such_text", texts.Message("no_such_text", "en"))
}

func TestTextsFormat(t *testing.T) {
	texts, err := LoadTexts()
	require.NoError(t, err)

	assert.Equal(t, "Hello, *Ann*!", texts.Format("hello", "en", "name", "Ann"))
	assert.Equal(t, "Hello, *{name}*!", texts.Format("hello", "en"))
	assert.Equal(t, "Open gateway sessions: 3", texts.Format("stats", "en", "sessions", "3", "dangling"))
}

func TestTextsLabels(t *testing.T) {
	texts, err := LoadTexts()
	require.NoError(t, err)

	assert.Equal(t, "German", texts.Label(GroupLanguages, "de", "en"))
	assert.Equal(t, "Немецкий", texts.Label(GroupLanguages, "de", "ru"))
	assert.Equal(t, "klingon", texts.Label(GroupLanguages, "klingon", "en"))
	assert.Equal(t, "Music, Food", texts.Labels(GroupTopics, []string{"music", "food"}, "en"))
	assert.Equal(t, "", texts.Labels(GroupTopics, nil, "en"))
}

func TestParseTextsRejectsMissingEnglish(t *testing.T) {
	_, err := ParseTexts([]byte("messages:\n  hello:\n    ru: \"Привет\"\n"))
	assert.ErrorContains(t, err, `"hello"`)

	_, err = ParseTexts([]byte("options:\n  topics:\n    - key: music\n      labels: {ru: \"Музыка\"}\n"))
	assert.ErrorContains(t, err, "topics")

	_, err = ParseTexts([]byte("messages: ["))
	assert.Error(t, err)
}

func TestFailureTextPointsToRestart(t *testing.T) {
	texts, err := LoadTexts()
	require.NoError(t, err)

	for _, lang := range []string{"en", "ru"} {
		msg := texts.Message("unexpected_error", lang)
		assert.Contains(t, msg, "/menu", lang)
		assert.Contains(t, msg, "/start", lang)
	}
}
