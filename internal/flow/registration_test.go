package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/langbot/core/telegram/state"
	"github.com/m3rciful/langbot/internal/gateway"
	"github.com/m3rciful/langbot/internal/session"
)

func newRegistration(t *testing.T) (*Registration, state.Store) {
	t.Helper()
	store := state.NewMemoryStore(0, nil)
	m, err := NewMachine(store, Table)
	require.NoError(t, err)
	return NewRegistration(m, store), store
}

func TestRegistrationHappyPath(t *testing.T) {
	reg, store := newRegistration(t)
	ctx := context.Background()

	require.NoError(t, reg.Start(ctx, Applicant{UserID: 9, FirstName: "Ann", LangCode: "fr"}))
	require.NoError(t, reg.CameFrom(ctx, 9, "friends"))
	require.NoError(t, reg.Language(ctx, 9, "de"))

	step, err := reg.Fluency(ctx, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, Advance, step.Outcome)
	assert.Equal(t, WaitingSelection, step.State)

	for _, tag := range []string{"travel", "music", "art", "food"} {
		step, err = reg.Topic(ctx, 9, tag)
		require.NoError(t, err)
		assert.Equal(t, Stay, step.Outcome)
	}
	assert.Equal(t, Topics{"music", "art", "food"}, step.Topics)

	step, err = reg.Topic(ctx, 9, "art")
	require.NoError(t, err)
	assert.Equal(t, Topics{"music", "food"}, step.Topics)

	step, err = reg.Topic(ctx, 9, SentinelEndSelection)
	require.NoError(t, err)
	assert.Equal(t, Advance, step.Outcome)
	assert.Equal(t, EndSelection, step.State)

	u, err := reg.Applicant(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, gateway.User{
		UserID:    9,
		Username:  "NO USERNAME",
		FirstName: "Ann",
		CameFrom:  "friends",
		Language:  "de",
		Fluency:   2,
		Topics:    gateway.TopicList{"music", "food"},
		LangCode:  "en",
	}, u)

	require.NoError(t, reg.Finish(ctx, 9))
	data, err := store.Data(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRegistrationEmptySentinelIsNoop(t *testing.T) {
	reg, store := newRegistration(t)
	ctx := context.Background()
	require.NoError(t, reg.Start(ctx, Applicant{UserID: 3, Username: "bo", FirstName: "Bo", LangCode: "ru"}))
	_, err := reg.Fluency(ctx, 3, 1)
	require.NoError(t, err)

	step, err := reg.Topic(ctx, 3, SentinelEndSelection)
	require.NoError(t, err)
	assert.Equal(t, Stay, step.Outcome)
	assert.Empty(t, step.Topics)

	st, err := store.State(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, WaitingSelection, st)
}

func TestRegistrationTopicOutsideSelection(t *testing.T) {
	reg, _ := newRegistration(t)
	_, err := reg.Topic(context.Background(), 4, "travel")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRegistrationTopicDuringEditIsRejected(t *testing.T) {
	reg, store := newRegistration(t)
	ctx := context.Background()
	require.NoError(t, store.SetState(ctx, 4, WaitingTopic))
	require.NoError(t, store.Update(ctx, 4, map[string]any{session.KeyTopics: []string{"art"}}))

	step, err := reg.Topic(ctx, 4, "travel")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, WaitingTopic, step.State)

	data, err := store.Data(ctx, 4)
	require.NoError(t, err)
	topics, _ := state.Strings(data, session.KeyTopics)
	assert.Equal(t, []string{"art"}, topics)
}

func TestApplicantRequiresSeed(t *testing.T) {
	reg, _ := newRegistration(t)
	_, err := reg.Applicant(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNoApplicant)
}

func TestInterfaceLang(t *testing.T) {
	assert.Equal(t, "zh", InterfaceLang("zh"))
	assert.Equal(t, "en", InterfaceLang("pt-br"))
	assert.Equal(t, "en", InterfaceLang(""))
}
