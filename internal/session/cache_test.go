package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/langbot/core/clock"
	"github.com/m3rciful/langbot/core/telegram/state"
	"github.com/m3rciful/langbot/internal/gateway"
	"github.com/m3rciful/langbot/internal/gateway/gatewaytest"
)

const uid int64 = 5

func newCache(t *testing.T) (*Cache, *gatewaytest.Backend, state.Store) {
	t.Helper()
	backend := gatewaytest.New(t)
	clk := clock.Fake(time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC), time.UTC)
	store := state.NewMemoryStore(0, clk)
	return New(backend.Client(t), store, clk), backend, store
}

func seedUser(b *gatewaytest.Backend, active bool) {
	b.SetUser(uid, map[string]any{
		"user_id":    uid,
		"username":   "neo",
		"first_name": "Thomas",
		"camefrom":   "friends",
		"language":   "de",
		"fluency":    3,
		"topics":     "travel, music",
		"lang_code":  "ru",
	})
	b.SetPayment(uid, map[string]any{
		"is_active": map[bool]string{true: "True", false: "False"}[active],
		"until":     "2999-01-01T00:00:00",
	})
}

func TestLoadHydratesThenServesFromStore(t *testing.T) {
	cache, backend, _ := newCache(t)
	seedUser(backend, true)
	backend.SetProfile(uid, map[string]any{
		"user_id":  uid,
		"nickname": "neo42x",
		"birthday": "2000-06-15",
		"dating":   true,
	})

	res, err := cache.Load(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, KindHydrated, res.Kind)

	rec := res.Record
	assert.Equal(t, "Thomas", rec.FirstName)
	assert.True(t, rec.IsActive)
	assert.Equal(t, "2999-01-01T00:00:00", rec.DueTo)
	assert.Equal(t, []string{"travel", "music"}, rec.Topics)
	require.NotNil(t, rec.Profile)
	assert.Equal(t, "neo42x", rec.NicknameOrEmpty())
	require.NotNil(t, rec.Profile.Age)
	// 8765 days / 365, one day short of the calendar birthday
	assert.Equal(t, 24, *rec.Profile.Age)
	assert.Equal(t, 2, backend.Calls(gateway.OpUserData))
	assert.Equal(t, 1, backend.Calls(gateway.OpPaymentData))

	res, err = cache.Load(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, KindCached, res.Kind)
	assert.Equal(t, rec, res.Record)
	assert.Equal(t, 2, backend.Calls(gateway.OpUserData))
	assert.Equal(t, 1, backend.Calls(gateway.OpPaymentData))
}

func TestLoadUnknownUser(t *testing.T) {
	cache, _, store := newCache(t)

	res, err := cache.Load(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, KindNotFound, res.Kind)
	assert.False(t, res.Found())

	data, err := store.Data(context.Background(), uid)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = cache.Get(context.Background(), uid)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestLoadEmptyUserRecordIsUnknown(t *testing.T) {
	cache, backend, store := newCache(t)
	backend.SetUser(uid, map[string]any{})

	res, err := cache.Load(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, KindNotFound, res.Kind)

	data, err := store.Data(context.Background(), uid)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLoadFailureLeavesStoreUntouched(t *testing.T) {
	cache, backend, store := newCache(t)
	seedUser(backend, true)
	backend.Fail(gateway.OpPaymentData, http.StatusBadGateway)

	partial := map[string]any{"user_id": uid, "lang_code": "en"}
	require.NoError(t, store.Update(context.Background(), uid, partial))

	_, err := cache.Load(context.Background(), uid)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, gateway.StatusCode(err))

	data, err := store.Data(context.Background(), uid)
	require.NoError(t, err)
	assert.Len(t, data, 2)
	assert.False(t, Complete(data))
	assert.Zero(t, cache.gw.OpenSessions())
}

func TestLoadRenewDropsStoredSnapshot(t *testing.T) {
	cache, backend, store := newCache(t)
	seedUser(backend, true)
	ctx := context.Background()

	_, err := cache.Load(ctx, uid)
	require.NoError(t, err)
	require.NoError(t, store.SetState(ctx, uid, "waiting_intro"))

	backend.SetPayment(uid, map[string]any{"is_active": true, "until": "2030-05-01T10:00:00+02:00"})
	res, err := cache.Load(ctx, uid, WithRenew())
	require.NoError(t, err)
	assert.Equal(t, KindHydrated, res.Kind)
	assert.Equal(t, "2030-05-01T10:00:00+02:00", res.Record.DueTo)

	st, err := store.State(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, st)
}

func TestInactiveSubscriberIsRehydrated(t *testing.T) {
	cache, backend, _ := newCache(t)
	seedUser(backend, false)

	for i := 0; i < 2; i++ {
		res, err := cache.Load(context.Background(), uid)
		require.NoError(t, err)
		assert.Equal(t, KindHydrated, res.Kind)
		assert.False(t, res.Record.IsActive)
	}
	assert.Equal(t, 2, backend.Calls(gateway.OpPaymentData))
}

func TestErrorFlaggedProfileIsOmitted(t *testing.T) {
	cache, backend, store := newCache(t)
	seedUser(backend, true)
	backend.SetProfile(uid, map[string]any{"error": "profile not found"})

	res, err := cache.Load(context.Background(), uid)
	require.NoError(t, err)
	assert.Nil(t, res.Record.Profile)

	data, err := store.Data(context.Background(), uid)
	require.NoError(t, err)
	assert.NotContains(t, data, KeyNickname)
	assert.True(t, Complete(data))
}

func TestRoundTripToWriteShapes(t *testing.T) {
	cache, backend, _ := newCache(t)
	seedUser(backend, true)
	backend.SetProfile(uid, map[string]any{
		"user_id":  uid,
		"nickname": "neo42x",
		"email":    nil,
		"gender":   "m",
		"intro":    "hello there friends",
		"birthday": "1999-01-02",
		"dating":   true,
		"status":   nil,
	})
	ctx := context.Background()

	_, err := cache.Load(ctx, uid)
	require.NoError(t, err)
	// the cached read has been through the store's JSON normalization
	rec, err := cache.Get(ctx, uid)
	require.NoError(t, err)

	assert.Equal(t, gateway.User{
		UserID:    uid,
		Username:  "neo",
		FirstName: "Thomas",
		CameFrom:  "friends",
		Language:  "de",
		Fluency:   3,
		Topics:    gateway.TopicList{"travel", "music"},
		LangCode:  "ru",
	}, rec.ToUser())

	nick, gender, intro, birthday, dating := "neo42x", "m", "hello there friends", "1999-01-02", true
	prof, ok := rec.ToProfile()
	require.True(t, ok)
	assert.Equal(t, gateway.Profile{
		UserID:   uid,
		Nickname: &nick,
		Gender:   &gender,
		Intro:    &intro,
		Birthday: &birthday,
		Dating:   &dating,
	}, prof)
}

func TestComplete(t *testing.T) {
	full := map[string]any{"user_id": uid, "first_name": "T", "is_active": true, "lang_code": "en"}
	assert.True(t, Complete(full))

	for _, key := range RequiredKeys {
		partial := map[string]any{}
		for k, v := range full {
			if k != key {
				partial[k] = v
			}
		}
		assert.False(t, Complete(partial), "without %s", key)
	}

	inactive := map[string]any{"user_id": uid, "first_name": "T", "is_active": false, "lang_code": "en"}
	assert.False(t, Complete(inactive))
	assert.False(t, Complete(nil))
}
