package approval

import (
	"context"
	"errors"
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

const uid int64 = 42

var moscow = time.FixedZone("MSK", 3*60*60)

func newEngine(t *testing.T, now time.Time, loc *time.Location) (*Engine, *gatewaytest.Backend) {
	t.Helper()
	backend := gatewaytest.New(t)
	return New(backend.Client(t), clock.Fake(now, loc)), backend
}

type failingWriter struct{ calls int }

func (w *failingWriter) Update(context.Context, int64, map[string]any) error {
	w.calls++
	return errors.New("store down")
}

func TestExpiryScenarios(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		until string
		want  bool
	}{
		{"2020-01-01T00:00:00", false},
		{"2999-01-01T00:00:00", true},
		{"2024-01-01T00:00:00", false},
		{"2024-01-01T00:00:01", true},
		{"2024-01-02", true},
	}
	for _, tc := range cases {
		t.Run(tc.until, func(t *testing.T) {
			engine, backend := newEngine(t, now, time.UTC)
			backend.SetPayment(uid, map[string]any{"is_active": true, "until": tc.until})
			assert.Equal(t, tc.want, engine.IsApproved(context.Background(), uid, nil))
		})
	}
}

func TestUnregisteredUserPassesAndIsWrittenBack(t *testing.T) {
	engine, _ := newEngine(t, time.Now(), time.UTC)
	store := state.NewMemoryStore(0, nil)
	ctx := context.Background()

	d := engine.Check(ctx, uid, store)
	assert.True(t, d.Approved)
	assert.False(t, d.Registered)
	assert.NoError(t, d.Err)

	data, err := store.Data(ctx, uid)
	require.NoError(t, err)
	assert.Contains(t, data, "due_to")
	assert.Nil(t, data["due_to"])
	assert.Equal(t, false, data["is_active"])
}

func TestWriteBackHappensOnDenial(t *testing.T) {
	engine, backend := newEngine(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	backend.SetPayment(uid, map[string]any{"is_active": "TRUE", "until": "2020-01-01T00:00:00"})
	store := state.NewMemoryStore(0, nil)
	ctx := context.Background()

	assert.False(t, engine.IsApproved(ctx, uid, store))

	data, err := store.Data(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01T00:00:00", data["due_to"])
	assert.Equal(t, true, data["is_active"])
}

func TestFailsClosed(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		engine, backend := newEngine(t, time.Now(), time.UTC)
		backend.Fail(gateway.OpPaymentData, http.StatusInternalServerError)
		w := &failingWriter{}

		d := engine.Check(context.Background(), uid, w)
		assert.False(t, d.Approved)
		assert.Equal(t, http.StatusInternalServerError, gateway.StatusCode(d.Err))
		assert.Zero(t, w.calls)
	})

	t.Run("unparsable expiry", func(t *testing.T) {
		engine, backend := newEngine(t, time.Now(), time.UTC)
		backend.SetPayment(uid, map[string]any{"is_active": true, "until": "next tuesday"})
		d := engine.Check(context.Background(), uid, nil)
		assert.False(t, d.Approved)
		assert.Error(t, d.Err)
	})

	t.Run("write back", func(t *testing.T) {
		engine, backend := newEngine(t, time.Now(), time.UTC)
		backend.SetPayment(uid, map[string]any{"is_active": true, "until": "2999-01-01T00:00:00"})
		w := &failingWriter{}
		assert.False(t, engine.IsApproved(context.Background(), uid, w))
		assert.Equal(t, 1, w.calls)
	})
}

func TestAwareAndNaiveExpiryAgree(t *testing.T) {
	// 15:00 on the Moscow wall clock
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	pairs := [][2]string{
		{"2024-01-01T15:30:00", "2024-01-01T12:30:00+00:00"},
		{"2024-01-01T14:30:00", "2024-01-01T11:30:00Z"},
		{"2024-01-01T15:00:01", "2024-01-01T14:00:01+02:00"},
	}
	for _, pair := range pairs {
		var outcomes []bool
		for _, until := range pair {
			engine, backend := newEngine(t, now, moscow)
			backend.SetPayment(uid, map[string]any{"is_active": true, "until": until})
			outcomes = append(outcomes, engine.IsApproved(context.Background(), uid, nil))
		}
		assert.Equal(t, outcomes[0], outcomes[1], "%s vs %s", pair[0], pair[1])
	}
}
