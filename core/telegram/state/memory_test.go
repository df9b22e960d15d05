package state

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/langbot/core/clock"
)

func TestMemoryStoreMergesUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, nil)

	require.NoError(t, s.Update(ctx, 7, map[string]any{"lang_code": "en", "topics": []string{"travel"}}))
	require.NoError(t, s.Update(ctx, 7, map[string]any{"fluency": 3}))

	data, err := s.Data(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "en", data["lang_code"])
	assert.Equal(t, json.Number("3"), data["fluency"])
	topics, ok := Strings(data, "topics")
	require.True(t, ok)
	assert.Equal(t, []string{"travel"}, topics)
}

func TestMemoryStoreDataIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, nil)
	require.NoError(t, s.Update(ctx, 1, map[string]any{"topics": []string{"a"}}))

	data, err := s.Data(ctx, 1)
	require.NoError(t, err)
	data["topics"].([]any)[0] = "mutated"
	data["extra"] = true

	again, err := s.Data(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, again["topics"])
	assert.False(t, Has(again, "extra"))
}

func TestMemoryStoreStateAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, nil)

	st, err := s.State(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st)

	require.NoError(t, s.SetState(ctx, 5, State("waiting_nickname")))
	require.NoError(t, s.Update(ctx, 5, map[string]any{"k": "v"}))
	st, err = s.State(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, State("waiting_nickname"), st)

	require.NoError(t, s.Clear(ctx, 5))
	st, err = s.State(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st)
	data, err := s.Data(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	fake := clock.Fake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), time.UTC)
	s := NewMemoryStore(time.Minute, fake)

	require.NoError(t, s.Update(ctx, 9, map[string]any{"k": "v"}))
	require.NoError(t, s.SetState(ctx, 9, State("waiting_intro")))

	fake.Advance(30 * time.Second)
	data, err := s.Data(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "v", data["k"])

	fake.Advance(2 * time.Minute)
	data, err = s.Data(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, data)
	st, err := s.State(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st)

	// a write after expiry starts from scratch
	require.NoError(t, s.Update(ctx, 9, map[string]any{"fresh": true}))
	data, err = s.Data(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"fresh": true}, data)
}

func TestMemoryStoreRejectsUnencodableValues(t *testing.T) {
	s := NewMemoryStore(0, nil)
	err := s.Update(context.Background(), 1, map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
