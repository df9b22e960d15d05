package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(f format, alerts *bytes.Buffer) (*bytes.Buffer, *slog.Logger) {
	buf := &bytes.Buffer{}
	h := newLineHandler(slog.LevelInfo, f, nil, buf, nil)
	if alerts != nil {
		h.alerts = alerts
	}
	return buf, slog.New(h)
}

func TestKVLineOrder(t *testing.T) {
	buf, l := capture(formatKV, nil)
	ctx := WithLogger(context.Background(), l.With("component", "tg"))
	ctx = WithRID(ctx, "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	Info(ctx, "session", "session.load",
		slog.String("cause", "unit"),
		slog.String("status", "ok"),
	)

	tokens := strings.Fields(buf.String())
	want := []string{"level=INFO", "component=session", "event=session.load", "status=ok",
		"rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "cause=unit"}
	require.Len(t, tokens, len(want)+1)
	assert.True(t, strings.HasPrefix(tokens[0], "ts="))
	assert.Equal(t, want, tokens[1:])
}

func TestJSONLineOrderAndRID(t *testing.T) {
	buf, l := capture(formatJSON, nil)
	ctx := WithLogger(WithRID(context.Background(), "123:456:789"), l)

	Error(ctx, "gateway", "gateway.call",
		slog.String("err", "boom"),
		slog.String("status", "fail"),
	)

	line := strings.TrimSpace(buf.String())
	pos := -1
	for _, part := range []string{`{"ts":`, `"level":"ERROR"`, `"component":"gateway"`,
		`"event":"gateway.call"`, `"status":"fail"`, `"rid":"3f.co.lx"`, `"rid_full":"123:456:789"`, `"err":"boom"`} {
		idx := strings.Index(line, part)
		require.Greater(t, idx, pos, "%s out of order in %s", part, line)
		pos = idx
	}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
}

func TestKVOmitsFullRID(t *testing.T) {
	buf, l := capture(formatKV, nil)
	l.InfoContext(WithRID(context.Background(), "1:2:3"), "rid.test")
	line := buf.String()
	assert.Contains(t, line, "rid=1.2.3")
	assert.NotContains(t, line, "rid_full")
	assert.Contains(t, line, "event=rid.test")
	assert.Contains(t, line, "component=app")
}

func TestValueNormalization(t *testing.T) {
	buf, l := capture(formatKV, nil)
	l.LogAttrs(context.Background(), slog.LevelInfo, "norm",
		slog.Duration("duration", 12*time.Millisecond),
		slog.Duration("backoff_ms", 3*time.Millisecond),
		slog.String("cache", "MISS"),
		slog.String("outcome", "not_found"),
		slog.String("status", "Weird"),
		slog.String("payload", "  "),
		slog.String("text", "two words"),
		slog.Any("cause", assert.AnError),
		slog.Group("req", slog.Int("id", 5)),
	)
	line := buf.String()
	for _, want := range []string{"duration_ms=12", "backoff_ms=3", "cache=miss", "outcome=not_found",
		"status=weird", `text="two words"`, "req.id=5"} {
		assert.Contains(t, line, want)
	}
	assert.Contains(t, line, "cause=")
	assert.NotContains(t, line, "payload=")
}

func TestUnknownVocabularyDropped(t *testing.T) {
	buf, l := capture(formatKV, nil)
	l.Info("x", slog.String("cache", "warm"), slog.String("outcome", "maybe"))
	assert.NotContains(t, buf.String(), "cache=")
	assert.NotContains(t, buf.String(), "outcome=")
}

func TestGroupsAndPreset(t *testing.T) {
	buf, l := capture(formatKV, nil)
	l.WithGroup("db").With("host", "pg").Info("x", "port", 5432)
	assert.Contains(t, buf.String(), "db.host=pg")
	assert.Contains(t, buf.String(), "db.port=5432")
}

func TestAlertsReceiveWarnAndAbove(t *testing.T) {
	alerts := &bytes.Buffer{}
	buf, l := capture(formatKV, alerts)
	ctx := WithLogger(context.Background(), l)

	Debug(ctx, "app", "hidden")
	Info(ctx, "app", "info.line")
	Warn(ctx, "app", "warn.line")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "info.line")
	assert.Contains(t, buf.String(), "warn.line")
	assert.NotContains(t, alerts.String(), "info.line")
	assert.Contains(t, alerts.String(), "level=WARN")
}
