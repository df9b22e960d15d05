package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"
)

type format int

const (
	formatJSON format = iota
	formatKV
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

// fields is one log line before encoding.
type fields map[string]any

// lineHandler is the slog.Handler behind every logger in the bot. It flattens
// groups into dotted keys, adds the identifiers found in the context and
// writes one line per record. Records at WARN and above also go to alerts.
type lineHandler struct {
	level  slog.Leveler
	format format
	order  []string
	out    io.Writer
	alerts io.Writer

	prefix string
	preset fields
}

func newLineHandler(level slog.Leveler, f format, order []string, out, alerts io.Writer) *lineHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	if len(order) == 0 {
		order = defaultKeyOrder
	}
	return &lineHandler{level: level, format: f, order: order, out: out, alerts: alerts}
}

func (h *lineHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.preset = make(fields, len(h.preset)+len(attrs))
	for k, v := range h.preset {
		c.preset[k] = v
	}
	for _, a := range attrs {
		c.preset.add(h.prefix, a)
	}
	return &c
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = join(h.prefix, name)
	return &c
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	f := make(fields, len(h.preset)+r.NumAttrs()+8)
	for k, v := range h.preset {
		f[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(h.prefix, a)
		return true
	})
	f.fromContext(ctx)

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	f["ts"] = ts.Format(tsLayout)
	f["level"] = levelName(r.Level)
	if h.format == formatJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}
	f.finish(r.Message, h.format == formatJSON)

	var line []byte
	if h.format == formatJSON {
		var err error
		if line, err = encodeJSON(f, h.order); err != nil {
			return err
		}
	} else {
		line = encodeKV(f, h.order)
	}
	line = append(line, '\n')

	if _, err := h.out.Write(line); err != nil {
		return err
	}
	if h.alerts != nil && r.Level >= slog.LevelWarn {
		_, err := h.alerts.Write(line)
		return err
	}
	return nil
}

func join(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func (f fields) add(prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := join(prefix, a.Key)
	if v.Kind() == slog.KindGroup {
		for _, sub := range v.Group() {
			f.add(key, sub)
		}
		return
	}
	if key == "" {
		return
	}
	key, val := plain(key, v)
	f[key] = val
}

// plain turns v into a value both encoders understand. Durations become
// whole milliseconds under a key ending in _ms.
func plain(key string, v slog.Value) (string, any) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String())
	case slog.KindDuration:
		if !strings.HasSuffix(key, "_ms") {
			key += "_ms"
		}
		return key, RoundMS(v.Duration()).Milliseconds()
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindUint64:
		if u := v.Uint64(); u > math.MaxInt64 {
			return key, u
		}
		return key, int64(v.Uint64())
	case slog.KindAny:
		switch x := v.Any().(type) {
		case nil:
			return key, nil
		case error:
			return key, x.Error()
		case fmt.Stringer:
			return key, x.String()
		default:
			return key, fmt.Sprint(x)
		}
	}
	return key, v.Any()
}

func (f fields) fromContext(ctx context.Context) {
	s := scopeOf(ctx)
	setIfMissing := func(key string, v any, empty bool) {
		if _, ok := f[key]; !ok && !empty {
			f[key] = v
		}
	}
	setIfMissing("rid", s.rid, s.rid == "")
	setIfMissing("update_id", s.updateID, s.updateID == 0)
	setIfMissing("user_id", s.userID, s.userID == 0)
	setIfMissing("chat_id", s.chatID, s.chatID == 0)
	setIfMissing("handler", s.handler, s.handler == "")
}

// finish fills the mandatory keys, shortens the rid and removes empty values.
// JSON lines keep the original rid as rid_full.
func (f fields) finish(message string, full bool) {
	if s, _ := f["event"].(string); s == "" {
		f["event"] = message
		if message == "" {
			f["event"] = "unknown"
		}
	}
	if s, _ := f["component"].(string); s == "" {
		f["component"] = "app"
	}
	if rid, _ := f["rid"].(string); rid != "" {
		if short := compactRID(rid); short != rid {
			f["rid"] = short
			if _, ok := f["rid_full"]; full && !ok {
				f["rid_full"] = rid
			}
		}
	}
	conform(f)
	for k, v := range f {
		if s, ok := v.(string); v == nil || (ok && s == "") {
			delete(f, k)
		}
	}
}
