package logger

import (
	"log/slog"
	"strings"
)

// defaultKeyOrder fixes where known keys appear in a line. Other keys follow
// in alphabetical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type",
	"handler", "op", "action", "cb_key", "outcome", "duration_ms",
	"messages", "kb", "cache", "kind", "payload",
	// registration and profile
	"state", "from", "to", "trigger", "language", "fluency", "topics", "lang", "username",
	// approval and subscription
	"approved", "due_to",
	// transport
	"mode", "listen", "public_url", "http_code", "request_id", "attempts", "backoff_ms",
	// storage
	"backend", "db", "host", "port", "ttl_ms", "removed", "files",
	"err", "err_code", "cause", "reason",
}

// vocabularies restricts a few keys to fixed values so they stay greppable.
// An unknown status is kept lowercased; unknown cache and outcome values are
// dropped.
var vocabularies = map[string]map[string]bool{
	"status":  words("ok", "fail", "skip", "retry", "rate_limited", "cancelled"),
	"cache":   words("hit", "miss", "refresh"),
	"outcome": words("ok", "fail", "not_found", "cancelled", "rate_limited"),
}

func words(ws ...string) map[string]bool {
	m := make(map[string]bool, len(ws))
	for _, w := range ws {
		m[w] = true
	}
	return m
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func conform(f fields) {
	for key, allowed := range vocabularies {
		v, ok := f[key].(string)
		if !ok || v == "" {
			continue
		}
		v = strings.ToLower(v)
		switch {
		case allowed[v], key == "status":
			f[key] = v
		default:
			delete(f, key)
		}
	}
}
