// Package state keeps per-user conversation state for Telegram bots: the
// current dialog step and a bag of JSON-compatible values accumulated while
// the user walks through a multi-step flow.
//
// Three backends share the Store contract. MemoryStore suits tests and single
// process deployments, RedisStore and PostgresStore survive restarts.
// Values are normalized through JSON on write, so every backend hands back
// the same shapes: objects as map[string]any, arrays as []any, numbers as
// json.Number. Use the accessor helpers (Int64, String, Bool, Strings) to
// read them.
package state
