package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	coreconfig "github.com/m3rciful/langbot/core/config"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

// settings is LoggingConfig resolved into concrete values.
type settings struct {
	level      slog.Level
	format     format
	order      []string
	sampleNum  int
	sampleDen  int
	profile    string
	botFile    string
	errorsFile string
	trace      bool
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{
		level:     slog.LevelInfo,
		format:    formatJSON,
		order:     defaultKeyOrder,
		sampleNum: defaultSampleNum,
		sampleDen: defaultSampleDen,
		profile:   "prod",
		trace:     truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE")),
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	s.level = parseLevel(lc.Level)
	s.format = parseFormat(lc.Format, s.profile)
	if order := parseOrder(lc.KeysOrder); len(order) > 0 {
		s.order = order
	}
	s.sampleNum, s.sampleDen = parseRatio(lc.DebugSample)

	dir := strings.TrimSpace(lc.Dir)
	if f := strings.TrimSpace(lc.BotFile); f != "" {
		s.botFile = filepath.Join(dir, f)
	}
	if f := strings.TrimSpace(lc.ErrorsFile); f != "" {
		s.errorsFile = filepath.Join(dir, f)
	}
	return s
}

func parseLevel(raw string) slog.Level {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if raw == "" || l.UnmarshalText([]byte(raw)) != nil {
		return slog.LevelInfo
	}
	return l
}

// parseFormat falls back to kv for debug and dev profiles and to json
// everywhere else.
func parseFormat(raw, profile string) format {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if profile == "debug" || profile == "dev" {
		return formatKV
	}
	return formatJSON
}

func parseOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var order []string
	for _, key := range strings.Split(raw, ",") {
		if key = strings.TrimSpace(key); key != "" {
			order = append(order, key)
		}
	}
	return order
}

// parseRatio reads "1/50" or "50" (one in fifty). "0" turns sampling off so
// every debug line passes; unreadable input keeps the default ratio.
func parseRatio(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultSampleNum, defaultSampleDen
	}
	num, den := 1, 0
	var err error
	if a, b, ok := strings.Cut(raw, "/"); ok {
		if num, err = strconv.Atoi(strings.TrimSpace(a)); err == nil {
			den, err = strconv.Atoi(strings.TrimSpace(b))
		}
	} else {
		den, err = strconv.Atoi(raw)
	}
	switch {
	case err != nil || num < 0 || den < 0:
		return defaultSampleNum, defaultSampleDen
	case num == 0 || den == 0:
		return 0, 0
	}
	return num, den
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
