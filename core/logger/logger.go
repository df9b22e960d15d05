// Package logger is the structured, context-first logging layer of the bot.
//
// Every line carries a component and an event name plus the identifiers of
// the update being handled, which handlers attach to their context once:
//
//	ctx = logger.WithRID(ctx, logger.BuildRID(updateID, chatID, userID))
//	logger.Info(ctx, "gateway", "gateway.call", slog.String("status", "ok"))
//
// Until InitLogger runs, all logging calls are no-ops.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/langbot/core/buildinfo"
	coreconfig "github.com/m3rciful/langbot/core/config"
)

var (
	root     atomic.Pointer[slog.Logger]
	minLevel slog.LevelVar
	debugs   sampler
	traceAll atomic.Bool

	initOnce sync.Once

	outMu   sync.Mutex
	outputs []*sink
	files   []io.Closer
	stopped bool
)

func init() {
	debugs.set(defaultSampleNum, defaultSampleDen)
}

// InitLogger builds the global logger from cfg. Only the first call has an
// effect; later calls return nil.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := settingsFrom(cfg)
		if err = install(s); err != nil {
			return
		}
		build := buildinfo.Current()
		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", build.Version),
			slog.String("build_commit", build.Commit),
			slog.String("build_time", build.Date),
			slog.Bool("build_dirty", build.Dirty),
			slog.String("cfg_profile", s.profile),
		)
	})
	return err
}

func install(s settings) error {
	minLevel.Set(s.level)
	debugs.set(s.sampleNum, s.sampleDen)
	traceAll.Store(s.trace)

	outs := []io.Writer{os.Stdout}
	var alerts io.Writer
	if s.botFile != "" {
		f, err := openAppend(s.botFile)
		if err != nil {
			return err
		}
		outs = append(outs, f)
	}
	if s.errorsFile != "" {
		f, err := openAppend(s.errorsFile)
		if err != nil {
			closeFiles()
			return err
		}
		alerts = track(newSink(f))
	}

	h := newLineHandler(&minLevel, s.format, s.order, track(newSink(outs...)), alerts)
	l := slog.New(h)
	root.Store(l)
	slog.SetDefault(l)
	return nil
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logger: create dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}
	outMu.Lock()
	files = append(files, f)
	outMu.Unlock()
	return f, nil
}

func track(s *sink) *sink {
	outMu.Lock()
	outputs = append(outputs, s)
	outMu.Unlock()
	return s
}

func closeFiles() {
	outMu.Lock()
	defer outMu.Unlock()
	for _, f := range files {
		_ = f.Close()
	}
	files = nil
}

// Shutdown drains queued lines and closes log files. It is safe to call more
// than once.
func Shutdown() error {
	outMu.Lock()
	defer outMu.Unlock()
	if stopped {
		return nil
	}
	stopped = true

	var errs []error
	for _, s := range outputs {
		errs = append(errs, s.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Background is the context used by code that runs outside of an update.
func Background() context.Context {
	return context.Background()
}

// Component returns the global logger scoped to name, or nil before
// InitLogger.
func Component(name string) *slog.Logger {
	l := root.Load()
	if l == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name != "" {
		return l.With(slog.String("component", name))
	}
	return l
}

// Debug logs event for component at debug level.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelDebug, component, event, attrs)
}

// Info logs event for component at info level.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelInfo, component, event, attrs)
}

// Warn logs event for component at warn level.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, component, event, attrs)
}

// Error logs event for component at error level.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, component, event, attrs)
}

func emit(ctx context.Context, level slog.Level, component, event string, attrs []slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	l := fromContext(ctx)
	if l == nil || !l.Enabled(ctx, level) {
		return
	}
	head := make([]slog.Attr, 0, len(attrs)+2)
	if component = strings.TrimSpace(component); component != "" {
		head = append(head, slog.String("component", component))
	}
	if event != "" {
		head = append(head, slog.String("event", event))
	}
	l.LogAttrs(ctx, level, event, append(head, attrs...)...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. TRACE=1 in the environment lets every line through.
func ShouldSampleDebug() bool {
	return traceAll.Load() || debugs.allow()
}
