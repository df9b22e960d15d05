package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/langbot/core/logger"
)

// RunMigrations applies every pending up migration from cfg.MigrationsDir.
func RunMigrations(cfg Config) error {
	ctx := logger.Background()
	dir := cfg.MigrationsDir
	if dir == "" {
		dir = "migrations"
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("database: migrations dir: %w", err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.URL())
	if err != nil {
		logger.Error(ctx, "db.migrate", "migrate.init",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database: migrate init: %w", err)
	}
	defer m.Close()

	from := version(m)
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "migrate.apply",
			slog.String("status", "fail"),
			slog.Uint64("from", uint64(from)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database: migrate up: %w", err)
	}
	to := version(m)

	applied := appliedBetween(upFiles(dir), from, to)
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Uint64("from", uint64(from)),
		slog.Uint64("to", uint64(to)),
		slog.Int("count", len(applied)),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	}
	if preview, truncated := logger.SummarizeStrings(applied, 6); preview != "" {
		attrs = append(attrs, slog.String("files", preview), slog.Bool("truncated", truncated))
	}
	logger.Info(ctx, "db.migrate", "migrate.summary", attrs...)
	return nil
}

func version(m *migrate.Migrate) uint {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return v
}

// upFiles lists the up migrations in dir, sorted.
func upFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// appliedBetween picks the files whose version lies in (from, to].
func appliedBetween(files []string, from, to uint) []string {
	var out []string
	for _, name := range files {
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && uint(v) > from && uint(v) <= to {
			out = append(out, name)
		}
	}
	return out
}
