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

	"github.com/m3rciful/calcbot/core/logger"
)

const (
	migrateWait    = 30 * time.Second
	previewLimit   = 6
	upSuffix       = ".up.sql"
	migrateEvent   = "db.migrate"
	migrateSummary = "summary"
)

// RunMigrations brings the schema up to the newest file in cfg.MigrationsDir.
// The journal table lives there, so the bot refuses to start on failure.
func RunMigrations(cfg Config) error {
	if err := WaitForPostgres(cfg.DSN(), migrateWait); err != nil {
		return migrateFailed("db not ready", err, "database not ready")
	}

	dir, err := filepath.Abs(cfg.migrationsDir())
	if err != nil {
		return migrateFailed("migrations path lookup failed", err, "resolve migrations dir")
	}
	files := listMigrationFiles(dir)
	logger.MIG.Debug("migrations resolved", append(
		[]any{slog.String("event", "resolve"), slog.String("path", dir)},
		previewAttrs(files)...,
	)...)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.URL())
	if err != nil {
		return migrateFailed("init failed", err, "failed to initialize migrations")
	}
	defer closeMigrator(m)

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.Duration("duration", took),
			slog.String("err", upErr.Error()),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	to := from
	if upErr == nil {
		to, _, _ = m.Version()
	}
	applied := selectApplied(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.MIG.Debug("applied files", append(
			[]any{slog.String("event", "apply")}, previewAttrs(applied)...,
		)...)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", migrateSummary),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func migrateFailed(msg string, err error, wrap string) error {
	logger.MIG.Error(msg, slog.String("event", migrateEvent), slog.String("err", err.Error()))
	return fmt.Errorf("%s: %w", wrap, err)
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.MIG.Warn("close failed", slog.String("event", migrateEvent), slog.String("err", err.Error()))
	}
}

func previewAttrs(names []string) []any {
	attrs := []any{slog.Int("files_total", len(names))}
	preview, cut := summarize(names, previewLimit)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if cut {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

// listMigrationFiles returns the sorted *.up.sql names in dir, or nil when the
// directory cannot be read.
func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), upSuffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// selectApplied picks the files whose version lies in (from, to].
func selectApplied(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

func summarize(values []string, limit int) (string, bool) {
	cut := len(values) > limit
	if cut {
		values = values[:limit]
	}
	return strings.Join(values, ", "), cut
}
