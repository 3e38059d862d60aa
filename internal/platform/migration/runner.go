// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the embedded Postgres schema (account and
// mailoutbox tables) with golang-migrate at startup. The SQLite backend
// creates its schema through bun instead.
package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const sourceDir = "migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

/*
RunUp applies every pending migration.

A dirty version is refused rather than forced. Cancelling ctx asks
golang-migrate to stop after the migration in flight.

Returns:
  - error: dirty schema, unpaired files, or a failed migration
*/
func RunUp(ctx context.Context, dsn string, logger *slog.Logger) error {
	if err := checkPaired(migrationFS); err != nil {
		return err
	}

	sourceDriver, err := iofs.New(migrationFS, sourceDir)
	if err != nil {
		return fmt.Errorf("migration_source_open_failed: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", sourceDriver, pgx5DSN(dsn))
	if err != nil {
		return fmt.Errorf("migration_init_failed: %w", err)
	}
	defer func() {
		sourceErr, dbErr := migrator.Close()
		if err := errors.Join(sourceErr, dbErr); err != nil {
			logger.Warn("migration_close_failed", slog.Any("error", err))
		}
	}()
	migrator.Log = slogBridge{logger: logger}

	stop := context.AfterFunc(ctx, func() { migrator.GracefulStop <- true })
	defer stop()

	from, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration_version_failed: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration_dirty: schema stuck at version %d, fix it by hand", from)
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("migration_up_to_date", slog.Uint64("version", uint64(from)))
		return nil
	case err != nil:
		return fmt.Errorf("migration_up_failed: %w", err)
	}

	to, _, _ := migrator.Version()
	logger.Info("migration_applied",
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("to_version", uint64(to)),
	)
	return nil
}

// Files lists the embedded migration file names in order.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, sourceDir)
	if err != nil {
		return nil, fmt.Errorf("migration_list_failed: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// checkPaired fails when a version has an up file without its down file, or
// the reverse.
func checkPaired(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, sourceDir)
	if err != nil {
		return fmt.Errorf("migration_list_failed: %w", err)
	}

	count := map[string]int{}
	for _, entry := range entries {
		name := entry.Name()
		base, ok := strings.CutSuffix(name, ".up.sql")
		if !ok {
			base, ok = strings.CutSuffix(name, ".down.sql")
		}
		if !ok {
			return fmt.Errorf("migration_unexpected_file: %s", name)
		}
		count[base]++
	}

	for base, n := range count {
		if n != 2 {
			return fmt.Errorf("migration_unpaired: %s", base)
		}
	}
	return nil
}

// pgx5DSN rewrites postgres:// URLs to the pgx5:// scheme the driver registers.
func pgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// slogBridge routes golang-migrate's progress lines to DEBUG.
type slogBridge struct {
	logger *slog.Logger
}

func (bridge slogBridge) Printf(format string, args ...any) {
	bridge.logger.Debug("migration_progress", slog.String("line", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

func (bridge slogBridge) Verbose() bool { return false }
