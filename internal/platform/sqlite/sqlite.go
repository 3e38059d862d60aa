// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sqlite opens the embedded single-file storage backend.

It pairs database/sql with the bun query builder. The sqliteshim driver picks
the cgo or pure-Go SQLite driver depending on how the binary is built, so the
same code runs in both.

Usage:

	db, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
	if err != nil {
	    return err
	}
	defer db.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/kiwitrace/kiwitrace/internal/platform/constants"
)

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

/*
Open creates the database file (and its directory) when missing and returns a
ready [bun.DB].

Parameters:
  - ctx: context.Context for the initial ping
  - path: string (file path or [MemoryPath])
  - logger: *slog.Logger

Returns:
  - *bun.DB: the database handle
  - error: if the file cannot be opened or pinged
*/
func Open(ctx context.Context, path string, logger *slog.Logger) (*bun.DB, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create data directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}

	// SQLite serialises writers; one connection also keeps ":memory:" a single database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite_database_opened", slog.String("path", path))
	return db, nil
}

// Ping verifies that the database handle is usable.
func Ping(ctx context.Context, db *bun.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, constants.ProbeTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// IsMemory reports whether path refers to an in-memory database.
func IsMemory(path string) bool {
	return path == MemoryPath || strings.Contains(path, "mode=memory")
}
