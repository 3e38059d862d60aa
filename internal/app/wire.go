// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package app assembles the infrastructure shared by cmd/api and cmd/dispatcher.

Both binaries need the same storage driver switch, mailer and dispatcher, so the
wiring lives here once. No business logic lives in this package.
*/
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/kiwitrace/kiwitrace/internal/api"
	"github.com/kiwitrace/kiwitrace/internal/notify"
	"github.com/kiwitrace/kiwitrace/internal/platform/config"
	"github.com/kiwitrace/kiwitrace/internal/platform/migration"
	pgstore "github.com/kiwitrace/kiwitrace/internal/platform/postgres"
	redisstore "github.com/kiwitrace/kiwitrace/internal/platform/redis"
	"github.com/kiwitrace/kiwitrace/internal/platform/sqlite"
	"github.com/kiwitrace/kiwitrace/internal/users/account"
)

// dispatcherLeaseName identifies the single-drainer lease in Redis.
const dispatcherLeaseName = "mail-dispatcher"

// # Storage

// Storage is the opened persistence layer for the configured driver.
type Storage struct {
	Accounts account.Repository
	Outbox   notify.OutboxRepository
	Checks   []api.HealthCheck

	close func()
}

// Close releases the underlying connections.
func (storage *Storage) Close() {
	if storage.close != nil {
		storage.close()
	}
}

/*
OpenStorage connects to the configured relational store and prepares its schema.

Postgres runs the embedded migrations; SQLite creates its tables in place.

Parameters:
  - ctx: context.Context (startup deadline)
  - cfg: *config.Config
  - log: *slog.Logger

Returns:
  - *Storage: repositories, readiness checks and a close hook
  - error: if the store cannot be reached or migrated
*/
func OpenStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Storage, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		if err := migration.RunUp(ctx, cfg.DatabaseURL, log); err != nil {
			pool.Close()
			return nil, err
		}

		return &Storage{
			Accounts: account.NewPostgresRepository(pool),
			Outbox:   notify.NewPostgresOutboxRepository(pool),
			Checks: []api.HealthCheck{{
				Name:  config.StoragePostgres,
				Check: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
			}},
			close: func() {
				log.Info("closing_postgres_pool")
				pool.Close()
			},
		}, nil

	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if err := account.CreateSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}

		return &Storage{
			Accounts: account.NewBunRepository(db),
			Outbox:   notify.NewBunOutboxRepository(db),
			Checks: []api.HealthCheck{{
				Name:  config.StorageSQLite,
				Check: func(ctx context.Context) error { return sqlite.Ping(ctx, db) },
			}},
			close: closeBun(db, log),
		}, nil
	}

	return nil, fmt.Errorf("app: unsupported storage driver %q", cfg.StorageDriver)
}

func closeBun(db *bun.DB, log *slog.Logger) func() {
	return func() {
		log.Info("closing_sqlite_database")
		if err := db.Close(); err != nil {
			log.Error("sqlite_close_failed", slog.Any("error", err))
		}
	}
}

// # Redis

/*
OpenRedis connects to Redis when REDIS_URL is set.

It returns a nil client (and no error) otherwise; callers fall back to a
[notify.LocalLease].
*/
func OpenRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		log.Info("redis_disabled")
		return nil, nil
	}
	return redisstore.NewClient(ctx, cfg.RedisURL, log)
}

// RedisCheck adapts a client into a readiness check.
func RedisCheck(client *redis.Client) api.HealthCheck {
	return api.HealthCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return redisstore.Ping(ctx, client) },
	}
}

// # Mail

// NewMailer builds the mail transport selected by MAIL_DRIVER.
func NewMailer(cfg *config.Config, log *slog.Logger) (notify.Mailer, error) {
	switch cfg.MailDriver {
	case config.MailSMTP:
		mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			return nil, err
		}
		return mailer, nil
	case config.MailLog:
		return notify.NewLogMailer(log), nil
	}
	return nil, fmt.Errorf("app: unsupported mail driver %q", cfg.MailDriver)
}

// NewDispatcher wires the outbox dispatcher for storage, using a Redis lease when a client is available.
func NewDispatcher(cfg *config.Config, storage *Storage, mailer notify.Mailer, client *redis.Client, log *slog.Logger) *notify.Dispatcher {
	var lease notify.Lease = notify.NewLocalLease()
	if client != nil {
		lease = notify.NewRedisLease(client, dispatcherLeaseName)
	}

	return notify.NewDispatcher(storage.Outbox, mailer, lease, notify.DispatcherConfig{
		Interval:      cfg.DispatchInterval,
		BatchSize:     cfg.DispatchBatchSize,
		MaxAttempts:   cfg.DispatchMaxAttempts,
		Backoff:       cfg.DispatchBackoff,
		RatePerSecond: cfg.MailRatePerSecond,
		Burst:         cfg.MailBurst,
	}, log)
}

// # Logging

// NewLogger returns the JSON process logger, at debug level when asked.
func NewLogger(name string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", name))
}
