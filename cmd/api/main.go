// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the KiwiTrace HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Open storage (PostgreSQL + migrations, or SQLite).
//  4. Connect to Redis when configured.
//  5. Wire the account service and HTTP handlers.
//  6. Start the embedded mail dispatcher when enabled.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kiwitrace/kiwitrace/internal/api"
	"github.com/kiwitrace/kiwitrace/internal/app"
	"github.com/kiwitrace/kiwitrace/internal/platform/config"
	"github.com/kiwitrace/kiwitrace/internal/platform/constants"
	"github.com/kiwitrace/kiwitrace/internal/platform/sec"
	"github.com/kiwitrace/kiwitrace/internal/users/account"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := app.NewLogger(constants.AppName, false)
	slog.SetDefault(log)

	log.Info("[KiwiTrace] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = app.NewLogger(constants.AppName, true)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
		slog.String("mail", cfg.MailDriver),
	)

	// Opening storage, migrating and dialing Redis share one deadline.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), constants.StartupTimeout)
	defer startupCancel()

	// ── 3. Storage ────────────────────────────────────────────────────────
	storage, err := app.OpenStorage(startupCtx, cfg, log)
	must(log, err, "open storage")
	defer storage.Close()

	checks := storage.Checks

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := app.OpenRedis(startupCtx, cfg, log)
	must(log, err, "connect to redis")
	if rdb != nil {
		checks = append(checks, app.RedisCheck(rdb))
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()
	}

	// ── 5. Domain Wiring ──────────────────────────────────────────────────
	accountService := account.NewService(storage.Accounts, sec.NewHasher(cfg.BcryptCost), account.Options{
		ConfirmationTTL:         cfg.ConfirmationTTL,
		EnforcePolicyOnRegister: cfg.EnforcePolicyOnRegister,
		PhoneRegion:             cfg.DefaultPhoneRegion,
		ConfirmationURL:         cfg.ConfirmationURL,
	}, log)

	liveness, readiness := api.NewHealthHandlers(checks, log)

	server := api.NewServer(cfg, log, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Account:   account.NewHandler(accountService),
	})

	// ── 6. Embedded Dispatcher ────────────────────────────────────────────
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	var dispatchDone sync.WaitGroup
	if cfg.DispatcherEmbedded {
		mailer, err := app.NewMailer(cfg, log)
		must(log, err, "build mailer")

		dispatcher := app.NewDispatcher(cfg, storage, mailer, rdb, log)
		dispatchDone.Add(1)
		go func() {
			defer dispatchDone.Done()
			dispatcher.Run(dispatchCtx)
		}()
	} else {
		log.Info("dispatcher_external", slog.String("hint", "run cmd/dispatcher to deliver mail"))
	}

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting_down_server", slog.Duration("timeout", shutdownTimeout))

	shutdownErr := server.Shutdown(shutdownTimeout)

	stopDispatch()
	dispatchDone.Wait()

	if shutdownErr != nil {
		log.Error("shutdown_failed", slog.Any("error", shutdownErr))
		storage.Close()
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// must exits the process with a structured log when a startup step fails.
// Only startup wiring calls it.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
