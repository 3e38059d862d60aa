// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command dispatcher delivers queued confirmation mail outside the API process.
//
// Run it with DISPATCHER_EMBEDDED=false on the API replicas. Several
// dispatchers may run at once; with REDIS_URL set only the lease holder drains.
// Pass -once to drain a single batch and exit (cron style).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiwitrace/kiwitrace/internal/app"
	"github.com/kiwitrace/kiwitrace/internal/platform/config"
	"github.com/kiwitrace/kiwitrace/internal/platform/constants"
)

func main() {
	once := flag.Bool("once", false, "drain one batch of due messages and exit")
	flag.Parse()

	log := app.NewLogger("kiwitrace-dispatcher", false)
	slog.SetDefault(log)

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = app.NewLogger("kiwitrace-dispatcher", true)
		slog.SetDefault(log)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), constants.StartupTimeout)
	defer startupCancel()

	storage, err := app.OpenStorage(startupCtx, cfg, log)
	must(log, err, "open storage")
	defer storage.Close()

	rdb, err := app.OpenRedis(startupCtx, cfg, log)
	must(log, err, "connect to redis")
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	mailer, err := app.NewMailer(cfg, log)
	must(log, err, "build mailer")

	dispatcher := app.NewDispatcher(cfg, storage, mailer, rdb, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if *once {
		sent, err := dispatcher.DrainOnce(ctx)
		if err != nil {
			log.Error("dispatcher_drain_failed", slog.Any("error", err))
			storage.Close()
			os.Exit(1)
		}
		log.Info("dispatcher_drained", slog.Int("sent", sent))
		return
	}

	dispatcher.Run(ctx)
	log.Info("dispatcher_stopped_cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
