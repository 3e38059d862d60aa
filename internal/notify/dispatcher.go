// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// maxBackoff caps the delay between two attempts of the same message.
const maxBackoff = 6 * time.Hour

// DispatcherConfig tunes the drain loop.
type DispatcherConfig struct {
	Interval      time.Duration
	BatchSize     int
	MaxAttempts   int
	Backoff       time.Duration
	RatePerSecond float64
	Burst         int
}

// leaseTTL keeps the lease alive across one tick plus a slow batch.
func (cfg DispatcherConfig) leaseTTL() time.Duration {
	return 3 * cfg.Interval
}

// claimTTL is how long claimed rows stay invisible to other drainers.
func (cfg DispatcherConfig) claimTTL() time.Duration {
	return cfg.Interval + time.Minute
}

// Dispatcher drains the outbox through a [Mailer].
type Dispatcher struct {
	outbox  OutboxRepository
	mailer  Mailer
	lease   Lease
	limiter *rate.Limiter
	cfg     DispatcherConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewDispatcher wires a dispatcher. Sends are throttled to cfg.RatePerSecond.
func NewDispatcher(outbox OutboxRepository, mailer Mailer, lease Lease, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		outbox:  outbox,
		mailer:  mailer,
		lease:   lease,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

/*
Run drains the outbox every cfg.Interval until ctx is cancelled.

Errors from a single pass are logged and the loop keeps going; Run only
returns once the context is done.
*/
func (dispatcher *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(dispatcher.cfg.Interval)
	defer ticker.Stop()

	dispatcher.logger.Info("dispatcher_started",
		slog.Duration("interval", dispatcher.cfg.Interval),
		slog.Int("batch_size", dispatcher.cfg.BatchSize),
	)

	for {
		if _, err := dispatcher.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			dispatcher.logger.Error("dispatcher_drain_failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			// Fresh context: the lease must be released even though ctx is gone.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := dispatcher.lease.Release(releaseCtx); err != nil {
				dispatcher.logger.Warn("dispatcher_lease_release_failed", slog.Any("error", err))
			}
			cancel()
			dispatcher.logger.Info("dispatcher_stopped")
			return
		case <-ticker.C:
		}
	}
}

/*
DrainOnce processes at most one batch of due messages.

Returns:
  - int: number of messages handed to the mailer successfully
  - error: lease or storage failures (mailer failures are recorded per message)
*/
func (dispatcher *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	held, err := dispatcher.lease.Acquire(ctx, dispatcher.cfg.leaseTTL())
	if err != nil {
		return 0, err
	}
	if !held {
		return 0, nil
	}

	messages, err := dispatcher.outbox.ClaimDue(ctx, dispatcher.now(), dispatcher.cfg.BatchSize, dispatcher.cfg.claimTTL())
	if err != nil {
		return 0, fmt.Errorf("dispatcher_claim_failed: %w", err)
	}

	sent := 0
	for _, message := range messages {
		if err := dispatcher.limiter.Wait(ctx); err != nil {
			// Context ended mid-batch; unsent claims expire and are picked up later.
			return sent, nil
		}

		ok, err := dispatcher.deliver(ctx, message)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}

	return sent, nil
}

// deliver sends one message and records the outcome.
func (dispatcher *Dispatcher) deliver(ctx context.Context, message *Message) (bool, error) {
	logger := dispatcher.logger.With(
		slog.String("message_id", message.ID),
		slog.Int("attempt", message.Attempts+1),
	)

	sendErr := dispatcher.mailer.Send(ctx, message)
	now := dispatcher.now()

	if sendErr == nil {
		if err := dispatcher.outbox.MarkSent(ctx, message.ID, now); err != nil {
			return false, fmt.Errorf("dispatcher_mark_sent_failed: %w", err)
		}
		logger.Info("outbox_message_sent")
		return true, nil
	}

	attempts := message.Attempts + 1
	if attempts >= dispatcher.cfg.MaxAttempts {
		if err := dispatcher.outbox.MarkDead(ctx, message.ID, attempts, sendErr.Error()); err != nil {
			return false, fmt.Errorf("dispatcher_mark_dead_failed: %w", err)
		}
		logger.Error("outbox_message_dead", slog.Any("error", sendErr))
		return false, nil
	}

	next := now.Add(Backoff(dispatcher.cfg.Backoff, attempts))
	if err := dispatcher.outbox.MarkRetry(ctx, message.ID, attempts, next, sendErr.Error()); err != nil {
		return false, fmt.Errorf("dispatcher_mark_retry_failed: %w", err)
	}
	logger.Warn("outbox_message_retry_scheduled",
		slog.Any("error", sendErr),
		slog.Time("next_attempt_at", next),
	)
	return false, nil
}

// Backoff returns base doubled for every attempt after the first, capped at six hours.
func Backoff(base time.Duration, attempts int) time.Duration {
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
