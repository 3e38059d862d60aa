// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis connects to the optional Redis used for expiring leases.

KiwiTrace keeps no account data in Redis. It only holds the lease that elects
a single outbox dispatcher across replicas; when REDIS_URL is unset the
process falls back to an in-process lease.
*/
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kiwitrace/kiwitrace/internal/platform/constants"
)

const (
	dialTimeout = 3 * time.Second
	ioTimeout   = 2 * time.Second

	// A lease needs one SET NX and a renewal per tick.
	poolSize = 2
)

/*
NewClient parses redisURL, sizes the pool for lease traffic and pings once.

Returns:
  - *redis.Client: connected client (caller closes it)
  - error: invalid URL or unreachable server
*/
func NewClient(ctx context.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		// The URL may carry a password; keep it out of the error.
		return nil, fmt.Errorf("redis_url_invalid: %w", redactedURLError{})
	}

	options.ClientName = constants.AppName
	options.PoolSize = poolSize
	options.MinIdleConns = 1
	options.DialTimeout = dialTimeout
	options.ReadTimeout = ioTimeout
	options.WriteTimeout = ioTimeout

	client := redis.NewClient(options)
	if err := Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
	)
	return client, nil
}

// Ping checks the server within [constants.ProbeTimeout].
func Ping(ctx context.Context, client *redis.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, constants.ProbeTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis_ping_failed: %w", err)
	}
	return nil
}

type redactedURLError struct{}

func (redactedURLError) Error() string { return "malformed redis URL" }
