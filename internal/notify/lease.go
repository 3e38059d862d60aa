// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kiwitrace/kiwitrace/internal/platform/constants"
	"github.com/kiwitrace/kiwitrace/pkg/uuid"
)

// Lease elects a single outbox drainer among the running processes.
//
// Row claiming already prevents double sends; the lease only stops every
// replica from polling the table at once.
type Lease interface {
	// Acquire takes or extends the lease for ttl. It reports false when another holder owns it.
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)

	// Release gives the lease up if this process still holds it.
	Release(ctx context.Context) error
}

// # Redis

// releaseScript deletes the key only when it still carries our owner token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the TTL only when we are the owner.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLease is a [Lease] shared by every process using the same Redis.
type RedisLease struct {
	client *redis.Client
	key    string
	owner  string
}

// NewRedisLease creates a lease stored under the given name.
func NewRedisLease(client *redis.Client, name string) *RedisLease {
	return &RedisLease{
		client: client,
		key:    constants.RedisPrefixLease + name,
		owner:  uuid.New(),
	}
}

// Acquire implements [Lease].
func (lease *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	acquired, err := lease.client.SetNX(ctx, lease.key, lease.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis_lease_acquire_failed: %w", err)
	}
	if acquired {
		return true, nil
	}

	// Already held: succeed only if we are the holder, refreshing the TTL.
	extended, err := extendScript.Run(ctx, lease.client, []string{lease.key}, lease.owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis_lease_extend_failed: %w", err)
	}
	return extended == 1, nil
}

// Release implements [Lease].
func (lease *RedisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, lease.client, []string{lease.key}, lease.owner).Err(); err != nil {
		return fmt.Errorf("redis_lease_release_failed: %w", err)
	}
	return nil
}

// # In-process

// LocalLease is the [Lease] used when no Redis is configured. It always grants:
// a single process needs no election and row claims still prevent double sends.
type LocalLease struct{}

// NewLocalLease creates a [LocalLease].
func NewLocalLease() *LocalLease {
	return &LocalLease{}
}

// Acquire implements [Lease].
func (*LocalLease) Acquire(context.Context, time.Duration) (bool, error) {
	return true, nil
}

// Release implements [Lease].
func (*LocalLease) Release(context.Context) error {
	return nil
}
