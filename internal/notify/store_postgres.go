// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiwitrace/kiwitrace/internal/platform/database/schema"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

/*
EnqueuePostgres inserts a message using db, typically the caller's open transaction.

Parameters:
  - ctx: context.Context
  - db: Execer (pgx.Tx to share the caller's transaction)
  - message: *Message

Returns:
  - error: insert failure
*/
func EnqueuePostgres(ctx context.Context, db Execer, message *Message) error {
	outbox := schema.UserMailOutbox
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		outbox.Table,
		outbox.ID, outbox.Recipient, outbox.Subject, outbox.HTMLBody,
		outbox.Status, outbox.Attempts, outbox.NextAttemptAt, outbox.CreatedAt,
	)

	_, err := db.Exec(ctx, query,
		message.ID,
		message.Recipient,
		message.Subject,
		message.HTMLBody,
		string(message.Status),
		message.Attempts,
		message.NextAttemptAt,
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_outbox_enqueue_failed: %w", err)
	}
	return nil
}

// # Outbox Repository

// PostgresOutboxRepository implements [OutboxRepository] with pgx.
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOutboxRepository creates a new PostgreSQL outbox repository.
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

/*
ClaimDue locks due rows with FOR UPDATE SKIP LOCKED so concurrent drainers
never receive the same message, then stamps lockeduntil on them.
*/
func (repository *PostgresOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*Message, error) {
	outbox := schema.UserMailOutbox
	query := fmt.Sprintf(`
		UPDATE %[1]s SET %[2]s = $1
		WHERE %[3]s IN (
			SELECT %[3]s FROM %[1]s
			WHERE %[4]s = 'pending'
			  AND %[5]s <= $2
			  AND (%[2]s IS NULL OR %[2]s <= $2)
			ORDER BY %[5]s
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %[6]s`,
		outbox.Table,
		outbox.LockedUntil,
		outbox.ID,
		outbox.Status,
		outbox.NextAttemptAt,
		outbox.SelectList(),
	)

	rows, err := repository.pool.Query(ctx, query, now.Add(lease), now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres_outbox_claim_failed: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var message Message
		var status string
		err := rows.Scan(
			&message.ID,
			&message.Recipient,
			&message.Subject,
			&message.HTMLBody,
			&status,
			&message.Attempts,
			&message.NextAttemptAt,
			&message.LockedUntil,
			&message.LastError,
			&message.CreatedAt,
			&message.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres_outbox_scan_failed: %w", err)
		}
		message.Status = Status(status)
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_outbox_rows_failed: %w", err)
	}
	return messages, nil
}

// MarkSent implements [OutboxRepository].
func (repository *PostgresOutboxRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	outbox := schema.UserMailOutbox
	query := fmt.Sprintf(`
		UPDATE %s SET %s = 'sent', %s = $2, %s = '', %s = NULL, %s = NULL
		WHERE %s = $1`,
		outbox.Table, outbox.Status, outbox.SentAt, outbox.HTMLBody,
		outbox.LockedUntil, outbox.LastError, outbox.ID,
	)

	if _, err := repository.pool.Exec(ctx, query, id, sentAt); err != nil {
		return fmt.Errorf("postgres_outbox_mark_sent_failed: %w", err)
	}
	return nil
}

// MarkRetry implements [OutboxRepository].
func (repository *PostgresOutboxRepository) MarkRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	outbox := schema.UserMailOutbox
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = NULL
		WHERE %s = $1`,
		outbox.Table, outbox.Attempts, outbox.NextAttemptAt, outbox.LastError,
		outbox.LockedUntil, outbox.ID,
	)

	if _, err := repository.pool.Exec(ctx, query, id, attempts, nextAttemptAt, lastError); err != nil {
		return fmt.Errorf("postgres_outbox_mark_retry_failed: %w", err)
	}
	return nil
}

// MarkDead implements [OutboxRepository].
func (repository *PostgresOutboxRepository) MarkDead(ctx context.Context, id string, attempts int, lastError string) error {
	outbox := schema.UserMailOutbox
	query := fmt.Sprintf(`
		UPDATE %s SET %s = 'dead', %s = $2, %s = $3, %s = NULL
		WHERE %s = $1`,
		outbox.Table, outbox.Status, outbox.Attempts, outbox.LastError,
		outbox.LockedUntil, outbox.ID,
	)

	if _, err := repository.pool.Exec(ctx, query, id, attempts, lastError); err != nil {
		return fmt.Errorf("postgres_outbox_mark_dead_failed: %w", err)
	}
	return nil
}
