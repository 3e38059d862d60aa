// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/kiwitrace/kiwitrace/pkg/slice"
)

// outboxRow is the bun model of the mailoutbox table.
type outboxRow struct {
	bun.BaseModel `bun:"table:mailoutbox"`

	ID            string     `bun:"id,pk"`
	Recipient     string     `bun:"recipient,notnull"`
	Subject       string     `bun:"subject,notnull"`
	HTMLBody      string     `bun:"htmlbody,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	NextAttemptAt time.Time  `bun:"nextattemptat,notnull"`
	LockedUntil   *time.Time `bun:"lockeduntil"`
	LastError     *string    `bun:"lasterror"`
	CreatedAt     time.Time  `bun:"createdat,notnull"`
	SentAt        *time.Time `bun:"sentat"`
}

func toOutboxRow(message *Message) *outboxRow {
	return &outboxRow{
		ID:            message.ID,
		Recipient:     message.Recipient,
		Subject:       message.Subject,
		HTMLBody:      message.HTMLBody,
		Status:        string(message.Status),
		Attempts:      message.Attempts,
		NextAttemptAt: message.NextAttemptAt.UTC(),
		CreatedAt:     message.CreatedAt.UTC(),
	}
}

func (row outboxRow) toMessage() *Message {
	return &Message{
		ID:            row.ID,
		Recipient:     row.Recipient,
		Subject:       row.Subject,
		HTMLBody:      row.HTMLBody,
		Status:        Status(row.Status),
		Attempts:      row.Attempts,
		NextAttemptAt: row.NextAttemptAt,
		LockedUntil:   row.LockedUntil,
		LastError:     row.LastError,
		CreatedAt:     row.CreatedAt,
		SentAt:        row.SentAt,
	}
}

// CreateOutboxSchema creates the mailoutbox table and its due index when missing.
func CreateOutboxSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*outboxRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("sqlite_outbox_create_table_failed: %w", err)
	}

	_, err := db.NewCreateIndex().
		Model((*outboxRow)(nil)).
		Index("idx_mailoutbox_due").
		Column("status", "nextattemptat").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlite_outbox_create_index_failed: %w", err)
	}
	return nil
}

// EnqueueBun inserts a message using db, typically the caller's bun.Tx.
func EnqueueBun(ctx context.Context, db bun.IDB, message *Message) error {
	if _, err := db.NewInsert().Model(toOutboxRow(message)).Exec(ctx); err != nil {
		return fmt.Errorf("sqlite_outbox_enqueue_failed: %w", err)
	}
	return nil
}

// # Outbox Repository

// BunOutboxRepository implements [OutboxRepository] on SQLite through bun.
type BunOutboxRepository struct {
	db *bun.DB
}

// NewBunOutboxRepository creates a new bun-backed outbox repository.
func NewBunOutboxRepository(db *bun.DB) *BunOutboxRepository {
	return &BunOutboxRepository{db: db}
}

// ClaimDue implements [OutboxRepository]. SQLite has a single writer, so the
// select and the lock stamp only need to share a transaction.
func (repository *BunOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*Message, error) {
	now = now.UTC()
	var rows []outboxRow

	err := repository.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&rows).
			Where("status = ?", string(StatusPending)).
			Where("nextattemptat <= ?", now).
			WhereGroup(" AND ", func(query *bun.SelectQuery) *bun.SelectQuery {
				return query.Where("lockeduntil IS NULL").WhereOr("lockeduntil <= ?", now)
			}).
			Order("nextattemptat ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := slice.Map(rows, func(row outboxRow) string { return row.ID })

		lockedUntil := now.Add(lease)
		_, err = tx.NewUpdate().
			Model((*outboxRow)(nil)).
			Set("lockeduntil = ?", lockedUntil).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return err
		}

		for i := range rows {
			rows[i].LockedUntil = &lockedUntil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite_outbox_claim_failed: %w", err)
	}

	return slice.Map(rows, outboxRow.toMessage), nil
}

// MarkSent implements [OutboxRepository].
func (repository *BunOutboxRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := repository.db.NewUpdate().
		Model((*outboxRow)(nil)).
		Set("status = ?", string(StatusSent)).
		Set("sentat = ?", sentAt.UTC()).
		Set("htmlbody = ''").
		Set("lockeduntil = NULL").
		Set("lasterror = NULL").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlite_outbox_mark_sent_failed: %w", err)
	}
	return nil
}

// MarkRetry implements [OutboxRepository].
func (repository *BunOutboxRepository) MarkRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	_, err := repository.db.NewUpdate().
		Model((*outboxRow)(nil)).
		Set("attempts = ?", attempts).
		Set("nextattemptat = ?", nextAttemptAt.UTC()).
		Set("lasterror = ?", lastError).
		Set("lockeduntil = NULL").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlite_outbox_mark_retry_failed: %w", err)
	}
	return nil
}

// MarkDead implements [OutboxRepository].
func (repository *BunOutboxRepository) MarkDead(ctx context.Context, id string, attempts int, lastError string) error {
	_, err := repository.db.NewUpdate().
		Model((*outboxRow)(nil)).
		Set("status = ?", string(StatusDead)).
		Set("attempts = ?", attempts).
		Set("lasterror = ?", lastError).
		Set("lockeduntil = NULL").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlite_outbox_mark_dead_failed: %w", err)
	}
	return nil
}

// ListByRecipient returns every message addressed to recipient, oldest first.
func (repository *BunOutboxRepository) ListByRecipient(ctx context.Context, recipient string) ([]*Message, error) {
	var rows []outboxRow
	err := repository.db.NewSelect().
		Model(&rows).
		Where("recipient = ?", recipient).
		Order("createdat ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite_outbox_list_failed: %w", err)
	}

	return slice.Map(rows, outboxRow.toMessage), nil
}
