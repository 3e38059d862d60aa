// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify delivers transactional email through a durable outbox.

# Architecture

Domain code never talks to an SMTP server. It writes a [Message] into the
outbox table in the same transaction as the state change that caused it; the
[Dispatcher] later drains the outbox through a [Mailer].

	account.Register ──tx──> users.account + users.mailoutbox
	                                         │
	Dispatcher (lease) ──ClaimDue──> Mailer.Send ──> MarkSent / MarkRetry / MarkDead

A mail provider outage therefore delays delivery but never fails the request
that enqueued it.
*/
package notify

import (
	"context"
	"time"

	"github.com/kiwitrace/kiwitrace/pkg/uuid"
)

// # Message Lifecycle

// Status is the delivery state of an outbox message.
type Status string

const (
	// StatusPending messages are waiting for their next attempt.
	StatusPending Status = "pending"

	// StatusSent messages were accepted by the mail transport.
	StatusSent Status = "sent"

	// StatusDead messages exhausted their attempts and are kept for inspection.
	StatusDead Status = "dead"
)

// Message is one queued email.
type Message struct {
	ID            string
	Recipient     string
	Subject       string
	HTMLBody      string
	Status        Status
	Attempts      int
	NextAttemptAt time.Time
	LockedUntil   *time.Time
	LastError     *string
	CreatedAt     time.Time
	SentAt        *time.Time
}

// NewMessage builds a pending message that is due immediately.
func NewMessage(recipient, subject, htmlBody string, now time.Time) *Message {
	return &Message{
		ID:            uuid.New(),
		Recipient:     recipient,
		Subject:       subject,
		HTMLBody:      htmlBody,
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

// # Contracts

// OutboxRepository is the dispatcher's view of the outbox table.
//
// Enqueueing is not part of it: producers insert messages inside their own
// transaction through the backend-specific helpers ([EnqueuePostgres], [EnqueueBun]).
type OutboxRepository interface {
	// ClaimDue locks up to limit pending messages due at now for the lease duration.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*Message, error)

	// MarkSent records a successful hand-off and drops the body.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error

	// MarkRetry schedules another attempt.
	MarkRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error

	// MarkDead stops retrying a message.
	MarkDead(ctx context.Context, id string, attempts int, lastError string) error
}

// Mailer hands a message to a mail transport.
//
// A nil error only means the transport accepted the message, not that it
// reached the inbox.
type Mailer interface {
	Send(ctx context.Context, message *Message) error
}
