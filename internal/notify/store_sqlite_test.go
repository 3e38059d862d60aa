// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/kiwitrace/kiwitrace/internal/platform/sqlite"
)

func newTestBunDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sqlite.Open(context.Background(), sqlite.MemoryPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, CreateOutboxSchema(context.Background(), db))
	return db
}

/*
TestBunOutbox_Lifecycle walks a message through claim, retry, claim and sent.
*/
func TestBunOutbox_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestBunDB(t)
	repository := NewBunOutboxRepository(db)

	message := NewMessage("kiwi@example.com", ConfirmationSubject, "<p>body</p>", testNow)
	require.NoError(t, EnqueueBun(ctx, db, message))

	claimed, err := repository.ClaimDue(ctx, testNow, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, message.ID, claimed[0].ID)
	assert.Equal(t, "<p>body</p>", claimed[0].HTMLBody)

	// Claimed rows are invisible until the lock expires.
	again, err := repository.ClaimDue(ctx, testNow, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, repository.MarkRetry(ctx, message.ID, 1, testNow.Add(time.Hour), "timeout"))

	early, err := repository.ClaimDue(ctx, testNow.Add(time.Minute), 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, early)

	late, err := repository.ClaimDue(ctx, testNow.Add(2*time.Hour), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, 1, late[0].Attempts)
	require.NotNil(t, late[0].LastError)
	assert.Equal(t, "timeout", *late[0].LastError)

	require.NoError(t, repository.MarkSent(ctx, message.ID, testNow.Add(2*time.Hour)))

	stored, err := repository.ListByRecipient(ctx, "kiwi@example.com")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, StatusSent, stored[0].Status)
	assert.Empty(t, stored[0].HTMLBody)
	assert.NotNil(t, stored[0].SentAt)
	assert.Nil(t, stored[0].LockedUntil)
}

func TestBunOutbox_Dead(t *testing.T) {
	ctx := context.Background()
	db := newTestBunDB(t)
	repository := NewBunOutboxRepository(db)

	message := NewMessage("kiwi@example.com", ConfirmationSubject, "body", testNow)
	require.NoError(t, EnqueueBun(ctx, db, message))
	require.NoError(t, repository.MarkDead(ctx, message.ID, 8, "mailbox unavailable"))

	claimed, err := repository.ClaimDue(ctx, testNow.Add(24*time.Hour), 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	stored, err := repository.ListByRecipient(ctx, "kiwi@example.com")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, StatusDead, stored[0].Status)
	assert.Equal(t, 8, stored[0].Attempts)
}

func TestBunOutbox_BatchLimit(t *testing.T) {
	ctx := context.Background()
	db := newTestBunDB(t)
	repository := NewBunOutboxRepository(db)

	for i := 0; i < 3; i++ {
		require.NoError(t, EnqueueBun(ctx, db, NewMessage("kiwi@example.com", "s", "b", testNow.Add(time.Duration(i)*time.Second))))
	}

	claimed, err := repository.ClaimDue(ctx, testNow.Add(time.Minute), 2, time.Minute)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
}
