// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package app_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiwitrace/kiwitrace/internal/app"
	"github.com/kiwitrace/kiwitrace/internal/notify"
	"github.com/kiwitrace/kiwitrace/internal/platform/config"
	"github.com/kiwitrace/kiwitrace/internal/platform/sec"
	"github.com/kiwitrace/kiwitrace/internal/users/account"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []*notify.Message
}

func (mailer *recordingMailer) Send(_ context.Context, message *notify.Message) error {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	mailer.sent = append(mailer.sent, message)
	return nil
}

func sqliteConfig(t *testing.T) *config.Config {
	return &config.Config{
		StorageDriver:       config.StorageSQLite,
		SQLitePath:          filepath.Join(t.TempDir(), "data", "kiwitrace.db"),
		MailDriver:          config.MailLog,
		MailFrom:            "no-reply@kiwitrace.net",
		PublicBaseURL:       "http://kiwi.test",
		DispatchInterval:    time.Second,
		DispatchBatchSize:   10,
		DispatchMaxAttempts: 3,
		DispatchBackoff:     time.Second,
		MailRatePerSecond:   100,
		MailBurst:           10,
	}
}

/*
TestOpenStorage_SQLiteRegistrationIsDelivered registers an account on a file
database and drains its confirmation mail through the dispatcher.
*/
func TestOpenStorage_SQLiteRegistrationIsDelivered(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := sqliteConfig(t)

	storage, err := app.OpenStorage(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(storage.Close)

	require.Len(t, storage.Checks, 1)
	assert.Equal(t, config.StorageSQLite, storage.Checks[0].Name)
	assert.NoError(t, storage.Checks[0].Check(ctx))

	service := account.NewService(storage.Accounts, sec.NewHasher(bcrypt.MinCost), account.Options{
		ConfirmationTTL: time.Hour,
		PhoneRegion:     "US",
		ConfirmationURL: cfg.ConfirmationURL,
	}, logger)
	_, err = service.Register(ctx, account.RegisterInput{Email: "ana@example.com", Username: "kiwi", Credential: "Kiwi2026!"})
	require.NoError(t, err)

	mailer := &recordingMailer{}
	dispatcher := app.NewDispatcher(cfg, storage, mailer, nil, logger)

	sent, err := dispatcher.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ana@example.com", mailer.sent[0].Recipient)
	assert.Contains(t, mailer.sent[0].HTMLBody, "http://kiwi.test/confirm/")

	sent, err = dispatcher.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestOpenStorage_UnsupportedDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.StorageDriver = "mongo"

	_, err := app.OpenStorage(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestNewMailer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := sqliteConfig(t)

	mailer, err := app.NewMailer(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.LogMailer{}, mailer)

	cfg.MailDriver = config.MailSMTP
	cfg.SMTPHost = "smtp.kiwitrace.test"
	cfg.SMTPPort = 587
	mailer, err = app.NewMailer(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.SMTPMailer{}, mailer)

	cfg.MailDriver = "pigeon"
	_, err = app.NewMailer(cfg, logger)
	assert.Error(t, err)
}

func TestOpenRedis_Disabled(t *testing.T) {
	client, err := app.OpenRedis(context.Background(), sqliteConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, client)
}
