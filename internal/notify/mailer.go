// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// # SMTP Transport

// SMTPConfig holds the connection settings of [SMTPMailer].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends messages through an SMTP relay with mandatory STARTTLS.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

// NewSMTPMailer builds the client. No connection is opened until the first send.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	options := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}

	// Relays on a private network often accept unauthenticated submission.
	if cfg.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, options...)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to create smtp client: %w", err)
	}

	return &SMTPMailer{client: client, from: cfg.From}, nil
}

// Send implements [Mailer].
func (mailer *SMTPMailer) Send(ctx context.Context, message *Message) error {
	envelope := mail.NewMsg()

	if err := envelope.From(mailer.from); err != nil {
		return fmt.Errorf("notify_invalid_from: %w", err)
	}
	if err := envelope.To(message.Recipient); err != nil {
		return fmt.Errorf("notify_invalid_recipient: %w", err)
	}

	envelope.Subject(message.Subject)
	envelope.SetBodyString(mail.TypeTextHTML, message.HTMLBody)

	if err := mailer.client.DialAndSendWithContext(ctx, envelope); err != nil {
		return fmt.Errorf("notify_smtp_send_failed: %w", err)
	}
	return nil
}

// # Development Transport

// LogMailer writes a log line instead of sending. The body is never logged
// because it carries a live confirmation token.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a [LogMailer].
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements [Mailer].
func (mailer *LogMailer) Send(ctx context.Context, message *Message) error {
	mailer.logger.InfoContext(ctx, "mail_logged",
		slog.String("message_id", message.ID),
		slog.String("recipient", message.Recipient),
		slog.String("subject", message.Subject),
		slog.Int("body_bytes", len(message.HTMLBody)),
	)
	return nil
}
