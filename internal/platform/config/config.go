// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Mailer) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Supported Drivers

const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"

	MailSMTP = "smtp"
	MailLog  = "log"
)

// # Configuration Schema

// Config holds all runtime configuration for the KiwiTrace API server and dispatcher.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// PublicBaseURL prefixes the confirmation link sent by email.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://127.0.0.1:8080"`

	// Relational storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH"    envDefault:"./data/kiwitrace.db"`

	// Key-Value store (Redis), optional. Used for the dispatcher lease.
	RedisURL string `env:"REDIS_URL"`

	// Account lifecycle
	ConfirmationTTL         time.Duration `env:"CONFIRMATION_TTL"           envDefault:"24h"`
	BcryptCost              int           `env:"BCRYPT_COST"                envDefault:"12"`
	EnforcePolicyOnRegister bool          `env:"ENFORCE_POLICY_ON_REGISTER" envDefault:"true"`
	DefaultPhoneRegion      string        `env:"DEFAULT_PHONE_REGION"       envDefault:"US"`

	// Outbound mail
	MailDriver        string  `env:"MAIL_DRIVER"          envDefault:"log"`
	SMTPHost          string  `env:"SMTP_HOST"`
	SMTPPort          int     `env:"SMTP_PORT"            envDefault:"587"`
	SMTPUsername      string  `env:"SMTP_USERNAME"`
	SMTPPassword      string  `env:"SMTP_PASSWORD"`
	MailFrom          string  `env:"MAIL_FROM"            envDefault:"no-reply@kiwitrace.net"`
	MailRatePerSecond float64 `env:"MAIL_RATE_PER_SECOND" envDefault:"1"`
	MailBurst         int     `env:"MAIL_BURST"           envDefault:"5"`

	// Outbox dispatcher
	DispatcherEmbedded  bool          `env:"DISPATCHER_EMBEDDED"   envDefault:"true"`
	DispatchInterval    time.Duration `env:"DISPATCH_INTERVAL"     envDefault:"5s"`
	DispatchBatchSize   int           `env:"DISPATCH_BATCH_SIZE"   envDefault:"20"`
	DispatchMaxAttempts int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"8"`
	DispatchBackoff     time.Duration `env:"DISPATCH_BACKOFF"      envDefault:"30s"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres storage driver"))
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver))
	}

	switch c.MailDriver {
	case MailSMTP:
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp mail driver"))
		}
	case MailLog:
	default:
		errs = append(errs, fmt.Errorf("unsupported MAIL_DRIVER %q", c.MailDriver))
	}

	if c.MailFrom == "" {
		errs = append(errs, errors.New("MAIL_FROM must not be empty"))
	}
	if c.ConfirmationTTL <= 0 {
		errs = append(errs, errors.New("CONFIRMATION_TTL must be positive"))
	}
	if c.DispatchInterval <= 0 || c.DispatchBackoff <= 0 {
		errs = append(errs, errors.New("DISPATCH_INTERVAL and DISPATCH_BACKOFF must be positive"))
	}
	if c.DispatchBatchSize < 1 || c.DispatchMaxAttempts < 1 {
		errs = append(errs, errors.New("DISPATCH_BATCH_SIZE and DISPATCH_MAX_ATTEMPTS must be at least 1"))
	}
	if c.MailRatePerSecond <= 0 || c.MailBurst < 1 {
		errs = append(errs, errors.New("MAIL_RATE_PER_SECOND must be positive and MAIL_BURST at least 1"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the comma-separated EXTRA_ORIGINS as a trimmed slice.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// ConfirmationURL builds the link embedded in confirmation emails.
func (c *Config) ConfirmationURL(token string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/confirm/" + token
}
