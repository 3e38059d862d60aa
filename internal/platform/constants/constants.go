// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants holds the values shared across layers: process identity,
server timing, header names, response field names and key prefixes.

Account rules (token lifetime, credential policy) are configuration, not
constants, and live in config.Config.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "kiwitrace-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout bounds one request, including bcrypt work and storage.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long in-flight requests get to finish.
	ShutdownTimeout = 30 * time.Second

	// StartupTimeout bounds opening storage, migrating and connecting to Redis.
	StartupTimeout = 30 * time.Second

	// ProbeTimeout bounds a single readiness or ping check.
	ProbeTimeout = 2 * time.Second
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldError   = "error"
	FieldCode    = "code"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Redis Keys

const (
	// RedisPrefixLease namespaces the expiring leases that elect one worker per job.
	RedisPrefixLease = "kiwitrace:lease:"
)
