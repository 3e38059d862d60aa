// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account implements the KiwiTrace account lifecycle.

An account moves through a single one-way state machine:

	registered (verified=false) ──ConfirmEmail──> verified ──Login──> authenticated (check only)

Profile updates and credential resets mutate an account in either state.

# Architecture

  - Entity: [Account] and the read-only [Summary] returned to callers.
  - Service: business rules (uniqueness, credential policy, confirmation tokens).
  - Repository: Postgres (pgx) and SQLite (bun) implementations that also
    enqueue confirmation mail in the same transaction.
  - Handler: chi routes mapping JSON requests onto the [Service].

Uniqueness of email and idempotent confirmation are enforced by the storage
layer (UNIQUE constraint, conditional UPDATE), not by in-process locks.
*/
package account

import (
	"context"
	"time"

	"github.com/kiwitrace/kiwitrace/internal/notify"
)

// # Domain Entities

// Account is the stored account row.
type Account struct {
	ID                    string
	Username              string
	CredentialHash        string
	GivenName             *string
	FamilyName            *string
	Phone                 *string
	Email                 string
	RegisteredAt          time.Time
	Verified              bool
	VerifiedAt            *time.Time
	ConfirmationTokenHash string
	ConfirmationExpiresAt time.Time
	UpdatedAt             time.Time
}

// Summary is the client-safe view of an [Account].
type Summary struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	GivenName    *string    `json:"given_name"`
	FamilyName   *string    `json:"family_name"`
	Phone        *string    `json:"phone"`
	RegisteredAt time.Time  `json:"registered_at"`
	Verified     bool       `json:"verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
}

// Summary projects the account onto its public fields.
func (account *Account) Summary() *Summary {
	return &Summary{
		ID:           account.ID,
		Username:     account.Username,
		Email:        account.Email,
		GivenName:    account.GivenName,
		FamilyName:   account.FamilyName,
		Phone:        account.Phone,
		RegisteredAt: account.RegisteredAt,
		Verified:     account.Verified,
		VerifiedAt:   account.VerifiedAt,
	}
}

// ConfirmResult is the outcome of a successful confirmation.
type ConfirmResult string

const (
	// ConfirmJustVerified means this call flipped the account to verified.
	ConfirmJustVerified ConfirmResult = "verified"

	// ConfirmAlreadyVerified means an earlier call already did.
	ConfirmAlreadyVerified ConfirmResult = "already_verified"
)

// ProfileChanges is the sparse set of columns an update writes.
//
// A nil field is left untouched. A pointer to "" clears the column (NULL).
// CredentialHash is never cleared.
type ProfileChanges struct {
	GivenName      *string
	FamilyName     *string
	Phone          *string
	CredentialHash *string
}

// Empty reports whether no column would be written.
func (changes ProfileChanges) Empty() bool {
	return changes.GivenName == nil &&
		changes.FamilyName == nil &&
		changes.Phone == nil &&
		changes.CredentialHash == nil
}

// # Contracts

// Repository persists accounts.
//
// Lookups return an apperr NOT_FOUND error when nothing matches. Create
// reports a duplicate email as [ErrDuplicateEmail] whether it is caught by a
// pre-check or by the storage constraint.
type Repository interface {
	// Create inserts the account and its confirmation mail atomically.
	Create(ctx context.Context, account *Account, confirmation *notify.Message) error

	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByConfirmationHash(ctx context.Context, tokenHash string) (*Account, error)

	// FindByPhone returns at most two accounts, enough to detect ambiguity.
	FindByPhone(ctx context.Context, phone string) ([]*Account, error)

	// MarkVerified flips verified for an unverified account. It reports false
	// when the account was already verified (or no longer exists).
	MarkVerified(ctx context.Context, id string, at time.Time) (bool, error)

	// RotateConfirmation replaces the token of an unverified account and
	// enqueues the new mail atomically. A verified account is left untouched.
	RotateConfirmation(ctx context.Context, id, tokenHash string, expiresAt, at time.Time, confirmation *notify.Message) error

	// UpdateProfile applies changes to the account with email and returns the rows updated.
	UpdateProfile(ctx context.Context, email string, changes ProfileChanges, at time.Time) (int64, error)

	// UpdateCredential replaces the credential hash of the account with id.
	UpdateCredential(ctx context.Context, id, credentialHash string, at time.Time) error
}
