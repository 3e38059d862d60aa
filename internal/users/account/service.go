// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kiwitrace/kiwitrace/internal/notify"
	"github.com/kiwitrace/kiwitrace/internal/platform/apperr"
	"github.com/kiwitrace/kiwitrace/internal/platform/sec"
	"github.com/kiwitrace/kiwitrace/internal/platform/validate"
	"github.com/kiwitrace/kiwitrace/pkg/normalize"
	"github.com/kiwitrace/kiwitrace/pkg/pointer"
	"github.com/kiwitrace/kiwitrace/pkg/uuid"
)

// # Contracts & Types

// Hasher hashes and compares credentials. [sec.Hasher] is the production implementation.
type Hasher interface {
	Hash(plainText string) (string, error)
	Compare(plainText, existingHash string) bool
}

// Options carries the tunables of the [Service].
type Options struct {
	// ConfirmationTTL is how long a confirmation link stays valid.
	ConfirmationTTL time.Duration

	// EnforcePolicyOnRegister applies the credential policy at registration.
	EnforcePolicyOnRegister bool

	// PhoneRegion is the default country used to parse national phone numbers.
	PhoneRegion string

	// ConfirmationURL turns a raw token into the link sent by email.
	ConfirmationURL func(token string) string
}

// Service implements the account use cases.
//
// # Review Process
//
// This service is critical for security. Changes to hashing, confirmation
// tokens or the login path deserve a second reviewer.
type Service struct {
	repository Repository
	hasher     Hasher
	options    Options
	logger     *slog.Logger
	now        func() time.Time
	dummyHash  func() string
}

// NewService constructs a new [Service] with its dependencies.
func NewService(repository Repository, hasher Hasher, options Options, logger *slog.Logger) *Service {
	return &Service{
		repository: repository,
		hasher:     hasher,
		options:    options,
		logger:     logger,
		now:        time.Now,
		dummyHash: sync.OnceValue(func() string {
			hash, _ := hasher.Hash(dummyCredential)
			return hash
		}),
	}
}

// # Registration Flow

// RegisterInput holds the data required to open an account.
type RegisterInput struct {
	Email        string
	Username     string
	Credential   string
	GivenName    *string
	FamilyName   *string
	Phone        *string
	RegisteredAt *time.Time
}

/*
Register validates, hashes and persists a new account together with its
confirmation mail.

Description: The account row and the outbox message commit in one
transaction. Delivery happens later, so a mail outage never fails a
registration that was stored.

Parameters:
  - ctx: context.Context
  - input: RegisterInput

Returns:
  - *Summary: the created account
  - error: VALIDATION_ERROR, POLICY_VIOLATION, DUPLICATE_EMAIL or STORAGE_ERROR
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*Summary, error) {
	email := normalize.Email(input.Email)
	username := normalize.Name(input.Username)

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).
		Required(FieldUsername, username).
		Required(FieldCredential, input.Credential).
		MaxLen(FieldEmail, email, MaxEmailLength).
		MaxLen(FieldUsername, username, MaxUsernameLength).
		Email(FieldEmail, email)
	validateProfile(validator, input.GivenName, input.FamilyName, input.Phone)

	if err := validator.Err(); err != nil {
		return nil, err
	}

	if service.options.EnforcePolicyOnRegister {
		if err := ValidateCredential(input.Credential); err != nil {
			return nil, err
		}
	}

	// Pre-check for a friendly error; the UNIQUE constraint still decides races.
	_, err := service.repository.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrDuplicateEmail()
	}
	if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("account_service_register_lookup_failed: %w", err)
	}

	credentialHash, err := service.hasher.Hash(input.Credential)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("account_service_hash_failed: %w", err))
	}

	now := service.now().UTC()
	registeredAt := now
	if input.RegisteredAt != nil && !input.RegisteredAt.IsZero() {
		registeredAt = input.RegisteredAt.UTC()
	}

	token, tokenHash, expiresAt, err := service.newConfirmationToken(now)
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:                    uuid.New(),
		Username:              username,
		CredentialHash:        credentialHash,
		GivenName:             optionalName(input.GivenName),
		FamilyName:            optionalName(input.FamilyName),
		Phone:                 service.optionalPhone(input.Phone),
		Email:                 email,
		RegisteredAt:          registeredAt,
		Verified:              false,
		ConfirmationTokenHash: tokenHash,
		ConfirmationExpiresAt: expiresAt,
		UpdatedAt:             now,
	}

	confirmation, err := notify.ConfirmationMessage(email, username, service.options.ConfirmationURL(token), expiresAt, now)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := service.repository.Create(ctx, account, confirmation); err != nil {
		return nil, fmt.Errorf("account_service_register_failed: %w", err)
	}

	service.logger.InfoContext(ctx, "account_registered",
		slog.String("account_id", account.ID),
		slog.String("outbox_message_id", confirmation.ID),
	)

	return account.Summary(), nil
}

// # Confirmation Flow

/*
ConfirmEmail marks the account owning token as verified.

Description: Verified accounts answer [ConfirmAlreadyVerified] before the
expiry is considered, so a used link stays harmless forever. The flip itself
is a conditional update, which makes concurrent confirmations converge on
one [ConfirmJustVerified].

Parameters:
  - ctx: context.Context
  - token: string (raw token from the link)

Returns:
  - ConfirmResult
  - error: INVALID_TOKEN or STORAGE_ERROR
*/
func (service *Service) ConfirmEmail(ctx context.Context, token string) (ConfirmResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken("Confirmation token is required")
	}

	account, err := service.repository.FindByConfirmationHash(ctx, sec.HashToken(token))
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", ErrInvalidToken("Confirmation token is invalid")
		}
		return "", fmt.Errorf("account_service_confirm_lookup_failed: %w", err)
	}

	if account.Verified {
		return ConfirmAlreadyVerified, nil
	}

	now := service.now().UTC()
	if !now.Before(account.ConfirmationExpiresAt) {
		return "", ErrInvalidToken("Confirmation token has expired")
	}

	flipped, err := service.repository.MarkVerified(ctx, account.ID, now)
	if err != nil {
		return "", fmt.Errorf("account_service_confirm_failed: %w", err)
	}
	if !flipped {
		return ConfirmAlreadyVerified, nil
	}

	service.logger.InfoContext(ctx, "account_verified", slog.String("account_id", account.ID))
	return ConfirmJustVerified, nil
}

/*
ResendConfirmation issues a fresh confirmation link for an unverified account.

Description: Unknown and already verified emails succeed silently so the
endpoint cannot be used to probe which emails are registered. The previous
token stops working.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - error: VALIDATION_ERROR or STORAGE_ERROR
*/
func (service *Service) ResendConfirmation(ctx context.Context, email string) error {
	email = normalize.Email(email)

	validator := &validate.Validator{}
	if err := validator.Required(FieldEmail, email).Email(FieldEmail, email).Err(); err != nil {
		return err
	}

	account, err := service.repository.FindByEmail(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("account_service_resend_lookup_failed: %w", err)
	}
	if account.Verified {
		return nil
	}

	now := service.now().UTC()
	token, tokenHash, expiresAt, err := service.newConfirmationToken(now)
	if err != nil {
		return err
	}

	confirmation, err := notify.ConfirmationMessage(email, account.Username, service.options.ConfirmationURL(token), expiresAt, now)
	if err != nil {
		return apperr.Internal(err)
	}

	if err := service.repository.RotateConfirmation(ctx, account.ID, tokenHash, expiresAt, now, confirmation); err != nil {
		return fmt.Errorf("account_service_resend_failed: %w", err)
	}

	service.logger.InfoContext(ctx, "account_confirmation_resent", slog.String("account_id", account.ID))
	return nil
}

// # Authentication Flow

/*
Login checks an email and credential pair. No session is created.

Description: Unknown emails and wrong credentials produce the same error.
For unknown emails a comparison against a fixed hash still runs so both paths
cost one bcrypt comparison.

Parameters:
  - ctx: context.Context
  - email: string
  - credential: string

Returns:
  - *Summary: the authenticated account
  - error: INVALID_CREDENTIALS, UNVERIFIED or STORAGE_ERROR
*/
func (service *Service) Login(ctx context.Context, email, credential string) (*Summary, error) {
	email = normalize.Email(email)
	if email == "" || credential == "" {
		return nil, ErrInvalidCredentials()
	}

	account, err := service.repository.FindByEmail(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			service.hasher.Compare(credential, service.dummyHash())
			return nil, ErrInvalidCredentials()
		}
		return nil, fmt.Errorf("account_service_login_lookup_failed: %w", err)
	}

	if !service.hasher.Compare(credential, account.CredentialHash) {
		return nil, ErrInvalidCredentials()
	}

	// Only revealed once the credential matched.
	if !account.Verified {
		return nil, ErrUnverified()
	}

	service.logger.InfoContext(ctx, "account_login_succeeded", slog.String("account_id", account.ID))
	return account.Summary(), nil
}

// # Profile Management

// ProfileInput is the optional-field payload of [Service.UpdateProfile].
//
// nil leaves a field untouched; "" clears a name or phone.
type ProfileInput struct {
	GivenName  *string
	FamilyName *string
	Phone      *string
	Credential *string
}

/*
UpdateProfile applies a sparse update to the account identified by email.

Parameters:
  - ctx: context.Context
  - email: string (lookup key, cannot itself be changed)
  - input: ProfileInput

Returns:
  - int64: rows updated (1 on success)
  - error: VALIDATION_ERROR, NO_FIELDS, POLICY_VIOLATION, NOT_FOUND or STORAGE_ERROR
*/
func (service *Service) UpdateProfile(ctx context.Context, email string, input ProfileInput) (int64, error) {
	email = normalize.Email(email)
	if email == "" {
		return 0, validate.RequiredError(FieldEmail, "This field is required")
	}

	if input.GivenName == nil && input.FamilyName == nil && input.Phone == nil && input.Credential == nil {
		return 0, ErrNoFields()
	}

	validator := &validate.Validator{}
	validateProfile(validator, input.GivenName, input.FamilyName, input.Phone)
	if err := validator.Err(); err != nil {
		return 0, err
	}

	changes := ProfileChanges{
		GivenName:  clearableName(input.GivenName),
		FamilyName: clearableName(input.FamilyName),
		Phone:      service.clearablePhone(input.Phone),
	}

	if input.Credential != nil {
		if err := ValidateCredential(*input.Credential); err != nil {
			return 0, err
		}

		credentialHash, err := service.hasher.Hash(*input.Credential)
		if err != nil {
			return 0, apperr.Internal(fmt.Errorf("account_service_hash_failed: %w", err))
		}
		changes.CredentialHash = &credentialHash
	}

	updated, err := service.repository.UpdateProfile(ctx, email, changes, service.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("account_service_update_profile_failed: %w", err)
	}
	if updated == 0 {
		return 0, ErrAccountNotFound()
	}

	service.logger.InfoContext(ctx, "account_profile_updated",
		slog.Bool("credential_changed", changes.CredentialHash != nil),
	)
	return updated, nil
}

// # Credential Recovery

// ResetInput identifies the account by email or, failing that, by phone.
type ResetInput struct {
	Email         string
	Phone         string
	NewCredential string
}

/*
ResetCredential replaces the credential of the account found by email or phone.

Description: A present email is the only lookup key; the phone is then ignored
entirely. A phone shared by several accounts is refused rather than
resetting all of them.

Parameters:
  - ctx: context.Context
  - input: ResetInput

Returns:
  - error: MISSING_DATA, POLICY_VIOLATION, NOT_FOUND, AMBIGUOUS_PHONE or STORAGE_ERROR
*/
func (service *Service) ResetCredential(ctx context.Context, input ResetInput) error {
	email := normalize.Email(input.Email)
	rawPhone := strings.TrimSpace(input.Phone)

	if input.NewCredential == "" || (email == "" && rawPhone == "") {
		return ErrMissingData()
	}

	if err := ValidateCredential(input.NewCredential); err != nil {
		return err
	}

	var account *Account
	if email != "" {
		found, err := service.repository.FindByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("account_service_reset_lookup_failed: %w", err)
		}
		account = found
	} else {
		matches, err := service.repository.FindByPhone(ctx, normalize.Phone(rawPhone, service.options.PhoneRegion))
		if err != nil {
			return fmt.Errorf("account_service_reset_lookup_failed: %w", err)
		}
		switch len(matches) {
		case 0:
			return ErrAccountNotFound()
		case 1:
			account = matches[0]
		default:
			return ErrAmbiguousPhone()
		}
	}

	credentialHash, err := service.hasher.Hash(input.NewCredential)
	if err != nil {
		return apperr.Internal(fmt.Errorf("account_service_hash_failed: %w", err))
	}

	if err := service.repository.UpdateCredential(ctx, account.ID, credentialHash, service.now().UTC()); err != nil {
		return fmt.Errorf("account_service_reset_failed: %w", err)
	}

	service.logger.InfoContext(ctx, "account_credential_reset", slog.String("account_id", account.ID))
	return nil
}

// # Helpers

// newConfirmationToken returns the raw token for the link and the digest to store.
func (service *Service) newConfirmationToken(now time.Time) (string, string, time.Time, error) {
	token, err := sec.GenerateSecureToken()
	if err != nil {
		return "", "", time.Time{}, apperr.Internal(err)
	}
	return token, sec.HashToken(token), now.Add(service.options.ConfirmationTTL), nil
}

func validateProfile(validator *validate.Validator, givenName, familyName, phone *string) {
	validator.MaxLenIfSet(FieldGivenName, givenName, MaxNameLength).
		MaxLenIfSet(FieldFamilyName, familyName, MaxNameLength).
		MaxLenIfSet(FieldPhone, phone, MaxPhoneLength)
}

func (service *Service) optionalPhone(raw *string) *string {
	if raw == nil {
		return nil
	}
	return pointer.NonEmpty(normalize.Phone(*raw, service.options.PhoneRegion))
}

func (service *Service) clearablePhone(raw *string) *string {
	if raw == nil {
		return nil
	}
	phone := normalize.Phone(*raw, service.options.PhoneRegion)
	return &phone
}

// optionalName normalises an optional name, treating blank as absent.
func optionalName(raw *string) *string {
	if raw == nil {
		return nil
	}
	return pointer.NonEmpty(normalize.Name(*raw))
}

// clearableName normalises a name for an update, keeping "" as an explicit clear.
func clearableName(raw *string) *string {
	if raw == nil {
		return nil
	}
	name := normalize.Name(*raw)
	return &name
}
