// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiwitrace/kiwitrace/internal/platform/apperr"
	"github.com/kiwitrace/kiwitrace/internal/platform/sec"
	"github.com/kiwitrace/kiwitrace/pkg/pointer"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type serviceFixture struct {
	service    *Service
	repository *memoryRepository
	tokens     []string
}

func (fixture *serviceFixture) lastToken() string {
	return fixture.tokens[len(fixture.tokens)-1]
}

func newServiceFixture(t *testing.T, options Options) *serviceFixture {
	t.Helper()

	fixture := &serviceFixture{repository: newMemoryRepository()}
	if options.ConfirmationTTL == 0 {
		options.ConfirmationTTL = 24 * time.Hour
	}
	if options.PhoneRegion == "" {
		options.PhoneRegion = "US"
	}
	options.ConfirmationURL = func(token string) string {
		fixture.tokens = append(fixture.tokens, token)
		return "https://kiwitrace.test/confirm/" + token
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fixture.service = NewService(fixture.repository, sec.NewHasher(bcrypt.MinCost), options, logger)
	fixture.service.now = func() time.Time { return testNow }
	return fixture
}

func validRegistration(email string) RegisterInput {
	return RegisterInput{
		Email:      email,
		Username:   "kiwi",
		Credential: "Kiwi2026!",
		GivenName:  pointer.To("Ana"),
		FamilyName: pointer.To("Pérez"),
		Phone:      pointer.To("(202) 456-1111"),
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae, "expected an AppError, got %v", err)
	assert.Equal(t, code, ae.Code)
}

// # Register

func TestService_Register(t *testing.T) {
	fixture := newServiceFixture(t, Options{EnforcePolicyOnRegister: true})

	summary, err := fixture.service.Register(context.Background(), validRegistration("  Ana@Example.COM "))
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", summary.Email)
	assert.False(t, summary.Verified)
	assert.Equal(t, testNow, summary.RegisteredAt)
	require.NotNil(t, summary.Phone)
	assert.Equal(t, "+12024561111", *summary.Phone)

	stored, err := fixture.repository.FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Kiwi2026!", stored.CredentialHash)
	assert.Equal(t, sec.HashToken(fixture.lastToken()), stored.ConfirmationTokenHash)
	assert.Equal(t, testNow.Add(24*time.Hour), stored.ConfirmationExpiresAt)

	require.Len(t, fixture.repository.outbox, 1)
	message := fixture.repository.outbox[0]
	assert.Equal(t, "ana@example.com", message.Recipient)
	assert.Contains(t, message.HTMLBody, "https://kiwitrace.test/confirm/"+fixture.lastToken())
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)

	_, err = fixture.service.Register(ctx, validRegistration("ANA@example.com"))
	assertCode(t, err, CodeDuplicateEmail)
	assert.Equal(t, 1, fixture.repository.count())
	assert.Len(t, fixture.repository.outbox, 1)
}

func TestService_Register_Validation(t *testing.T) {
	fixture := newServiceFixture(t, Options{})

	_, err := fixture.service.Register(context.Background(), RegisterInput{Email: "not-an-email"})
	assertCode(t, err, apperr.CodeValidation)

	fields := map[string]bool{}
	for _, detail := range apperr.As(err).Details {
		fields[detail.Field] = true
	}
	assert.True(t, fields[FieldEmail])
	assert.True(t, fields[FieldUsername])
	assert.True(t, fields[FieldCredential])
	assert.Zero(t, fixture.repository.count())
}

func TestService_Register_PolicyToggle(t *testing.T) {
	input := validRegistration("weak@example.com")
	input.Credential = "abcdefgh"

	strict := newServiceFixture(t, Options{EnforcePolicyOnRegister: true})
	_, err := strict.service.Register(context.Background(), input)
	assertCode(t, err, CodePolicyViolation)

	lenient := newServiceFixture(t, Options{EnforcePolicyOnRegister: false})
	_, err = lenient.service.Register(context.Background(), input)
	assert.NoError(t, err)
}

func TestService_Register_KeepsSuppliedTimestamp(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	input := validRegistration("ana@example.com")
	input.RegisteredAt = pointer.To(time.Date(2025, 12, 24, 8, 0, 0, 0, time.UTC))

	summary, err := fixture.service.Register(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, *input.RegisteredAt, summary.RegisteredAt)
}

func TestService_Register_StorageError(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	fixture.repository.err = apperr.Storage(errors.New("disk full"))

	_, err := fixture.service.Register(context.Background(), validRegistration("ana@example.com"))
	assertCode(t, err, apperr.CodeStorage)
}

// # ConfirmEmail

func TestService_ConfirmEmail_Idempotent(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)
	token := fixture.lastToken()

	result, err := fixture.service.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ConfirmJustVerified, result)

	result, err = fixture.service.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ConfirmAlreadyVerified, result)

	stored, err := fixture.repository.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, stored.Verified)
	require.NotNil(t, stored.VerifiedAt)
	assert.Equal(t, testNow, *stored.VerifiedAt)
}

func TestService_ConfirmEmail_UnknownToken(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)

	for _, token := range []string{"", "   ", "definitely-not-issued"} {
		_, err := fixture.service.ConfirmEmail(ctx, token)
		assertCode(t, err, CodeInvalidToken)
	}

	stored, err := fixture.repository.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.False(t, stored.Verified)
}

func TestService_ConfirmEmail_Expired(t *testing.T) {
	fixture := newServiceFixture(t, Options{ConfirmationTTL: time.Hour})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)
	token := fixture.lastToken()

	fixture.service.now = func() time.Time { return testNow.Add(time.Hour) }
	_, err = fixture.service.ConfirmEmail(ctx, token)
	assertCode(t, err, CodeInvalidToken)
	assert.Equal(t, "Confirmation token has expired", apperr.As(err).Message)
}

func TestService_ConfirmEmail_VerifiedBeatsExpiry(t *testing.T) {
	fixture := newServiceFixture(t, Options{ConfirmationTTL: time.Hour})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)
	token := fixture.lastToken()

	_, err = fixture.service.ConfirmEmail(ctx, token)
	require.NoError(t, err)

	fixture.service.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	result, err := fixture.service.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ConfirmAlreadyVerified, result)
}

func TestService_ConfirmEmail_Concurrent(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)
	token := fixture.lastToken()

	const callers = 8
	results := make(chan ConfirmResult, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := fixture.service.ConfirmEmail(ctx, token)
			assert.NoError(t, err)
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	justVerified := 0
	for result := range results {
		if result == ConfirmJustVerified {
			justVerified++
		}
	}
	assert.Equal(t, 1, justVerified)
}

// # ResendConfirmation

func TestService_ResendConfirmation_Rotates(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)
	oldToken := fixture.lastToken()

	require.NoError(t, fixture.service.ResendConfirmation(ctx, "ana@example.com"))
	newToken := fixture.lastToken()
	assert.NotEqual(t, oldToken, newToken)
	assert.Len(t, fixture.repository.outbox, 2)

	_, err = fixture.service.ConfirmEmail(ctx, oldToken)
	assertCode(t, err, CodeInvalidToken)

	result, err := fixture.service.ConfirmEmail(ctx, newToken)
	require.NoError(t, err)
	assert.Equal(t, ConfirmJustVerified, result)
}

func TestService_ResendConfirmation_Silent(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)
	_, err = fixture.service.ConfirmEmail(ctx, fixture.lastToken())
	require.NoError(t, err)

	assert.NoError(t, fixture.service.ResendConfirmation(ctx, "ana@example.com"))
	assert.NoError(t, fixture.service.ResendConfirmation(ctx, "ghost@example.com"))
	assert.Len(t, fixture.repository.outbox, 1)

	assertCode(t, fixture.service.ResendConfirmation(ctx, "nope"), apperr.CodeValidation)
}

// # Login

func TestService_Login(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)

	_, err = fixture.service.Login(ctx, "ana@example.com", "Kiwi2026!")
	assertCode(t, err, CodeUnverified)

	_, err = fixture.service.Login(ctx, "ana@example.com", "wrong-one1!")
	assertCode(t, err, CodeInvalidCredentials)

	_, err = fixture.service.ConfirmEmail(ctx, fixture.lastToken())
	require.NoError(t, err)

	summary, err := fixture.service.Login(ctx, " ANA@example.com", "Kiwi2026!")
	require.NoError(t, err)
	assert.True(t, summary.Verified)
	assert.Equal(t, "kiwi", summary.Username)
}

func TestService_Login_UniformFailure(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)
	_, err = fixture.service.ConfirmEmail(ctx, fixture.lastToken())
	require.NoError(t, err)

	_, wrongCredential := fixture.service.Login(ctx, "ana@example.com", "Wrong2026!")
	_, unknownEmail := fixture.service.Login(ctx, "ghost@example.com", "Kiwi2026!")
	_, blank := fixture.service.Login(ctx, "", "")

	for _, err := range []error{wrongCredential, unknownEmail, blank} {
		assertCode(t, err, CodeInvalidCredentials)
		assert.Equal(t, apperr.As(wrongCredential).Message, apperr.As(err).Message)
	}
}

// # UpdateProfile

func TestService_UpdateProfile(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)

	updated, err := fixture.service.UpdateProfile(ctx, "ana@example.com", ProfileInput{
		GivenName: pointer.To("  Anabel "),
		Phone:     pointer.To(""),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	stored, err := fixture.repository.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.GivenName)
	assert.Equal(t, "Anabel", *stored.GivenName)
	require.NotNil(t, stored.FamilyName)
	assert.Equal(t, "Pérez", *stored.FamilyName)
	assert.Nil(t, stored.Phone)
}

func TestService_UpdateProfile_Credential(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)
	_, err = fixture.service.ConfirmEmail(ctx, fixture.lastToken())
	require.NoError(t, err)

	_, err = fixture.service.UpdateProfile(ctx, "ana@example.com", ProfileInput{Credential: pointer.To("abcdefgh")})
	assertCode(t, err, CodePolicyViolation)

	_, err = fixture.service.UpdateProfile(ctx, "ana@example.com", ProfileInput{Credential: pointer.To("abcd1234!")})
	require.NoError(t, err)

	_, err = fixture.service.Login(ctx, "ana@example.com", "abcd1234!")
	assert.NoError(t, err)
}

func TestService_UpdateProfile_Errors(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.UpdateProfile(ctx, "", ProfileInput{GivenName: pointer.To("Ana")})
	assertCode(t, err, apperr.CodeValidation)

	_, err = fixture.service.UpdateProfile(ctx, "a@b.com", ProfileInput{})
	assertCode(t, err, CodeNoFields)

	_, err = fixture.service.UpdateProfile(ctx, "a@b.com", ProfileInput{GivenName: pointer.To("Ana")})
	assertCode(t, err, apperr.CodeNotFound)

	_, err = fixture.service.UpdateProfile(ctx, "a@b.com", ProfileInput{GivenName: pointer.To(strings.Repeat("x", MaxNameLength+1))})
	assertCode(t, err, apperr.CodeValidation)
}

// # ResetCredential

func TestService_ResetCredential_ByEmail(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)
	_, err = fixture.service.ConfirmEmail(ctx, fixture.lastToken())
	require.NoError(t, err)

	require.NoError(t, fixture.service.ResetCredential(ctx, ResetInput{Email: "ana@example.com", NewCredential: "Ok12345!"}))

	_, err = fixture.service.Login(ctx, "ana@example.com", "Ok12345!")
	assert.NoError(t, err)
	_, err = fixture.service.Login(ctx, "ana@example.com", "Kiwi2026!")
	assertCode(t, err, CodeInvalidCredentials)
}

func TestService_ResetCredential_EmailWinsOverPhone(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	input := validRegistration("ana@example.com")
	input.Phone = pointer.To("555")
	_, err := fixture.service.Register(ctx, input)
	require.NoError(t, err)

	err = fixture.service.ResetCredential(ctx, ResetInput{Email: "a@b.com", Phone: "555", NewCredential: "Ok12345!"})
	assertCode(t, err, apperr.CodeNotFound)
}

func TestService_ResetCredential_ByPhone(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, validRegistration("ana@example.com"))
	require.NoError(t, err)

	require.NoError(t, fixture.service.ResetCredential(ctx, ResetInput{Phone: "202-456-1111", NewCredential: "Ok12345!"}))

	err = fixture.service.ResetCredential(ctx, ResetInput{Phone: "+1 415 555 2671", NewCredential: "Ok12345!"})
	assertCode(t, err, apperr.CodeNotFound)

	_, err = fixture.service.Register(ctx, validRegistration("bea@example.com"))
	require.NoError(t, err)

	err = fixture.service.ResetCredential(ctx, ResetInput{Phone: "(202) 456-1111", NewCredential: "Ok12345!"})
	assertCode(t, err, CodeAmbiguousPhone)
}

func TestService_ResetCredential_Validation(t *testing.T) {
	fixture := newServiceFixture(t, Options{})
	ctx := context.Background()

	err := fixture.service.ResetCredential(ctx, ResetInput{Email: "a@b.com"})
	assertCode(t, err, CodeMissingData)

	err = fixture.service.ResetCredential(ctx, ResetInput{NewCredential: "Ok12345!"})
	assertCode(t, err, CodeMissingData)

	err = fixture.service.ResetCredential(ctx, ResetInput{Email: "a@b.com", NewCredential: "abc"})
	assertCode(t, err, CodePolicyViolation)
}
