// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"

	"github.com/kiwitrace/kiwitrace/internal/platform/apperr"
)

// # Error Codes

const (
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnverified         = "UNVERIFIED"
	CodeNoFields           = "NO_FIELDS"
	CodeMissingData        = "MISSING_DATA"
	CodePolicyViolation    = "POLICY_VIOLATION"
	CodeAmbiguousPhone     = "AMBIGUOUS_PHONE"
)

// ErrDuplicateEmail reports an email that already has an account.
func ErrDuplicateEmail() *apperr.AppError {
	return apperr.New(CodeDuplicateEmail, http.StatusConflict, "An account with this email already exists")
}

// ErrInvalidToken reports an unknown or expired confirmation token.
func ErrInvalidToken(msg string) *apperr.AppError {
	return apperr.New(CodeInvalidToken, http.StatusBadRequest, msg)
}

// ErrInvalidCredentials is shared by unknown emails and wrong credentials.
func ErrInvalidCredentials() *apperr.AppError {
	return apperr.New(CodeInvalidCredentials, http.StatusUnauthorized, "Incorrect email or credential")
}

// ErrUnverified refuses login until the email is confirmed.
func ErrUnverified() *apperr.AppError {
	return apperr.New(CodeUnverified, http.StatusForbidden, "Confirm your email before logging in")
}

// ErrNoFields reports a profile update with nothing to change.
func ErrNoFields() *apperr.AppError {
	return apperr.New(CodeNoFields, http.StatusBadRequest, "No fields to update")
}

// ErrMissingData reports a reset without a credential or a lookup key.
func ErrMissingData() *apperr.AppError {
	return apperr.New(CodeMissingData, http.StatusBadRequest, "Missing required data")
}

// ErrPolicy reports every credential rule that failed.
func ErrPolicy(details ...apperr.FieldError) *apperr.AppError {
	return apperr.New(CodePolicyViolation, http.StatusBadRequest, "Credential does not meet the policy", details...)
}

// ErrAmbiguousPhone refuses a phone-based reset matching several accounts.
func ErrAmbiguousPhone() *apperr.AppError {
	return apperr.New(CodeAmbiguousPhone, http.StatusConflict, "Several accounts share this phone; reset by email instead")
}

// ErrAccountNotFound is the NOT_FOUND error of this package.
func ErrAccountNotFound() *apperr.AppError {
	return apperr.NotFound("Account")
}
