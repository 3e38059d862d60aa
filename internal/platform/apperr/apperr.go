// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr is the error type every layer returns to the HTTP edge.

An [AppError] pairs a stable machine code with the HTTP status and a message
that is safe to show. Domain packages declare their own codes with [New]
(DUPLICATE_EMAIL, INVALID_TOKEN, POLICY_VIOLATION, ...); the generic codes
below cover what is shared.

The Cause is for logs only and is never rendered.
*/
package apperr

import (
	"errors"
	"net/http"
)

// # Error Codes

const (
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeValidation = "VALIDATION_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
	CodeStorage    = "STORAGE_ERROR"
)

// AppError is a coded, client-safe error.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"error"`
	HTTPStatus int          `json:"-"`
	Cause      error        `json:"-"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError is one failed rule on one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string { return e.Message }

// Unwrap exposes Cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error { return e.Cause }

// New declares an error with a domain code.
func New(code string, httpStatus int, msg string, details ...FieldError) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: httpStatus, Details: details}
}

// NotFound reports a missing resource, e.g. NotFound("Account") → "Account not found".
func NotFound(resource string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, resource+" not found")
}

// Conflict reports a unique-constraint clash without a more specific domain code.
func Conflict(msg string) *AppError {
	return New(CodeConflict, http.StatusConflict, msg)
}

// ValidationError is a 400 carrying per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return New(CodeValidation, http.StatusBadRequest, msg, details...)
}

// Internal hides an unexpected failure behind a generic 500.
func Internal(cause error) *AppError {
	err := New(CodeInternal, http.StatusInternalServerError, "An unexpected error occurred")
	err.Cause = cause
	return err
}

// Storage is a 500 for a failed read or write of the account store or the outbox.
func Storage(cause error) *AppError {
	err := New(CodeStorage, http.StatusInternalServerError, "A storage error occurred")
	err.Cause = cause
	return err
}

// # Helpers

// IsAppError reports whether err's chain holds an [*AppError].
func IsAppError(err error) bool {
	return As(err) != nil
}

// As returns the first [*AppError] in err's chain, or nil.
func As(err error) *AppError {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError
	}
	return nil
}

// HasCode reports whether the first [*AppError] in err's chain carries code.
func HasCode(err error, code string) bool {
	appError := As(err)
	return appError != nil && appError.Code == code
}

// IsNotFound reports whether err is NOT_FOUND.
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}
