// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package validate collects field-level failures and returns them as one
VALIDATION_ERROR.

Only Required rejects empty input; the other rules pass on "" so a missing
field is reported once, as required, and not again as malformed.

	validator := &validate.Validator{}
	validator.Required("email", email).Email("email", email)
	if err := validator.Err(); err != nil {
	    return err
	}

A Validator is built per call and is not safe for concurrent use.
*/
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/kiwitrace/kiwitrace/internal/platform/apperr"
)

// ErrInvalidJSON is returned when a request body cannot be decoded.
var ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")

// Validator accumulates [apperr.FieldError]s.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails on a blank value.
func (v *Validator) Required(field, value string) *Validator {
	return v.check(field, strings.TrimSpace(value) == "", "This field is required")
}

// MaxLen fails when value has more than max runes.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	return v.check(field, utf8.RuneCountInString(value) > max, fmt.Sprintf("Maximum %d characters", max))
}

// MaxLenIfSet applies MaxLen to an optional field; nil passes.
func (v *Validator) MaxLenIfSet(field string, value *string, max int) *Validator {
	if value == nil {
		return v
	}
	return v.MaxLen(field, strings.TrimSpace(*value), max)
}

// Email fails unless value is a bare address. "Kiwi <kiwi@example.com>" is
// rejected because the account email is stored as the address itself.
func (v *Validator) Email(field, value string) *Validator {
	if value == "" {
		return v
	}
	address, err := mail.ParseAddress(value)
	return v.check(field, err != nil || address.Address != value, "Must be a valid email address")
}

// HasErrors reports whether any rule failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// Err returns the accumulated failures as a VALIDATION_ERROR, or nil.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

func (v *Validator) check(field string, failed bool, message string) *Validator {
	if failed {
		v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
	}
	return v
}

// RequiredError is a VALIDATION_ERROR for a single missing field.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{Field: field, Message: message})
}
