// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/kiwitrace/kiwitrace/internal/platform/apperr"
)

// # Credential Policy

const (
	MinCredentialLength = 8
	MaxCredentialLength = 16
)

// CheckCredential returns one detail per broken rule, or nil when candidate is acceptable.
//
// Length is counted in runes. Any rune that is neither a letter nor a digit
// (including spaces) counts as a special character.
func CheckCredential(candidate string) []apperr.FieldError {
	var details []apperr.FieldError

	length := utf8.RuneCountInString(candidate)
	if length < MinCredentialLength || length > MaxCredentialLength {
		details = append(details, apperr.FieldError{
			Field:   FieldCredential,
			Message: fmt.Sprintf("Must be between %d and %d characters", MinCredentialLength, MaxCredentialLength),
		})
	}

	var hasLetter, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasLetter {
		details = append(details, apperr.FieldError{Field: FieldCredential, Message: "Must contain a letter"})
	}
	if !hasDigit {
		details = append(details, apperr.FieldError{Field: FieldCredential, Message: "Must contain a digit"})
	}
	if !hasSpecial {
		details = append(details, apperr.FieldError{Field: FieldCredential, Message: "Must contain a character that is neither a letter nor a digit"})
	}

	return details
}

// ValidateCredential wraps [CheckCredential] into a POLICY_VIOLATION error.
func ValidateCredential(candidate string) error {
	if details := CheckCredential(candidate); len(details) > 0 {
		return ErrPolicy(details...)
	}
	return nil
}
