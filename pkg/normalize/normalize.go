// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package normalize canonicalises user input before it is compared or stored.

Two spellings of the same email or phone must land on the same row, so every
lookup key goes through this package on the way in.

  - Email: trimmed and Unicode case-folded.
  - Name: trimmed and NFC-composed.
  - Phone: E.164 when the number parses, otherwise the trimmed input.
*/
package normalize

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Email trims and case-folds an address.
func Email(raw string) string {
	return cases.Fold().String(strings.TrimSpace(raw))
}

// Name trims a display value and composes it to NFC.
func Name(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

// Phone formats a valid number as E.164 using region as the default country.
//
// Numbers that do not parse or are not valid for their region are returned
// trimmed but otherwise untouched, so lookups stay deterministic.
func Phone(raw, region string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	number, err := phonenumbers.Parse(trimmed, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
