// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pointer builds the optional values used for nullable account columns.
package pointer

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}

// NonEmpty returns nil for "" and a pointer to s otherwise.
//
// Blank profile values are stored as NULL, never as empty strings.
func NonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
