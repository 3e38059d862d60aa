// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides the cryptographic primitives used by the account flow.
//
// # Architecture
//
// Security-sensitive code (credential hashing, token generation) lives here,
// isolated from domain logic. The account service depends on it through small
// interfaces so tests can swap in a cheap cost.
package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and compares credentials with bcrypt at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher creates a [Hasher]. Costs outside bcrypt's range fall back to the default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of a plain-text credential.
func (hasher *Hasher) Hash(plainText string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainText), hasher.cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash credential: %w", err)
	}
	return string(hashedBytes), nil
}

// Compare reports whether plainText matches the stored hash.
func (hasher *Hasher) Compare(plainText, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainText))
	return err == nil
}
