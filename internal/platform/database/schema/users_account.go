// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the Postgres tables and columns used by the hand-written
// SQL in the repositories, so a rename happens in one place.
package schema

import "strings"

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table                 string
	ID                    string
	Username              string
	CredentialHash        string
	GivenName             string
	FamilyName            string
	Phone                 string
	Email                 string
	RegisteredAt          string
	Verified              string
	VerifiedAt            string
	ConfirmationTokenHash string
	ConfirmationExpiresAt string
	UpdatedAt             string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:                 "users.account",
	ID:                    "id",
	Username:              "username",
	CredentialHash:        "credentialhash",
	GivenName:             "givenname",
	FamilyName:            "familyname",
	Phone:                 "phone",
	Email:                 "email",
	RegisteredAt:          "registeredat",
	Verified:              "verified",
	VerifiedAt:            "verifiedat",
	ConfirmationTokenHash: "confirmationtokenhash",
	ConfirmationExpiresAt: "confirmationexpiresat",
	UpdatedAt:             "updatedat",
}

// Columns returns all column names in table order
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.CredentialHash, t.GivenName, t.FamilyName, t.Phone,
		t.Email, t.RegisteredAt, t.Verified, t.VerifiedAt,
		t.ConfirmationTokenHash, t.ConfirmationExpiresAt, t.UpdatedAt,
	}
}

// SelectList joins [UserAccountTable.Columns] for a SELECT clause.
func (t UserAccountTable) SelectList() string {
	return strings.Join(t.Columns(), ", ")
}
