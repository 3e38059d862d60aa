// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

// # Field Identifiers

// JSON field names, shared by request payloads and validation details.
const (
	FieldEmail         = "email"
	FieldUsername      = "username"
	FieldCredential    = "credential"
	FieldNewCredential = "new_credential"
	FieldGivenName     = "given_name"
	FieldFamilyName    = "family_name"
	FieldPhone         = "phone"
	FieldToken         = "token"
	FieldStatus        = "status"
	FieldUpdated       = "updated"
	FieldMessage       = "message"
)

// # Input Limits

const (
	MaxEmailLength    = 254
	MaxUsernameLength = 64
	MaxNameLength     = 100
	MaxPhoneLength    = 32
)

// dummyCredential is hashed once and compared against when an email is unknown.
const dummyCredential = "kiwitrace-timing-guard-1!"
