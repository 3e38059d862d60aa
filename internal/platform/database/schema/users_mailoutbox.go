// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

import "strings"

// UserMailOutboxTable represents the 'users.mailoutbox' table
type UserMailOutboxTable struct {
	Table         string
	ID            string
	Recipient     string
	Subject       string
	HTMLBody      string
	Status        string
	Attempts      string
	NextAttemptAt string
	LockedUntil   string
	LastError     string
	CreatedAt     string
	SentAt        string
}

// UserMailOutbox is the schema definition for users.mailoutbox
var UserMailOutbox = UserMailOutboxTable{
	Table:         "users.mailoutbox",
	ID:            "id",
	Recipient:     "recipient",
	Subject:       "subject",
	HTMLBody:      "htmlbody",
	Status:        "status",
	Attempts:      "attempts",
	NextAttemptAt: "nextattemptat",
	LockedUntil:   "lockeduntil",
	LastError:     "lasterror",
	CreatedAt:     "createdat",
	SentAt:        "sentat",
}

// Columns returns all column names in table order
func (t UserMailOutboxTable) Columns() []string {
	return []string{
		t.ID, t.Recipient, t.Subject, t.HTMLBody, t.Status, t.Attempts,
		t.NextAttemptAt, t.LockedUntil, t.LastError, t.CreatedAt, t.SentAt,
	}
}

// SelectList joins [UserMailOutboxTable.Columns] for a SELECT clause.
func (t UserMailOutboxTable) SelectList() string {
	return strings.Join(t.Columns(), ", ")
}
