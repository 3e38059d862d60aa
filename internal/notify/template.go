// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// ConfirmationSubject is the subject line of registration confirmation mail.
const ConfirmationSubject = "Confirm your KiwiTrace registration"

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #1f2933;">
    <h2>Welcome to KiwiTrace{{if .Username}}, {{.Username}}{{end}}!</h2>
    <p>Please confirm your email address to activate your account.</p>
    <p><a href="{{.Link}}">Confirm my registration</a></p>
    <p>If the button does not work, paste this link into your browser:<br>{{.Link}}</p>
    <p>This link expires on {{.ExpiresAt}}.</p>
  </body>
</html>
`))

type confirmationData struct {
	Username  string
	Link      string
	ExpiresAt string
}

/*
ConfirmationMessage renders the registration confirmation email.

Parameters:
  - recipient: string (normalised email)
  - username: string
  - link: string (absolute confirmation URL carrying the raw token)
  - expiresAt: time.Time
  - now: time.Time (enqueue time)

Returns:
  - *Message: a pending outbox message
  - error: template execution failure
*/
func ConfirmationMessage(recipient, username, link string, expiresAt, now time.Time) (*Message, error) {
	var body bytes.Buffer

	err := confirmationTemplate.Execute(&body, confirmationData{
		Username:  username,
		Link:      link,
		ExpiresAt: expiresAt.UTC().Format("2006-01-02 15:04 UTC"),
	})
	if err != nil {
		return nil, fmt.Errorf("notify_render_confirmation_failed: %w", err)
	}

	return NewMessage(recipient, ConfirmationSubject, body.String(), now), nil
}
