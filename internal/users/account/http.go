// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiwitrace/kiwitrace/internal/platform/apperr"
	"github.com/kiwitrace/kiwitrace/internal/platform/ctxutil"
	requestutil "github.com/kiwitrace/kiwitrace/internal/platform/request"
	"github.com/kiwitrace/kiwitrace/internal/platform/respond"
)

// # Definitions & Constructors

// Handler exposes the account use cases over JSON.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] with the account API, mounted under /api/v1/accounts.
//
// # Endpoints
//   - POST  /                      : Register
//   - POST  /confirm/{token}       : ConfirmEmail
//   - POST  /confirmation/resend   : ResendConfirmation
//   - POST  /login                 : Login (check only)
//   - PATCH /profile               : UpdateProfile
//   - POST  /credential/reset      : ResetCredential
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", handler.register)
	router.Post("/confirm/{token}", handler.confirm)
	router.Post("/confirmation/resend", handler.resendConfirmation)
	router.Post("/login", handler.login)
	router.Patch("/profile", handler.updateProfile)
	router.Post("/credential/reset", handler.resetCredential)

	return router
}

// # Request Payloads

type registerRequest struct {
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	Credential   string     `json:"credential"`
	GivenName    *string    `json:"given_name"`
	FamilyName   *string    `json:"family_name"`
	Phone        *string    `json:"phone"`
	RegisteredAt *time.Time `json:"registered_at"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Credential string `json:"credential"`
}

type updateProfileRequest struct {
	Email      string  `json:"email"`
	GivenName  *string `json:"given_name"`
	FamilyName *string `json:"family_name"`
	Phone      *string `json:"phone"`
	Credential *string `json:"credential"`
}

type resetCredentialRequest struct {
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	NewCredential string `json:"new_credential"`
}

/*
Register opens a new account.

POST /api/v1/accounts

Response:
  - 201: Summary
  - 400: VALIDATION_ERROR | POLICY_VIOLATION
  - 409: DUPLICATE_EMAIL
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	summary, err := handler.accountService.Register(request.Context(), RegisterInput{
		Email:        input.Email,
		Username:     input.Username,
		Credential:   input.Credential,
		GivenName:    input.GivenName,
		FamilyName:   input.FamilyName,
		Phone:        input.Phone,
		RegisteredAt: input.RegisteredAt,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, summary)
}

/*
Confirm verifies the email owning the token.

POST /api/v1/accounts/confirm/{token}

Response:
  - 200: {"status": "verified" | "already_verified"}
  - 400: INVALID_TOKEN
*/
func (handler *Handler) confirm(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.accountService.ConfirmEmail(request.Context(), requestutil.Param(request, FieldToken))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldStatus: result})
}

/*
ResendConfirmation queues a fresh confirmation link.

POST /api/v1/accounts/confirmation/resend

Response:
  - 202: always, unless the email is malformed
*/
func (handler *Handler) resendConfirmation(writer http.ResponseWriter, request *http.Request) {
	var input resendRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.ResendConfirmation(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Status(writer, http.StatusAccepted, map[string]any{
		FieldMessage: "If the account exists and is not verified, a new link is on its way.",
	})
}

/*
Login checks credentials. No session or token is issued.

POST /api/v1/accounts/login

Response:
  - 200: Summary
  - 401: INVALID_CREDENTIALS
  - 403: UNVERIFIED
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	summary, err := handler.accountService.Login(request.Context(), input.Email, input.Credential)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, summary)
}

/*
UpdateProfile applies the fields present in the body.

PATCH /api/v1/accounts/profile

Response:
  - 200: {"updated": n}
  - 400: VALIDATION_ERROR | NO_FIELDS | POLICY_VIOLATION
  - 404: NOT_FOUND
*/
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	var input updateProfileRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	updated, err := handler.accountService.UpdateProfile(request.Context(), input.Email, ProfileInput{
		GivenName:  input.GivenName,
		FamilyName: input.FamilyName,
		Phone:      input.Phone,
		Credential: input.Credential,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldUpdated: updated})
}

/*
ResetCredential sets a new credential for the account found by email or phone.

POST /api/v1/accounts/credential/reset

Response:
  - 204: success
  - 400: MISSING_DATA | POLICY_VIOLATION
  - 404: NOT_FOUND
  - 409: AMBIGUOUS_PHONE
*/
func (handler *Handler) resetCredential(writer http.ResponseWriter, request *http.Request) {
	var input resetCredentialRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.accountService.ResetCredential(request.Context(), ResetInput{
		Email:         input.Email,
		Phone:         input.Phone,
		NewCredential: input.NewCredential,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Browser Confirmation Page

var confirmPage = template.Must(template.New("confirm").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"><title>KiwiTrace</title></head>
  <body style="font-family: sans-serif; text-align: center; margin-top: 4rem;">
    <h2>{{.Title}}</h2>
    <p>{{.Body}}</p>
  </body>
</html>
`))

type confirmPageData struct {
	Title string
	Body  string
}

/*
ConfirmPage serves the link embedded in confirmation emails.

GET /confirm/{token}

It answers with a small HTML page instead of JSON since it is opened in a browser.
*/
func (handler *Handler) ConfirmPage(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.accountService.ConfirmEmail(request.Context(), requestutil.Param(request, FieldToken))

	status := http.StatusOK
	data := confirmPageData{Title: "Email confirmed", Body: "Your account is active. You can now log in to KiwiTrace."}

	switch {
	case err == nil && result == ConfirmAlreadyVerified:
		data = confirmPageData{Title: "Already confirmed", Body: "This email was already verified. You can log in."}
	case apperr.HasCode(err, CodeInvalidToken):
		status = http.StatusBadRequest
		data = confirmPageData{Title: "Invalid link", Body: apperr.As(err).Message + ". Request a new confirmation email."}
	case err != nil:
		respond.Error(writer, request, err)
		return
	}

	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.WriteHeader(status)
	if err := confirmPage.Execute(writer, data); err != nil {
		ctxutil.Logger(request.Context()).ErrorContext(request.Context(), "confirm_page_render_failed", "error", err)
	}
}
