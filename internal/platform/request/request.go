// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package requestutil decodes account request bodies and reads chi URL parameters.
package requestutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiwitrace/kiwitrace/internal/platform/apperr"
	"github.com/kiwitrace/kiwitrace/internal/platform/validate"
)

// maxBodyBytes bounds JSON request bodies. Account payloads are a handful of short fields.
const maxBodyBytes = 64 << 10

// ErrBodyTooLarge is returned when the body exceeds maxBodyBytes.
var ErrBodyTooLarge = apperr.New(apperr.CodeValidation, http.StatusRequestEntityTooLarge, "Request body too large")

/*
DecodeJSON decodes exactly one JSON object from the body into target.

Unknown fields and trailing data are rejected, so a typo such as "givenname"
fails loudly instead of silently leaving a profile field untouched.

Parameters:
  - writer: http.ResponseWriter (lets the size limit close the connection)
  - request: *http.Request
  - target: any (pointer to the destination struct)

Returns:
  - error: ErrBodyTooLarge, validate.ErrInvalidJSON, or nil
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrBodyTooLarge
		}
		return validate.ErrInvalidJSON
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return validate.ErrInvalidJSON
	}
	return nil
}

// Param retrieves a named chi URL parameter.
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}
