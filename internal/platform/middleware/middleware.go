// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package middleware provides the cross-cutting HTTP processing chain.

Order in [api.NewServer]:

	RequestID -> StructuredLogger -> Timeout -> PanicRecovery -> CORS -> CleanPath

Confirmation links carry live tokens in their path, so nothing here logs a raw
URL path; the matched chi route pattern is logged instead.
*/
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/kiwitrace/kiwitrace/internal/platform/constants"
)

// writeError outputs the same {"error","code"} shape as respond.Error.
func writeError(writer http.ResponseWriter, status int, code, message string) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(map[string]string{
		constants.FieldError: message,
		constants.FieldCode:  code,
	})
}
