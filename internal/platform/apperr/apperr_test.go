// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwitrace/kiwitrace/internal/platform/apperr"
)

/*
TestAppError_Constructors checks the status and code of every generic constructor.
*/
func TestAppError_Constructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *apperr.AppError
		code   string
		status int
	}{
		{"not_found", apperr.NotFound("Account"), apperr.CodeNotFound, http.StatusNotFound},
		{"conflict", apperr.Conflict("dup"), apperr.CodeConflict, http.StatusConflict},
		{"validation", apperr.ValidationError("bad"), apperr.CodeValidation, http.StatusBadRequest},
		{"internal", apperr.Internal(errors.New("boom")), apperr.CodeInternal, http.StatusInternalServerError},
		{"storage", apperr.Storage(errors.New("boom")), apperr.CodeStorage, http.StatusInternalServerError},
		{"custom", apperr.New("TEAPOT", http.StatusTeapot, "short and stout"), "TEAPOT", http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}

	assert.Equal(t, "Account not found", apperr.NotFound("Account").Error())
	assert.Equal(t, "An unexpected error occurred", apperr.Internal(errors.New("pq: secret")).Error())
}

/*
TestAppError_Chain verifies lookup through wrapped errors.
*/
func TestAppError_Chain(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("account_service_failed: %w", apperr.Storage(cause))

	require.True(t, apperr.IsAppError(wrapped))
	assert.True(t, apperr.HasCode(wrapped, apperr.CodeStorage))
	assert.False(t, apperr.HasCode(wrapped, apperr.CodeNotFound))
	assert.ErrorIs(t, wrapped, cause)

	assert.True(t, apperr.IsNotFound(fmt.Errorf("x: %w", apperr.NotFound("Account"))))
	assert.Nil(t, apperr.As(errors.New("plain")))
	assert.False(t, apperr.HasCode(nil, apperr.CodeStorage))
}
