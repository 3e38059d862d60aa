// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package requestutil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	requestutil "github.com/kiwitrace/kiwitrace/internal/platform/request"
	"github.com/kiwitrace/kiwitrace/internal/platform/validate"
)

type loginBody struct {
	Email      string `json:"email"`
	Credential string `json:"credential"`
}

func decode(body string) (loginBody, error) {
	var target loginBody
	request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := requestutil.DecodeJSON(httptest.NewRecorder(), request, &target)
	return target, err
}

func TestDecodeJSON(t *testing.T) {
	target, err := decode(`{"email":"a@b.com","credential":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", target.Email)

	// Trailing whitespace is fine.
	_, err = decode("{\"email\":\"a@b.com\"}\n")
	assert.NoError(t, err)
}

func TestDecodeJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"truncated", `{"email":`, validate.ErrInvalidJSON},
		{"empty", ``, validate.ErrInvalidJSON},
		{"unknown_field", `{"email":"a@b.com","givenname":"Ana"}`, validate.ErrInvalidJSON},
		{"trailing_object", `{"email":"a@b.com"}{"email":"c@d.com"}`, validate.ErrInvalidJSON},
		{"too_large", `{"email":"` + strings.Repeat("a", 70<<10) + `"}`, requestutil.ErrBodyTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(tt.body)
			assert.Equal(t, tt.want, err)
		})
	}
}

func TestParam(t *testing.T) {
	var token string
	router := chi.NewRouter()
	router.Get("/confirm/{token}", func(_ http.ResponseWriter, request *http.Request) {
		token = requestutil.Param(request, "token")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/confirm/abc123", nil))
	assert.Equal(t, "abc123", token)
}
