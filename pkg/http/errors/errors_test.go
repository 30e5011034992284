package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondConflict(rec, ErrCodeSessionNotReady, "questions are still loading")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ErrCodeSessionNotReady, body.Error)
	assert.Equal(t, "questions are still loading", body.Message)
}

func TestRespondValidationErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondValidationErrors(rec, map[string]string{"email": "email must be a valid email address"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ErrCodeValidationFailed, body.Error)
	assert.Equal(t, "email must be a valid email address", body.Details["email"])
}

func TestStatusHelpers(t *testing.T) {
	cases := []struct {
		name    string
		respond func(http.ResponseWriter)
		status  int
		code    string
	}{
		{"not found", func(w http.ResponseWriter) { RespondNotFound(w, ErrCodeSessionNotFound, "missing") }, http.StatusNotFound, ErrCodeSessionNotFound},
		{"internal", func(w http.ResponseWriter) { RespondInternalError(w, "boom") }, http.StatusInternalServerError, ErrCodeInternalError},
		{"unavailable", func(w http.ResponseWriter) { RespondServiceUnavailable(w, ErrCodeServiceUnavailable, "down") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"unauthorized", func(w http.ResponseWriter) { RespondUnauthorized(w, ErrCodeInvalidToken, "bad") }, http.StatusUnauthorized, ErrCodeInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.respond(rec)

			assert.Equal(t, tc.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.code, body.Error)
		})
	}
}
