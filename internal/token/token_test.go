package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	m := NewManager(Config{Secret: []byte("secret")})

	raw, err := m.Issue("s-1", "a@b.co")
	require.NoError(t, err)

	claims, err := m.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "s-1", claims.SessionID)
	assert.Equal(t, "a@b.co", claims.Email)
	assert.Equal(t, "timed-quiz", claims.Issuer)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	raw, err := NewManager(Config{Secret: []byte("one")}).Issue("s-1", "")
	require.NoError(t, err)

	_, err = NewManager(Config{Secret: []byte("two")}).Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewManager(Config{Secret: []byte("one")}).Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	m := NewManager(Config{Secret: []byte("secret"), TTL: time.Minute})
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	raw, err := m.Issue("s-1", "")
	require.NoError(t, err)

	_, err = m.Validate(raw)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRequireSession(t *testing.T) {
	m := NewManager(Config{Secret: []byte("secret")})
	good, err := m.Issue("s-1", "")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("GET /v1/sessions/{id}", RequireSession(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(claims.SessionID))
	})))

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"bearer", "/v1/sessions/s-1", "Bearer " + good, http.StatusOK},
		{"query token", "/v1/sessions/s-1?token=" + good, "", http.StatusOK},
		{"missing", "/v1/sessions/s-1", "", http.StatusUnauthorized},
		{"malformed header", "/v1/sessions/s-1", "Token " + good, http.StatusUnauthorized},
		{"garbage token", "/v1/sessions/s-1", "Bearer nope", http.StatusUnauthorized},
		{"other session", "/v1/sessions/s-2", "Bearer " + good, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
