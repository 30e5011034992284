package token

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gokatarajesh/timed-quiz/internal/logging"
	httperrors "github.com/gokatarajesh/timed-quiz/pkg/http/errors"
)

type claimsKey struct{}

// FromContext returns the claims injected by RequireSession.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// RequireSession validates the bearer token (or the "token" query parameter,
// for WebSocket upgrades) and checks it was issued for the {id} path value.
func RequireSession(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := extract(r)
			if !ok {
				httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
				return
			}

			claims, err := m.Validate(raw)
			if err != nil {
				logging.FromContext(r.Context()).Warn().Err(err).Msg("token validation failed")
				code := httperrors.ErrCodeInvalidToken
				if errors.Is(err, ErrExpiredToken) {
					code = httperrors.ErrCodeTokenExpired
				}
				httperrors.RespondUnauthorized(w, code, "Invalid or expired token")
				return
			}

			if id := r.PathValue("id"); id != "" && id != claims.SessionID {
				httperrors.RespondForbidden(w, httperrors.ErrCodeForbidden, "Token not issued for this session")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extract(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, true
	}
	return "", false
}
