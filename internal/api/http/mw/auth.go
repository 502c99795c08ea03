package mw

import (
	"net/http"

	"tipstream/internal/security"
	"tipstream/pkg/httputil"
)

// AuthMiddleware guards the webhook write path. Rejection happens
// before the body is read so a bad caller can never mutate state.
type AuthMiddleware struct {
	verifier security.Verifier
}

func NewAuth(v security.Verifier) *AuthMiddleware {
	if v == nil {
		panic("auth verifier cannot be nil")
	}
	return &AuthMiddleware{verifier: v}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.verifier.Verify(r.Header.Get("Authorization")); err != nil {
			_ = httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
