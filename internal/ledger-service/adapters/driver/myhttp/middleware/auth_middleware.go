package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"transit-ledger/internal/ledger-service/adapters/driver/myhttp/handle"
	"transit-ledger/internal/ledger-service/core/services"
)

type AuthMiddleware struct {
	accessSecret string
}

func NewAuthMiddleware(accessSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		accessSecret: accessSecret,
	}
}

// Wrap validates the bearer token and forwards the caller as X-UserId and
// X-Role. Client-supplied values of those headers are overwritten.
func (am *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := services.ParseToken(am.accessSecret, r.Header.Get("Authorization"))
		if err != nil {
			code := http.StatusUnauthorized
			if errors.Is(err, services.ErrEmptyToken) {
				err = fmt.Errorf("Empty JWT-Token")
			}
			handle.JsonError(w, code, err)
			return
		}

		if claims.Role != services.RolePassenger && claims.Role != services.RoleAdmin {
			handle.JsonError(w, http.StatusForbidden, fmt.Errorf("unknown role %q", claims.Role))
			return
		}

		r.Header.Set(handle.HeaderUserId, claims.UserId)
		r.Header.Set(handle.HeaderRole, claims.Role)

		next.ServeHTTP(w, r)
	})
}

// Admin is Wrap followed by an operator role check.
func (am *AuthMiddleware) Admin(next http.Handler) http.Handler {
	return am.Wrap(handle.RequireAdmin(next))
}
