package middleware

import (
	"net/http"

	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// RequireScope gates a route on key permissions. Holding any one of the
// listed scopes is enough, and admin implies all of them. Apply after an
// auth middleware.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeScopeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !hasAnyScope(authCtx, scopes) {
				writeScopeError(w, http.StatusForbidden, "FORBIDDEN",
					"Insufficient permissions. Required scope: "+scopes[0])
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// hasAnyScope reports whether the identity may pass a gate on the given
// scopes. AuthContext.HasScope already treats admin as implying everything.
func hasAnyScope(authCtx *model.AuthContext, scopes []string) bool {
	for _, scope := range scopes {
		if authCtx.HasScope(scope) {
			return true
		}
	}
	return false
}

// RequireRead gates a route on the read scope.
func RequireRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeRead)
}

// RequireWrite gates a route on the write scope.
func RequireWrite() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeWrite)
}

// RequireAdmin gates a route on the admin scope.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeAdmin)
}

// writeScopeError writes an authorization error in the API's error shape.
func writeScopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
