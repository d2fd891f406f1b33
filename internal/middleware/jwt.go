package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// JWTAuthConfig holds configuration for the JWT auth middleware.
type JWTAuthConfig struct {
	Logger *slog.Logger
	Issuer *auth.TokenIssuer
}

// JWTAuth returns a middleware that authenticates requests by bearer token.
// The token subject becomes the authenticated username.
func JWTAuth(cfg JWTAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				cfg.Logger.Warn("jwt authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeJWTError(w, "Token not provided")
				return
			}

			username, err := cfg.Issuer.Verify(tokenString)
			if err != nil {
				reason := "invalid_token"
				message := "Invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					reason = "token_expired"
					message = "Token expired or invalid"
				}

				cfg.Logger.Warn("jwt authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeJWTError(w, message)
				return
			}

			authCtx := &model.AuthContext{
				Method:   model.AuthMethodJWT,
				Username: username,
				Scopes:   []string{model.ScopeRead, model.ScopeWrite},
			}

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken pulls the token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

// writeJWTError writes a 401 Unauthorized response with the WWW-Authenticate
// challenge header.
func writeJWTError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}
