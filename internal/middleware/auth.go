package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Iurilui616/APICHARLENO/internal/audit"
	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/metrics"
	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// AuthEventSink receives auth events for asynchronous audit capture.
type AuthEventSink interface {
	PublishAsync(event audit.EventPayload)
}

// KeyStore is the API key lookup surface the middleware needs.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches verified auth contexts between requests so each request
// does not pay the argon2 verification cost.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, authCtx *model.AuthContext) error
}

const (
	// minAuthFailureDuration is the minimum time spent on a failed auth
	// attempt, so rejection timing does not reveal where validation stopped.
	minAuthFailureDuration = 200 * time.Millisecond
)

// APIKeyAuthConfig holds configuration for the API key auth middleware.
type APIKeyAuthConfig struct {
	Logger *slog.Logger
	Keys   KeyStore
	Cache  AuthCache
	// StaticKey is the configured API_KEY value. When set, requests
	// presenting exactly this key authenticate as the system identity.
	StaticKey string
	// Events, when set, receives api_key_used and auth_denied events.
	Events AuthEventSink
	// Metrics, when set, records auth cache hit/miss counts.
	Metrics metrics.Recorder
}

// publishKeyEvent records an API-key auth outcome when a sink is configured.
func (cfg APIKeyAuthConfig) publishKeyEvent(r *http.Request, event, keyPrefix string) {
	if cfg.Events == nil {
		return
	}
	now := time.Now()
	cfg.Events.PublishAsync(audit.EventPayload{
		Event:      event,
		KeyPrefix:  keyPrefix,
		IPHash:     audit.HashClientIP(GetClientIP(r), now),
		OccurredAt: now.UnixMilli(),
	})
}

// APIKeyAuth returns a middleware that authenticates requests by API key.
// It extracts the key from the X-API-Key or Authorization header, checks it
// against the static configured key and then against provisioned keys, and
// injects the auth context into the request.
func APIKeyAuth(cfg APIKeyAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			failed := false

			// Pad failed attempts to a consistent duration
			defer func() {
				if !failed {
					return
				}
				elapsed := time.Since(startTime)
				if elapsed < minAuthFailureDuration {
					time.Sleep(minAuthFailureDuration - elapsed)
				}
			}()

			// Extract key from header
			key := ExtractAPIKey(r)
			if key == "" {
				failed = true
				cfg.publishKeyEvent(r, model.EventAuthDenied, "")
				cfg.Logger.Warn("api key authentication failed",
					slog.String("reason", "missing_key"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAPIKeyError(w)
				return
			}

			// Static configured key (constant-time compare)
			if cfg.StaticKey != "" &&
				subtle.ConstantTimeCompare([]byte(key), []byte(cfg.StaticKey)) == 1 {
				authCtx := &model.AuthContext{
					Method:        model.AuthMethodStaticKey,
					KeyID:         "static",
					KeyPrefix:     auth.TruncateKey(cfg.StaticKey, 8),
					UserID:        "system",
					Username:      "system",
					Scopes:        []string{model.ScopeAdmin},
					RateLimitTier: model.TierUnlimited,
				}

				cfg.publishKeyEvent(r, model.EventAPIKeyUsed, authCtx.KeyPrefix)
				cfg.Logger.Info("api key authentication successful",
					slog.String("key_id", authCtx.KeyID),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				ctx := auth.ContextWithAuth(r.Context(), authCtx)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// Validate key format before touching storage
			parsed, err := auth.ParseAPIKey(key)
			if err != nil {
				failed = true
				cfg.publishKeyEvent(r, model.EventAuthDenied, "")
				cfg.Logger.Warn("api key authentication failed",
					slog.String("reason", "invalid_format"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAPIKeyError(w)
				return
			}

			// Check cache first
			cacheKey := auth.QuickHash(key)
			var authCtx *model.AuthContext
			if cfg.Cache != nil {
				authCtx, _ = cfg.Cache.GetAuthContext(r.Context(), cacheKey)
			}

			if authCtx != nil {
				// Cache hit - use cached auth context
				if cfg.Metrics != nil {
					cfg.Metrics.IncAuthCacheHit()
				}
				cfg.publishKeyEvent(r, model.EventAPIKeyUsed, authCtx.KeyPrefix)
				cfg.Logger.Info("api key authentication successful",
					slog.String("key_id", authCtx.KeyID),
					slog.String("key_prefix", authCtx.KeyPrefix),
					slog.String("user_id", authCtx.UserID),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Bool("cache_hit", true),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				ctx := auth.ContextWithAuth(r.Context(), authCtx)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if cfg.Metrics != nil {
				cfg.Metrics.IncAuthCacheMiss()
			}

			// Cache miss - lookup by prefix
			keys, err := cfg.Keys.GetAPIKeysByPrefix(r.Context(), parsed.Prefix)
			if err != nil {
				failed = true
				cfg.Logger.Error("database error during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAPIKeyError(w)
				return
			}

			// Verify against each candidate key (handles prefix collisions)
			var matchedKey *model.APIKey
			for _, k := range keys {
				match, err := auth.VerifySecret(key, k.KeyHash)
				if err != nil {
					continue
				}
				if match {
					matchedKey = k
					break
				}
			}

			if matchedKey == nil {
				failed = true
				cfg.publishKeyEvent(r, model.EventAuthDenied, parsed.Prefix)
				cfg.Logger.Warn("api key authentication failed",
					slog.String("reason", "invalid_key"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAPIKeyError(w)
				return
			}

			// Build auth context
			authCtx = &model.AuthContext{
				Method:        model.AuthMethodAPIKey,
				KeyID:         matchedKey.ID,
				KeyPrefix:     matchedKey.KeyPrefix,
				UserID:        matchedKey.UserID,
				Scopes:        matchedKey.Scopes,
				RateLimitTier: matchedKey.RateLimitTier,
			}

			// Cache the result
			if cfg.Cache != nil {
				_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx)
			}

			// Update last_used_at asynchronously. The request context is
			// canceled once the handler returns, so use a detached one.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = cfg.Keys.UpdateAPIKeyLastUsed(ctx, matchedKey.ID)
			}()

			cfg.publishKeyEvent(r, model.EventAPIKeyUsed, authCtx.KeyPrefix)

			cfg.Logger.Info("api key authentication successful",
				slog.String("key_id", authCtx.KeyID),
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("user_id", authCtx.UserID),
				slog.String("ip", r.RemoteAddr),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Bool("cache_hit", false),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractAPIKey extracts the API key from the request.
// Supports both "X-API-Key: <key>" and "Authorization: Bearer <key>" headers.
func ExtractAPIKey(r *http.Request) string {
	// X-API-Key is the documented header
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	// Fall back to Authorization bearer
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

// writeAPIKeyError writes a 403 Forbidden response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAPIKeyError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":{"code":"FORBIDDEN","message":"Invalid or missing API key"}}`))
}
