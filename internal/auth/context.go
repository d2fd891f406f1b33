package auth

import (
	"context"

	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// authCtxKey is an unexported struct key: no other package can collide with
// or forge the auth entry.
type authCtxKey struct{}

// ContextWithAuth returns a context carrying the request's auth identity.
func ContextWithAuth(ctx context.Context, authCtx *model.AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey{}, authCtx)
}

// AuthFromContext returns the auth identity, or nil when the request has
// not passed an auth middleware.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	authCtx, _ := ctx.Value(authCtxKey{}).(*model.AuthContext)
	return authCtx
}

// MustAuthFromContext is AuthFromContext for handlers mounted behind auth
// middleware, where a missing identity is a routing bug.
func MustAuthFromContext(ctx context.Context) *model.AuthContext {
	authCtx := AuthFromContext(ctx)
	if authCtx == nil {
		panic("auth context not found - ensure auth middleware is applied")
	}
	return authCtx
}

// UsernameFromContext returns the authenticated username, or "".
func UsernameFromContext(ctx context.Context) string {
	if authCtx := AuthFromContext(ctx); authCtx != nil {
		return authCtx.Username
	}
	return ""
}

// KeyIDFromContext returns the authenticated API key ID, or "".
func KeyIDFromContext(ctx context.Context) string {
	if authCtx := AuthFromContext(ctx); authCtx != nil {
		return authCtx.KeyID
	}
	return ""
}
