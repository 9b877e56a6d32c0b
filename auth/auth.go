// Package auth carries the authenticated identity key through the
// request context. The paywall middleware requires the identity to be
// present before it runs; actual authentication is performed upstream.
package auth

import (
	"context"
	"net/http"
)

type contextKey string

const identityKey = contextKey("paywall_identity_key")

// ContextWithIdentity returns a context carrying the authenticated
// identity key.
func ContextWithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the authenticated identity key, or ""
// when no authentication middleware ran.
func IdentityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey).(string)
	return identity
}

// IdentityFunc derives the identity key for a request. An empty result
// means the request is unauthenticated.
type IdentityFunc func(r *http.Request) string

// Middleware seeds the request context with the identity derived by fn.
// Unauthenticated requests pass through without an identity; the
// paywall rejects them downstream.
func Middleware(fn IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity := fn(r); identity != "" {
				r = r.WithContext(ContextWithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}
