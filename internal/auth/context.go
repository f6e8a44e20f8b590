// ABOUTME: Identity context for carrying the authenticated principal through handlers
// ABOUTME: Provides WithPrincipal/PrincipalFromContext; the first write wins

package auth

import (
	"context"
)

// principalContextKey is the key type for storing a Principal in context.Context.
type principalContextKey struct{}

// WithPrincipal returns a context carrying p. If ctx already carries a
// principal, ctx is returned unchanged.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	if p == nil {
		return ctx
	}
	if _, ok := PrincipalFromContext(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext retrieves the principal, reporting whether one was set.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}
