// ABOUTME: HTTP middleware that turns a bearer token into a request Principal
// ABOUTME: It never rejects; every failure leaves the request unauthenticated

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// PrincipalSource resolves a token subject to a principal.
type PrincipalSource interface {
	Load(ctx context.Context, username string) (*Principal, error)
}

// MiddlewareConfig wires HTTPAuthMiddleware.
type MiddlewareConfig struct {
	Tokens     TokenValidator
	Principals PrincipalSource
	Logger     *slog.Logger
	Observer   Observer
}

// extractBearerToken returns the text after the literal "Bearer " prefix.
// ok is false when the header is absent or uses another scheme.
func extractBearerToken(authHeader string) (token string, ok bool) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	return strings.TrimPrefix(authHeader, bearerPrefix), true
}

// HTTPAuthMiddleware validates the bearer token, loads the principal and
// attaches it to the request context. Invalid tokens, unknown subjects and
// store failures all continue as anonymous; access decisions happen later in
// AuthorizationMiddleware.
func HTTPAuthMiddleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")
	obs := observerOrNop(cfg.Observer)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				obs.TokenChecked(OutcomeNoToken)
				next.ServeHTTP(w, r)
				return
			}

			claims, err := cfg.Tokens.Validate(token)
			if err != nil {
				kind := TokenKind(err)
				logger.Info("bearer token rejected", "kind", kind, "path", r.URL.Path)
				obs.TokenChecked(kind)
				next.ServeHTTP(w, r)
				return
			}

			principal, err := cfg.Principals.Load(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, ErrPrincipalNotFound) {
					logger.Info("token subject not found", "username", claims.Subject)
					obs.TokenChecked(OutcomeUnknownUser)
				} else {
					logger.Error("principal lookup failed", "username", claims.Subject, "error", err)
					obs.TokenChecked(OutcomeLookupFailure)
				}
				next.ServeHTTP(w, r)
				return
			}

			obs.TokenChecked(OutcomeValid)
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
