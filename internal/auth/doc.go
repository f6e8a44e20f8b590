// Package auth provides stateless bearer-token authentication and role-based
// authorization for the nutrition gateway.
//
// # Login
//
// CredentialAuthenticator checks a username and password against the store
// using a PasswordHasher (bcrypt). Unknown users and wrong passwords both
// return ErrInvalidCredentials. On success the caller issues a token:
//
//	user, err := authn.Authenticate(ctx, username, password)
//	token, err := codec.Issue(user.Username, time.Now(), ttl)
//
// # Tokens
//
// TokenCodec signs HS256 JWTs carrying sub, iat and exp. Validate returns a
// *TokenError on failure whose Kind is one of:
//
//   - TokenEmpty: no token text
//   - TokenMalformed: not a JWT, undecodable segments, or missing claims
//   - TokenBadSignature: signature does not verify
//   - TokenExpired: now is at or after exp
//   - TokenUnsupported: alg other than HS256, or a foreign typ header
//
// Each kind has a sentinel (ErrExpiredToken, ...) usable with errors.Is.
//
// # Request Pipeline
//
//	HTTPAuthMiddleware -> AuthorizationMiddleware -> handler
//
// HTTPAuthMiddleware reads "Authorization: Bearer <token>", validates it,
// reloads the Principal through PrincipalLoader and stores it on the request
// context (WithPrincipal / PrincipalFromContext). It never rejects a request.
//
// AuthorizationMiddleware consults a RouteTable:
//
//  1. public prefixes are always allowed
//  2. role-restricted prefixes (longest match) need the role's authority,
//     answering 401 without identity and 403 with the wrong one
//  3. everything else needs any identity
//
// Rejections are written by UnauthorizedHandler and ForbiddenHandler.
//
// # Observability
//
// Both middlewares report outcomes to an optional Observer; the metrics
// package provides the Prometheus implementation.
package auth
