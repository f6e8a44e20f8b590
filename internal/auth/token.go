// ABOUTME: Signed bearer token issuance and validation using HS256 JWTs
// ABOUTME: Every validation failure is a *TokenError carrying one TokenErrorKind

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HS256 signing key size in bytes.
const MinSecretLength = 32

func init() {
	// Token lifetimes are configured in milliseconds; second precision would
	// let a sub-second TTL produce exp == iat.
	jwt.TimePrecision = time.Millisecond
}

// TokenErrorKind classifies why a token was rejected.
type TokenErrorKind int

const (
	TokenEmpty TokenErrorKind = iota + 1
	TokenMalformed
	TokenBadSignature
	TokenExpired
	TokenUnsupported
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenEmpty:
		return "empty"
	case TokenMalformed:
		return "malformed"
	case TokenBadSignature:
		return "bad_signature"
	case TokenExpired:
		return "expired"
	case TokenUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// TokenError is the single error type returned by TokenCodec.Validate.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return "token " + e.Kind.String()
	}
	return "token " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// Is matches any sentinel TokenError of the same kind, so
// errors.Is(err, ErrExpiredToken) works on wrapped failures.
func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Token errors
var (
	ErrEmptyToken       = &TokenError{Kind: TokenEmpty}
	ErrMalformedToken   = &TokenError{Kind: TokenMalformed}
	ErrBadSignature     = &TokenError{Kind: TokenBadSignature}
	ErrExpiredToken     = &TokenError{Kind: TokenExpired}
	ErrUnsupportedToken = &TokenError{Kind: TokenUnsupported}
)

var (
	ErrSecretTooShort = errors.New("signing secret too short")
	ErrEmptySubject   = errors.New("token subject is empty")
	ErrInvalidTTL     = errors.New("token ttl must be positive")

	errUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	errUnsupportedType      = errors.New("unsupported token type")
	errMissingClaim         = errors.New("missing required claim")
)

// TokenKind returns the kind name of a token error, or "unknown" for other errors.
func TokenKind(err error) string {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Kind.String()
	}
	return "unknown"
}

// Claims are the validated contents of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer mints signed tokens.
type TokenIssuer interface {
	Issue(subject string, issuedAt time.Time, ttl time.Duration) (string, error)
}

// TokenValidator checks a token and returns its claims.
type TokenValidator interface {
	Validate(token string) (Claims, error)
}

// TokenCodec implements TokenIssuer and TokenValidator with HS256.
// It is immutable after construction and safe for concurrent use.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

var (
	_ TokenIssuer    = (*TokenCodec)(nil)
	_ TokenValidator = (*TokenCodec)(nil)
)

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec creates a codec signing with secret, which must be at least
// MinSecretLength bytes.
func NewTokenCodec(secret []byte, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrSecretTooShort, len(secret), MinSecretLength)
	}

	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	// jwt rejects now >= exp; one nanosecond of leeway keeps the expiry
	// instant itself valid, so only now > exp is expired.
	c.parser = jwt.NewParser(
		jwt.WithTimeFunc(c.now),
		jwt.WithLeeway(time.Nanosecond),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	return c, nil
}

// Issue signs a token for subject valid from issuedAt for ttl.
func (c *TokenCodec) Issue(subject string, issuedAt time.Time, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate checks structure, algorithm, signature and expiry, in that order,
// and returns the token's claims.
func (c *TokenCodec) Validate(token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, ErrEmptyToken
	}

	// Header and payload first, so a bad signature segment can be told apart
	// from a token that is not a JWT at all.
	unverified, _, err := c.parser.ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenUnverifiable) {
			return Claims{}, &TokenError{Kind: TokenUnsupported, Err: err}
		}
		return Claims{}, &TokenError{Kind: TokenMalformed, Err: err}
	}
	if err := checkHeader(unverified); err != nil {
		return Claims{}, &TokenError{Kind: TokenUnsupported, Err: err}
	}

	var rc jwt.RegisteredClaims
	if _, err := c.parser.ParseWithClaims(token, &rc, c.keyFunc); err != nil {
		return Claims{}, classifyParseError(err)
	}

	if rc.Subject == "" {
		return Claims{}, &TokenError{Kind: TokenMalformed, Err: fmt.Errorf("%w: sub", errMissingClaim)}
	}
	if rc.IssuedAt == nil {
		return Claims{}, &TokenError{Kind: TokenMalformed, Err: fmt.Errorf("%w: iat", errMissingClaim)}
	}

	return Claims{
		Subject:   rc.Subject,
		IssuedAt:  rc.IssuedAt.Time,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}

func (c *TokenCodec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("%w: %v", errUnsupportedAlgorithm, t.Header["alg"])
	}
	return c.secret, nil
}

func checkHeader(t *jwt.Token) error {
	if t.Method != jwt.SigningMethodHS256 {
		return fmt.Errorf("%w: %v", errUnsupportedAlgorithm, t.Header["alg"])
	}
	if typ, ok := t.Header["typ"]; ok {
		s, isString := typ.(string)
		if !isString || !strings.EqualFold(s, "JWT") {
			return fmt.Errorf("%w: %v", errUnsupportedType, typ)
		}
	}
	return nil
}

// classifyParseError maps a failure from the verifying parse. Header and
// claims already decoded, so a malformed error here can only come from the
// signature segment.
func classifyParseError(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenMalformed):
		return &TokenError{Kind: TokenBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Kind: TokenUnsupported, Err: err}
	default:
		return &TokenError{Kind: TokenMalformed, Err: err}
	}
}
