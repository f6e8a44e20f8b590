// ABOUTME: Username/password verification against the credential store
// ABOUTME: Unknown users and wrong passwords fail identically with ErrInvalidCredentials

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nutriai/nutrition-gateway/internal/store"
)

// ErrInvalidCredentials is returned for any username/password mismatch.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CredentialAuthenticator checks login credentials.
type CredentialAuthenticator struct {
	users  UserLookup
	hasher PasswordHasher
	logger *slog.Logger
}

// NewCredentialAuthenticator creates an authenticator over users and hasher.
func NewCredentialAuthenticator(users UserLookup, hasher PasswordHasher, logger *slog.Logger) *CredentialAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialAuthenticator{
		users:  users,
		hasher: hasher,
		logger: logger.With("component", "authenticator"),
	}
}

// Authenticate returns the user when password matches the stored hash.
// Store failures other than not-found are returned wrapped and are not
// ErrInvalidCredentials.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	u, err := a.users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrUserNotFound) {
		a.logger.Info("authentication failed", "username", username, "reason", "unknown_user")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		a.logger.Error("authentication lookup failed", "username", username, "error", err)
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !a.hasher.Verify(password, u.PasswordHash) {
		a.logger.Info("authentication failed", "username", username, "reason", "bad_password")
		return nil, ErrInvalidCredentials
	}

	a.logger.Debug("authentication succeeded", "username", username, "user_id", u.ID)
	return u, nil
}
