// ABOUTME: Unit tests for credential authentication
// ABOUTME: Unknown user and wrong password must be indistinguishable to callers

package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/nutriai/nutrition-gateway/internal/store"
)

// seedUser stores a user with a real bcrypt hash of password.
func seedUser(t *testing.T, s *store.MockStore, username, password string, roles ...store.RoleName) *store.User {
	t.Helper()
	hash, err := NewBcryptHasher(bcrypt.MinCost).Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	u := &store.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Roles:        store.NewRoleSet(roles...),
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func TestCredentialAuthenticator(t *testing.T) {
	s := store.NewMockStore()
	alice := seedUser(t, s, "alice", "pw1", store.RoleUser)
	authn := NewCredentialAuthenticator(s, NewBcryptHasher(bcrypt.MinCost), nil)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "correct", username: "alice", password: "pw1"},
		{name: "wrong password", username: "alice", password: "pw2", wantErr: ErrInvalidCredentials},
		{name: "unknown user", username: "bob", password: "pw1", wantErr: ErrInvalidCredentials},
		{name: "empty password", username: "alice", password: "", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := authn.Authenticate(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
				if u != nil {
					t.Errorf("Authenticate() user = %+v, want nil", u)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if u.ID != alice.ID {
				t.Errorf("Authenticate() user ID = %d, want %d", u.ID, alice.ID)
			}
		})
	}
}

func TestCredentialAuthenticator_StoreFailure(t *testing.T) {
	s := store.NewMockStore()
	boom := errors.New("database is locked")
	s.Err = boom
	authn := NewCredentialAuthenticator(s, NewBcryptHasher(bcrypt.MinCost), nil)

	_, err := authn.Authenticate(context.Background(), "alice", "pw1")
	if !errors.Is(err, boom) {
		t.Fatalf("Authenticate() error = %v, want wrapped store error", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("store failures must not look like bad credentials")
	}
}
