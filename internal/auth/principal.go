// ABOUTME: Principal is the authenticated identity attached to a request
// ABOUTME: PrincipalLoader rebuilds it from the credential store on every request

package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nutriai/nutrition-gateway/internal/store"
)

// ErrPrincipalNotFound is returned when a token subject has no credential record.
var ErrPrincipalNotFound = errors.New("principal not found")

// Authority is a granted permission string of the form "ROLE_<name>".
type Authority string

const (
	AuthorityUser  Authority = "ROLE_USER"
	AuthorityAdmin Authority = "ROLE_ADMIN"
)

// AuthorityFor returns the authority granted by role.
func AuthorityFor(role store.RoleName) Authority {
	return Authority("ROLE_" + string(role))
}

// AuthoritySet is an unordered set of authorities.
type AuthoritySet map[Authority]struct{}

// Has reports whether a is in the set.
func (s AuthoritySet) Has(a Authority) bool {
	_, ok := s[a]
	return ok
}

// Sorted returns the authorities in lexical order for rendering.
func (s AuthoritySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, string(a))
	}
	sort.Strings(out)
	return out
}

// Principal is the authenticated user for the duration of one request.
type Principal struct {
	ID          int64
	Username    string
	Email       string
	Authorities AuthoritySet
}

// HasRole reports whether the principal holds the authority for role.
func (p *Principal) HasRole(role store.RoleName) bool {
	return p != nil && p.Authorities.Has(AuthorityFor(role))
}

// IsAdmin reports whether the principal holds ROLE_ADMIN.
func (p *Principal) IsAdmin() bool {
	return p.HasRole(store.RoleAdmin)
}

// NewPrincipal builds a principal from a credential record. The password
// hash is not carried over.
func NewPrincipal(u *store.User) *Principal {
	authorities := make(AuthoritySet, len(u.Roles))
	for r := range u.Roles {
		authorities[AuthorityFor(r)] = struct{}{}
	}
	return &Principal{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Authorities: authorities,
	}
}

// UserLookup is the read side of the credential store needed by auth.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
}

// PrincipalLoader reconstructs principals by username. Nothing is cached.
type PrincipalLoader struct {
	users UserLookup
}

// NewPrincipalLoader creates a loader backed by users.
func NewPrincipalLoader(users UserLookup) *PrincipalLoader {
	return &PrincipalLoader{users: users}
}

// Load returns the principal for username, or ErrPrincipalNotFound.
// Other store failures are returned wrapped.
func (l *PrincipalLoader) Load(ctx context.Context, username string) (*Principal, error) {
	u, err := l.users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPrincipalNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("loading principal: %w", err)
	}
	return NewPrincipal(u), nil
}
