// ABOUTME: Role names for authorization and the set type carried by users
// ABOUTME: ParseRoleName is the single place free-form role text becomes a RoleName

package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownRole is returned when text does not name a known role
var ErrUnknownRole = errors.New("unknown role")

// RoleName represents a role that can be assigned
type RoleName string

const (
	RoleUser  RoleName = "USER"
	RoleAdmin RoleName = "ADMIN"
)

// ValidRoleNames lists all valid role names
var ValidRoleNames = []RoleName{
	RoleUser,
	RoleAdmin,
}

// authorityPrefix is accepted on input so that "ROLE_ADMIN" and "ADMIN" decode
// to the same role.
const authorityPrefix = "ROLE_"

// ParseRoleName decodes a role name. Matching is case-insensitive and the
// "ROLE_" authority prefix is accepted.
func ParseRoleName(s string) (RoleName, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, authorityPrefix)

	switch RoleName(name) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// RoleSet is an unordered set of roles.
type RoleSet map[RoleName]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...RoleName) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// ParseRoleSet decodes every name, failing on the first unknown one.
func ParseRoleSet(names []string) (RoleSet, error) {
	set := make(RoleSet, len(names))
	for _, n := range names {
		r, err := ParseRoleName(n)
		if err != nil {
			return nil, err
		}
		set[r] = struct{}{}
	}
	return set, nil
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r RoleName) bool {
	_, ok := s[r]
	return ok
}

// Add inserts r into the set.
func (s RoleSet) Add(r RoleName) {
	s[r] = struct{}{}
}

// Sorted returns the roles in lexical order, for stable rendering.
func (s RoleSet) Sorted() []RoleName {
	out := make([]RoleName, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted role names as plain strings.
func (s RoleSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, r := range sorted {
		out[i] = string(r)
	}
	return out
}

// Clone returns an independent copy of the set.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}
