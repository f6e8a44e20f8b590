// ABOUTME: Store interfaces and data types for nutrition-gateway persistence
// ABOUTME: Defines the User credential record and the UserStore/AuditStore contracts

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUserNotFound is returned when no user matches the lookup key.
// It wraps ErrNotFound so callers may match either.
var ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

// ErrUsernameExists is returned when creating or renaming a user onto a taken username
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists is returned when creating or updating a user onto a taken email
var ErrEmailExists = errors.New("email already exists")

// User is the persisted credential record for one account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string // bcrypt, never serialized to clients
	Roles        RoleSet
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore persists credential records and their role assignments.
type UserStore interface {
	// CreateUser inserts the user and its roles, filling in ID and timestamps.
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	// UpdateUser replaces username, email and roles. The password hash is
	// only rewritten when non-empty.
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (int, error)
}

// AuditStore records security-relevant actions.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

// Store is the full persistence surface used by the gateway.
type Store interface {
	UserStore
	AuditStore
	Ping(ctx context.Context) error
	Close() error
}
