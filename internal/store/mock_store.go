// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	users  map[int64]*User // keyed by user ID
	nextID int64
	audit  []AuditEntry

	// Err, when set, is returned by every method. Used to simulate an
	// unavailable backing store.
	Err error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:  make(map[int64]*User),
		nextID: 1,
	}
}

func copyUser(u *User) *User {
	c := *u
	c.Roles = u.Roles.Clone()
	return &c
}

// conflict reports a uniqueness clash with any user other than skipID.
func (m *MockStore) conflict(u *User, skipID int64) error {
	for id, existing := range m.users {
		if id == skipID {
			continue
		}
		if existing.Username == u.Username {
			return ErrUsernameExists
		}
		if existing.Email == u.Email {
			return ErrEmailExists
		}
	}
	return nil
}

// CreateUser stores a new user, assigning the next ID.
func (m *MockStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if err := m.conflict(u, 0); err != nil {
		return err
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.ID = m.nextID
	m.nextID++
	if u.Roles == nil {
		u.Roles = NewRoleSet()
	}

	m.users[u.ID] = copyUser(u)
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

// GetUserByUsername retrieves a user by exact username.
func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// ListUsers returns all users ordered by ID.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateUser replaces username, email and roles; the hash only when non-empty.
func (m *MockStore) UpdateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	existing, ok := m.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	if err := m.conflict(u, u.ID); err != nil {
		return err
	}

	updated := copyUser(u)
	if updated.PasswordHash == "" {
		updated.PasswordHash = existing.PasswordHash
	}
	if updated.Roles == nil {
		updated.Roles = NewRoleSet()
	}
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	u.UpdatedAt = updated.UpdatedAt

	m.users[u.ID] = updated
	return nil
}

// DeleteUser removes a user by ID.
func (m *MockStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

// CountUsers returns the number of stored users.
func (m *MockStore) CountUsers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.users), nil
}

// AppendAuditLog records an entry in memory.
func (m *MockStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	fillAuditDefaults(e)
	m.audit = append(m.audit, *e)
	return nil
}

// ListAuditLog returns matching entries newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	out := []AuditEntry{}
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		if f.Actor != nil && e.Actor != *f.Actor {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	if limit := normalizeAuditLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping reports the configured error, if any.
func (m *MockStore) Ping(ctx context.Context) error {
	return m.Err
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}
