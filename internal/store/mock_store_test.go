// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on uniqueness, copy isolation and injected failures

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_UserLifecycle(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	u := newTestUser("alice", RoleUser)
	require.NoError(t, store.CreateUser(ctx, u))
	assert.Equal(t, int64(1), u.ID)

	got, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got.Roles.Add(RoleAdmin)
	again, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, again.Roles.Has(RoleAdmin), "returned users must be copies")

	require.NoError(t, store.UpdateUser(ctx, &User{ID: u.ID, Username: "alice", Email: "a@example.com", Roles: NewRoleSet(RoleAdmin)}))
	again, err = store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, again.PasswordHash)
	assert.True(t, again.Roles.Has(RoleAdmin))

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	_, err = store.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMockStore_Duplicates(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, newTestUser("alice")))

	dup := newTestUser("alice")
	dup.Email = "x@example.com"
	assert.ErrorIs(t, store.CreateUser(ctx, dup), ErrUsernameExists)

	dup = newTestUser("bob")
	dup.Email = "alice@example.com"
	assert.ErrorIs(t, store.CreateUser(ctx, dup), ErrEmailExists)
}

func TestMockStore_InjectedError(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	boom := errors.New("database unavailable")
	store.Err = boom

	_, err := store.GetUserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Ping(ctx), boom)
	assert.ErrorIs(t, store.AppendAuditLog(ctx, &AuditEntry{}), boom)
}

func TestMockStore_AuditNewestFirst(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{Actor: "alice", Action: AuditLoginSucceeded}))
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{Actor: "bob", Action: AuditLoginFailed}))

	entries, err := store.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[0].Actor)

	actor := "alice"
	entries, err = store.ListAuditLog(ctx, AuditFilter{Actor: &actor})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
