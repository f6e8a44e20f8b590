// ABOUTME: Tests for audit log store operations
// ABOUTME: Covers Append and List with filtering for the audit_log table

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditStore_Append(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entry := &AuditEntry{
		Actor:      "admin",
		Action:     AuditDeleteUser,
		TargetType: "user",
		TargetID:   "7",
		Detail:     map[string]any{"username": "mallory"},
	}

	require.NoError(t, store.AppendAuditLog(ctx, entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	entries, err := store.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, "mallory", entries[0].Detail["username"])
	assert.True(t, entry.Timestamp.Equal(entries[0].Timestamp))
}

func TestAuditStore_List_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	actions := []AuditAction{AuditRegisterUser, AuditLoginSucceeded, AuditUpdateUser}
	for i, action := range actions {
		require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
			Actor:      "alice",
			Action:     action,
			TargetType: "user",
			TargetID:   fmt.Sprint(i),
			Timestamp:  base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	entries, err := store.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, AuditUpdateUser, entries[0].Action)
	assert.Equal(t, AuditRegisterUser, entries[2].Action)
}

func TestAuditStore_List_Filters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	seed := []struct {
		actor  string
		action AuditAction
		offset time.Duration
	}{
		{"alice", AuditLoginSucceeded, 0},
		{"bob", AuditLoginFailed, 10 * time.Minute},
		{"alice", AuditLoginFailed, 20 * time.Minute},
	}
	for i, s := range seed {
		require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
			Actor:      s.actor,
			Action:     s.action,
			TargetType: "user",
			TargetID:   fmt.Sprint(i),
			Timestamp:  base.Add(s.offset),
		}))
	}

	actor := "alice"
	entries, err := store.ListAuditLog(ctx, AuditFilter{Actor: &actor})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	action := AuditLoginFailed
	entries, err = store.ListAuditLog(ctx, AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	since := base.Add(15 * time.Minute)
	entries, err = store.ListAuditLog(ctx, AuditFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2", entries[0].TargetID)

	entries, err = store.ListAuditLog(ctx, AuditFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAuditStore_RejectsUnknownAction(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.AppendAuditLog(ctx, &AuditEntry{
		Actor:      "alice",
		Action:     AuditAction("drop_tables"),
		TargetType: "user",
		TargetID:   "1",
	})
	assert.Error(t, err)
}

func TestNormalizeAuditLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeAuditLimit(0))
	assert.Equal(t, 100, normalizeAuditLimit(-5))
	assert.Equal(t, 50, normalizeAuditLimit(50))
	assert.Equal(t, 1000, normalizeAuditLimit(5000))
}
