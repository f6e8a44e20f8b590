// ABOUTME: End-to-end scenario over a real listener and SQLite store
// ABOUTME: Registers, logs in and exercises authenticated and admin routes

package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriai/nutrition-gateway/internal/store"
)

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestScenario_RegisterLoginAndAccess(t *testing.T) {
	gw, err := New(testConfig(t), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.store.Close() })

	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	// Register
	resp, body := call(t, srv, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "pw1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	// Wrong password
	resp, _ = call(t, srv, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "alice", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Login
	resp, body = call(t, srv, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "alice", Password: "pw1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var loginResp LoginResponse
	require.NoError(t, json.Unmarshal(body, &loginResp))
	token := loginResp.Token

	// Authenticated route
	resp, body = call(t, srv, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var me UserResponse
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, []string{"USER"}, me.Roles)

	// Admin route with a USER token
	resp, body = call(t, srv, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Forbidden"}`, string(body))

	// No token
	resp, body = call(t, srv, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"error":"Unauthorized"}`, string(body))

	// Tampered token
	tampered := []byte(token)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}
	resp, _ = call(t, srv, http.MethodGet, "/api/users/me", string(tampered), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Promote alice directly in the store; the same token now reaches admin routes
	u, err := gw.store.GetUserByUsername(t.Context(), "alice")
	require.NoError(t, err)
	u.Roles.Add(store.RoleAdmin)
	require.NoError(t, gw.store.UpdateUser(t.Context(), u))

	resp, body = call(t, srv, http.MethodGet, "/api/admin/users", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = call(t, srv, http.MethodGet, "/api/admin/audit?actor=alice", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var audit ListAuditResponse
	require.NoError(t, json.Unmarshal(body, &audit))
	require.Len(t, audit.Entries, 3)
	assert.Equal(t, "login_succeeded", audit.Entries[0].Action)
	assert.Equal(t, "login_failed", audit.Entries[1].Action)
	assert.Equal(t, "register_user", audit.Entries[2].Action)
}
