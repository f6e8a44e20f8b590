// ABOUTME: HTTP API handlers for registration, login and user profiles
// ABOUTME: Shared JSON helpers and response types live here too

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nutriai/nutrition-gateway/internal/auth"
	"github.com/nutriai/nutrition-gateway/internal/metrics"
	"github.com/nutriai/nutrition-gateway/internal/store"
)

// anonymousActor is recorded in the audit log when nobody is signed in.
const anonymousActor = "anonymous"

// RegisterRequest is the JSON request body for POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the JSON request body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for a successful login.
type LoginResponse struct {
	Token    string `json:"token"`
	Type     string `json:"type"`
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserResponse is the sanitized view of an account. It never carries the
// password hash.
type UserResponse struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"created_at"`
}

func newUserResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Roles:     u.Roles.Strings(),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// sendJSONError writes a JSON error response with the given status code and message.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes v as a JSON response body.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// audit appends an audit entry. Failures are logged, never surfaced to the caller.
func (g *Gateway) audit(r *http.Request, actor string, action store.AuditAction, targetID string, detail map[string]any) {
	entry := &store.AuditEntry{
		Actor:      actor,
		Action:     action,
		TargetType: "user",
		TargetID:   targetID,
		Timestamp:  g.now(),
		Detail:     detail,
	}
	if err := g.store.AppendAuditLog(r.Context(), entry); err != nil {
		g.logger.Error("failed to append audit log", "action", action, "actor", actor, "error", err)
	}
}

// actorFor returns the signed-in username or anonymousActor.
func actorFor(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return p.Username
	}
	return anonymousActor
}

// handleRegister handles POST /api/auth/register.
// New accounts get the USER role.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		g.sendJSONError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	hash, err := g.hasher.Hash(req.Password)
	if err != nil {
		g.logger.Error("failed to hash password", "username", req.Username, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	u := &store.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Roles:        store.NewRoleSet(store.RoleUser),
	}
	if err := g.store.CreateUser(r.Context(), u); err != nil {
		switch {
		case errors.Is(err, store.ErrUsernameExists):
			g.sendJSONError(w, http.StatusBadRequest, "username is already taken")
		case errors.Is(err, store.ErrEmailExists):
			g.sendJSONError(w, http.StatusBadRequest, "email is already in use")
		default:
			g.logger.Error("failed to create user", "username", req.Username, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	g.metrics.Registered()
	g.audit(r, u.Username, store.AuditRegisterUser, fmt.Sprint(u.ID), nil)
	g.logger.Info("user registered", "username", u.Username, "user_id", u.ID)

	g.writeJSON(w, http.StatusCreated, newUserResponse(u))
}

// handleLogin handles POST /api/auth/login.
// Every credential failure produces the same 401 body.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := g.authn.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		actor := req.Username
		if actor == "" {
			actor = anonymousActor
		}
		g.metrics.LoginAttempt(metrics.LoginFailure)
		g.audit(r, actor, store.AuditLoginFailed, req.Username, nil)
		g.sendJSONError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		g.metrics.LoginAttempt(metrics.LoginError)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := g.tokens.Issue(u.Username, g.now(), g.config.Auth.TokenTTL())
	if err != nil {
		g.metrics.LoginAttempt(metrics.LoginError)
		g.logger.Error("failed to issue token", "username", u.Username, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.metrics.LoginAttempt(metrics.LoginSuccess)
	g.audit(r, u.Username, store.AuditLoginSucceeded, fmt.Sprint(u.ID), nil)

	g.writeJSON(w, http.StatusOK, LoginResponse{
		Token:    token,
		Type:     "Bearer",
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	})
}

// handleCurrentUser handles GET /api/users/me using the request's principal.
func (g *Gateway) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		auth.WriteUnauthorized(w)
		return
	}

	u, err := g.store.GetUser(r.Context(), p.ID)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to load current user", "user_id", p.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.writeJSON(w, http.StatusOK, newUserResponse(u))
}

// handleUserProfile handles GET /api/users/{username}.
func (g *Gateway) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	u, err := g.store.GetUserByUsername(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to load user", "username", username, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.writeJSON(w, http.StatusOK, newUserResponse(u))
}
