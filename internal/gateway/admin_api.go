// ABOUTME: Admin-only HTTP handlers for account management and the audit trail
// ABOUTME: Each handler is gated by the route table and again by requireAdmin

package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nutriai/nutrition-gateway/internal/auth"
	"github.com/nutriai/nutrition-gateway/internal/store"
)

// UpdateUserRequest is the JSON request body for PUT /api/admin/users/{id}.
// Empty fields keep their current value; a present roles list replaces the
// user's roles.
type UpdateUserRequest struct {
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// AuditEntryResponse is one row of GET /api/admin/audit.
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Timestamp  string         `json:"timestamp"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// ListAuditResponse is the JSON response for GET /api/admin/audit.
type ListAuditResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
}

// requireAdmin rejects callers without the ADMIN role, independent of how
// the route table is configured.
func (g *Gateway) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			auth.WriteUnauthorized(w)
			return
		}
		if !p.IsAdmin() {
			g.logger.Warn("non-admin reached admin handler", "username", p.Username, "path", r.URL.Path)
			auth.WriteForbidden(w)
			return
		}
		next(w, r)
	}
}

// pathUserID parses the {id} path segment.
func pathUserID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

// handleAdminListUsers handles GET /api/admin/users.
func (g *Gateway) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := g.store.ListUsers(r.Context())
	if err != nil {
		g.logger.Error("failed to list users", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, newUserResponse(u))
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleAdminGetUser handles GET /api/admin/users/{id}.
func (g *Gateway) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := g.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to get user", "user_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.writeJSON(w, http.StatusOK, newUserResponse(u))
}

// handleAdminUpdateUser handles PUT /api/admin/users/{id}.
// Role names are decoded before anything is written; an unknown name is a 400.
func (g *Gateway) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var roles store.RoleSet
	if req.Roles != nil {
		roles, err = store.ParseRoleSet(req.Roles)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(roles) == 0 {
			g.sendJSONError(w, http.StatusBadRequest, "roles must not be empty")
			return
		}
	}

	u, err := g.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to get user", "user_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	changed := map[string]any{}
	if name := strings.TrimSpace(req.Username); name != "" && name != u.Username {
		changed["username"] = name
		u.Username = name
	}
	if email := strings.TrimSpace(req.Email); email != "" && email != u.Email {
		changed["email"] = email
		u.Email = email
	}
	if roles != nil {
		changed["roles"] = roles.Strings()
		u.Roles = roles
	}
	// keep the stored hash
	u.PasswordHash = ""

	if err := g.store.UpdateUser(r.Context(), u); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			g.sendJSONError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, store.ErrUsernameExists):
			g.sendJSONError(w, http.StatusConflict, "username is already taken")
		case errors.Is(err, store.ErrEmailExists):
			g.sendJSONError(w, http.StatusConflict, "email is already in use")
		default:
			g.logger.Error("failed to update user", "user_id", id, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	g.audit(r, actorFor(r), store.AuditUpdateUser, strconv.FormatInt(id, 10), changed)
	g.logger.Info("user updated", "user_id", id, "actor", actorFor(r))

	g.writeJSON(w, http.StatusOK, newUserResponse(u))
}

// handleAdminDeleteUser handles DELETE /api/admin/users/{id}.
func (g *Gateway) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := g.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		g.logger.Error("failed to delete user", "user_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.audit(r, actorFor(r), store.AuditDeleteUser, strconv.FormatInt(id, 10), nil)
	g.logger.Info("user deleted", "user_id", id, "actor", actorFor(r))

	w.WriteHeader(http.StatusNoContent)
}

// handleAdminAudit handles GET /api/admin/audit?actor=&action=&since=&limit=.
func (g *Gateway) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.AuditFilter

	if actor := q.Get("actor"); actor != "" {
		filter.Actor = &actor
	}
	if raw := q.Get("action"); raw != "" {
		action, err := parseAuditAction(raw)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Action = &action
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := g.store.ListAuditLog(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list audit log", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	response := ListAuditResponse{Entries: make([]AuditEntryResponse, 0, len(entries))}
	for _, e := range entries {
		response.Entries = append(response.Entries, AuditEntryResponse{
			ID:         e.ID,
			Actor:      e.Actor,
			Action:     string(e.Action),
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
			Detail:     e.Detail,
		})
	}
	g.writeJSON(w, http.StatusOK, response)
}

func parseAuditAction(raw string) (store.AuditAction, error) {
	for _, a := range store.ValidAuditActions {
		if string(a) == raw {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown audit action %q", raw)
}
