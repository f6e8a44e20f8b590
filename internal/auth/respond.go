// ABOUTME: Terminal 401 and 403 JSON responses for rejected requests
// ABOUTME: Bodies are fixed strings and never echo request data

package auth

import (
	"log/slog"
	"net/http"
)

const (
	unauthorizedBody = `{"error":"Unauthorized"}`
	forbiddenBody    = `{"error":"Forbidden"}`
)

// WriteUnauthorized writes a 401 with a Bearer challenge.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

// WriteForbidden writes a 403.
func WriteForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(forbiddenBody))
}

// UnauthorizedHandler responds 401 to every request.
func UnauthorizedHandler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("unauthenticated request rejected", "method", r.Method, "path", r.URL.Path)
		WriteUnauthorized(w)
	})
}

// ForbiddenHandler responds 403 to every request.
func ForbiddenHandler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("forbidden request rejected", "method", r.Method, "path", r.URL.Path)
		WriteForbidden(w)
	})
}
