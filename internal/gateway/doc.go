// Package gateway wires the nutrition HTTP API together.
//
// # Overview
//
// The Gateway owns the store, the auth components and the HTTP server. New
// opens the SQLite store named in the config; NewWithStore accepts any
// store.Store, which tests use with store.MockStore.
//
// # Request Pipeline
//
// Every request passes through, in order:
//
//	metrics.HTTPMetricsMiddleware
//	  -> auth.HTTPAuthMiddleware      (bearer token -> Principal in context)
//	    -> auth.AuthorizationMiddleware (route table -> allow / 401 / 403)
//	      -> http.ServeMux
//
// # HTTP API
//
//   - POST /api/auth/register - create an account with the USER role
//   - POST /api/auth/login - exchange credentials for a bearer token
//   - GET /api/users/me - profile of the signed-in user
//   - GET /api/users/{username} - profile lookup
//   - GET /api/admin/users - list accounts (ADMIN)
//   - GET|PUT|DELETE /api/admin/users/{id} - manage one account (ADMIN)
//   - GET /api/admin/audit - audit trail with actor, action, since and limit filters (ADMIN)
//   - GET /health - liveness
//   - GET /health/ready - store readiness
//   - GET /metrics - Prometheus exposition, when metrics.enabled
//
// Errors are JSON objects of the form {"error": "..."}.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// Run shuts the HTTP server down gracefully within server.shutdown_timeout and
// closes the store.
package gateway
