// ABOUTME: Gateway orchestrator that wires the auth stack in front of the HTTP API
// ABOUTME: Manages the store, listener lifecycle and health endpoints

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nutriai/nutrition-gateway/internal/auth"
	"github.com/nutriai/nutrition-gateway/internal/config"
	"github.com/nutriai/nutrition-gateway/internal/metrics"
	"github.com/nutriai/nutrition-gateway/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Gateway serves the nutrition HTTP API behind token authentication and
// route authorization.
type Gateway struct {
	config     *config.Config
	store      store.Store
	hasher     auth.PasswordHasher
	tokens     *auth.TokenCodec
	authn      *auth.CredentialAuthenticator
	principals *auth.PrincipalLoader
	routes     *auth.RouteTable
	metrics    *metrics.Metrics
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	// now is replaceable in tests
	now func() time.Time
}

// initStore creates the store from config, honouring NUTRITION_DB_PATH.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("NUTRITION_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway backed by the SQLite store named in cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw, err := NewWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithStore creates a Gateway over an existing store. The gateway takes
// ownership of s and closes it on Shutdown.
func NewWithStore(cfg *config.Config, s store.Store, logger *slog.Logger) (*Gateway, error) {
	key, err := cfg.Auth.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}

	tokens, err := auth.NewTokenCodec(key)
	if err != nil {
		return nil, fmt.Errorf("creating token codec: %w", err)
	}

	rules := make([]auth.RouteRule, 0, len(cfg.Auth.Routes.Restricted))
	for _, r := range cfg.Auth.Routes.Restricted {
		rules = append(rules, auth.RouteRule{Pattern: r.Prefix, Role: r.Role})
	}
	routes, err := auth.NewRouteTable(cfg.PublicRoutes(), rules)
	if err != nil {
		return nil, fmt.Errorf("building route table: %w", err)
	}

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	principals := auth.NewPrincipalLoader(s)

	gw := &Gateway{
		config:     cfg,
		store:      s,
		hasher:     hasher,
		tokens:     tokens,
		authn:      auth.NewCredentialAuthenticator(s, hasher, logger.With("component", "authenticator")),
		principals: principals,
		routes:     routes,
		metrics:    metrics.NewMetrics(prometheus.NewRegistry()),
		logger:     logger.With("component", "gateway"),
		now:        time.Now,
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)

	// Authentication
	mux.HandleFunc("POST /api/auth/register", gw.handleRegister)
	mux.HandleFunc("POST /api/auth/login", gw.handleLogin)

	// Users
	mux.HandleFunc("GET /api/users/me", gw.handleCurrentUser)
	mux.HandleFunc("GET /api/users/{username}", gw.handleUserProfile)

	// Administration
	mux.HandleFunc("GET /api/admin/users", gw.requireAdmin(gw.handleAdminListUsers))
	mux.HandleFunc("GET /api/admin/users/{id}", gw.requireAdmin(gw.handleAdminGetUser))
	mux.HandleFunc("PUT /api/admin/users/{id}", gw.requireAdmin(gw.handleAdminUpdateUser))
	mux.HandleFunc("DELETE /api/admin/users/{id}", gw.requireAdmin(gw.handleAdminDeleteUser))
	mux.HandleFunc("GET /api/admin/audit", gw.requireAdmin(gw.handleAdminAudit))

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, gw.metrics.Handler())
		logger.Info("metrics endpoint enabled", "path", cfg.Metrics.Path)
	}

	authenticate := auth.HTTPAuthMiddleware(auth.MiddlewareConfig{
		Tokens:     tokens,
		Principals: principals,
		Logger:     logger,
		Observer:   gw.metrics,
	})
	authorize := auth.AuthorizationMiddleware(auth.AuthorizationConfig{
		Routes:       routes,
		Unauthorized: auth.UnauthorizedHandler(logger),
		Forbidden:    auth.ForbiddenHandler(logger),
		Logger:       logger,
		Observer:     gw.metrics,
	})
	gw.handler = metrics.HTTPMetricsMiddleware(gw.metrics)(authenticate(authorize(mux)))

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the fully wrapped HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// startServer serves HTTP on ln in a goroutine, returning an error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		_ = g.store.Close()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK when the store answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
