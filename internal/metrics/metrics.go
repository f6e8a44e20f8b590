// ABOUTME: Prometheus metrics for HTTP traffic and authentication outcomes
// ABOUTME: Metrics implements auth.Observer so the middlewares can report into it

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nutriai/nutrition-gateway/internal/auth"
)

// Login attempt results.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
	LoginError   = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	TokenChecksTotal    *prometheus.CounterVec
	AuthzDecisionsTotal *prometheus.CounterVec
	LoginAttemptsTotal  *prometheus.CounterVec
	RegistrationsTotal  prometheus.Counter

	registry *prometheus.Registry
}

var _ auth.Observer = (*Metrics)(nil)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutrition_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nutrition_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		TokenChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutrition_auth_token_checks_total",
				Help: "Bearer token checks by outcome",
			},
			[]string{"outcome"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutrition_authz_decisions_total",
				Help: "Authorization decisions by result",
			},
			[]string{"decision"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nutrition_auth_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		RegistrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nutrition_auth_registrations_total",
				Help: "Successful account registrations",
			},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenChecksTotal,
		m.AuthzDecisionsTotal,
		m.LoginAttemptsTotal,
		m.RegistrationsTotal,
	)

	return m
}

// TokenChecked implements auth.Observer.
func (m *Metrics) TokenChecked(outcome string) {
	m.TokenChecksTotal.WithLabelValues(outcome).Inc()
}

// Decided implements auth.Observer.
func (m *Metrics) Decided(d auth.Decision) {
	m.AuthzDecisionsTotal.WithLabelValues(d.String()).Inc()
}

// LoginAttempt records a login result (LoginSuccess, LoginFailure, LoginError).
func (m *Metrics) LoginAttempt(result string) {
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// Registered records a successful registration.
func (m *Metrics) Registered() {
	m.RegistrationsTotal.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel keeps at most the first two path segments so that IDs and
// usernames in paths don't become label values.
func routeLabel(p string) string {
	parts := strings.SplitN(strings.TrimPrefix(p, "/"), "/", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return "/" + strings.Join(parts, "/")
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
