// ABOUTME: Tests for Prometheus metrics registration and HTTP instrumentation
// ABOUTME: Uses prometheus testutil to read counter values

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriai/nutrition-gateway/internal/auth"
)

func TestMetrics_ObserverCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.TokenChecked(auth.OutcomeValid)
	m.TokenChecked(auth.OutcomeValid)
	m.TokenChecked("expired")
	m.Decided(auth.Forbidden)
	m.LoginAttempt(LoginFailure)
	m.Registered()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokenChecksTotal.WithLabelValues(auth.OutcomeValid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenChecksTotal.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues(LoginFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistrationsTotal))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/admin") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, p := range []string{"/api/users/alice", "/api/users/bob", "/api/admin/users/7"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/users", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/admin", "403")))
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/":                  "/",
		"/health":            "/health",
		"/api/auth/login":    "/api/auth",
		"/api/admin/users/7": "/api/admin",
	}
	for in, want := range tests {
		assert.Equal(t, want, routeLabel(in), in)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.LoginAttempt(LoginSuccess)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nutrition_auth_login_attempts_total{result="success"} 1`)
}
