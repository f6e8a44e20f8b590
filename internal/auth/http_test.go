// ABOUTME: Tests for the HTTP authentication middleware
// ABOUTME: Every failure path must reach the next handler without an identity

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nutriai/nutrition-gateway/internal/store"
)

// recordingObserver captures reported outcomes.
type recordingObserver struct {
	mu        sync.Mutex
	outcomes  []string
	decisions []Decision
}

func (o *recordingObserver) TokenChecked(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) Decided(d Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, d)
}

// failingPrincipals always returns err.
type failingPrincipals struct{ err error }

func (f failingPrincipals) Load(context.Context, string) (*Principal, error) {
	return nil, f.err
}

type middlewareFixture struct {
	codec    *TokenCodec
	store    *store.MockStore
	observer *recordingObserver
	handler  http.Handler
	got      *Principal
	called   bool
}

func newMiddlewareFixture(t *testing.T, principals PrincipalSource) *middlewareFixture {
	t.Helper()
	f := &middlewareFixture{
		codec:    newTestCodec(t, time.Now()),
		store:    store.NewMockStore(),
		observer: &recordingObserver{},
	}
	seedUser(t, f.store, "alice", "pw1", store.RoleUser)
	if principals == nil {
		principals = NewPrincipalLoader(f.store)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.called = true
		f.got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	f.handler = HTTPAuthMiddleware(MiddlewareConfig{
		Tokens:     f.codec,
		Principals: principals,
		Observer:   f.observer,
	})(next)
	return f
}

func (f *middlewareFixture) serve(authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHTTPAuthMiddleware_ValidToken(t *testing.T) {
	f := newMiddlewareFixture(t, nil)
	token, err := f.codec.Issue("alice", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	rec := f.serve("Bearer " + token)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if f.got == nil {
		t.Fatal("expected principal in context")
	}
	if f.got.Username != "alice" || !f.got.HasRole(store.RoleUser) {
		t.Errorf("principal = %+v", f.got)
	}
	if len(f.observer.outcomes) != 1 || f.observer.outcomes[0] != OutcomeValid {
		t.Errorf("outcomes = %v, want [%s]", f.observer.outcomes, OutcomeValid)
	}
}

func TestHTTPAuthMiddleware_ContinuesAnonymously(t *testing.T) {
	f := newMiddlewareFixture(t, nil)
	expired, _ := f.codec.Issue("alice", time.Now().Add(-2*time.Hour), time.Hour)
	ghost, _ := f.codec.Issue("ghost", time.Now(), time.Hour)
	valid, _ := f.codec.Issue("alice", time.Now(), time.Hour)

	tests := []struct {
		name    string
		header  string
		outcome string
	}{
		{name: "no header", header: "", outcome: OutcomeNoToken},
		{name: "basic scheme", header: "Basic YWxpY2U6cHcx", outcome: OutcomeNoToken},
		{name: "lowercase bearer", header: "bearer " + valid, outcome: OutcomeNoToken},
		{name: "empty bearer", header: "Bearer ", outcome: "empty"},
		{name: "garbage", header: "Bearer garbage", outcome: "malformed"},
		{name: "expired", header: "Bearer " + expired, outcome: "expired"},
		{name: "unknown subject", header: "Bearer " + ghost, outcome: OutcomeUnknownUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.called, f.got = false, nil
			f.observer.outcomes = nil

			rec := f.serve(tt.header)

			if !f.called {
				t.Fatal("next handler was not called")
			}
			if rec.Code != http.StatusNoContent {
				t.Errorf("expected status 204, got %d", rec.Code)
			}
			if f.got != nil {
				t.Errorf("expected no principal, got %+v", f.got)
			}
			if len(f.observer.outcomes) != 1 || f.observer.outcomes[0] != tt.outcome {
				t.Errorf("outcomes = %v, want [%s]", f.observer.outcomes, tt.outcome)
			}
		})
	}
}

func TestHTTPAuthMiddleware_StoreFailureIsAnonymous(t *testing.T) {
	f := newMiddlewareFixture(t, failingPrincipals{err: errors.New("connection refused")})
	token, _ := f.codec.Issue("alice", time.Now(), time.Hour)

	rec := f.serve("Bearer " + token)

	if !f.called || rec.Code != http.StatusNoContent {
		t.Fatalf("next handler called = %v, status = %d", f.called, rec.Code)
	}
	if f.got != nil {
		t.Error("store failure must not produce an identity")
	}
	if len(f.observer.outcomes) != 1 || f.observer.outcomes[0] != OutcomeLookupFailure {
		t.Errorf("outcomes = %v, want [%s]", f.observer.outcomes, OutcomeLookupFailure)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"", "", false},
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer ", "", true},
		{"Bearer", "", false},
		{"Token abc", "", false},
	}

	for _, tt := range tests {
		token, ok := extractBearerToken(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("extractBearerToken(%q) = %q, %v; want %q, %v", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}
