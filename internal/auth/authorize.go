// ABOUTME: Route authorization table and the decision point applied per request
// ABOUTME: Tiers are public, then role-restricted (longest prefix), then authenticated

package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/nutriai/nutrition-gateway/internal/store"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Allow Decision = iota
	Unauthorized
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// RouteRule restricts a path pattern to holders of a role.
type RouteRule struct {
	Pattern string
	Role    string
}

type restrictedPrefix struct {
	prefix string
	role   store.RoleName
}

// RouteTable holds the access rules. It is immutable once built.
type RouteTable struct {
	public     []string
	restricted []restrictedPrefix // longest prefix first
}

// NewRouteTable builds a table from public patterns and role rules.
// Patterns are absolute paths, optionally ending in "/**"; a pattern covers
// its own path and everything below it.
func NewRouteTable(public []string, restricted []RouteRule) (*RouteTable, error) {
	t := &RouteTable{}

	for _, p := range public {
		prefix, err := normalizePattern(p)
		if err != nil {
			return nil, err
		}
		t.public = append(t.public, prefix)
	}

	for _, rule := range restricted {
		prefix, err := normalizePattern(rule.Pattern)
		if err != nil {
			return nil, err
		}
		role, err := store.ParseRoleName(rule.Role)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", rule.Pattern, err)
		}
		t.restricted = append(t.restricted, restrictedPrefix{prefix: prefix, role: role})
	}

	sort.SliceStable(t.restricted, func(i, j int) bool {
		return len(t.restricted[i].prefix) > len(t.restricted[j].prefix)
	})
	return t, nil
}

func normalizePattern(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("route pattern %q must start with /", p)
	}
	p = strings.TrimSuffix(p, "/**")
	if strings.Contains(p, "*") {
		return "", fmt.Errorf("route pattern %q: wildcards are only allowed as a trailing /**", p)
	}
	if p == "" {
		return "/", nil
	}
	return path.Clean(p), nil
}

func matchPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func cleanRequestPath(p string) string {
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

// Decide returns the access decision for path given the (possibly nil) principal.
func (t *RouteTable) Decide(requestPath string, p *Principal) Decision {
	clean := cleanRequestPath(requestPath)

	for _, prefix := range t.public {
		if matchPrefix(clean, prefix) {
			return Allow
		}
	}

	for _, r := range t.restricted {
		if !matchPrefix(clean, r.prefix) {
			continue
		}
		switch {
		case p == nil:
			return Unauthorized
		case p.HasRole(r.role):
			return Allow
		default:
			return Forbidden
		}
	}

	if p == nil {
		return Unauthorized
	}
	return Allow
}

// AuthorizationConfig wires AuthorizationMiddleware. Nil handlers default to
// UnauthorizedHandler and ForbiddenHandler.
type AuthorizationConfig struct {
	Routes       *RouteTable
	Unauthorized http.Handler
	Forbidden    http.Handler
	Logger       *slog.Logger
	Observer     Observer
}

// AuthorizationMiddleware enforces Routes using the principal placed on the
// request by HTTPAuthMiddleware.
func AuthorizationMiddleware(cfg AuthorizationConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "authz")
	obs := observerOrNop(cfg.Observer)

	unauthorized := cfg.Unauthorized
	if unauthorized == nil {
		unauthorized = UnauthorizedHandler(logger)
	}
	forbidden := cfg.Forbidden
	if forbidden == nil {
		forbidden = ForbiddenHandler(logger)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := PrincipalFromContext(r.Context())
			decision := cfg.Routes.Decide(r.URL.Path, principal)
			obs.Decided(decision)

			switch decision {
			case Allow:
				next.ServeHTTP(w, r)
			case Forbidden:
				logger.Info("access denied", "username", principal.Username, "path", r.URL.Path)
				forbidden.ServeHTTP(w, r)
			default:
				unauthorized.ServeHTTP(w, r)
			}
		})
	}
}
