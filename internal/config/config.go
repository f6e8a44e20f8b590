// ABOUTME: Configuration loading and parsing for nutrition-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and defaults

package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nutriai/nutrition-gateway/internal/store"
)

// MinSecretBytes is the minimum decoded length of auth.jwt_secret.
const MinSecretBytes = 32

// DefaultTokenTTL applies when auth.jwt_expiration_ms is unset.
const DefaultTokenTTL = 24 * time.Hour

// MaxJWTExpirationMs is the largest token lifetime a time.Duration can hold.
const MaxJWTExpirationMs = math.MaxInt64 / int64(time.Millisecond)

// ErrSecretInvalid is returned when auth.jwt_secret is not usable as a signing key.
var ErrSecretInvalid = errors.New("invalid jwt secret")

// Config represents the complete nutrition-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTSecret is the base64-encoded HS256 signing key.
	JWTSecret       string       `yaml:"jwt_secret" toml:"jwt_secret"`
	JWTExpirationMs int64        `yaml:"jwt_expiration_ms" toml:"jwt_expiration_ms"`
	BcryptCost      int          `yaml:"bcrypt_cost" toml:"bcrypt_cost"`
	Routes          RoutesConfig `yaml:"routes" toml:"routes"`
}

// RoutesConfig is the route authorization table.
type RoutesConfig struct {
	Public     []string          `yaml:"public" toml:"public"`
	Restricted []RestrictedRoute `yaml:"restricted" toml:"restricted"`
}

// RestrictedRoute limits a path prefix to one role.
type RestrictedRoute struct {
	Prefix string `yaml:"prefix" toml:"prefix"`
	Role   string `yaml:"role" toml:"role"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// DefaultPublicRoutes are reachable without a token.
var DefaultPublicRoutes = []string{
	"/api/auth/**",
	"/api/test/**",
	"/health/**",
	"/metrics",
}

// DefaultRestrictedRoutes require a specific role.
var DefaultRestrictedRoutes = []RestrictedRoute{
	{Prefix: "/api/admin/**", Role: string(store.RoleAdmin)},
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(expandEnvVars(string(data)), formatFor(path))
}

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes already-expanded configuration text, applies defaults and validates.
func Parse(text string, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(text, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Encode renders the configuration in the format implied by path's extension.
func (c *Config) Encode(path string) ([]byte, error) {
	if formatFor(path) == FormatTOML {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, fmt.Errorf("encoding toml: %w", err)
		}
		return buf.Bytes(), nil
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return data, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Auth.JWTExpirationMs == 0 {
		c.Auth.JWTExpirationMs = DefaultTokenTTL.Milliseconds()
	}
	// Each list defaults on its own; an explicit empty list stays empty.
	if c.Auth.Routes.Public == nil {
		c.Auth.Routes.Public = append([]string(nil), DefaultPublicRoutes...)
	}
	if c.Auth.Routes.Restricted == nil {
		c.Auth.Routes.Restricted = append([]RestrictedRoute(nil), DefaultRestrictedRoutes...)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if _, err := c.Auth.SigningKey(); err != nil {
		return fmt.Errorf("auth.jwt_secret: %w", err)
	}

	if c.Auth.JWTExpirationMs <= 0 {
		return fmt.Errorf("auth.jwt_expiration_ms must be positive, got %d", c.Auth.JWTExpirationMs)
	}
	if c.Auth.JWTExpirationMs > MaxJWTExpirationMs {
		return fmt.Errorf("auth.jwt_expiration_ms must be at most %d, got %d", MaxJWTExpirationMs, c.Auth.JWTExpirationMs)
	}

	for _, p := range c.Auth.Routes.Public {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("auth.routes.public: %q must start with /", p)
		}
	}
	for _, r := range c.Auth.Routes.Restricted {
		if !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("auth.routes.restricted: %q must start with /", r.Prefix)
		}
		if _, err := store.ParseRoleName(r.Role); err != nil {
			return fmt.Errorf("auth.routes.restricted %s: %w", r.Prefix, err)
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path: %q must start with /", c.Metrics.Path)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format)
	}

	return nil
}

// SigningKey decodes JWTSecret from base64 (padded or unpadded) and checks its length.
func (a AuthConfig) SigningKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(a.JWTSecret)
	if err != nil {
		key, err = base64.RawStdEncoding.DecodeString(a.JWTSecret)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64", ErrSecretInvalid)
	}
	if len(key) < MinSecretBytes {
		return nil, fmt.Errorf("%w: decodes to %d bytes, need at least %d", ErrSecretInvalid, len(key), MinSecretBytes)
	}
	return key, nil
}

// PublicRoutes returns auth.routes.public plus the metrics path when the
// metrics endpoint is enabled, so scrapers never need a token.
func (c *Config) PublicRoutes() []string {
	routes := append([]string(nil), c.Auth.Routes.Public...)
	if !c.Metrics.Enabled || slices.Contains(routes, c.Metrics.Path) {
		return routes
	}
	return append(routes, c.Metrics.Path)
}

// TokenTTL returns the configured token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.JWTExpirationMs) * time.Millisecond
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Server.ShutdownTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
		cfg.Server.ShutdownTimeout = d
	}
	return nil
}
