// ABOUTME: First-run commands: interactive config creation and admin bootstrap
// ABOUTME: Bootstrap creates the first ADMIN account and saves a bearer token

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"

	"github.com/nutriai/nutrition-gateway/internal/auth"
	"github.com/nutriai/nutrition-gateway/internal/config"
	"github.com/nutriai/nutrition-gateway/internal/store"
)

// bootstrapActor is the audit actor for accounts created by the CLI.
const bootstrapActor = "bootstrap"

// generateSecret returns a random base64 signing secret of config.MinSecretBytes.
func generateSecret() (string, error) {
	b := make([]byte, config.MinSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// defaultConfig returns a complete configuration for a local gateway.
func defaultConfig(httpAddr, dbPath, secret string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr:           httpAddr,
			ShutdownTimeoutRaw: "5s",
		},
		Database: config.DatabaseConfig{Path: dbPath},
		Auth: config.AuthConfig{
			JWTSecret:       secret,
			JWTExpirationMs: config.DefaultTokenTTL.Milliseconds(),
			BcryptCost:      bcrypt.DefaultCost,
			Routes: config.RoutesConfig{
				Public:     config.DefaultPublicRoutes,
				Restricted: config.DefaultRestrictedRoutes,
			},
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// writeConfig encodes cfg in the format chosen by path's extension.
func writeConfig(path string, cfg *config.Config, header string) error {
	data, err := cfg.Encode(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// secret inside: owner-only
	if err := os.WriteFile(path, append([]byte(header), data...), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// bootstrapOptions are the flags accepted by the bootstrap command.
type bootstrapOptions struct {
	Username string
	Email    string
	Password string
}

// parseBootstrapArgs accepts "--flag value" and "--flag=value" forms.
// The password falls back to NUTRITION_BOOTSTRAP_PASSWORD.
func parseBootstrapArgs(args []string) (bootstrapOptions, error) {
	var opts bootstrapOptions
	targets := map[string]*string{
		"username": &opts.Username,
		"u":        &opts.Username,
		"email":    &opts.Email,
		"e":        &opts.Email,
		"password": &opts.Password,
		"p":        &opts.Password,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return opts, fmt.Errorf("unexpected argument: %s", arg)
		}

		name := strings.TrimLeft(arg, "-")
		value, hasValue := "", false
		if k, v, ok := strings.Cut(name, "="); ok {
			name, value, hasValue = k, v, true
		}

		target, ok := targets[name]
		if !ok {
			return opts, fmt.Errorf("unknown flag: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		*target = value
	}

	if opts.Password == "" {
		opts.Password = os.Getenv("NUTRITION_BOOTSTRAP_PASSWORD")
	}

	opts.Username = strings.TrimSpace(opts.Username)
	opts.Email = strings.TrimSpace(opts.Email)
	switch {
	case opts.Username == "":
		return opts, errors.New("--username flag is required")
	case opts.Email == "":
		return opts, errors.New("--email flag is required")
	case opts.Password == "":
		return opts, errors.New("--password flag or NUTRITION_BOOTSTRAP_PASSWORD is required")
	case len(opts.Username) > 100:
		return opts, errors.New("username exceeds maximum length of 100 characters")
	}
	return opts, nil
}

// bootstrapAdmin creates the first account with USER and ADMIN roles and
// issues a token for it. It refuses to run once any account exists.
func bootstrapAdmin(ctx context.Context, s store.Store, cfg *config.Config, opts bootstrapOptions) (*store.User, string, error) {
	key, err := cfg.Auth.SigningKey()
	if err != nil {
		return nil, "", err
	}
	codec, err := auth.NewTokenCodec(key)
	if err != nil {
		return nil, "", fmt.Errorf("creating token codec: %w", err)
	}

	count, err := s.CountUsers(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("checking users: %w", err)
	}
	if count > 0 {
		return nil, "", fmt.Errorf("bootstrap already complete: %d user(s) exist", count)
	}

	hash, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost).Hash(opts.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	u := &store.User{
		Username:     opts.Username,
		Email:        opts.Email,
		PasswordHash: hash,
		Roles:        store.NewRoleSet(store.RoleUser, store.RoleAdmin),
	}
	if err := s.CreateUser(ctx, u); err != nil {
		return nil, "", fmt.Errorf("creating admin user: %w", err)
	}

	if err := s.AppendAuditLog(ctx, &store.AuditEntry{
		Actor:      bootstrapActor,
		Action:     store.AuditBootstrapAdmin,
		TargetType: "user",
		TargetID:   fmt.Sprint(u.ID),
		Detail:     map[string]any{"username": u.Username},
	}); err != nil {
		// Best-effort cleanup so a retry starts from an empty store
		_ = s.DeleteUser(ctx, u.ID)
		return nil, "", fmt.Errorf("recording audit entry: %w", err)
	}

	token, err := codec.Issue(u.Username, time.Now(), cfg.Auth.TokenTTL())
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	return u, token, nil
}

// runBootstrap performs first-time setup:
// 1. Creates a config file with a random JWT secret (if none exists)
// 2. Creates the database and the first ADMIN account
// 3. Saves a bearer token for that account next to the config
func runBootstrap(ctx context.Context, args []string) error {
	opts, err := parseBootstrapArgs(args)
	if err != nil {
		return err
	}

	configPath := getConfigPath()

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		dbPath := filepath.Join(getDataPath(), "gateway.db")
		header := "# nutrition-gateway configuration\n# Generated by nutrition-gateway bootstrap\n\n"
		if err := writeConfig(configPath, defaultConfig("localhost:8080", dbPath, secret), header); err != nil {
			return err
		}
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	u, token, err := bootstrapAdmin(ctx, s, cfg, opts)
	if err != nil {
		return err
	}
	green.Printf("  ✓ Created admin account: %s\n", u.Username)

	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	green.Printf("  ✓ Saved token: %s\n", tokenPath)

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Admin Account")
	cyan.Println("  -------------")
	fmt.Printf("  ID:       %d\n", u.ID)
	fmt.Printf("  Username: %s\n", u.Username)
	fmt.Printf("  Email:    %s\n", u.Email)
	fmt.Printf("  Roles:    %s\n", strings.Join(u.Roles.Strings(), ", "))
	fmt.Printf("  Token:    %s (expires %s)\n", tokenPath, time.Now().Add(cfg.Auth.TokenTTL()).Format("Jan 02, 2006 15:04"))
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    nutrition-gateway serve")
	fmt.Printf("    curl -H \"Authorization: Bearer $(cat %s)\" http://%s/api/users/me\n", tokenPath, cfg.Server.HTTPAddr)
	fmt.Println()

	return nil
}

func runInit() error {
	return initConfig(bufio.NewReader(os.Stdin), os.Stdout)
}

// initConfig asks for the main settings and writes a config file.
func initConfig(reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "nutrition-gateway configuration setup")
	fmt.Fprintln(out, "=====================================")
	fmt.Fprintln(out)

	defaultDbPath := filepath.Join(getDataPath(), "gateway.db")

	outputFile := prompt(reader, out, "Config file path (.yaml or .toml)", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !isYes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	httpAddr := prompt(reader, out, "HTTP address", "localhost:8080")

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	dbPath := prompt(reader, out, "SQLite database path", defaultDbPath)

	fmt.Fprintln(out, "\n--- Authentication ---")
	secret := prompt(reader, out, "JWT secret (base64, empty to generate)", "")
	if secret == "" {
		generated, err := generateSecret()
		if err != nil {
			return err
		}
		secret = generated
	}
	ttl := prompt(reader, out, "Token lifetime", config.DefaultTokenTTL.String())
	ttlDuration, err := time.ParseDuration(ttl)
	if err != nil || ttlDuration <= 0 {
		return fmt.Errorf("invalid token lifetime %q", ttl)
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	cfg := defaultConfig(httpAddr, dbPath, secret)
	cfg.Auth.JWTExpirationMs = ttlDuration.Milliseconds()
	cfg.Logging = config.LoggingConfig{Level: logLevel, Format: logFormat}

	if _, err := cfg.Auth.SigningKey(); err != nil {
		return fmt.Errorf("jwt secret: %w", err)
	}

	header := "# nutrition-gateway configuration\n# Generated by nutrition-gateway init\n\n"
	if err := writeConfig(outputFile, cfg, header); err != nil {
		return err
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  nutrition-gateway bootstrap --username admin --email admin@example.com --password <secret>")
	fmt.Fprintln(out, "  nutrition-gateway serve")

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if err != nil && input == "" {
		// EOF: take the default
		fmt.Fprintln(out)
		return defaultVal
	}

	if input == "" {
		return defaultVal
	}
	return input
}
