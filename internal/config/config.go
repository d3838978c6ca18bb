// Package config loads the synchronizer's environment-driven settings
// into one immutable value at startup, generalized from a single-remote
// by-hand config to every component this daemon wires (Store, both
// Gateways, Dispatcher, Reconciler).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name both secrets are stored
// under.
const KeyringService = "synctl"

const (
	keyringGitHubToken = "github-token"
	keyringLarkSecret  = "lark-app-secret"
)

// Lark auth modes.
const (
	LarkAuthOAuth  = "oauth"
	LarkAuthTenant = "tenant"
)

// Config is loaded once at process startup and passed explicitly to every
// component; there is no package-level singleton or global DB handle here.
type Config struct {
	GitHubToken string
	GitHubOwner string
	GitHubRepo  string

	LarkAppID           string
	LarkAppSecret       string
	LarkAuthMode        string
	LarkDefaultAppToken string
	LarkDefaultTableID  string

	// SheetGatewayCommand is the vendor CLI tool the sheet Client dials
	// over stdio; names the JSON-RPC transport but not a
	// fixed binary, so this is operator-provided.
	SheetGatewayCommand string
	SheetGatewayArgs    []string

	RegistryPath string

	// OperatorEmail is who dead-letter and conflict notifyMember events
	// are addressed to.
	OperatorEmail string

	DBPath string

	Interval           time.Duration
	RetryMaxAttempts   int
	RetryBackoffFactor float64
}

// Default values applied when the corresponding env var is unset.
const (
	defaultDBPath             = "synctl.db"
	defaultIntervalSeconds    = 300
	defaultRetryMaxAttempts   = 5
	defaultRetryBackoffFactor = 2.0
)

// Load reads every SYNC_* environment variable, falling back to the OS
// keyring for the two secrets (env wins, so headless/daemon operation can
// override a stored secret without touching the keyring), and to the
// package defaults above for everything else.
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken:         os.Getenv("SYNC_GITHUB_TOKEN"),
		GitHubOwner:         os.Getenv("SYNC_GITHUB_OWNER"),
		GitHubRepo:          os.Getenv("SYNC_GITHUB_REPO"),
		LarkAppID:           os.Getenv("SYNC_LARK_APP_ID"),
		LarkAppSecret:       os.Getenv("SYNC_LARK_APP_SECRET"),
		LarkAuthMode:        envOr("SYNC_LARK_AUTH_MODE", LarkAuthTenant),
		LarkDefaultAppToken: os.Getenv("SYNC_LARK_DEFAULT_APP_TOKEN"),
		LarkDefaultTableID:  os.Getenv("SYNC_LARK_DEFAULT_TABLE_ID"),
		SheetGatewayCommand: envOr("SYNC_SHEET_GATEWAY_CMD", "lark-bitable-gateway"),
		RegistryPath:        envOr("SYNC_REGISTRY_PATH", "registry.yaml"),
		OperatorEmail:       os.Getenv("SYNC_OPERATOR_EMAIL"),
		DBPath:              envOr("SYNC_DB_PATH", defaultDBPath),
	}
	if args := os.Getenv("SYNC_SHEET_GATEWAY_ARGS"); args != "" {
		cfg.SheetGatewayArgs = strings.Fields(args)
	}

	if cfg.GitHubToken == "" {
		if token, err := keyring.Get(KeyringService, keyringGitHubToken); err == nil {
			cfg.GitHubToken = token
		}
	}
	if cfg.LarkAppSecret == "" {
		if secret, err := keyring.Get(KeyringService, keyringLarkSecret); err == nil {
			cfg.LarkAppSecret = secret
		}
	}

	intervalSeconds, err := envOrInt("SYNC_INTERVAL_SECONDS", defaultIntervalSeconds)
	if err != nil {
		return nil, err
	}
	cfg.Interval = time.Duration(intervalSeconds) * time.Second

	cfg.RetryMaxAttempts, err = envOrInt("SYNC_RETRY_MAX_ATTEMPTS", defaultRetryMaxAttempts)
	if err != nil {
		return nil, err
	}

	cfg.RetryBackoffFactor, err = envOrFloat("SYNC_RETRY_BACKOFF_FACTOR", defaultRetryBackoffFactor)
	if err != nil {
		return nil, err
	}

	if cfg.LarkAuthMode != LarkAuthOAuth && cfg.LarkAuthMode != LarkAuthTenant {
		return nil, fmt.Errorf("config: SYNC_LARK_AUTH_MODE must be %q or %q, got %q", LarkAuthOAuth, LarkAuthTenant, cfg.LarkAuthMode)
	}

	return cfg, nil
}

// SetGitHubToken stores the forge token in the OS keyring.
func SetGitHubToken(token string) error {
	return keyring.Set(KeyringService, keyringGitHubToken, token)
}

// SetLarkAppSecret stores the sheet app secret in the OS keyring.
func SetLarkAppSecret(secret string) error {
	return keyring.Set(KeyringService, keyringLarkSecret, secret)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func envOrFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a number: %w", key, err)
	}
	return f, nil
}
