package config

import (
	"os"
	"testing"
)

func clearSyncEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"SYNC_GITHUB_TOKEN", "SYNC_GITHUB_OWNER", "SYNC_GITHUB_REPO",
		"SYNC_LARK_APP_ID", "SYNC_LARK_APP_SECRET", "SYNC_LARK_AUTH_MODE",
		"SYNC_LARK_DEFAULT_APP_TOKEN", "SYNC_LARK_DEFAULT_TABLE_ID",
		"SYNC_SHEET_GATEWAY_CMD", "SYNC_SHEET_GATEWAY_ARGS", "SYNC_REGISTRY_PATH",
		"SYNC_OPERATOR_EMAIL", "SYNC_DB_PATH", "SYNC_INTERVAL_SECONDS",
		"SYNC_RETRY_MAX_ATTEMPTS", "SYNC_RETRY_BACKOFF_FACTOR",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
	t.Cleanup(func() {
		for _, v := range vars {
			os.Unsetenv(v)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	clearSyncEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LarkAuthMode != LarkAuthTenant {
		t.Errorf("LarkAuthMode = %q, want %q", cfg.LarkAuthMode, LarkAuthTenant)
	}
	if cfg.RetryMaxAttempts != defaultRetryMaxAttempts {
		t.Errorf("RetryMaxAttempts = %d, want %d", cfg.RetryMaxAttempts, defaultRetryMaxAttempts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearSyncEnv(t)
	os.Setenv("SYNC_GITHUB_OWNER", "acme")
	os.Setenv("SYNC_GITHUB_REPO", "widgets")
	os.Setenv("SYNC_LARK_AUTH_MODE", LarkAuthOAuth)
	os.Setenv("SYNC_INTERVAL_SECONDS", "60")
	os.Setenv("SYNC_SHEET_GATEWAY_ARGS", "--flag1 --flag2 value")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GitHubOwner != "acme" || cfg.GitHubRepo != "widgets" {
		t.Errorf("GitHubOwner/Repo = %q/%q, want acme/widgets", cfg.GitHubOwner, cfg.GitHubRepo)
	}
	if cfg.LarkAuthMode != LarkAuthOAuth {
		t.Errorf("LarkAuthMode = %q, want %q", cfg.LarkAuthMode, LarkAuthOAuth)
	}
	if cfg.Interval.Seconds() != 60 {
		t.Errorf("Interval = %s, want 60s", cfg.Interval)
	}
	if len(cfg.SheetGatewayArgs) != 3 {
		t.Errorf("SheetGatewayArgs = %v, want 3 fields", cfg.SheetGatewayArgs)
	}
}

func TestLoadRejectsInvalidAuthMode(t *testing.T) {
	clearSyncEnv(t)
	os.Setenv("SYNC_LARK_AUTH_MODE", "bogus")

	if _, err := Load(); err == nil {
		t.Error("Load() with invalid SYNC_LARK_AUTH_MODE should fail, got nil error")
	}
}

func TestLoadRejectsNonIntegerInterval(t *testing.T) {
	clearSyncEnv(t)
	os.Setenv("SYNC_INTERVAL_SECONDS", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Load() with non-integer SYNC_INTERVAL_SECONDS should fail, got nil error")
	}
}
