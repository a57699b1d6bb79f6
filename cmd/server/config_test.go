package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address :8080, got %s", cfg.Server.Address)
	}
	if cfg.Auth.LockoutThreshold != 5 {
		t.Errorf("expected default lockout threshold 5, got %d", cfg.Auth.LockoutThreshold)
	}
}

func TestConfigValidate_RejectsInvalidDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.AccessTokenTTL = "not-a-duration"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid auth.access_token_ttl")
	}
}

func TestConfigValidate_RequiresTLSFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.TLS.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when TLS is enabled without cert files")
	}

	cfg.Server.TLS.CertFile = "/etc/volunteerhub/server.crt"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when TLS key file is missing")
	}

	cfg.Server.TLS.KeyFile = "/etc/volunteerhub/server.key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config with TLS files: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	content := `
server:
  address: ":9000"
database:
  path: /tmp/vh-test.db
metrics:
  enabled: true
  address: ":9191"
auth:
  access_token_ttl: 20m
  lockout_threshold: 3
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Address != ":9000" {
		t.Errorf("expected address :9000, got %s", cfg.Server.Address)
	}
	if cfg.Database.Path != "/tmp/vh-test.db" {
		t.Errorf("expected database path /tmp/vh-test.db, got %s", cfg.Database.Path)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Address != ":9191" {
		t.Errorf("unexpected metrics config: %+v", cfg.Metrics)
	}
	if cfg.Auth.AccessTokenTTL != "20m" {
		t.Errorf("expected access token TTL 20m, got %s", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.LockoutThreshold != 3 {
		t.Errorf("expected lockout threshold 3, got %d", cfg.Auth.LockoutThreshold)
	}
	// Unset fields fall back to defaults.
	if cfg.Auth.RefreshTokenTTL != "168h" {
		t.Errorf("expected default refresh token TTL, got %s", cfg.Auth.RefreshTokenTTL)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
