package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8815 {
		t.Errorf("Server.Port = %d, want 8815", cfg.Server.Port)
	}
	if cfg.RateLimit.RequestsPerWindow != 100 {
		t.Errorf("RateLimit.RequestsPerWindow = %d, want 100", cfg.RateLimit.RequestsPerWindow)
	}
	if cfg.RateLimit.WindowSeconds != 60 {
		t.Errorf("RateLimit.WindowSeconds = %d, want 60", cfg.RateLimit.WindowSeconds)
	}
	if got := cfg.Auth.ExemptPaths; len(got) != 2 || got[0] != "/health" || got[1] != "/metrics" {
		t.Errorf("Auth.ExemptPaths = %v, want [/health /metrics]", got)
	}
	if cfg.Tools.DefaultTimeout != 30 {
		t.Errorf("Tools.DefaultTimeout = %d, want 30", cfg.Tools.DefaultTimeout)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: 9000
auth:
  require: true
  keys:
    - abc123
rate_limit:
  requests_per_window: 5
  window_seconds: 10
storage:
  type: sqlite
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if !cfg.Auth.Require {
		t.Error("Auth.Require = false, want true")
	}
	if len(cfg.Auth.Keys) != 1 || cfg.Auth.Keys[0] != "abc123" {
		t.Errorf("Auth.Keys = %v, want [abc123]", cfg.Auth.Keys)
	}
	if cfg.RateLimit.RequestsPerWindow != 5 {
		t.Errorf("RateLimit.RequestsPerWindow = %d, want 5", cfg.RateLimit.RequestsPerWindow)
	}
	if cfg.Storage.SQLite.Path == "" {
		t.Error("expected default sqlite path to be filled in")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("NETOPSD_SERVER__PORT", "7777")
	t.Setenv("NETOPSD_SERVER__REQUEST_TIMEOUT", "42")
	t.Setenv("NETOPSD_RATE_LIMIT__REQUESTS_PER_WINDOW", "7")
	t.Setenv("NETOPSD_TOOLS__ALLOW_PRIVATE", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 from env", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 42 {
		t.Errorf("Server.RequestTimeout = %d, want 42 from env", cfg.Server.RequestTimeout)
	}
	if cfg.RateLimit.RequestsPerWindow != 7 {
		t.Errorf("RateLimit.RequestsPerWindow = %d, want 7 from env", cfg.RateLimit.RequestsPerWindow)
	}
	if !cfg.Tools.AllowPrivate {
		t.Error("Tools.AllowPrivate = false, want true from env")
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		yaml string
	}{
		{"auth required without keys", "auth:\n  require: true\n"},
		{"bad storage type", "storage:\n  type: cassandra\n"},
		{"negative window", "rate_limit:\n  window_seconds: -5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}
