// Package config loads netopsd configuration from a YAML file with
// environment variable overrides (NETOPSD_ prefix).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Tools     ToolsConfig     `koanf:"tools"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	RequestTimeout int    `koanf:"request_timeout"` // seconds
}

// AuthConfig holds the credential store configuration. Keys may be supplied
// as plaintext (keys) or as precomputed SHA-256 hex digests (key_hashes);
// clients may present either form.
type AuthConfig struct {
	Require     bool     `koanf:"require"`
	Keys        []string `koanf:"keys"`
	KeyHashes   []string `koanf:"key_hashes"`
	ExemptPaths []string `koanf:"exempt_paths"`
}

type RateLimitConfig struct {
	RequestsPerWindow int      `koanf:"requests_per_window"`
	WindowSeconds     int      `koanf:"window_seconds"`
	ExemptPaths       []string `koanf:"exempt_paths"`
	SweepInterval     int      `koanf:"sweep_interval"` // seconds, 0 disables the sweeper
	RedisURL          string   `koanf:"redis_url"`      // optional distributed window store
}

type ToolsConfig struct {
	DefaultTimeout    int  `koanf:"default_timeout"` // seconds
	PingCount         int  `koanf:"ping_count"`
	TracerouteMaxHops int  `koanf:"traceroute_max_hops"`
	NmapScanTimeout   int  `koanf:"nmap_scan_timeout"` // seconds
	AllowPrivate      bool `koanf:"allow_private"`     // allow http_check against private/loopback targets
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// DefaultExemptPaths are excluded from authentication and rate limiting
// unless overridden in config.
var DefaultExemptPaths = []string{"/health", "/metrics"}

// Load reads configuration from an optional YAML file, applies NETOPSD_
// environment overrides, then fills in defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	// Double underscore separates key segments so multi-word keys stay
	// addressable: NETOPSD_SERVER__PORT -> server.port,
	// NETOPSD_RATE_LIMIT__REQUESTS_PER_WINDOW -> rate_limit.requests_per_window.
	if err := k.Load(env.Provider("NETOPSD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "NETOPSD_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8815
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 300
	}
	if len(c.Auth.ExemptPaths) == 0 {
		c.Auth.ExemptPaths = DefaultExemptPaths
	}
	if c.RateLimit.RequestsPerWindow == 0 {
		c.RateLimit.RequestsPerWindow = 100
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if len(c.RateLimit.ExemptPaths) == 0 {
		c.RateLimit.ExemptPaths = DefaultExemptPaths
	}
	if c.RateLimit.SweepInterval == 0 {
		c.RateLimit.SweepInterval = 300
	}
	if c.Tools.DefaultTimeout == 0 {
		c.Tools.DefaultTimeout = 30
	}
	if c.Tools.PingCount == 0 {
		c.Tools.PingCount = 4
	}
	if c.Tools.TracerouteMaxHops == 0 {
		c.Tools.TracerouteMaxHops = 30
	}
	if c.Tools.NmapScanTimeout == 0 {
		c.Tools.NmapScanTimeout = 300
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Storage.Type == "sqlite" && c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "./data/netopsd.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.RateLimit.RequestsPerWindow < 1 {
		return fmt.Errorf("rate_limit.requests_per_window must be positive")
	}
	if c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("rate_limit.window_seconds must be positive")
	}
	if c.Auth.Require && len(c.Auth.Keys) == 0 && len(c.Auth.KeyHashes) == 0 {
		return fmt.Errorf("auth.require is set but no keys or key_hashes configured")
	}
	switch c.Storage.Type {
	case "sqlite", "memory", "none":
	default:
		return fmt.Errorf("storage.type %q not supported (sqlite, memory, none)", c.Storage.Type)
	}
	return nil
}

// Window returns the rate-limit window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}
