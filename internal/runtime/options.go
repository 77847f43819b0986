package runtime

import (
	"fmt"
	"log/slog"

	"github.com/netopsd/netopsd/internal/config"
	"github.com/netopsd/netopsd/internal/metrics"
	"github.com/netopsd/netopsd/internal/ratelimit"
	"github.com/netopsd/netopsd/internal/storage"
	"github.com/netopsd/netopsd/internal/storage/memory"
	"github.com/netopsd/netopsd/internal/storage/sqlite"
)

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithConfigFile loads configuration from a YAML file at Start, with
// NETOPSD_ environment overrides (default when no config option is given).
func WithConfigFile(path string) Option {
	return func(s *Service) error {
		s.configPath = path
		return nil
	}
}

// WithConfig uses an already-built configuration. Mostly useful for tests
// and embedders that manage configuration themselves.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) error {
		s.cfg = cfg
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithCollector injects a metrics collector, letting embedders scrape the
// service registry alongside their own.
func WithCollector(collector *metrics.Collector) Option {
	return func(s *Service) error {
		s.collector = collector
		return nil
	}
}

// WithSQLite records execution history in a SQLite database at path,
// overriding the storage section of the config.
func WithSQLite(path string) Option {
	return func(s *Service) error {
		store, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite store: %w", err)
		}
		s.store = store
		return nil
	}
}

// WithMemoryStore records execution history in process memory.
func WithMemoryStore() Option {
	return func(s *Service) error {
		s.store = memory.New()
		return nil
	}
}

// WithExecutionStore injects a custom execution store.
func WithExecutionStore(store storage.ExecutionStore) Option {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// WithRedisRateLimit shares the rate-limit window across instances through
// Redis, overriding the redis_url config field.
func WithRedisRateLimit(redisURL string) Option {
	return func(s *Service) error {
		s.redisURL = redisURL
		return nil
	}
}

// WithRateLimitStore injects a custom window store.
func WithRateLimitStore(store ratelimit.Store) Option {
	return func(s *Service) error {
		s.limiter = store
		return nil
	}
}
