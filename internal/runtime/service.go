// Package runtime assembles and runs the netopsd service: configuration,
// credential store, rate limiter, metrics, tool registry, and the HTTP
// server lifecycle. It can be embedded in larger applications or run
// standalone via cmd/netopsd.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/netopsd/netopsd/internal/auth"
	"github.com/netopsd/netopsd/internal/config"
	"github.com/netopsd/netopsd/internal/metrics"
	"github.com/netopsd/netopsd/internal/pkg/safehttp"
	"github.com/netopsd/netopsd/internal/ratelimit"
	_ "github.com/netopsd/netopsd/internal/registration"
	"github.com/netopsd/netopsd/internal/server"
	"github.com/netopsd/netopsd/internal/storage"
	"github.com/netopsd/netopsd/internal/storage/memory"
	"github.com/netopsd/netopsd/internal/storage/sqlite"
	"github.com/netopsd/netopsd/internal/tools"
)

// Service is the composition root for netopsd.
type Service struct {
	// Injected via options.
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	collector  *metrics.Collector
	store      storage.ExecutionStore
	limiter    ratelimit.Store
	redisURL   string

	// Built at Start.
	redisStore *ratelimit.RedisStore
	httpServer *http.Server
	listener   net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// New creates a Service with the given options. Without options it loads
// config from the environment only, limits in memory, and keeps no
// execution history unless the config asks for it.
func New(opts ...Option) (*Service, error) {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	return s, nil
}

// Start builds the stack and begins serving. It returns once the listener
// is accepting; serving continues in the background until Shutdown.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.cfg == nil {
		cfg, err := config.Load(s.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		s.cfg = cfg
	}
	cfg := s.cfg

	if s.collector == nil {
		s.collector = metrics.NewCollector()
	}

	keys := auth.NewStore(cfg.Auth.Keys, cfg.Auth.KeyHashes)
	if cfg.Auth.Require && keys.Len() == 0 {
		return errors.New("auth required but no API keys configured")
	}

	if err := s.buildLimiter(cfg); err != nil {
		return err
	}
	if err := s.buildStore(cfg); err != nil {
		return err
	}

	toolTimeout := time.Duration(cfg.Tools.DefaultTimeout) * time.Second
	env := tools.Env{
		Runner:     tools.NewRunner(s.logger, s.collector),
		Config:     cfg.Tools,
		Logger:     s.logger,
		HTTPClient: safehttp.Client(toolTimeout, cfg.Tools.AllowPrivate),
	}
	defs := tools.Definitions()

	srv := server.New(server.Deps{
		Config:    cfg,
		Logger:    s.logger,
		Collector: s.collector,
		Keys:      keys,
		Limiter:   s.limiter,
		Tools:     tools.BuildAll(env),
		Defs:      defs,
		Store:     s.store,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("netopsd started",
		slog.String("addr", ln.Addr().String()),
		slog.Int("tools", len(defs)),
		slog.Bool("auth", cfg.Auth.Require))

	return nil
}

func (s *Service) buildLimiter(cfg *config.Config) error {
	if s.limiter != nil {
		return nil
	}

	redisURL := s.redisURL
	if redisURL == "" {
		redisURL = cfg.RateLimit.RedisURL
	}
	if redisURL != "" {
		store, err := ratelimit.NewRedisStore(redisURL,
			cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window(), s.logger)
		if err != nil {
			return fmt.Errorf("connect redis rate limiter: %w", err)
		}
		s.redisStore = store
		s.limiter = store
		return nil
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window())
	s.limiter = limiter
	if cfg.RateLimit.SweepInterval > 0 {
		interval := time.Duration(cfg.RateLimit.SweepInterval) * time.Second
		go limiter.RunSweeper(s.ctx, interval, s.logger)
	}
	return nil
}

func (s *Service) buildStore(cfg *config.Config) error {
	if s.store != nil {
		return nil
	}

	switch cfg.Storage.Type {
	case "sqlite":
		store, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			return fmt.Errorf("create sqlite store: %w", err)
		}
		s.store = store
	case "memory":
		s.store = memory.New()
	case "none":
		// Execution history disabled.
	}
	return nil
}

// Addr returns the bound listen address, useful when the configured port
// is 0. Empty before Start.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the HTTP server gracefully and releases the limiter and
// storage backends.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("shutting down netopsd")

	if s.cancel != nil {
		s.cancel()
	}

	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if s.redisStore != nil {
		if err := s.redisStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
