package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/netopsd/netopsd/internal/auth"
	"github.com/netopsd/netopsd/internal/config"
	"github.com/netopsd/netopsd/internal/metrics"
	"github.com/netopsd/netopsd/internal/ratelimit"
	"github.com/netopsd/netopsd/internal/storage"
	"github.com/netopsd/netopsd/internal/tools"
)

// Server owns the HTTP routing surface. Lifecycle (listening, shutdown,
// background sweepers) belongs to the runtime package.
type Server struct {
	Router *chi.Mux
	logger *slog.Logger
}

// Deps carries everything the router needs. Store may be nil when execution
// history is disabled.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Collector *metrics.Collector
	Keys      *auth.Store
	Limiter   ratelimit.Store
	Tools     map[string]tools.Tool
	Defs      []tools.Definition
	Store     storage.ExecutionStore
}

// New builds the router with the full middleware chain. Auth runs strictly
// before rate limiting so authenticated clients bucket per key; the metrics
// middleware wraps both so every rejection is still counted once.
func New(deps Deps) *Server {
	cfg := deps.Config
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(deps.Logger))
	r.Use(MetricsMiddleware(deps.Collector, config.DefaultExemptPaths))
	r.Use(middleware.Recoverer)
	r.Use(AuthMiddleware(deps.Keys, cfg.Auth, deps.Collector, deps.Logger))
	r.Use(RateLimitMiddleware(deps.Limiter, cfg.RateLimit, deps.Collector, deps.Logger))
	r.Use(TimeoutMiddleware(time.Duration(cfg.Server.RequestTimeout) * time.Second))
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "netopsd")
	})

	h := &handlers{
		logger:    deps.Logger,
		tools:     deps.Tools,
		defs:      deps.Defs,
		execStore: deps.Store,
		started:   time.Now(),
	}

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", deps.Collector.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tools", h.listTools)
		r.Post("/tools/{name}", h.dispatch)
		r.Get("/executions", h.listExecutions)
	})

	return &Server{Router: r, logger: deps.Logger}
}
