package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/netopsd/netopsd/internal/metrics"
)

// MetricsMiddleware records request counts, duration, and the in-progress
// gauge. Exempt paths (the health and scrape endpoints) would otherwise
// dominate the series. The gauge decrement is deferred so it survives
// handler panics.
func MetricsMiddleware(collector *metrics.Collector, exemptPaths []string) func(http.Handler) http.Handler {
	exempt := exemptSet(exemptPaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			collector.IncRequestsInProgress()
			defer collector.DecRequestsInProgress()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(wrapped, r)

			// The route pattern keeps label cardinality bounded; raw paths
			// would mint a series per tool argument combination.
			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			collector.RecordHTTPRequest(r.Method, path, wrapped.statusCode, time.Since(start))
		})
	}
}
