package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/netopsd/netopsd/internal/auth"
	"github.com/netopsd/netopsd/internal/config"
	"github.com/netopsd/netopsd/internal/metrics"
	"github.com/netopsd/netopsd/internal/ratelimit"
)

// RateLimitMiddleware enforces the sliding-window limit per client identity.
// It must run after AuthMiddleware so authenticated requests bucket by key
// digest instead of source address. A store error admits the request: a
// broken limiter backend should degrade service quality, not availability.
func RateLimitMiddleware(store ratelimit.Store, cfg config.RateLimitConfig, collector *metrics.Collector, logger *slog.Logger) func(http.Handler) http.Handler {
	exempt := exemptSet(cfg.ExemptPaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			identity := auth.ClientID(r)
			decision, err := store.Allow(r.Context(), identity)
			if err != nil {
				logger.Error("rate limit evaluation failed",
					slog.String("identity", identity),
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			// Whole seconds, truncated toward zero.
			retrySecs := int(decision.RetryAfter.Seconds())
			reset := time.Now().Add(decision.RetryAfter).Unix()

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

			if !decision.Allowed {
				collector.RecordRateLimitHit()
				logger.Warn("rate limit exceeded",
					slog.String("identity", identity),
					slog.String("path", r.URL.Path),
					slog.Int("retry_after", retrySecs))
				w.Header().Set("Retry-After", strconv.Itoa(retrySecs))
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests, slow down",
					RetryAfter: retrySecs,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
