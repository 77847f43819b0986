package server

import (
	"log/slog"
	"net/http"

	"github.com/netopsd/netopsd/internal/auth"
	"github.com/netopsd/netopsd/internal/config"
	"github.com/netopsd/netopsd/internal/metrics"
)

const wwwAuthenticate = `Bearer realm="netopsd"`

// AuthMiddleware enforces API-key authentication. Exempt paths pass through
// untouched; when require is off, requests pass but carry no identity and
// rate-limit per source address.
func AuthMiddleware(store *auth.Store, cfg config.AuthConfig, collector *metrics.Collector, logger *slog.Logger) func(http.Handler) http.Handler {
	exempt := exemptSet(cfg.ExemptPaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if !cfg.Require {
				next.ServeHTTP(w, r)
				return
			}

			credential, ok := auth.ExtractCredential(r)
			if !ok {
				collector.RecordAuthAttempt(false)
				logger.Warn("missing credentials",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr))
				w.Header().Set("WWW-Authenticate", wwwAuthenticate)
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
				return
			}

			if !store.Validate(credential) {
				collector.RecordAuthAttempt(false)
				logger.Warn("invalid credentials",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr))
				writeError(w, http.StatusForbidden, "forbidden", "Invalid API key")
				return
			}

			collector.RecordAuthAttempt(true)

			id := auth.Identity{Authenticated: true, DigestPrefix: auth.DigestPrefix(credential)}
			ctx := auth.WithIdentity(r.Context(), id)
			AddLogField(ctx, "client", id.DigestPrefix)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
