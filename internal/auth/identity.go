package auth

import (
	"context"
	"net"
	"net/http"
)

type identityKey struct{}

// Identity is the request-scoped authentication annotation written by the
// auth middleware and consumed by the rate limiter and audit logging.
type Identity struct {
	Authenticated bool
	// DigestPrefix is the first DigestPrefixLen hex chars of the credential
	// digest. Empty when unauthenticated.
	DigestPrefix string
}

// WithIdentity annotates the context with an authenticated identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity annotation, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// ClientID derives the rate-limiter bucket key for a request: the credential
// digest prefix when authenticated, otherwise the peer address. Authenticated
// clients are therefore limited per key regardless of source address, while
// unauthenticated clients share a bucket per address.
func ClientID(r *http.Request) string {
	if id, ok := IdentityFrom(r.Context()); ok && id.Authenticated {
		return "key:" + id.DigestPrefix
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}
