// Package safehttp builds HTTP clients whose dialer refuses private,
// loopback, and link-local targets, so an HTTP probe tool cannot be steered
// at internal infrastructure.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// SafeTransport rejects connections to private or loopback IP ranges to reduce SSRF risk.
var SafeTransport = &http.Transport{
	DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialer := &net.Dialer{Timeout: 5 * time.Second}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		ip := net.ParseIP(host)
		if ip == nil {
			conn.Close()
			return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
		}

		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			conn.Close()
			return nil, fmt.Errorf("access to private IP %s is denied", ip)
		}

		return conn, nil
	},
}

// Client returns an HTTP client with the given overall timeout. When
// allowPrivate is false the client uses SafeTransport; lab deployments that
// need to probe RFC1918 targets set allow_private in config.
func Client(timeout time.Duration, allowPrivate bool) *http.Client {
	c := &http.Client{Timeout: timeout}
	if !allowPrivate {
		c.Transport = SafeTransport
	}
	return c
}
