// Package validate sanitizes tool inputs before they are placed on a
// command line. Everything here rejects rather than rewrites: a value either
// passes as-is or the request fails with a client error.
package validate

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Error marks a validation failure so the HTTP layer can map it to a 400
// instead of a 500.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

// Errorf builds a validation error.
func Errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

var (
	// Shell metacharacters that must never reach an argv element built from
	// user input.
	dangerousChars = regexp.MustCompile("[;&|`$(){}<>\n\r\\s]")

	hostnameLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

	recordTypes = map[string]struct{}{
		"A": {}, "AAAA": {}, "CNAME": {}, "MX": {}, "NS": {}, "PTR": {},
		"SOA": {}, "SRV": {}, "TXT": {}, "CAA": {}, "ANY": {},
	}

	portRange = regexp.MustCompile(`^\d{1,5}(-\d{1,5})?$`)
)

// Hostname validates a hostname or IP address literal.
func Hostname(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return Errorf("host must be a non-empty string")
	}
	if len(host) > 253 {
		return Errorf("host too long (max 253 characters)")
	}
	if dangerousChars.MatchString(host) {
		return Errorf("host contains invalid characters")
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if !hostnameLabel.MatchString(label) {
			return Errorf("invalid hostname: %q", host)
		}
	}
	return nil
}

// IP validates an IPv4 or IPv6 address literal.
func IP(addr string) error {
	addr = strings.TrimSpace(addr)
	if net.ParseIP(addr) == nil {
		return Errorf("invalid IP address: %q", addr)
	}
	return nil
}

// Port validates a TCP/UDP port number.
func Port(port int) error {
	if port < 1 || port > 65535 {
		return Errorf("port %d out of range 1-65535", port)
	}
	return nil
}

// PortSpec validates an nmap-style port list: "80", "80,443", "8000-8100",
// or combinations thereof.
func PortSpec(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Errorf("port specification must be non-empty")
	}
	for _, part := range strings.Split(spec, ",") {
		if !portRange.MatchString(part) {
			return Errorf("invalid port specification: %q", part)
		}
	}
	return nil
}

// RecordType validates a DNS record type.
func RecordType(rt string) error {
	if _, ok := recordTypes[strings.ToUpper(rt)]; !ok {
		return Errorf("unsupported DNS record type: %q", rt)
	}
	return nil
}

// URL validates an absolute http(s) URL.
func URL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Errorf("url must be a non-empty string")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return Errorf("url missing host")
	}
	return nil
}

// Count bounds a repetition parameter such as ping packet count.
func Count(n, max int) error {
	if n < 1 || n > max {
		return Errorf("count %d out of range 1-%d", n, max)
	}
	return nil
}
