// Package auth implements the API-key credential store and request
// credential extraction for netopsd.
//
// Keys are configured either as plaintext or as precomputed SHA-256 hex
// digests. Validation accepts a presented credential in either form: the
// plaintext token as issued, or its digest.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
)

// DigestPrefixLen is the number of hex characters of the credential digest
// retained as the client identity. Short on purpose: it is a bucketing key,
// not a security boundary.
const DigestPrefixLen = 8

// Store is an immutable set of accepted credentials, established at startup.
type Store struct {
	plain   map[string]struct{}
	digests map[string]struct{}
}

// NewStore builds a credential store from plaintext keys and pre-hashed keys.
// The digest of every plaintext key is computed and stored so that clients
// may present either representation.
func NewStore(keys, keyHashes []string) *Store {
	s := &Store{
		plain:   make(map[string]struct{}, len(keys)),
		digests: make(map[string]struct{}, len(keys)+len(keyHashes)),
	}
	for _, k := range keys {
		s.plain[k] = struct{}{}
		s.digests[HashKey(k)] = struct{}{}
	}
	for _, h := range keyHashes {
		s.digests[strings.ToLower(h)] = struct{}{}
	}
	return s
}

// Len returns the number of distinct stored digests.
func (s *Store) Len() int {
	return len(s.digests)
}

// Validate reports whether the presented credential matches any stored key,
// either as plaintext or as a digest. The digest comparison is constant-time
// per candidate.
func (s *Store) Validate(credential string) bool {
	if _, ok := s.plain[credential]; ok {
		return true
	}

	// The credential may itself be a digest, or a plaintext whose digest we
	// hold. Check both interpretations.
	candidates := []string{strings.ToLower(credential), HashKey(credential)}
	valid := false
	for stored := range s.digests {
		for _, c := range candidates {
			if subtle.ConstantTimeCompare([]byte(stored), []byte(c)) == 1 {
				valid = true
			}
		}
	}
	return valid
}

// HashKey returns the SHA-256 hex digest of an API key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DigestPrefix returns the truncated digest of a credential used as the
// client identity. If the credential already looks like a full digest, it is
// truncated directly so plaintext and digest presentations map to the same
// identity.
func DigestPrefix(credential string) string {
	if len(credential) == sha256.Size*2 && isHex(credential) {
		return strings.ToLower(credential[:DigestPrefixLen])
	}
	return HashKey(credential)[:DigestPrefixLen]
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// ExtractCredential pulls an API key from the request headers, in precedence
// order: Authorization Bearer token, then X-API-Key, then API-Key.
func ExtractCredential(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer "), true
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k, true
	}
	if k := r.Header.Get("API-Key"); k != "" {
		return k, true
	}
	return "", false
}

// GenerateKey returns a new high-entropy API key, URL-safe base64 encoded.
func GenerateKey(bytes int) (string, error) {
	if bytes <= 0 {
		bytes = 32
	}
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
