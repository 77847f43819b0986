package auth

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestStore_ValidatePlaintext(t *testing.T) {
	store := NewStore([]string{"abc123"}, nil)

	if !store.Validate("abc123") {
		t.Error("Validate(abc123) = false, want true")
	}
	if store.Validate("wrong") {
		t.Error("Validate(wrong) = true, want false")
	}
}

func TestStore_DigestEquivalence(t *testing.T) {
	// Presenting the plaintext key and presenting its SHA-256 hex digest
	// must both validate against a store configured with the plaintext key.
	store := NewStore([]string{"abc123"}, nil)

	digest := HashKey("abc123")
	if !store.Validate(digest) {
		t.Errorf("Validate(%s) = false, want true", digest)
	}
}

func TestStore_PreHashedKeys(t *testing.T) {
	digest := HashKey("topsecret")
	store := NewStore(nil, []string{digest})

	if !store.Validate("topsecret") {
		t.Error("Validate(plaintext) = false, want true for pre-hashed store")
	}
	if !store.Validate(digest) {
		t.Error("Validate(digest) = false, want true for pre-hashed store")
	}
	if store.Validate("topsecret2") {
		t.Error("Validate(topsecret2) = true, want false")
	}
}

func TestExtractCredential_Precedence(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
		found   bool
	}{
		{
			name: "bearer wins over x-api-key",
			headers: map[string]string{
				"Authorization": "Bearer from-bearer",
				"X-API-Key":     "from-x-api-key",
			},
			want:  "from-bearer",
			found: true,
		},
		{
			name: "x-api-key wins over api-key",
			headers: map[string]string{
				"X-API-Key": "from-x-api-key",
				"API-Key":   "from-api-key",
			},
			want:  "from-x-api-key",
			found: true,
		},
		{
			name:    "api-key alone",
			headers: map[string]string{"API-Key": "from-api-key"},
			want:    "from-api-key",
			found:   true,
		},
		{
			name:    "non-bearer authorization ignored",
			headers: map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
			found:   false,
		},
		{
			name:    "no headers",
			headers: nil,
			found:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/tools/ping", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			got, found := ExtractCredential(req)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if got != tt.want {
				t.Errorf("credential = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDigestPrefix_SameIdentityForBothForms(t *testing.T) {
	plain := DigestPrefix("abc123")
	hashed := DigestPrefix(HashKey("abc123"))

	if plain != hashed {
		t.Errorf("DigestPrefix mismatch: plaintext %s vs digest %s", plain, hashed)
	}
	if len(plain) != DigestPrefixLen {
		t.Errorf("len = %d, want %d", len(plain), DigestPrefixLen)
	}
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/tools", nil)
	req.RemoteAddr = "1.2.3.4:5678"

	if got := ClientID(req); got != "ip:1.2.3.4" {
		t.Errorf("ClientID = %q, want ip:1.2.3.4", got)
	}

	ctx := WithIdentity(context.Background(), Identity{Authenticated: true, DigestPrefix: "deadbeef"})
	req = req.WithContext(ctx)
	if got := ClientID(req); got != "key:deadbeef" {
		t.Errorf("ClientID = %q, want key:deadbeef", got)
	}

	req = httptest.NewRequest("GET", "/v1/tools", nil)
	req.RemoteAddr = ""
	if got := ClientID(req); got != "ip:unknown" {
		t.Errorf("ClientID = %q, want ip:unknown", got)
	}
}

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey(32)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	k2, err := GenerateKey(32)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if k1 == k2 {
		t.Error("GenerateKey produced identical keys")
	}
	if len(k1) < 32 {
		t.Errorf("key too short: %d", len(k1))
	}
}
