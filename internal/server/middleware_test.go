package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/netopsd/netopsd/internal/auth"
	"github.com/netopsd/netopsd/internal/config"
	"github.com/netopsd/netopsd/internal/metrics"
	"github.com/netopsd/netopsd/internal/ratelimit"
	"github.com/netopsd/netopsd/internal/storage/memory"
	"github.com/netopsd/netopsd/internal/tools"
	"github.com/netopsd/netopsd/internal/validate"
)

const (
	testKey      = "test-key-0123456789"
	otherTestKey = "other-key-9876543210"
)

// echoTool succeeds and reports a subprocess-style envelope.
type echoTool struct{}

func (echoTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	return map[string]any{
		"result": &tools.ExecResult{Success: true, Stdout: "ok", Command: "echo ok"},
	}, nil
}

// strictTool rejects every argument payload.
type strictTool struct{}

func (strictTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	return nil, validate.Errorf("host contains invalid characters")
}

// panicTool simulates a handler bug.
type panicTool struct{}

func (panicTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	panic("tool exploded")
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8815, RequestTimeout: 30},
		Auth: config.AuthConfig{
			Require:     true,
			Keys:        []string{testKey, otherTestKey},
			ExemptPaths: config.DefaultExemptPaths,
		},
		RateLimit: config.RateLimitConfig{
			RequestsPerWindow: 100,
			WindowSeconds:     60,
			ExemptPaths:       config.DefaultExemptPaths,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *metrics.Collector) {
	t.Helper()

	collector := metrics.NewCollector()
	srv := New(Deps{
		Config:    cfg,
		Logger:    slog.New(slog.DiscardHandler),
		Collector: collector,
		Keys:      auth.NewStore(cfg.Auth.Keys, cfg.Auth.KeyHashes),
		Limiter:   ratelimit.NewLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window()),
		Tools: map[string]tools.Tool{
			"echo":   echoTool{},
			"strict": strictTool{},
			"boom":   panicTool{},
		},
		Defs: []tools.Definition{
			{Name: "echo", Description: "echo test tool"},
			{Name: "strict", Description: "always rejects"},
		},
		Store: memory.New(),
	})
	return srv, collector
}

func do(srv *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func checkHeader(t *testing.T, rec *httptest.ResponseRecorder, name, want string) {
	t.Helper()
	if got := rec.Header().Get(name); got != want {
		t.Errorf("header %s = %q, want %q", name, got, want)
	}
}

func bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

func TestExemptPaths_BypassAuth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(srv, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}

	rec = do(srv, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "# HELP") {
		t.Error("metrics output missing # HELP lines")
	}
}

func TestAuth_MissingCredential(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(srv, "POST", "/v1/tools/echo", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	checkHeader(t, rec, "WWW-Authenticate", `Bearer realm="netopsd"`)
	checkHeader(t, rec, "Content-Type", "application/json")

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Error != "unauthorized" {
		t.Errorf("error = %q, want unauthorized", body.Error)
	}
}

func TestAuth_InvalidCredential(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(srv, "POST", "/v1/tools/echo", bearer("wrong-key"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var body errorBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "forbidden" {
		t.Errorf("error = %q, want forbidden", body.Error)
	}
}

func TestAuth_ValidKeyForms(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
	}{
		{"bearer", bearer(testKey)},
		{"x-api-key", map[string]string{"X-API-Key": testKey}},
		{"api-key", map[string]string{"API-Key": testKey}},
		{"pre-hashed digest", bearer(auth.HashKey(testKey))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, testConfig())
			rec := do(srv, "POST", "/v1/tools/echo", tc.header)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuth_BearerTakesPrecedence(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	// A valid X-API-Key must not rescue a garbage Authorization header.
	rec := do(srv, "POST", "/v1/tools/echo", map[string]string{
		"Authorization": "Bearer not-a-real-key",
		"X-API-Key":     testKey,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAuth_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Require = false
	srv, _ := newTestServer(t, cfg)

	rec := do(srv, "POST", "/v1/tools/echo", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestRateLimit_HeadersOnAdmission(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(srv, "POST", "/v1/tools/echo", bearer(testKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	checkHeader(t, rec, "X-RateLimit-Limit", "100")
	checkHeader(t, rec, "X-RateLimit-Remaining", "99")
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset not set")
	}
}

func TestRateLimit_Exceeded(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerWindow = 3
	srv, _ := newTestServer(t, cfg)

	for i := 0; i < 3; i++ {
		rec := do(srv, "POST", "/v1/tools/echo", bearer(testKey))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := do(srv, "POST", "/v1/tools/echo", bearer(testKey))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	checkHeader(t, rec, "X-RateLimit-Remaining", "0")

	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After = %q, want integer", rec.Header().Get("Retry-After"))
	}
	if retry < 1 || retry > 60 {
		t.Errorf("Retry-After = %d, want within (0, 60]", retry)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Error != "rate_limit_exceeded" {
		t.Errorf("error = %q, want rate_limit_exceeded", body.Error)
	}
	if body.RetryAfter != retry {
		t.Errorf("body retry_after = %d, header Retry-After = %d", body.RetryAfter, retry)
	}

	// Rejections must not extend the window.
	rec = do(srv, "POST", "/v1/tools/echo", bearer(testKey))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("repeat status = %d, want 429", rec.Code)
	}
}

// fixedDecisionStore returns the same decision for every request.
type fixedDecisionStore struct{ d ratelimit.Decision }

func (s fixedDecisionStore) Allow(context.Context, string) (ratelimit.Decision, error) {
	return s.d, nil
}

func TestRateLimit_RetryAfterTruncatesToWholeSeconds(t *testing.T) {
	store := fixedDecisionStore{d: ratelimit.Decision{
		Allowed:    false,
		Limit:      3,
		Remaining:  0,
		RetryAfter: 42*time.Second + 900*time.Millisecond,
	}}
	mw := RateLimitMiddleware(store, config.RateLimitConfig{}, metrics.NewCollector(), slog.New(slog.DiscardHandler))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("rejected request reached handler")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/tools/echo", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	checkHeader(t, rec, "Retry-After", "42")

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.RetryAfter != 42 {
		t.Errorf("body retry_after = %d, want 42", body.RetryAfter)
	}
}

func TestRateLimit_SeparateBucketsPerKey(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerWindow = 1
	srv, _ := newTestServer(t, cfg)

	if rec := do(srv, "POST", "/v1/tools/echo", bearer(testKey)); rec.Code != http.StatusOK {
		t.Fatalf("first key: status = %d, want 200", rec.Code)
	}
	if rec := do(srv, "POST", "/v1/tools/echo", bearer(testKey)); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first key again: status = %d, want 429", rec.Code)
	}
	// A different key has its own window.
	if rec := do(srv, "POST", "/v1/tools/echo", bearer(otherTestKey)); rec.Code != http.StatusOK {
		t.Errorf("second key: status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_ExemptPathsNotCounted(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerWindow = 1
	srv, _ := newTestServer(t, cfg)

	for i := 0; i < 5; i++ {
		if rec := do(srv, "GET", "/health", nil); rec.Code != http.StatusOK {
			t.Fatalf("health %d: status = %d", i, rec.Code)
		}
	}
	// The real budget is untouched.
	if rec := do(srv, "POST", "/v1/tools/echo", bearer(testKey)); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 after exempt traffic", rec.Code)
	}
}

func TestMetrics_RecordsRequests(t *testing.T) {
	srv, collector := newTestServer(t, testConfig())

	for i := 0; i < 3; i++ {
		do(srv, "POST", "/v1/tools/echo", bearer(testKey))
	}

	out, err := collector.Export()
	if err != nil {
		t.Fatal(err)
	}
	want := `http_requests_total{method="POST",path="/v1/tools/{name}",status="200"} 3`
	if !strings.Contains(out, want) {
		t.Errorf("export missing %q:\n%s", want, out)
	}
	if !strings.Contains(out, `auth_attempts_total 3`) {
		t.Errorf("export missing auth attempts:\n%s", out)
	}
}

func TestMetrics_ScrapeNotSelfCounted(t *testing.T) {
	srv, collector := newTestServer(t, testConfig())

	do(srv, "GET", "/metrics", nil)
	do(srv, "GET", "/health", nil)

	out, err := collector.Export()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, `path="/metrics"`) || strings.Contains(out, `path="/health"`) {
		t.Errorf("exempt endpoints leaked into request metrics:\n%s", out)
	}
}

func TestRecoverer_PanicRestoresGauge(t *testing.T) {
	srv, collector := newTestServer(t, testConfig())

	rec := do(srv, "POST", "/v1/tools/boom", bearer(testKey))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	out, err := collector.Export()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "http_requests_in_progress 0") {
		t.Errorf("in-progress gauge not restored after panic:\n%s", out)
	}
}

func TestRequestID_Set(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(srv, "GET", "/health", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestTimeoutMiddleware_CancelsContext(t *testing.T) {
	var sawDeadline bool
	handler := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawDeadline = r.Context().Deadline()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if !sawDeadline {
		t.Error("request context has no deadline")
	}
}
