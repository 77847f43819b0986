package httptools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/netopsd/netopsd/internal/testutil"
	"github.com/netopsd/netopsd/internal/tools"
	"github.com/netopsd/netopsd/internal/validate"
)

func checkEnv(client *http.Client) tools.Env {
	return tools.Env{
		Runner:     tools.NewRunner(nil, nil),
		Logger:     slog.Default(),
		HTTPClient: client,
	}
}

func TestHTTPCheck_Replayed(t *testing.T) {
	rec, cleanup := testutil.NewVCRRecorder(t, "http_check")
	defer cleanup()

	tool := &httpCheckTool{env: checkEnv(testutil.VCRHTTPClient(rec))}

	out, err := tool.Run(context.Background(),
		json.RawMessage(`{"url": "https://status.example.com/health"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp := out.(*httpCheckResponse)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if !resp.Passed {
		t.Error("Passed = false for matching status")
	}
	if resp.BodyBytes == 0 {
		t.Error("BodyBytes = 0, want body length")
	}
}

func TestHTTPCheck_StatusMismatch(t *testing.T) {
	rec, cleanup := testutil.NewVCRRecorder(t, "http_check")
	defer cleanup()

	tool := &httpCheckTool{env: checkEnv(testutil.VCRHTTPClient(rec))}

	out, err := tool.Run(context.Background(),
		json.RawMessage(`{"url": "https://status.example.com/missing", "expected_status": 200}`))
	if err != nil {
		t.Fatal(err)
	}
	resp := out.(*httpCheckResponse)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
	if resp.Passed {
		t.Error("Passed = true for status mismatch")
	}
}

func TestHTTPCheck_LiveServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "netopsd" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tool := &httpCheckTool{env: checkEnv(srv.Client())}

	args, _ := json.Marshal(map[string]any{
		"url":             srv.URL,
		"expected_status": 204,
		"headers":         map[string]string{"X-Probe": "netopsd"},
	})
	out, err := tool.Run(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	resp := out.(*httpCheckResponse)
	if !resp.Passed {
		t.Errorf("Passed = false, got status %d", resp.StatusCode)
	}
	if resp.LatencyMS <= 0 {
		t.Errorf("LatencyMS = %v, want > 0", resp.LatencyMS)
	}
}

func TestHTTPCheck_ConnectionError(t *testing.T) {
	// A server that is immediately closed leaves a refusing port.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tool := &httpCheckTool{env: checkEnv(&http.Client{})}

	out, err := tool.Run(context.Background(),
		json.RawMessage(`{"url": "`+url+`", "timeout": 2}`))
	if err != nil {
		t.Fatal(err)
	}
	resp := out.(*httpCheckResponse)
	if resp.Passed {
		t.Error("Passed = true for unreachable server")
	}
	if resp.Error == "" {
		t.Error("Error is empty for unreachable server")
	}
}

func TestValidation(t *testing.T) {
	httpTool := &httpCheckTool{env: checkEnv(&http.Client{})}
	curl := &curlTool{env: checkEnv(&http.Client{})}

	cases := []struct {
		name string
		tool tools.Tool
		args string
	}{
		{"curl bad scheme", curl, `{"url": "ftp://example.com/file"}`},
		{"curl bad method", curl, `{"url": "https://example.com", "method": "TRACE"}`},
		{"curl header injection", curl, `{"url": "https://example.com", "headers": {"X-Evil": "a\r\nInjected: yes"}}`},
		{"check empty url", httpTool, `{}`},
		{"check bad expected status", httpTool, `{"url": "https://example.com", "expected_status": 42}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.tool.Run(context.Background(), json.RawMessage(tc.args))
			var verr *validate.Error
			if !errors.As(err, &verr) {
				t.Errorf("err = %v, want validate.Error", err)
			}
		})
	}
}
