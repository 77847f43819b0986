// Package httptools provides HTTP diagnostics: a curl wrapper and a native
// endpoint probe with expected-status validation.
package httptools

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/netopsd/netopsd/internal/tools"
	"github.com/netopsd/netopsd/internal/validate"
)

func init() {
	tools.Register(tools.Definition{
		Name:        "curl_request",
		Description: "Execute an HTTP request via curl with timing statistics",
		Build:       func(env tools.Env) tools.Tool { return &curlTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "http_check",
		Description: "Probe an HTTP endpoint and validate the response status",
		Build:       func(env tools.Env) tools.Tool { return &httpCheckTool{env: env} },
	})
}

var allowedMethods = map[string]struct{}{
	"GET": {}, "HEAD": {}, "POST": {}, "PUT": {}, "PATCH": {}, "DELETE": {}, "OPTIONS": {},
}

func validMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if _, ok := allowedMethods[m]; !ok {
		return "", validate.Errorf("unsupported HTTP method: %q", method)
	}
	return m, nil
}

type curlTool struct {
	env tools.Env
}

type curlArgs struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Data    string            `json:"data,omitempty"`
	Timeout int               `json:"timeout"` // seconds
}

// CurlStats is the write-out block curl appends to stdout.
type CurlStats struct {
	HTTPCode       string `json:"http_code"`
	TimeTotal      string `json:"time_total"`
	TimeConnect    string `json:"time_connect"`
	TimeNamelookup string `json:"time_namelookup"`
	SizeDownload   string `json:"size_download"`
}

type curlResponse struct {
	URL    string            `json:"url"`
	Method string            `json:"method"`
	Stats  *CurlStats        `json:"stats,omitempty"`
	Body   string            `json:"body,omitempty"`
	Result *tools.ExecResult `json:"result"`
}

const curlWriteOut = `{"http_code": "%{http_code}", "time_total": "%{time_total}", "time_connect": "%{time_connect}", "time_namelookup": "%{time_namelookup}", "size_download": "%{size_download}"}`

func (t *curlTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := curlArgs{Method: "GET", Timeout: 30}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.URL(a.URL); err != nil {
		return nil, err
	}
	method, err := validMethod(a.Method)
	if err != nil {
		return nil, err
	}
	for k := range a.Headers {
		if strings.ContainsAny(k, "\r\n") || strings.ContainsAny(a.Headers[k], "\r\n") {
			return nil, validate.Errorf("header %q contains invalid characters", k)
		}
	}

	// Body is written to a scratch file so stdout carries only the
	// write-out stats.
	var buf [8]byte
	rand.Read(buf[:])
	bodyPath := filepath.Join(os.TempDir(), "netopsd-curl-"+hex.EncodeToString(buf[:]))
	defer os.Remove(bodyPath)

	argv := []string{"curl", "-s", "-S", "-w", curlWriteOut, "-o", bodyPath, "-X", method}
	for k, v := range a.Headers {
		argv = append(argv, "-H", k+": "+v)
	}
	if a.Data != "" {
		argv = append(argv, "-d", a.Data)
	}
	argv = append(argv, "--max-time", strconv.Itoa(a.Timeout), a.URL)

	result := t.env.Runner.Run(ctx, "curl_request", argv, time.Duration(a.Timeout+5)*time.Second)

	resp := &curlResponse{URL: a.URL, Method: method, Result: result}
	if result.Success {
		var stats CurlStats
		if err := json.Unmarshal([]byte(result.Stdout), &stats); err == nil {
			resp.Stats = &stats
		}
		if body, err := os.ReadFile(bodyPath); err == nil {
			resp.Body = string(body)
		}
		// The write-out stats are already surfaced in stats.
		result.Stdout = ""
	}
	return resp, nil
}

type httpCheckTool struct {
	env tools.Env
}

type httpCheckArgs struct {
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	ExpectedStatus int               `json:"expected_status"`
	Headers        map[string]string `json:"headers,omitempty"`
	Timeout        int               `json:"timeout"` // seconds
}

type httpCheckResponse struct {
	URL            string  `json:"url"`
	Method         string  `json:"method"`
	StatusCode     int     `json:"status_code"`
	ExpectedStatus int     `json:"expected_status"`
	Passed         bool    `json:"passed"`
	LatencyMS      float64 `json:"latency_ms"`
	BodyBytes      int64   `json:"body_bytes"`
	Error          string  `json:"error,omitempty"`
}

func (t *httpCheckTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := httpCheckArgs{Method: "GET", ExpectedStatus: http.StatusOK, Timeout: 30}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.URL(a.URL); err != nil {
		return nil, err
	}
	method, err := validMethod(a.Method)
	if err != nil {
		return nil, err
	}
	if a.ExpectedStatus < 100 || a.ExpectedStatus > 599 {
		return nil, validate.Errorf("expected_status %d out of range 100-599", a.ExpectedStatus)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, a.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}

	resp := &httpCheckResponse{
		URL:            a.URL,
		Method:         method,
		ExpectedStatus: a.ExpectedStatus,
	}

	start := time.Now()
	res, err := t.env.HTTPClient.Do(req)
	resp.LatencyMS = float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		resp.Error = err.Error()
		return resp, nil
	}
	defer res.Body.Close()

	n, _ := io.Copy(io.Discard, res.Body)
	resp.BodyBytes = n
	resp.StatusCode = res.StatusCode
	resp.Passed = res.StatusCode == a.ExpectedStatus
	return resp, nil
}
