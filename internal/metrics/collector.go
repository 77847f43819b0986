// Package metrics aggregates counters and latency samples for HTTP traffic,
// authentication outcomes, rate limiting, and tool executions, and renders
// them in the Prometheus exposition format.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

var durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

// Collector is a process-lifetime aggregator backed by a private Prometheus
// registry. It is injected explicitly wherever it is needed; there is no
// package-level instance. All recording methods are safe for concurrent use
// and nil-safe so optional wiring stays uncluttered.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	inProgress   prometheus.Gauge
	inProgressMu sync.Mutex
	inProgressN  int64

	authAttempts  prometheus.Counter
	authFailures  prometheus.Counter
	rateLimitHits prometheus.Counter

	toolExecutions *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	toolFailures   *prometheus.CounterVec
}

// NewCollector creates a collector with all metric families registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: durationBuckets,
		}, []string{"method", "path", "status"}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		}),
		authAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		rateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		}),
		toolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_executions_total",
			Help: "Total number of tool executions",
		}, []string{"tool"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tool_execution_duration_seconds",
			Help:    "Tool execution duration in seconds",
			Buckets: durationBuckets,
		}, []string{"tool"}),
		toolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_failures_total",
			Help: "Total number of tool execution failures",
		}, []string{"tool"}),
	}

	c.registry.MustRegister(
		c.httpRequests, c.httpDuration, c.inProgress,
		c.authAttempts, c.authFailures, c.rateLimitHits,
		c.toolExecutions, c.toolDuration, c.toolFailures,
	)

	return c
}

// RecordHTTPRequest records one completed request with its duration.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	c.httpRequests.With(labels).Inc()
	c.httpDuration.With(labels).Observe(duration.Seconds())
}

// IncRequestsInProgress adjusts the live request gauge up.
func (c *Collector) IncRequestsInProgress() {
	if c == nil {
		return
	}
	c.inProgressMu.Lock()
	c.inProgressN++
	c.inProgress.Set(float64(c.inProgressN))
	c.inProgressMu.Unlock()
}

// DecRequestsInProgress adjusts the live request gauge down, flooring at zero.
func (c *Collector) DecRequestsInProgress() {
	if c == nil {
		return
	}
	c.inProgressMu.Lock()
	if c.inProgressN > 0 {
		c.inProgressN--
	}
	c.inProgress.Set(float64(c.inProgressN))
	c.inProgressMu.Unlock()
}

// RecordAuthAttempt records an authentication evaluation; failures are
// counted separately on top of the attempt.
func (c *Collector) RecordAuthAttempt(success bool) {
	if c == nil {
		return
	}
	c.authAttempts.Inc()
	if !success {
		c.authFailures.Inc()
	}
}

// RecordRateLimitHit records one rejected request.
func (c *Collector) RecordRateLimitHit() {
	if c == nil {
		return
	}
	c.rateLimitHits.Inc()
}

// RecordToolExecution records one tool run with its duration and outcome.
func (c *Collector) RecordToolExecution(tool string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	c.toolExecutions.WithLabelValues(tool).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		c.toolFailures.WithLabelValues(tool).Inc()
	}
}

// Export renders the current state in the text exposition format. Gather
// snapshots each family under its own lock; formatting happens on the copy.
func (c *Collector) Export() (string, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", fmt.Errorf("encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}

// Handler serves the exposition text for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
